package audio

import "sync"

// DefaultMaxQueuedFrames bounds FrameQueue depth. The agent paces its own
// delivery, so in practice the queue stays shallow; the cap only matters
// under sustained network jitter, where the oldest audio is the least worth
// keeping.
const DefaultMaxQueuedFrames = 2048

// FrameQueue decouples arrival of variably-sized agent audio chunks from the
// fixed-rate sample pull driven by the output device clock. Push appends a
// frame; Pull returns the next unread sample across frames in strict FIFO
// order. It is safe for one producer and one consumer to use concurrently.
type FrameQueue struct {
	mu        sync.Mutex
	frames    [][]float32
	cursor    int // read position into frames[0]
	maxFrames int
	dropped   uint64
}

// NewFrameQueue creates a queue holding at most maxFrames frames; zero or
// negative selects DefaultMaxQueuedFrames.
func NewFrameQueue(maxFrames int) *FrameQueue {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxQueuedFrames
	}
	return &FrameQueue{maxFrames: maxFrames}
}

// Push appends a frame. When the queue is at capacity the oldest frame is
// dropped to make room, keeping playback latency bounded.
func (q *FrameQueue) Push(frame []float32) {
	if len(frame) == 0 {
		return
	}
	q.mu.Lock()
	if len(q.frames) >= q.maxFrames {
		q.frames = q.frames[1:]
		q.cursor = 0
		q.dropped++
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()
}

// Pull returns the next sample and true, or 0 and false when the queue is
// empty. An empty queue is the steady-state "no audio yet" condition, not an
// error; the playback device substitutes silence. No sample is ever returned
// twice.
func (q *FrameQueue) Pull() (float32, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) > 0 && q.cursor >= len(q.frames[0]) {
		q.frames = q.frames[1:]
		q.cursor = 0
	}
	if len(q.frames) == 0 {
		return 0, false
	}
	s := q.frames[0][q.cursor]
	q.cursor++
	return s, true
}

// Len reports the number of unread samples currently buffered.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for i, f := range q.frames {
		if i == 0 {
			n += len(f) - q.cursor
		} else {
			n += len(f)
		}
	}
	return n
}

// Dropped reports how many frames were discarded due to the depth cap.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Reset discards all buffered audio.
func (q *FrameQueue) Reset() {
	q.mu.Lock()
	q.frames = nil
	q.cursor = 0
	q.mu.Unlock()
}
