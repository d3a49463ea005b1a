package audio

import "testing"

func TestFrameQueue_PullEmptyReturnsNotOK(t *testing.T) {
	q := NewFrameQueue(0)
	if _, ok := q.Pull(); ok {
		t.Error("Expected Pull on empty queue to report not ok")
	}
}

func TestFrameQueue_FIFOAcrossFrames(t *testing.T) {
	q := NewFrameQueue(0)
	q.Push([]float32{1, 2})
	q.Push([]float32{3})
	q.Push([]float32{4, 5})

	want := []float32{1, 2, 3, 4, 5}
	for i, w := range want {
		got, ok := q.Pull()
		if !ok {
			t.Fatalf("Pull %d: unexpectedly empty", i)
		}
		if got != w {
			t.Errorf("Pull %d = %v, want %v", i, got, w)
		}
	}
	if _, ok := q.Pull(); ok {
		t.Error("Expected queue to be drained")
	}
}

func TestFrameQueue_NoSampleReturnedTwice(t *testing.T) {
	q := NewFrameQueue(0)
	q.Push([]float32{1, 2, 3})

	q.Pull()
	q.Push([]float32{4})

	got, _ := q.Pull()
	if got != 2 {
		t.Errorf("Expected second sample after interleaved push, got %v", got)
	}
}

func TestFrameQueue_CapDropsOldest(t *testing.T) {
	q := NewFrameQueue(2)
	q.Push([]float32{1})
	q.Push([]float32{2})
	q.Push([]float32{3})

	if q.Dropped() != 1 {
		t.Errorf("Expected 1 dropped frame, got %d", q.Dropped())
	}
	got, ok := q.Pull()
	if !ok || got != 2 {
		t.Errorf("Expected oldest surviving sample 2, got %v (ok=%v)", got, ok)
	}
}

func TestFrameQueue_Len(t *testing.T) {
	q := NewFrameQueue(0)
	q.Push([]float32{1, 2, 3})
	q.Pull()
	if n := q.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestFrameQueue_Reset(t *testing.T) {
	q := NewFrameQueue(0)
	q.Push([]float32{1, 2, 3})
	q.Reset()
	if _, ok := q.Pull(); ok {
		t.Error("Expected empty queue after Reset")
	}
}

func TestFrameQueue_IgnoresEmptyFrames(t *testing.T) {
	q := NewFrameQueue(0)
	q.Push(nil)
	q.Push([]float32{})
	if n := q.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}
