package stt

import "context"

// Result is one recognition hypothesis from the streaming service. Interim
// results revise in place until a final result closes the utterance.
type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Channel is one streaming recognition connection. A call runs two of them,
// one per speaker, so that user and assistant audio never mix.
type Channel interface {
	// Start opens the connection and blocks until the service acknowledges
	// it or ctx expires.
	Start(ctx context.Context) error

	// Send forwards a chunk of 16 kHz s16le audio.
	Send(pcm []byte) error

	// Results returns the stream of hypotheses. Closed after Close.
	Results() <-chan Result

	// Close finishes the session and releases the connection. Safe to call
	// more than once.
	Close() error
}

// ChannelFactory creates a recognition channel for one speaker. Indirection
// point for tests.
type ChannelFactory func(speaker string) Channel
