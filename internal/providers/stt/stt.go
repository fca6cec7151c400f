package stt

import "context"

// Provider is the external speech-capture capability: audio in, transcript
// text plus confidence out. The live loop also accepts client-side
// transcripts directly, so this path is optional per deployment.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}
