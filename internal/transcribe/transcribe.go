// Package transcribe converts audio into text via an external
// speech-to-text provider.
package transcribe

import (
	"context"
	"io"
)

// Transcriber abstracts the speech-to-text capability. The audio extractor
// depends on this interface instead of a concrete provider client.
type Transcriber interface {
	// Transcribe uploads the audio stream and returns the full transcript text.
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}
