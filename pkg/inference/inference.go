// Package inference wraps the generative model API used for meeting
// summarization and task neutralization.
package inference

import (
	"context"
)

// Attachment is a binary part sent alongside the prompt, typically the
// meeting's recorded audio.
type Attachment struct {
	// MIMEType is the attachment's media type, e.g. "audio/webm".
	MIMEType string
	// Data is the raw attachment bytes.
	Data []byte
}

// Request is a single generation call.
type Request struct {
	// Prompt is the instruction text.
	Prompt string
	// Audio is an optional audio attachment the model should transcribe
	// and reason over.
	Audio *Attachment
}

// Client generates text from a prompt and optional attachment.
// Implementations must honor ctx cancellation and deadlines.
type Client interface {
	// Generate runs one inference call and returns the model's text output.
	Generate(ctx context.Context, req Request) (string, error)

	// Model returns the model identifier used for requests.
	Model() string
}
