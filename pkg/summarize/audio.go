// Package summarize turns a meeting's recorded audio into a structured
// summary and a set of extracted action items.
package summarize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
)

// Source loads the recorded artifact a meeting's AudioRef points at.
type Source interface {
	Load(ctx context.Context, ref string) (*inference.Attachment, error)
}

// FSSource resolves audio refs relative to a root directory.
type FSSource struct {
	root string
}

// NewFSSource creates a filesystem-backed audio source.
func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

// Load reads the audio file for the given ref. Refs are relative paths;
// anything escaping the root is rejected.
func (s *FSSource) Load(_ context.Context, ref string) (*inference.Attachment, error) {
	clean := filepath.Clean(strings.TrimPrefix(ref, "/"))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("audio ref %q escapes storage root: %w", ref, errors.ErrValidation)
	}

	path := filepath.Join(s.root, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio %q: %w", ref, errors.ErrNotFound)
		}
		return nil, fmt.Errorf("reading audio %q: %w", ref, err)
	}

	return &inference.Attachment{
		MIMEType: MIMEForRef(ref),
		Data:     data,
	}, nil
}

// MIMEForRef maps a recording's file extension to its media type. Recordings
// are captured as WebM except for Ogg uploads.
func MIMEForRef(ref string) string {
	if strings.EqualFold(filepath.Ext(ref), ".ogg") {
		return "audio/ogg"
	}
	return "audio/webm"
}

var _ Source = (*FSSource)(nil)
