package signal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/conclave-hq/conclave/pkg/errors"
)

// Recorder accumulates a room's audio chunks into an artifact.
type Recorder interface {
	// Append adds a chunk to the room's recording.
	Append(roomID string, chunk []byte) error

	// Ref returns the artifact reference for a room's recording, or empty
	// when nothing was recorded.
	Ref(roomID string) string
}

var roomIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FSRecorder appends chunks to one WebM file per room under a root directory.
type FSRecorder struct {
	root string
}

// NewFSRecorder creates a recorder writing under root. The directory is
// created on first append.
func NewFSRecorder(root string) *FSRecorder {
	return &FSRecorder{root: root}
}

// Append adds a chunk to the room's recording file.
func (r *FSRecorder) Append(roomID string, chunk []byte) error {
	if !roomIDRe.MatchString(roomID) {
		return fmt.Errorf("invalid room id %q: %w", roomID, errors.ErrValidation)
	}
	if len(chunk) == 0 {
		return nil
	}
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("creating recordings dir: %w", err)
	}

	f, err := os.OpenFile(r.path(roomID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening recording for room %s: %w", roomID, err)
	}
	defer f.Close()

	if _, err := f.Write(chunk); err != nil {
		return fmt.Errorf("appending audio for room %s: %w", roomID, err)
	}
	return nil
}

// Ref returns the room's recording filename when one exists.
func (r *FSRecorder) Ref(roomID string) string {
	if !roomIDRe.MatchString(roomID) {
		return ""
	}
	if _, err := os.Stat(r.path(roomID)); err != nil {
		return ""
	}
	return roomID + ".webm"
}

func (r *FSRecorder) path(roomID string) string {
	return filepath.Join(r.root, roomID+".webm")
}

var _ Recorder = (*FSRecorder)(nil)
