package summarize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

func TestFSSource_Load(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "recordings"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "recordings", "m1.webm"), []byte("audio-bytes"), 0o644))

	src := NewFSSource(root)
	att, err := src.Load(context.Background(), "recordings/m1.webm")
	require.NoError(t, err)
	assert.Equal(t, "audio/webm", att.MIMEType)
	assert.Equal(t, []byte("audio-bytes"), att.Data)
}

func TestFSSource_LeadingSlashRef(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "m1.ogg"), []byte("ogg"), 0o644))

	src := NewFSSource(root)
	att, err := src.Load(context.Background(), "/m1.ogg")
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", att.MIMEType)
}

func TestFSSource_MissingFile(t *testing.T) {
	src := NewFSSource(t.TempDir())
	_, err := src.Load(context.Background(), "recordings/missing.webm")
	assert.True(t, cverrors.IsNotFound(err))
}

func TestFSSource_RejectsEscapingRef(t *testing.T) {
	src := NewFSSource(t.TempDir())
	_, err := src.Load(context.Background(), "../outside.webm")
	assert.True(t, cverrors.IsValidation(err))
}

func TestMIMEForRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"recordings/a.webm", "audio/webm"},
		{"recordings/a.ogg", "audio/ogg"},
		{"recordings/a.OGG", "audio/ogg"},
		{"recordings/a.mp3", "audio/webm"},
		{"recordings/noext", "audio/webm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MIMEForRef(tt.ref), tt.ref)
	}
}
