package signal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

func TestFSRecorder_AppendAccumulates(t *testing.T) {
	root := t.TempDir()
	r := NewFSRecorder(root)

	require.NoError(t, r.Append("room-1", []byte("abc")))
	require.NoError(t, r.Append("room-1", []byte("def")))

	data, err := os.ReadFile(filepath.Join(root, "room-1.webm"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), data)
}

func TestFSRecorder_EmptyChunkIgnored(t *testing.T) {
	root := t.TempDir()
	r := NewFSRecorder(root)

	require.NoError(t, r.Append("room-1", nil))
	_, err := os.Stat(filepath.Join(root, "room-1.webm"))
	assert.True(t, os.IsNotExist(err))
}

func TestFSRecorder_Ref(t *testing.T) {
	r := NewFSRecorder(t.TempDir())

	assert.Empty(t, r.Ref("room-1"), "no recording yet")

	require.NoError(t, r.Append("room-1", []byte("x")))
	assert.Equal(t, "room-1.webm", r.Ref("room-1"))
}

func TestFSRecorder_RejectsBadRoomID(t *testing.T) {
	r := NewFSRecorder(t.TempDir())

	err := r.Append("../escape", []byte("x"))
	assert.True(t, cverrors.IsValidation(err))
	assert.Empty(t, r.Ref("../escape"))
}

func TestFSRecorder_RoomsIsolated(t *testing.T) {
	root := t.TempDir()
	r := NewFSRecorder(root)

	require.NoError(t, r.Append("room-1", []byte("one")))
	require.NoError(t, r.Append("room-2", []byte("two")))

	one, err := os.ReadFile(filepath.Join(root, "room-1.webm"))
	require.NoError(t, err)
	two, err := os.ReadFile(filepath.Join(root, "room-2.webm"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), one)
	assert.Equal(t, []byte("two"), two)
}
