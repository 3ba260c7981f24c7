package fscap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFSWriteReadTruncate(t *testing.T) {
	fs := NewMemFS()

	f, err := fs.Open("/a", O_RDWR|O_CREATE, 0o644)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))

	require.NoError(t, f.Ftruncate(2))

	fi, err := f.Fstat()
	require.NoError(t, err)
	require.Equal(t, int64(2), fi.Size)
}

func TestMemFSOpenMissingNoCreate(t *testing.T) {
	fs := NewMemFS()
	_, err := fs.Open("/missing", O_RDONLY, 0)
	require.True(t, IsErrno(err, ENOENT), "expected ENOENT, got %v", err)
}

func TestMemFSRenameUnlink(t *testing.T) {
	fs := NewMemFS()
	f, err := fs.Open("/a", O_RDWR|O_CREATE, 0o644)
	require.NoError(t, err)
	f.WriteAt([]byte("x"), 0) //nolint:errcheck

	require.NoError(t, fs.Rename("/a", "/b"))

	_, err = fs.Stat("/a")
	require.True(t, IsErrno(err, ENOENT), "expected old path gone, got %v", err)

	_, err = fs.Stat("/b")
	require.NoError(t, err, "expected new path present")

	require.NoError(t, fs.Unlink("/b"))

	_, err = fs.Stat("/b")
	require.True(t, IsErrno(err, ENOENT), "expected unlinked path gone")
}
