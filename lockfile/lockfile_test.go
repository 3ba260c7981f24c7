package lockfile

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/metrics"
)

func TestAcquireCloseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := fscap.NewOSFS()

	l, err := Acquire(fs, dir+"/LOCK", DefaultConfig(), zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)
	require.NoError(t, l.Close())
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	dir := t.TempDir()
	fs := fscap.NewOSFS()
	cfg := Config{StaleAfter: time.Hour, RetryAfter: time.Millisecond, Attempts: 2, HeartbeatInterval: time.Hour}

	l, err := Acquire(fs, dir+"/LOCK", cfg, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	_, err = Acquire(fs, dir+"/LOCK", cfg, zerolog.Nop(), metrics.NoopCollector{})
	require.Error(t, err, "expected acquiring an already-held lock to fail")
}

// TestHeartbeatRefreshesMTime guards against touch() becoming a no-op on
// a real filesystem: a zero-length WriteAt issues no write syscall at
// all, so the lock's mtime would never move and a live, held lock would
// look stale to another process after StaleAfter elapses.
func TestHeartbeatRefreshesMTime(t *testing.T) {
	dir := t.TempDir()
	fs := fscap.NewOSFS()
	path := dir + "/LOCK"
	cfg := Config{StaleAfter: time.Hour, RetryAfter: time.Millisecond, Attempts: 1, HeartbeatInterval: 10 * time.Millisecond}

	l, err := Acquire(fs, path, cfg, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	before, err := fs.Stat(path)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		after, err := fs.Stat(path)
		if err != nil {
			return false
		}
		return after.ModTime.After(before.ModTime)
	}, time.Second, 10*time.Millisecond, "heartbeat never advanced the lock file's mtime")
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	fs := fscap.NewOSFS()
	path := dir + "/LOCK"

	f, err := fs.Open(path, fscap.O_WRONLY|fscap.O_CREATE|fscap.O_EXCL, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	cfg := Config{StaleAfter: time.Second, RetryAfter: time.Millisecond, Attempts: 5, HeartbeatInterval: time.Hour}
	l, err := Acquire(fs, path, cfg, zerolog.Nop(), metrics.NoopCollector{})
	require.NoError(t, err, "expected a stale lock to be reclaimed")
	require.NoError(t, l.Close())
}
