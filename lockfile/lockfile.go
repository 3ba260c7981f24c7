// Package lockfile implements the exclusive mutator lock of §4.4: an
// exclusively-created file whose mtime is refreshed by a heartbeat, so
// a crashed process's lock is detected as stale and reclaimed rather
// than wedging the store forever.
package lockfile

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowdb/urkel/fscap"
	"github.com/flowdb/urkel/metrics"
	"github.com/flowdb/urkel/urkelerr"
)

// Config holds the tunables named by §4.4.
type Config struct {
	// StaleAfter is how long since the last heartbeat before a lock
	// file is considered abandoned by a crashed process.
	StaleAfter time.Duration
	// RetryAfter is how long to wait between acquisition attempts.
	RetryAfter time.Duration
	// Attempts is the maximum number of acquisition attempts.
	Attempts int
	// HeartbeatInterval is how often a held lock's mtime is refreshed.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns sensible defaults for the lock file protocol.
func DefaultConfig() Config {
	return Config{
		StaleAfter:        10 * time.Second,
		RetryAfter:        50 * time.Millisecond,
		Attempts:          20,
		HeartbeatInterval: 1 * time.Second,
	}
}

// Lock represents a held mutator lock. It must be closed to release the
// lock and stop its heartbeat.
type Lock struct {
	fs   fscap.FS
	path string
	log  zerolog.Logger
	cfg  Config

	wg     sync.WaitGroup
	stopc  chan struct{}
	closed bool
	mu     sync.Mutex
}

// Acquire attempts to exclusively create the lock file at path,
// retrying through staleness and clock-skew recovery as specified in
// §4.4, and starts its heartbeat on success.
func Acquire(fs fscap.FS, path string, cfg Config, log zerolog.Logger, mcol metrics.Collector) (*Lock, error) {
	start := time.Now()

	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		f, err := fs.Open(path, fscap.O_WRONLY|fscap.O_CREATE|fscap.O_EXCL, 0o644)
		if err == nil {
			f.Close() //nolint:errcheck
			mcol.LockWait(time.Since(start))
			l := &Lock{fs: fs, path: path, log: log, cfg: cfg, stopc: make(chan struct{})}
			l.startHeartbeat()
			return l, nil
		}

		if !fscap.IsErrno(err, fscap.EEXIST) {
			return nil, err
		}

		fi, statErr := fs.Stat(path)
		if statErr != nil {
			// raced with the holder unlinking it; try again immediately.
			continue
		}

		age := time.Since(fi.ModTime)
		if fi.ModTime.After(time.Now().Add(cfg.StaleAfter)) {
			// mtime is in the far future: clock skew. Reclaim.
			log.Warn().Str("path", path).Msg("lock file mtime is in the future, reclaiming")
			fs.Unlink(path) //nolint:errcheck
			continue
		}
		if age > cfg.StaleAfter {
			log.Warn().Str("path", path).Dur("age", age).Msg("lock file is stale, reclaiming")
			fs.Unlink(path) //nolint:errcheck
			continue
		}

		time.Sleep(cfg.RetryAfter)
	}

	return nil, urkelerr.NewIOError("open", 0, 0, 0, &lockBusyError{Path: path})
}

type lockBusyError struct{ Path string }

func (e *lockBusyError) Error() string { return "lock file held by another process: " + e.Path }

func (l *Lock) startHeartbeat() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := l.touch(); err != nil {
					l.log.Warn().Err(err).Msg("lock file heartbeat failed")
				}
			case <-l.stopc:
				return
			}
		}
	}()
}

func (l *Lock) touch() error {
	f, err := l.fs.Open(l.path, fscap.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	// a zero-length WriteAt issues no write at all (os.File.WriteAt's
	// loop is for len(b) > 0), so mtime never moves. Write a real byte
	// so a real filesystem actually refreshes it; the timestamp content
	// is otherwise unused.
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	_, err = f.WriteAt(buf[:], 0)
	return err
}

// Close stops the heartbeat and deletes the lock file.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.stopc)
	l.wg.Wait()
	return l.fs.Unlink(l.path)
}
