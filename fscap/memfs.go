package fscap

import (
	"path"
	"sort"
	"sync"
	"time"
)

// MemFS is an in-memory FS implementation, used when the store is
// configured with a null prefix (§6) and by tests that would otherwise
// pay for real disk I/O. Every method takes the same lock a real
// filesystem's single-writer semantics would imply, since the store
// never issues two writes to the same file concurrently.
type MemFS struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	isDir   bool
	data    []byte
	modTime time.Time
}

// NewMemFS returns an empty in-memory filesystem capability.
func NewMemFS() *MemFS {
	return &MemFS{entries: map[string]*memEntry{"": {isDir: true, modTime: time.Unix(0, 0)}}}
}

func (m *MemFS) Open(p string, flags int, _ uint32) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[p]
	if ok && flags&O_CREATE != 0 && flags&O_EXCL != 0 {
		return nil, &Error{Op: "open", Path: p, Code: EEXIST}
	}
	if !ok {
		if flags&O_CREATE == 0 {
			return nil, &Error{Op: "open", Path: p, Code: ENOENT}
		}
		e = &memEntry{modTime: time.Now()}
		m.entries[p] = e
	}
	if e.isDir {
		return nil, &Error{Op: "open", Path: p, Code: EISDIR}
	}
	return &memFile{fs: m, path: p}, nil
}

func (m *MemFS) Stat(p string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[p]
	if !ok {
		return FileInfo{}, &Error{Op: "stat", Path: p, Code: ENOENT}
	}
	return FileInfo{Name: path.Base(p), Size: int64(len(e.data)), ModTime: e.modTime, IsDir: e.isDir}, nil
}

func (m *MemFS) Truncate(p string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[p]
	if !ok {
		return &Error{Op: "truncate", Path: p, Code: ENOENT}
	}
	e.data = truncateOrPad(e.data, size)
	e.modTime = time.Now()
	return nil
}

func (m *MemFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[oldpath]
	if !ok {
		return &Error{Op: "rename", Path: oldpath, Code: ENOENT}
	}
	delete(m.entries, oldpath)
	m.entries[newpath] = e
	return nil
}

func (m *MemFS) Unlink(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[p]; !ok {
		return &Error{Op: "unlink", Path: p, Code: ENOENT}
	}
	delete(m.entries, p)
	return nil
}

func (m *MemFS) Mkdir(p string, _ uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[p]; ok {
		return nil
	}
	m.entries[p] = &memEntry{isDir: true, modTime: time.Now()}
	return nil
}

func (m *MemFS) Readdir(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for p := range m.entries {
		if p == dir || p == "" {
			continue
		}
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

func truncateOrPad(data []byte, size int64) []byte {
	if int64(len(data)) >= size {
		return data[:size]
	}
	out := make([]byte, size)
	copy(out, data)
	return out
}

type memFile struct {
	fs   *MemFS
	path string
}

func (f *memFile) ReadAt(buf []byte, pos int64) (int, error) {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()
	e, ok := f.fs.entries[f.path]
	if !ok {
		return 0, &Error{Op: "read", Path: f.path, Code: ENOENT}
	}
	if pos >= int64(len(e.data)) {
		return 0, &Error{Op: "read", Path: f.path, Code: EBADF}
	}
	n := copy(buf, e.data[pos:])
	return n, nil
}

func (f *memFile) WriteAt(buf []byte, pos int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	e, ok := f.fs.entries[f.path]
	if !ok {
		e = &memEntry{}
		f.fs.entries[f.path] = e
	}
	end := pos + int64(len(buf))
	if end > int64(len(e.data)) {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[pos:end], buf)
	e.modTime = time.Now()
	return len(buf), nil
}

func (f *memFile) Fsync() error { return nil }

func (f *memFile) Fstat() (FileInfo, error) {
	return f.fs.Stat(f.path)
}

func (f *memFile) Ftruncate(size int64) error {
	return f.fs.Truncate(f.path, size)
}

func (f *memFile) Close() error { return nil }
