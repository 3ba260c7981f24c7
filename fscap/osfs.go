package fscap

import (
	"errors"
	"io/fs"
	"os"
)

// OSFS implements FS over the real filesystem.
type OSFS struct{}

// NewOSFS returns an OS-backed filesystem capability.
func NewOSFS() *OSFS { return &OSFS{} }

func toErrno(err error) Errno {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ENOENT
	case errors.Is(err, fs.ErrExist):
		return EEXIST
	default:
		var perr *fs.PathError
		if errors.As(err, &perr) {
			if perr.Err.Error() == "is a directory" {
				return EISDIR
			}
			if perr.Err.Error() == "not a directory" {
				return ENOTDIR
			}
		}
		return EBADF
	}
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Code: toErrno(err), Err: err}
}

func toOSFlags(flags int) int {
	var f int
	switch {
	case flags&O_RDWR != 0:
		f |= os.O_RDWR
	case flags&O_WRONLY != 0:
		f |= os.O_WRONLY
	default:
		f |= os.O_RDONLY
	}
	if flags&O_CREATE != 0 {
		f |= os.O_CREATE
	}
	if flags&O_APPEND != 0 {
		f |= os.O_APPEND
	}
	if flags&O_EXCL != 0 {
		f |= os.O_EXCL
	}
	return f
}

func (fsys *OSFS) Open(path string, flags int, mode uint32) (File, error) {
	f, err := os.OpenFile(path, toOSFlags(flags), os.FileMode(mode))
	if err != nil {
		return nil, wrap("open", path, err)
	}
	return &osFile{f: f, path: path}, nil
}

func (fsys *OSFS) Stat(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, wrap("stat", path, err)
	}
	return FileInfo{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

func (fsys *OSFS) Truncate(path string, size int64) error {
	return wrap("truncate", path, os.Truncate(path, size))
}

func (fsys *OSFS) Rename(oldpath, newpath string) error {
	return wrap("rename", oldpath, os.Rename(oldpath, newpath))
}

func (fsys *OSFS) Unlink(path string) error {
	return wrap("unlink", path, os.Remove(path))
}

func (fsys *OSFS) Mkdir(path string, mode uint32) error {
	err := os.Mkdir(path, os.FileMode(mode))
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	return wrap("mkdir", path, err)
}

func (fsys *OSFS) Readdir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, wrap("readdir", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

type osFile struct {
	f    *os.File
	path string
}

func (o *osFile) ReadAt(buf []byte, pos int64) (int, error) {
	n, err := o.f.ReadAt(buf, pos)
	if err != nil && err.Error() != "EOF" {
		return n, wrap("read", o.path, err)
	}
	return n, err
}

func (o *osFile) WriteAt(buf []byte, pos int64) (int, error) {
	n, err := o.f.WriteAt(buf, pos)
	if err != nil {
		return n, wrap("write", o.path, err)
	}
	return n, nil
}

func (o *osFile) Fsync() error {
	return wrap("fsync", o.path, o.f.Sync())
}

func (o *osFile) Fstat() (FileInfo, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return FileInfo{}, wrap("fstat", o.path, err)
	}
	return FileInfo{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

func (o *osFile) Ftruncate(size int64) error {
	return wrap("ftruncate", o.path, o.f.Truncate(size))
}

func (o *osFile) Close() error {
	return wrap("close", o.path, o.f.Close())
}
