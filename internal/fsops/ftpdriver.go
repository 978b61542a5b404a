package fsops

import (
	"io"
	"os"
	"path/filepath"
	"time"

	ftpserver "github.com/goftp/server"
)

// FTPDriver adapts a Filesystem to goftp/server's Driver interface, so
// the same backing store yaftp serves over its own wire protocol can
// also be browsed with any standard FTP client -- useful for manually
// sanity-checking a Filesystem implementation's directory listings and
// file contents. Grounded directly on the teacher's
// src/protonuke/ftpdriver.go, which implements this same interface
// against the local disk.
type FTPDriver struct {
	FS Filesystem
}

func (d *FTPDriver) Init(*ftpserver.Conn) {}

func (d *FTPDriver) ChangeDir(path string) error {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return err
	}
	st, err := d.FS.Stat(abs)
	if err != nil {
		return err
	}
	if st.Type != KindDir {
		return os.ErrInvalid
	}
	return nil
}

func (d *FTPDriver) Stat(path string) (ftpserver.FileInfo, error) {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return nil, err
	}
	st, err := d.FS.Stat(abs)
	if err != nil {
		return nil, err
	}
	return &ftpFileInfo{name: filepath.Base(abs), stat: st}, nil
}

func (d *FTPDriver) ListDir(path string, callback func(ftpserver.FileInfo) error) error {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return err
	}
	entries, err := d.FS.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := callback(&ftpDirEntryInfo{e}); err != nil {
			return err
		}
	}
	return nil
}

func (d *FTPDriver) DeleteDir(path string) error {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return err
	}
	return d.FS.RemoveTree(abs)
}

func (d *FTPDriver) DeleteFile(path string) error {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return err
	}
	return d.FS.RemoveFile(abs)
}

func (d *FTPDriver) Rename(fromPath, toPath string) error {
	from, err := d.FS.Absolutize(fromPath)
	if err != nil {
		return err
	}
	to, err := d.FS.Absolutize(toPath)
	if err != nil {
		return err
	}
	if err := d.FS.Copy(from, to); err != nil {
		return err
	}
	return d.FS.RemoveFile(from)
}

func (d *FTPDriver) MakeDir(path string) error {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return err
	}
	return d.FS.MkdirAll(abs)
}

func (d *FTPDriver) GetFile(path string, offset int64) (int64, io.ReadCloser, error) {
	abs, err := d.FS.Absolutize(path)
	if err != nil {
		return 0, nil, err
	}
	st, err := d.FS.Stat(abs)
	if err != nil {
		return 0, nil, err
	}
	r, err := d.FS.OpenRead(abs)
	if err != nil {
		return 0, nil, err
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		r.Close()
		return 0, nil, err
	}
	return int64(st.Size), r, nil
}

func (d *FTPDriver) PutFile(destPath string, data io.Reader, appendData bool) (int64, error) {
	abs, err := d.FS.Absolutize(destPath)
	if err != nil {
		return 0, err
	}
	w, err := d.FS.OpenWrite(abs)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	if appendData {
		if st, err := d.FS.Stat(abs); err == nil {
			if _, err := w.Seek(int64(st.Size), io.SeekStart); err != nil {
				return 0, err
			}
		}
	}

	return io.Copy(w, data)
}

// FTPDriverFactory hands out one FTPDriver per accepted FTP control
// connection, all sharing the same backing Filesystem.
type FTPDriverFactory struct {
	FS Filesystem
}

func (f *FTPDriverFactory) NewDriver() (ftpserver.Driver, error) {
	return &FTPDriver{FS: f.FS}, nil
}

type ftpFileInfo struct {
	name string
	stat FileStat
}

func (i *ftpFileInfo) Name() string { return i.name }
func (i *ftpFileInfo) Size() int64  { return int64(i.stat.Size) }
func (i *ftpFileInfo) Mode() os.FileMode {
	if i.stat.Type == KindDir {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (i *ftpFileInfo) ModTime() time.Time { return i.stat.ModTime }
func (i *ftpFileInfo) IsDir() bool        { return i.stat.Type == KindDir }
func (i *ftpFileInfo) Sys() interface{}   { return nil }
func (i *ftpFileInfo) Owner() string      { return "yaftp" }
func (i *ftpFileInfo) Group() string      { return "yaftp" }

type ftpDirEntryInfo struct {
	e DirEntry
}

func (i *ftpDirEntryInfo) Name() string { return i.e.Name }
func (i *ftpDirEntryInfo) Size() int64  { return int64(i.e.Size) }
func (i *ftpDirEntryInfo) Mode() os.FileMode {
	if i.e.Kind == "folder" {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (i *ftpDirEntryInfo) ModTime() time.Time { return i.e.ModTime }
func (i *ftpDirEntryInfo) IsDir() bool        { return i.e.Kind == "folder" }
func (i *ftpDirEntryInfo) Sys() interface{}   { return nil }
func (i *ftpDirEntryInfo) Owner() string      { return "yaftp" }
func (i *ftpDirEntryInfo) Group() string      { return "yaftp" }
