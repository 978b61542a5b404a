package fsops

import (
	"io"
	"os"
	"path/filepath"
)

// OSFilesystem implements Filesystem against the real host filesystem.
// Each method maps directly onto os / path/filepath calls; the
// goftp/server.Driver-shaped adapter over it is FTPDriver.
type OSFilesystem struct{}

func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

func (fs *OSFilesystem) Absolutize(path string) (string, error) {
	return filepath.Abs(path)
}

func (fs *OSFilesystem) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		out = append(out, DirEntry{
			Name:       e.Name(),
			Kind:       entryKind(info),
			Size:       uint64(info.Size()),
			ModTime:    info.ModTime(),
			AccessTime: accessTime(info),
		})
	}
	return out, nil
}

func entryKind(info os.FileInfo) string {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return "symlink"
	case info.IsDir():
		return "folder"
	case info.Mode().IsRegular():
		return "file"
	default:
		return "other"
	}
}

func (fs *OSFilesystem) Stat(path string) (FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStat{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return FileStat{}, err
	}

	kind := KindOther
	switch {
	case info.IsDir():
		kind = KindDir
	case info.Mode().IsRegular():
		kind = KindFile
	}

	return FileStat{
		Type:       kind,
		Size:       uint64(info.Size()),
		ModTime:    info.ModTime(),
		AccessTime: accessTime(info),
		AbsPath:    abs,
	}, nil
}

func (fs *OSFilesystem) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

func (fs *OSFilesystem) RemoveFile(path string) error {
	return os.Remove(path)
}

func (fs *OSFilesystem) RemoveTree(path string) error {
	return os.RemoveAll(path)
}

func (fs *OSFilesystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (fs *OSFilesystem) Getwd() (string, error) {
	return os.Getwd()
}

func (fs *OSFilesystem) OpenRead(path string) (ReadSeekCloser, error) {
	return os.Open(path)
}

func (fs *OSFilesystem) OpenWrite(path string) (WriteSeekCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
}
