package server

import (
	"archive/zip"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeArchive is returned for entries escaping the extraction root.
var ErrUnsafeArchive = stdErrors.New("archive entry escapes project directory")

// ErrArchiveTooLarge is returned when the uncompressed archive exceeds its budget.
var ErrArchiveTooLarge = stdErrors.New("archive exceeds extraction limit")

// extractZip unpacks r into dest, writing at most limit uncompressed bytes.
// Symlink entries are rejected.
func extractZip(r *zip.Reader, dest string, limit int64) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	remaining := limit

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchive, f.Name)
		}

		mode := f.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			return fmt.Errorf("%w: symlink %s", ErrUnsafeArchive, f.Name)
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
			continue
		case !mode.IsRegular():
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		n, err := extractFile(f, target, remaining)
		if err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	perm := f.Mode().Perm() | 0o600
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.CopyN(out, rc, budget+1)
	cerr := out.Close()
	switch {
	case n > budget:
		return n, ErrArchiveTooLarge
	case err != nil && !stdErrors.Is(err, io.EOF):
		return n, err
	case cerr != nil:
		return n, cerr
	}
	return n, nil
}

// projectRoot descends into a lone top-level directory, the common layout of
// archives created by zipping a folder.
func projectRoot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}
