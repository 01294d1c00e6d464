package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyDir recursively copies the tree at src to dst, preserving file modes.
// Symlinks are dereferenced: a link resolving inside root is copied as the
// file or directory it points at, a link resolving outside root or to nothing
// is left out. An empty root confines links to src itself. Directories for
// which skip returns true are not descended into. A nil skip copies everything.
func CopyDir(src, dst, root string, skip func(path string) bool) error {
	c, realSrc, err := newCopier(src, root, skip)
	if err != nil {
		return err
	}
	return c.copyDir(src, realSrc, dst)
}

func newCopier(src, root string, skip func(path string) bool) (*copier, string, error) {
	if root == "" {
		root = src
	}
	realRoot, err := realPath(root)
	if err != nil {
		return nil, "", err
	}
	realSrc, err := realPath(src)
	if err != nil {
		return nil, "", err
	}
	if !within(realSrc, realRoot) {
		return nil, "", fmt.Errorf("copy %s: resolves outside %s", src, root)
	}
	return &copier{root: realRoot, skip: skip, active: map[string]bool{}}, realSrc, nil
}

type copier struct {
	root string
	skip func(path string) bool
	// active holds the resolved directories currently being copied, so a
	// link back to one of them cannot recurse forever.
	active map[string]bool
}

func (c *copier) skipped(path string) bool {
	return c.skip != nil && c.skip(path)
}

func (c *copier) copyDir(src, real, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("copy %s: not a directory", src)
	}

	c.active[real] = true
	defer delete(c.active, real)

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			if err := c.copyLink(srcPath, dstPath); err != nil {
				return err
			}
		case entry.IsDir():
			if c.skipped(srcPath) {
				continue
			}
			if err := c.copyDir(srcPath, filepath.Join(real, entry.Name()), dstPath); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		default:
			// sockets, devices and pipes are not deployable content
		}
	}

	return os.Chmod(dst, srcInfo.Mode().Perm())
}

// copyLink copies what link points at, or nothing when the link is dangling
// or escapes the root.
func (c *copier) copyLink(link, dst string) error {
	resolved, err := realPath(link)
	if err != nil || !within(resolved, c.root) {
		return nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil
	}

	switch {
	case info.IsDir():
		if c.active[resolved] || c.skipped(link) || c.skipped(resolved) {
			return nil
		}
		return c.copyDir(resolved, resolved, dst)
	case info.Mode().IsRegular():
		return copyFile(resolved, dst)
	}
	return nil
}

// realPath resolves every symlink in path and makes it absolute.
func realPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode().Perm())
}

// ReplaceDir deletes dst and recreates it as a copy of src, resolving links
// against root as CopyDir does.
func ReplaceDir(src, dst, root string, skip func(path string) bool) error {
	c, realSrc, err := newCopier(src, root, skip)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return c.copyDir(src, realSrc, dst)
}
