// Package storage provides the filesystem side of a transform: reading the
// source, the scratch file that holds each trial encode, and the final
// non-clobbering write.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/utils"
)

// maxCollisions bounds the _n suffix search in Promote.
const maxCollisions = 10000

// Local stores images on the local filesystem.
type Local struct {
	scratchDir  string
	permissions os.FileMode
	chunkSize   int
	maxBytes    int64
}

// NewLocal creates a Local adapter.  An empty scratchDir means os.TempDir().
// maxBytes <= 0 disables the source size limit.
func NewLocal(scratchDir string, perm os.FileMode, chunkSize int, maxBytes int64) *Local {
	if perm == 0 {
		perm = 0o644
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Local{scratchDir: scratchDir, permissions: perm, chunkSize: chunkSize, maxBytes: maxBytes}
}

// ReadSource reads path fully and returns its bytes.
func (l *Local) ReadSource(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.read", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "local.read.open", err)
	}
	defer f.Close()

	buf, err := utils.DrainReader(ctx, &utils.LimitedReader{R: f, Max: l.maxBytes}, l.chunkSize)
	if err != nil {
		if errors.Is(err, utils.ErrTooLarge) {
			return nil, apperrors.New(apperrors.CategoryInput, "local.read",
				fmt.Errorf("%s: %w (limit %d bytes)", path, err, l.maxBytes))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.read", err)
	}
	defer utils.ReleaseBuffer(buf)
	return utils.CloneBytes(buf.Bytes()), nil
}

// CheckDir returns an input error unless dir exists and is a directory.
func (l *Local) CheckDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return apperrors.New(apperrors.CategoryInput, "local.check_dir",
			fmt.Errorf("%w: %s: %v", apperrors.ErrOutputDir, dir, err))
	}
	if !fi.IsDir() {
		return apperrors.New(apperrors.CategoryInput, "local.check_dir",
			fmt.Errorf("%w: %s is not a directory", apperrors.ErrOutputDir, dir))
	}
	return nil
}

// Scratch creates an empty, uniquely named file in the scratch directory.
// The caller removes it with Remove.
func (l *Local) Scratch(ext string) (string, error) {
	f, err := os.CreateTemp(l.scratchDir, "imagesizer-*"+ext)
	if err != nil {
		return "", apperrors.Transient("local.scratch", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.scratch", err)
	}
	return name, nil
}

// Overwrite replaces the contents of path with data and returns the size
// the filesystem reports afterwards.
func (l *Local) Overwrite(ctx context.Context, path string, data []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Wrap(apperrors.CategoryStorage, "local.overwrite", err)
	}
	if err := os.WriteFile(path, data, l.permissions); err != nil {
		return 0, apperrors.Wrap(apperrors.CategoryStorage, "local.overwrite", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CategoryStorage, "local.overwrite.stat", err)
	}
	return fi.Size(), nil
}

// Promote copies src into dir under name and returns the path written.  It
// never replaces an existing file: on collision "_1", "_2", ... is inserted
// before the extension.
func (l *Local) Promote(ctx context.Context, src, dir, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.promote", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.promote.open", err)
	}
	defer in.Close()

	out, path, err := l.createExclusive(dir, name)
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(path)
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.promote.copy", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.promote.close", err)
	}
	return path, nil
}

// WriteNew writes data into dir under name with the same collision rule as
// Promote.
func (l *Local) WriteNew(ctx context.Context, dir, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.write", err)
	}
	out, path, err := l.createExclusive(dir, name)
	if err != nil {
		return "", err
	}
	if _, err = out.Write(data); err != nil {
		out.Close()
		_ = os.Remove(path)
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.write", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.write.close", err)
	}
	return path, nil
}

// Remove deletes path.  A missing file is not an error.
func (l *Local) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	return nil
}

func (l *Local) createExclusive(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 0; n < maxCollisions; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, l.permissions)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", apperrors.Wrap(apperrors.CategoryStorage, "local.create", err)
		}
	}
	return nil, "", apperrors.New(apperrors.CategoryStorage, "local.create",
		fmt.Errorf("no free name for %s in %s", name, dir))
}
