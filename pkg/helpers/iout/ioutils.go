package iout

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

// TempFilePattern is the name pattern of in-flight copies inside a target directory.
const TempFilePattern = ".dirmirror-*.tmp"

// this is for cross-platformity (afraid to use syscall.ENOTEMPTY, because it seems to be unix-only)
var errDirNotEmpty = errors.New("directory not empty")

//readerWithContext allows to perform a cancellable read operation.
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func newReaderWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &readerWithContext{ctx: ctx, r: r}
}

func (r *readerWithContext) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
		return r.r.Read(p)
	}
}

//Remove removes a file or an empty directory. It silently ignores non-empty directory.
func Remove(fsys afero.Fs, path string) error {
	if err := fsys.Remove(path); err != nil {
		var pErr *fs.PathError
		if errors.As(err, &pErr) && pErr.Err != nil && strings.Contains(pErr.Err.Error(), errDirNotEmpty.Error()) {
			return nil
		}
		return fmt.Errorf("cannot remove entry: %w", err)
	}
	return nil
}

//RemoveAll removes the directory at path together with everything below it.
func RemoveAll(fsys afero.Fs, path string) error {
	if err := fsys.RemoveAll(path); err != nil {
		return fmt.Errorf("cannot remove dir tree: %w", err)
	}
	return nil
}

//Mkdir creates a single directory level. The parent has to exist.
func Mkdir(fsys afero.Fs, path string) error {
	if err := fsys.Mkdir(path, os.ModePerm); err != nil {
		return fmt.Errorf("cannot make dir: %w", err)
	}
	return nil
}

//EnsureDirExists creates the directory at path with all its parents, if they don't exist yet.
func EnsureDirExists(fsys afero.Fs, path string) error {
	if err := fsys.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("cannot make dir: %w", err)
	}
	return nil
}

func IsErrNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

//CopyFile copies the regular file at srcPath to dstPath.
//The copied file gets the permission bits of srcMode and srcModTime as its modification time.
//The content is written into a temporary file next to dstPath first, which is renamed
//into place only when it is complete, so dstPath never holds a partially written file.
//It returns the number of copied bytes.
func CopyFile(
	ctx context.Context, srcFs afero.Fs, srcPath string, dstFs afero.Fs, dstPath string,
	srcMode os.FileMode, srcModTime time.Time,
) (int64, error) {
	tmpPath, n, err := copyToTemp(ctx, srcFs, srcPath, dstFs, filepath.Dir(dstPath))
	if err != nil {
		return 0, fmt.Errorf("cannot copy file: %w", err)
	}

	if err = finalize(dstFs, tmpPath, dstPath, srcMode, srcModTime); err != nil {
		_ = dstFs.Remove(tmpPath)
		return 0, err
	}
	return n, nil
}

func copyToTemp(ctx context.Context, srcFs afero.Fs, srcPath string, dstFs afero.Fs, dstDir string) (string, int64, error) {
	in, err := srcFs.Open(srcPath)
	if err != nil {
		return "", 0, fmt.Errorf("cannot open file: %w", err)
	}
	defer in.Close()

	out, err := afero.TempFile(dstFs, dstDir, TempFilePattern)
	if err != nil {
		return "", 0, fmt.Errorf("cannot create file: %w", err)
	}
	tmpPath := out.Name()

	n, err := io.Copy(out, newReaderWithContext(ctx, in))
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = dstFs.Remove(tmpPath)
		return "", 0, fmt.Errorf("cannot read/write file content: %w", err)
	}
	return tmpPath, n, nil
}

func finalize(dstFs afero.Fs, tmpPath, dstPath string, mode os.FileMode, modTime time.Time) error {
	if err := dstFs.Chmod(tmpPath, mode.Perm()); err != nil {
		return fmt.Errorf("cannot set file permissions: %w", err)
	}
	if err := dstFs.Chtimes(tmpPath, time.Now(), modTime); err != nil {
		return fmt.Errorf("cannot set file modification time: %w", err)
	}
	if err := dstFs.Rename(tmpPath, dstPath); err != nil {
		return fmt.Errorf("cannot move file into place: %w", err)
	}
	return nil
}

//HashFile returns the SHA-256 digest of the file content.
func HashFile(ctx context.Context, fsys afero.Fs, path string) ([]byte, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err = io.Copy(h, newReaderWithContext(ctx, f)); err != nil {
		return nil, fmt.Errorf("cannot read file content: %w", err)
	}
	return h.Sum(nil), nil
}
