package dirsyncer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"dirmirror/internal/model"
)

const rootRelPath = "."

//Tree is a directory tree on some filesystem. Entries are addressed by paths relative to Root.
type Tree struct {
	FS   afero.Fs
	Root string
}

func NewOSTree(root string) Tree {
	return Tree{FS: afero.NewOsFs(), Root: root}
}

//NewReadOnlyTree wraps fsys so that nothing under root can be modified through the returned tree.
func NewReadOnlyTree(fsys afero.Fs, root string) Tree {
	return Tree{FS: afero.NewReadOnlyFs(fsys), Root: root}
}

func (t Tree) path(relPath string) string {
	return filepath.Join(t.Root, relPath)
}

//list returns the direct children of the directory at relPath, sorted by name.
func (t Tree) list(relPath string) ([]os.FileInfo, error) {
	return afero.ReadDir(t.FS, t.path(relPath))
}

//stat describes the entry at relPath, following symlinks. A missing entry is not an error.
func (t Tree) stat(relPath string) (model.PathInfo, error) {
	fullPath := t.path(relPath)
	info, err := t.FS.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return model.MissingPathInfo(fullPath), nil
	}
	if err != nil {
		return model.PathInfo{}, err
	}
	return model.NewPathInfo(fullPath, info), nil
}

//resolve describes a listed child. Listing doesn't follow symlinks, so a link is stat-ed once more;
//a dangling link is reported as missing.
func (t Tree) resolve(relPath string, listed os.FileInfo) (model.PathInfo, error) {
	if listed.Mode()&os.ModeSymlink == 0 {
		return model.NewPathInfo(t.path(relPath), listed), nil
	}
	return t.stat(relPath)
}

//checkRoot makes sure that the root exists and is a directory.
func (t Tree) checkRoot() error {
	info, err := t.FS.Stat(t.Root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", t.Root)
	}
	return nil
}
