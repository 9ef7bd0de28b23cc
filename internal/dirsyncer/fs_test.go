package dirsyncer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	srcRoot     = "/source"
	replicaRoot = "/replica"
)

var (
	oldTime = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	newTime = oldTime.Add(24 * time.Hour)
)

//faultyFs fails (or panics on) chosen operations on chosen paths.
type faultyFs struct {
	afero.Fs
	faults map[string]error
	panics map[string]bool
}

func newFaultyFs(base afero.Fs) *faultyFs {
	return &faultyFs{Fs: base, faults: map[string]error{}, panics: map[string]bool{}}
}

func (f *faultyFs) failOn(op, path string) *faultyFs {
	f.faults[op+" "+filepath.Clean(path)] = &fs.PathError{Op: op, Path: path, Err: fs.ErrPermission}
	return f
}

func (f *faultyFs) panicOn(op, path string) *faultyFs {
	f.panics[op+" "+filepath.Clean(path)] = true
	return f
}

func (f *faultyFs) check(op, name string) error {
	key := op + " " + filepath.Clean(name)
	if f.panics[key] {
		panic(fmt.Sprintf("boom on %s", key))
	}
	return f.faults[key]
}

func (f *faultyFs) Open(name string) (afero.File, error) {
	if err := f.check("open", name); err != nil {
		return nil, err
	}
	return f.Fs.Open(name)
}

func (f *faultyFs) Stat(name string) (os.FileInfo, error) {
	if err := f.check("stat", name); err != nil {
		return nil, err
	}
	return f.Fs.Stat(name)
}

func (f *faultyFs) Mkdir(name string, perm os.FileMode) error {
	if err := f.check("mkdir", name); err != nil {
		return err
	}
	return f.Fs.Mkdir(name, perm)
}

func (f *faultyFs) Remove(name string) error {
	if err := f.check("remove", name); err != nil {
		return err
	}
	return f.Fs.Remove(name)
}

func (f *faultyFs) RemoveAll(path string) error {
	if err := f.check("removeall", path); err != nil {
		return err
	}
	return f.Fs.RemoveAll(path)
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func writeFile(req *require.Assertions, fsys afero.Fs, path, content string, modTime time.Time) {
	req.NoError(fsys.MkdirAll(filepath.Dir(path), os.ModePerm))
	req.NoError(afero.WriteFile(fsys, path, []byte(content), 0o644))
	req.NoError(fsys.Chtimes(path, modTime, modTime))
}

func createDir(req *require.Assertions, fsys afero.Fs, path string) {
	req.NoError(fsys.MkdirAll(path, os.ModePerm))
}

type snapshotEntry struct {
	IsDir   bool
	Content string
	ModTime time.Time
	Perm    os.FileMode
}

//snapshot describes every entry under root by its slash-separated relative path.
func snapshot(req *require.Assertions, fsys afero.Fs, root string) map[string]snapshotEntry {
	entries := map[string]snapshotEntry{}
	req.NoError(afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		entry := snapshotEntry{IsDir: info.IsDir()}
		if !info.IsDir() {
			content, err := afero.ReadFile(fsys, path)
			if err != nil {
				return err
			}
			entry.Content = string(content)
			entry.ModTime = info.ModTime().UTC()
			entry.Perm = info.Mode().Perm()
		}
		entries[filepath.ToSlash(rel)] = entry
		return nil
	}))
	return entries
}

func requireMirrored(req *require.Assertions, fsys afero.Fs) {
	diff := cmp.Diff(snapshot(req, fsys, srcRoot), snapshot(req, fsys, replicaRoot))
	req.Empty(diff, "replica differs from source (-source +replica)")
}
