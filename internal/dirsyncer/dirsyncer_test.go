package dirsyncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	logmock "dirmirror/generated/mocks"
	"dirmirror/internal/lock"
	"dirmirror/internal/log"
	"dirmirror/internal/settings"
)

func TestDirSyncerByRunningOnce(t *testing.T) {
	requires := require.New(t)
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// 1. arrange
	srcDir, copyDir := prepareDirs(requires, t.TempDir())
	prepareCopyDir(requires, copyDir, srcDir)

	loggerMock := getMockLogger(mockCtrl, gomock.Any())
	stg := testSettings(t, srcDir, copyDir)
	stg.Once = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. act
	err := New(loggerMock, stg).Start(ctx, cancel)

	// 3. assert
	requires.NoError(err)
	requireSameTrees(requires, srcDir, copyDir)
	requireUnlocked(requires, stg.LockFile)
}

func TestDirSyncerByRunningRegularly(t *testing.T) {
	requires := require.New(t)
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// 1. arrange
	srcDir, copyDir := prepareDirs(requires, t.TempDir())
	prepareCopyDir(requires, copyDir, srcDir)

	loggerMock := getMockLogger(mockCtrl, gomock.Any())
	stg := testSettings(t, srcDir, copyDir)
	stg.ScanPeriod = 50 * time.Millisecond

	timeout := 3*stg.ScanPeriod + 100*time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 2. act
	err := New(loggerMock, stg).Start(ctx, cancel)

	// 3. assert
	requires.NoError(err)
	requireSameTrees(requires, srcDir, copyDir)
	requireUnlocked(requires, stg.LockFile)
}

func TestDirSyncerCreatesMissingReplica(t *testing.T) {
	requires := require.New(t)
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// 1. arrange
	srcDir, _ := prepareDirs(requires, t.TempDir())
	copyDir := filepath.Join(t.TempDir(), "not", "yet", "there")

	loggerMock := logmock.NewMockLogger(mockCtrl)
	// must precede the catch-all expectations, gomock picks the first matching one
	loggerMock.EXPECT().Warn("replica directory not found, new directory created", gomock.Any()).Times(1)
	allowAnyLogging(loggerMock, gomock.Any())
	stg := testSettings(t, srcDir, copyDir)
	stg.Once = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. act
	err := New(loggerMock, stg).Start(ctx, cancel)

	// 3. assert
	requires.NoError(err)
	requireSameTrees(requires, srcDir, copyDir)
}

func TestDirSyncerFailsWhenReplicaIsLocked(t *testing.T) {
	requires := require.New(t)
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// 1. arrange
	srcDir, copyDir := prepareDirs(requires, t.TempDir())
	createDir(requires, afero.NewOsFs(), filepath.Join(copyDir, "untouched"))

	loggerMock := getMockLogger(mockCtrl, gomock.Any())
	stg := testSettings(t, srcDir, copyDir)
	stg.Once = true

	other := lock.New(stg.LockFile)
	requires.NoError(other.Acquire())
	defer func() { requires.NoError(other.Release()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. act
	err := New(loggerMock, stg).Start(ctx, cancel)

	// 3. assert
	requires.ErrorIs(err, lock.ErrLocked)
	requires.DirExists(filepath.Join(copyDir, "untouched"))
}

func TestDirSyncerStopsWhenSourceVanishes(t *testing.T) {
	requires := require.New(t)
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	// 1. arrange
	srcDir, copyDir := prepareDirs(requires, t.TempDir())
	requires.NoError(os.RemoveAll(srcDir))
	preciousPath := filepath.Join(copyDir, "precious.txt")
	requires.NoError(os.WriteFile(preciousPath, []byte("precious"), 0o644))

	loggerMock := getMockLogger(mockCtrl, gomock.Any())
	stg := testSettings(t, srcDir, copyDir)
	stg.ScanPeriod = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 2. act
	err := New(loggerMock, stg).Start(ctx, cancel)

	// 3. assert
	requires.ErrorIs(err, ErrRootUnlistable)
	requires.FileExists(preciousPath)
	requireUnlocked(requires, stg.LockFile)
}

func TestDirSyncerAwaitStop(t *testing.T) {
	requires := require.New(t)
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	loggerMock := getMockLogger(mockCtrl, gomock.Any())
	d := &DirSyncer{log: loggerMock, stopTimeout: 20 * time.Millisecond}

	finished := make(chan error, 1)
	finished <- nil
	requires.NoError(d.awaitStop(finished))

	requires.ErrorIs(d.awaitStop(make(chan error)), errStopTimeout)
}

func testSettings(t *testing.T, srcDir, copyDir string) settings.Settings {
	return settings.Settings{
		SrcDir:     srcDir,
		ReplicaDir: copyDir,
		ScanPeriod: time.Second,
		LockFile:   filepath.Join(t.TempDir(), "replica.lock"),
		LogLevel:   log.DebugLevel,
		LogToStd:   true,
	}
}

//prepareDirs creates the source tree and an empty copy dir under baseDir.
func prepareDirs(req *require.Assertions, baseDir string) (srcDir, copyDir string) {
	srcDir, copyDir = filepath.Join(baseDir, "src"), filepath.Join(baseDir, "copy")
	fsys := afero.NewOsFs()
	writeFile(req, fsys, filepath.Join(srcDir, "old_file.txt"), "old file", oldTime)
	writeFile(req, fsys, filepath.Join(srcDir, "subdir1", "old_file.txt"), "old file in subdir1", oldTime)
	writeFile(req, fsys, filepath.Join(srcDir, "subdir1", "missing_file"), "missing file", oldTime)
	writeFile(req, fsys, filepath.Join(srcDir, "subdir1", "subdir2", "old_file.txt"), "old file in subdir2", oldTime)
	writeFile(req, fsys, filepath.Join(srcDir, "subdir1", "subdir2", "subdir3", "new_file.txt"), "new file", newTime)
	createDir(req, fsys, filepath.Join(srcDir, "empty_dir"))
	createDir(req, fsys, copyDir)
	return srcDir, copyDir
}

func prepareCopyDir(req *require.Assertions, copyDir string, srcDir string) {
	fsys := afero.NewOsFs()
	createDir(req, fsys, filepath.Join(copyDir, "subdir1/subdir2"))
	createDir(req, fsys, filepath.Join(copyDir, "subdir1/wrong_dir/nested")) // this dir has to be removed
	createDir(req, fsys, filepath.Join(copyDir, "subdir1/missing_file"))     // this dir has to be replaced with the same named file
	copyFileIntoDir(req, srcDir, "old_file.txt", copyDir)
	// this file has to be replaced due to the different mod time
	copyFileIntoDirWithChangedModTime(req, srcDir, "subdir1/old_file.txt", copyDir)
	// the wrong file has to be removed, because such name is absent in the src dir
	copyFile(req, copyDir, "subdir1/old_file.txt", filepath.Join(copyDir, "subdir1/wrong_file.txt"), false)
	copyFileIntoDir(req, srcDir, "subdir1/subdir2/old_file.txt", copyDir)
}

func getMockLogger(mockCtrl *gomock.Controller, any gomock.Matcher) *logmock.MockLogger {
	loggerMock := logmock.NewMockLogger(mockCtrl)
	allowAnyLogging(loggerMock, any)
	return loggerMock
}

func allowAnyLogging(loggerMock *logmock.MockLogger, any gomock.Matcher) {
	loggerMock.EXPECT().Debug(any, any).AnyTimes()
	loggerMock.EXPECT().Info(any, any).AnyTimes()
	loggerMock.EXPECT().Warn(any, any).AnyTimes()
	loggerMock.EXPECT().Error(any, any).AnyTimes()
}

func copyFileIntoDir(req *require.Assertions, srcBaseDir string, fileRelPath string, copyBaseDir string) {
	copyFile(req, srcBaseDir, fileRelPath, filepath.Join(copyBaseDir, fileRelPath), true)
}

func copyFileIntoDirWithChangedModTime(
	req *require.Assertions, srcBaseDir string, fileRelPath string, copyBaseDir string,
) {
	copyFile(req, srcBaseDir, fileRelPath, filepath.Join(copyBaseDir, fileRelPath), false)
}

func copyFile(req *require.Assertions, srcBaseDir string, srcFileRelPath string, copyAbsPath string, sameModTime bool) {
	srcAbsPath := filepath.Join(srcBaseDir, srcFileRelPath)
	content, err := os.ReadFile(srcAbsPath)
	req.NoError(err)
	fileStat, err := os.Stat(srcAbsPath)
	req.NoError(err)
	modTime := fileStat.ModTime()
	if !sameModTime {
		modTime = modTime.Add(24 * time.Hour)
	}
	writeFile(req, afero.NewOsFs(), copyAbsPath, string(content), modTime)
}

func requireSameTrees(req *require.Assertions, srcDir, copyDir string) {
	fsys := afero.NewOsFs()
	diff := cmp.Diff(snapshot(req, fsys, srcDir), snapshot(req, fsys, copyDir))
	req.Empty(diff, "copy differs from source (-source +copy)")
}

func requireUnlocked(req *require.Assertions, lockFile string) {
	_, err := os.Stat(lockFile)
	req.ErrorIs(err, os.ErrNotExist, "lock file is removed on exit")
}
