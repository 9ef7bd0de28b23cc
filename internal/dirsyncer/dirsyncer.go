package dirsyncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"

	"dirmirror/internal/ignore"
	"dirmirror/internal/lock"
	"dirmirror/internal/log"
	"dirmirror/internal/settings"
	"dirmirror/pkg/helpers/iout"
	"dirmirror/pkg/helpers/run"
)

const defaultStopTimeout = 5 * time.Second

var errStopTimeout = errors.New("synchronization has been abnormally stopped on timeout")

type DirSyncer struct {
	log         log.Logger
	settings    settings.Settings
	fs          afero.Fs
	stopTimeout time.Duration
}

func New(logger log.Logger, stg settings.Settings) *DirSyncer {
	return &DirSyncer{log: logger, settings: stg, fs: afero.NewOsFs(), stopTimeout: defaultStopTimeout}
}

//Start returns only most critical errors that make further work impossible, otherwise returns nil.
func (d *DirSyncer) Start(ctx context.Context, stop context.CancelFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			stop()
			if perr, ok := p.(error); ok {
				err = perr
			} else {
				err = fmt.Errorf("panic! %v", p)
			}
		}
	}()

	if err = d.prepareReplica(); err != nil {
		return err
	}

	lk := lock.New(d.settings.LockFile)
	if err = lk.Acquire(); err != nil {
		return fmt.Errorf("cannot lock replica %q: %w", d.settings.ReplicaDir, err)
	}
	defer func() {
		if rerr := lk.Release(); rerr != nil {
			d.log.Warn("replica lock cannot be released", log.String("lockFile", lk.Path()), log.Cause(rerr))
		}
	}()
	d.log.Debug("replica locked", log.String("lockFile", lk.Path()))

	scheduler, err := d.newScheduler()
	if err != nil {
		return err
	}

	if d.settings.Once {
		_, err = scheduler.RunCycle(ctx)
		return err
	}

	errCh := run.AsyncWithError(func() error { return scheduler.Run(ctx) })
	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		stop() // stop receiving signal notifications as soon as possible
		return d.awaitStop(errCh)
	}
}

//prepareReplica creates the replica root when it doesn't exist yet.
func (d *DirSyncer) prepareReplica() error {
	info, err := d.fs.Stat(d.settings.ReplicaDir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("replica %q is not a directory", d.settings.ReplicaDir)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("cannot access replica %q: %w", d.settings.ReplicaDir, err)
	}

	if err = iout.EnsureDirExists(d.fs, d.settings.ReplicaDir); err != nil {
		return err
	}
	d.log.Warn("replica directory not found, new directory created", log.String("replica", d.settings.ReplicaDir))
	return nil
}

func (d *DirSyncer) newScheduler() (*Scheduler, error) {
	reconciler, err := NewReconciler(d.log, ReconcilerOptions{
		Checksum:    d.settings.Checksum,
		MTimeWindow: d.settings.MTimeWindow,
		Ignore:      ignore.New(d.settings.Excludes...),
	})
	if err != nil {
		return nil, err
	}

	source := NewReadOnlyTree(d.fs, d.settings.SrcDir)
	replica := Tree{FS: d.fs, Root: d.settings.ReplicaDir}
	return NewScheduler(d.log, reconciler, source, replica, d.settings.ScanPeriod), nil
}

//awaitStop waits for the running cycle to notice the cancellation. But it doesn't wait forever - there is a timeout.
func (d *DirSyncer) awaitStop(errCh <-chan error) error {
	d.log.Debug("awaiting the running synchronization cycle to finish")
	select {
	case err := <-errCh:
		d.log.Debug("synchronization has been normally stopped")
		return err
	case <-time.After(d.stopTimeout):
		d.log.Error("synchronization has been abnormally stopped on timeout (the running cycle didn't finish)")
		return errStopTimeout
	}
}
