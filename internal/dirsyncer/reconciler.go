package dirsyncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"dirmirror/internal/ignore"
	"dirmirror/internal/log"
	"dirmirror/internal/model"
	"dirmirror/pkg/helpers/iout"
	"dirmirror/pkg/helpers/run"
)

//ErrRootUnlistable means that a reconciliation pass could not list its own root, so nothing was done.
var ErrRootUnlistable = errors.New("root directory cannot be listed")

type ReconcilerOptions struct {
	// Checksum enables the content comparison of files which match by size and mtime.
	Checksum bool
	// MTimeWindow is the tolerance of the mtime comparison.
	MTimeWindow time.Duration
	// Ignore lists the entries which are neither copied nor deleted. May be nil.
	Ignore *ignore.List
}

//Reconciler walks an authoritative tree against a target tree and applies the policy of a SyncMode
//to every entry of the authoritative tree.
type Reconciler struct {
	log     log.Logger
	window  time.Duration
	ignore  *ignore.List
	content *contentComparator // nil unless the checksum comparison is enabled
}

func NewReconciler(logger log.Logger, opts ReconcilerOptions) (*Reconciler, error) {
	r := &Reconciler{log: logger, window: opts.MTimeWindow, ignore: opts.Ignore}
	if opts.Checksum {
		content, err := newContentComparator()
		if err != nil {
			return nil, fmt.Errorf("cannot create content comparator: %w", err)
		}
		r.content = content
	}
	return r, nil
}

//Reconcile runs one pass. In ModeCopy entries missing or stale in target are created or copied from auth;
//in ModeCheck entries of auth which have no matching counterpart in target are removed from auth.
//Only the failure to list auth's root makes the pass fatal; all other failures are recorded per item.
func (r *Reconciler) Reconcile(ctx context.Context, auth, target Tree, mode model.SyncMode) model.ReconcileOutcome {
	outcome := model.NewReconcileOutcome(mode, auth.Root)
	start := time.Now()
	r.log.Debug("reconciliation pass started", log.String("mode", mode.String()),
		log.String("authoritative", auth.Root), log.String("target", target.Root))

	stack := []string{rootRelPath}
	for len(stack) > 0 && !outcome.Canceled {
		dirRelPath := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := auth.list(dirRelPath)
		if err != nil {
			if dirRelPath == rootRelPath {
				outcome.Fatal = fmt.Errorf("%w: %q: %w", ErrRootUnlistable, auth.Root, err)
				r.log.Error("directory cannot be listed, reconciliation pass failed",
					log.String("mode", mode.String()), log.String("path", auth.Root), log.Cause(err))
				return outcome
			}
			outcome.AddError(auth.path(dirRelPath), model.OpKindList, err)
			r.log.Error("directory cannot be listed, its content is skipped",
				log.String("path", auth.path(dirRelPath)), log.Cause(err))
			continue
		}

		for _, child := range children {
			if ctx.Err() != nil {
				outcome.Canceled = true
				break
			}
			relPath := filepath.Join(dirRelPath, child.Name())
			if r.reconcileEntry(ctx, auth, target, mode, relPath, child, &outcome) {
				stack = append(stack, relPath)
			}
		}
	}

	r.log.Debug("reconciliation pass finished", log.String("mode", mode.String()),
		log.Int("operations", outcome.Operations()), log.Int("errors", len(outcome.Errors)),
		log.Bool("canceled", outcome.Canceled), log.Duration("took", time.Since(start)))
	return outcome
}

//reconcileEntry handles one child and reports whether its subtree has to be visited.
func (r *Reconciler) reconcileEntry(
	ctx context.Context, auth, target Tree, mode model.SyncMode, relPath string, listed os.FileInfo,
	outcome *model.ReconcileOutcome,
) bool {
	var descend bool
	err := run.WithError(func() (err error) {
		descend, err = r.processEntry(ctx, auth, target, mode, relPath, listed, outcome)
		return err
	})
	if err != nil {
		outcome.AddError(auth.path(relPath), model.OpKindStat, err)
		r.log.Error("entry cannot be inspected, it is skipped", log.String("path", auth.path(relPath)), log.Cause(err))
		return false
	}
	return descend
}

func (r *Reconciler) processEntry(
	ctx context.Context, auth, target Tree, mode model.SyncMode, relPath string, listed os.FileInfo,
	outcome *model.ReconcileOutcome,
) (bool, error) {
	authInfo, err := auth.resolve(relPath, listed)
	if err != nil {
		return false, err
	}
	if !authInfo.Exists {
		r.log.Debug("dangling symlink skipped", log.String("path", authInfo.FullPath))
		return false, nil
	}
	if r.ignore.ShouldIgnore(relPath, authInfo.IsDir) {
		r.log.Debug("excluded entry skipped", log.String("path", authInfo.FullPath))
		return false, nil
	}

	targetInfo, err := target.stat(relPath)
	if err != nil {
		return false, fmt.Errorf("cannot stat counterpart %q: %w", target.path(relPath), err)
	}

	entry := model.EntryInfo{AuthPathInfo: authInfo, TargetPathInfo: targetInfo}
	kind := entry.ResolveOperationKind(mode, r.window)
	if kind == model.OpKindNone && authInfo.IsRegular && r.content != nil {
		same, err := r.content.equal(ctx, auth, authInfo, target, targetInfo)
		if err != nil {
			return false, fmt.Errorf("cannot compare content: %w", err)
		}
		if !same {
			r.log.Debug("file content differs", log.String("path", authInfo.FullPath))
			kind = mismatchKind(mode)
		}
	}

	switch kind {
	case model.OpKindDescend:
		return true, nil
	case model.OpKindCreateDir:
		op := r.apply(outcome, model.NewOperation(kind, targetInfo.FullPath), func(*model.Operation) error {
			return iout.Mkdir(target.FS, targetInfo.FullPath)
		})
		return op.Status == model.OpStatusCompleted, nil
	case model.OpKindCopyFile:
		r.apply(outcome, model.NewOperation(kind, targetInfo.FullPath), func(op *model.Operation) error {
			n, err := iout.CopyFile(ctx, auth.FS, authInfo.FullPath, target.FS, targetInfo.FullPath,
				authInfo.Mode, authInfo.ModTime)
			op.Bytes = n
			return err
		})
	case model.OpKindRemoveFile:
		r.apply(outcome, model.NewOperation(kind, authInfo.FullPath), func(*model.Operation) error {
			return iout.Remove(auth.FS, authInfo.FullPath)
		})
	case model.OpKindRemoveDir:
		r.apply(outcome, model.NewOperation(kind, authInfo.FullPath), func(*model.Operation) error {
			return iout.RemoveAll(auth.FS, authInfo.FullPath)
		})
	default:
		if !authInfo.IsDir && !authInfo.IsRegular {
			r.log.Debug("entry is neither a directory nor a regular file, it is skipped",
				log.String("path", authInfo.FullPath), log.String("mode", authInfo.Mode.String()))
		}
	}
	return false, nil
}

func mismatchKind(mode model.SyncMode) model.OperationKind {
	if mode == model.ModeCopy {
		return model.OpKindCopyFile
	}
	return model.OpKindRemoveFile
}

var (
	completedMessages = map[model.OperationKind]string{
		model.OpKindCreateDir:  "directory not found in replica, new directory created",
		model.OpKindCopyFile:   "file copied",
		model.OpKindRemoveFile: "file deleted from replica",
		model.OpKindRemoveDir:  "directory deleted from replica",
	}
	failedMessages = map[model.OperationKind]string{
		model.OpKindCreateDir:  "directory cannot be created",
		model.OpKindCopyFile:   "file cannot be copied",
		model.OpKindRemoveFile: "file cannot be deleted",
		model.OpKindRemoveDir:  "directory cannot be deleted",
	}
)

//apply executes fn as the operation op, accounts it in outcome and logs the result.
func (r *Reconciler) apply(
	outcome *model.ReconcileOutcome, op *model.Operation, fn func(*model.Operation) error,
) *model.Operation {
	op.Finish(fn(op))
	outcome.Record(op)

	fields := []log.Field{log.Uint64("opID", op.ID), log.String("path", op.Path)}
	switch op.Status {
	case model.OpStatusCompleted:
		if op.Kind == model.OpKindCopyFile {
			fields = append(fields, log.String("size", humanize.Bytes(uint64(op.Bytes))))
		}
		r.log.Info(completedMessages[op.Kind], append(fields, log.Duration("took", op.Took()))...)
	case model.OpStatusCanceled:
		r.log.Debug("operation canceled", append(fields, log.String("kind", string(op.Kind)))...)
	default:
		r.log.Error(failedMessages[op.Kind], append(fields, log.Cause(op.Err))...)
	}
	return op
}
