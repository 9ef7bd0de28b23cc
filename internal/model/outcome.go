package model

import (
	"context"
	"errors"
	"fmt"
)

//ItemError is a failure of a single entry. It never aborts the processing of its siblings.
type ItemError struct {
	Path string
	Op   OperationKind
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

//ReconcileOutcome is the result of one reconciliation pass.
type ReconcileOutcome struct {
	Mode        SyncMode
	Root        string
	Created     int
	Copied      int
	Deleted     int
	BytesCopied int64
	Errors      []ItemError
	// Fatal is set when the root of the pass itself could not be listed.
	Fatal error
	// Canceled is set when the pass was interrupted before visiting every entry.
	Canceled bool
}

func NewReconcileOutcome(mode SyncMode, root string) ReconcileOutcome {
	return ReconcileOutcome{Mode: mode, Root: root}
}

//Record accounts a finished operation: a completed mutation increments the matching counter,
//a failed one is appended to the errors.
func (o *ReconcileOutcome) Record(op *Operation) {
	switch op.Status {
	case OpStatusCompleted:
		switch op.Kind {
		case OpKindCreateDir:
			o.Created++
		case OpKindCopyFile:
			o.Copied++
			o.BytesCopied += op.Bytes
		case OpKindRemoveFile, OpKindRemoveDir:
			o.Deleted++
		}
	case OpStatusFailed:
		o.AddError(op.Path, op.Kind, op.Err)
	case OpStatusCanceled:
		o.Canceled = true
	}
}

func (o *ReconcileOutcome) AddError(path string, kind OperationKind, err error) {
	o.Errors = append(o.Errors, ItemError{Path: path, Op: kind, Err: err})
}

//Failed reports whether the pass could not be performed at all.
func (o *ReconcileOutcome) Failed() bool {
	return o.Fatal != nil
}

//Clean reports whether the pass completed without any error.
func (o *ReconcileOutcome) Clean() bool {
	return o.Fatal == nil && len(o.Errors) == 0
}

//Operations is the number of successfully applied mutations.
func (o *ReconcileOutcome) Operations() int {
	return o.Created + o.Copied + o.Deleted
}

//FailedPaths lists the paths of all item errors.
func (o *ReconcileOutcome) FailedPaths() []string {
	paths := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		paths = append(paths, e.Path)
	}
	return paths
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
