package model

import (
	"time"

	"dirmirror/pkg/helpers/ut"
)

//OperationStatus is a status of a sync operation.
type OperationStatus string

const (
	OpStatusInProgress OperationStatus = "in_progress"
	OpStatusCanceled   OperationStatus = "canceled"
	OpStatusCompleted  OperationStatus = "completed"
	OpStatusFailed     OperationStatus = "failed"
)

type OperationKind string

const (
	OpKindNone       OperationKind = "none"
	OpKindDescend    OperationKind = "descend"
	OpKindList       OperationKind = "list"
	OpKindStat       OperationKind = "stat"
	OpKindCreateDir  OperationKind = "create_dir"
	OpKindCopyFile   OperationKind = "copy_file"
	OpKindRemoveFile OperationKind = "remove_file"
	OpKindRemoveDir  OperationKind = "remove_dir"
)

//IsMutation reports whether operations of this kind change a file tree.
func (k OperationKind) IsMutation() bool {
	switch k {
	case OpKindCreateDir, OpKindCopyFile, OpKindRemoveFile, OpKindRemoveDir:
		return true
	default:
		return false
	}
}

var generateOperationID = ut.CreateUint64IDGenerator()

// Operation - one synchronization action applied to a single entry of a file tree.
type Operation struct {
	ID          uint64          `json:"id"`
	Status      OperationStatus `json:"status"`
	Kind        OperationKind   `json:"kind"`
	Path        string          `json:"path"`
	Bytes       int64           `json:"bytes,omitempty"`
	Err         error           `json:"-"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func NewOperation(kind OperationKind, path string) *Operation {
	return &Operation{
		ID:        generateOperationID(),
		Status:    OpStatusInProgress,
		Kind:      kind,
		Path:      path,
		StartedAt: time.Now(),
	}
}

//Finish completes the operation with the result of its execution.
func (op *Operation) Finish(err error) *Operation {
	now := time.Now()
	op.CompletedAt = &now
	op.Err = err
	switch {
	case err == nil:
		op.Status = OpStatusCompleted
	case isCanceled(err):
		op.Status = OpStatusCanceled
	default:
		op.Status = OpStatusFailed
	}
	return op
}

func (op *Operation) IsNotNilAndOver() bool {
	return op != nil && (op.Status == OpStatusCanceled || op.Status == OpStatusCompleted || op.Status == OpStatusFailed)
}

func (op *Operation) Took() time.Duration {
	if op.CompletedAt == nil {
		return time.Since(op.StartedAt)
	}
	return op.CompletedAt.Sub(op.StartedAt)
}
