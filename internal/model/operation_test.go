package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperation_IsNotNilAndOver(t *testing.T) {
	tests := []struct {
		name      string
		operation *Operation
		want      bool
	}{
		{name: "nil", operation: nil, want: false},
		{name: "new", operation: NewOperation(OpKindCopyFile, "/a"), want: false},
		{name: "in_progress", operation: &Operation{Status: OpStatusInProgress}, want: false},
		{name: "canceled", operation: &Operation{Status: OpStatusCanceled}, want: true},
		{name: "completed", operation: &Operation{Status: OpStatusCompleted}, want: true},
		{name: "failed", operation: &Operation{Status: OpStatusFailed}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.operation.IsNotNilAndOver())
		})
	}
}

func TestOperation_Finish(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OperationStatus
	}{
		{name: "success", err: nil, want: OpStatusCompleted},
		{name: "failure", err: errors.New("disk full"), want: OpStatusFailed},
		{name: "canceled", err: fmt.Errorf("cannot copy: %w", context.Canceled), want: OpStatusCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: OpStatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requires := require.New(t)
			op := NewOperation(OpKindRemoveFile, "/replica/a.txt")

			op.Finish(tt.err)

			requires.Equal(tt.want, op.Status)
			requires.NotNil(op.CompletedAt)
			requires.True(op.IsNotNilAndOver())
			requires.GreaterOrEqual(op.Took().Nanoseconds(), int64(0))
		})
	}
}

func TestNewOperationIDsIncrease(t *testing.T) {
	first := NewOperation(OpKindCreateDir, "/a")
	second := NewOperation(OpKindCreateDir, "/b")

	require.Greater(t, second.ID, first.ID)
}

func TestOperationKind_IsMutation(t *testing.T) {
	for _, kind := range []OperationKind{OpKindCreateDir, OpKindCopyFile, OpKindRemoveFile, OpKindRemoveDir} {
		require.True(t, kind.IsMutation(), kind)
	}
	for _, kind := range []OperationKind{OpKindNone, OpKindDescend, OpKindList, OpKindStat} {
		require.False(t, kind.IsMutation(), kind)
	}
}
