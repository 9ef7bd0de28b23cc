package log

import "go.uber.org/zap"

type Field = zap.Field

var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Uint64   = zap.Uint64
	Bool     = zap.Bool
	Duration = zap.Duration
	Any      = zap.Any
)

// Cause attaches the error that caused the logged event.
func Cause(err error) Field {
	return zap.NamedError("cause", err)
}
