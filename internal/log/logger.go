package log

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//go:generate mockgen -destination=../../generated/mocks/logger_mock.go -package=mocks dirmirror/internal/log Logger

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Sync() error
}

type Config struct {
	Level Level
	// ToStd enables the console output. It is always enabled when File is empty.
	ToStd bool
	// File is the path of the JSON log file.
	File string
}

func New(cfg Config) (Logger, error) {
	lvl := zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	cores := make([]zapcore.Core, 0, 2)

	if cfg.File != "" {
		sink, _, err := zap.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file %q: %w", cfg.File, err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig(false)), sink, lvl))
	}
	if cfg.ToStd || cfg.File == "" {
		colored := isatty.IsTerminal(os.Stderr.Fd())
		cores = append(cores,
			zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(colored)), zapcore.Lock(os.Stderr), lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

func encoderConfig(colored bool) zapcore.EncoderConfig {
	encodeLevel := zapcore.CapitalLevelEncoder
	if colored {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "lvl",
		TimeKey:        "ts",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

//PrepareFile makes sure that the directory of the log file exists.
//It reports whether the directory had to be created.
func PrepareFile(path string) (bool, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		return false, fmt.Errorf("log file directory %q is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("cannot access log file directory: %w", err)
	}
	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return false, fmt.Errorf("cannot create log file directory: %w", err)
	}
	return true, nil
}

//Nop returns a logger which discards everything.
func Nop() Logger {
	return zap.NewNop()
}
