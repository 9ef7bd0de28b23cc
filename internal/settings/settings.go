package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dirmirror/internal/lock"
	"dirmirror/internal/log"
)

const (
	EnvPrefix         = "DIRMIRROR"
	defaultScanPeriod = 10 * time.Second
)

// keys are shared by the flags, the config file and the environment (DIRMIRROR_<KEY>)
const (
	keyScanPeriod  = "scanperiod"
	keyOnce        = "once"
	keyChecksum    = "checksum"
	keyMTimeWindow = "mtimewindow"
	keyExclude     = "exclude"
	keyLockFile    = "lockfile"
	keyLogLevel    = "loglvl"
	keyLogToStd    = "log2std"
	keyLogFile     = "logfile"
	keyPID         = "pid"
	keyConfig      = "config"
)

type Settings struct {
	SrcDir      string
	ReplicaDir  string
	ScanPeriod  time.Duration
	Checksum    bool
	MTimeWindow time.Duration
	Excludes    []string
	LockFile    string
	LogLevel    log.Level
	LogToStd    bool
	LogFile     string
	Once        bool
	PrintPID    bool
}

func RegisterFlags(flagSet *pflag.FlagSet) {
	flagSet.Duration(keyScanPeriod, defaultScanPeriod,
		"pause between two synchronization cycles (e.g. 500ms, 10s, 1m)")
	flagSet.Bool(keyOnce, false,
		"if true, then directories are synchronized only once (i.e. the program has finite execution), "+
			"otherwise - the process is started and lasts indefinitely (until interruption)")
	flagSet.Bool(keyChecksum, false,
		"if true, then files with equal size and modification time are additionally compared by content hash")
	flagSet.Duration(keyMTimeWindow, 0,
		"tolerance of the modification time comparison, useful for filesystems with coarse timestamps")
	flagSet.StringSlice(keyExclude, nil,
		"gitignore-style pattern of entries which are neither copied nor deleted (repeatable)")
	flagSet.String(keyLockFile, "",
		"path of the lock file guarding the replica (by default it is derived from the replica path)")
	flagSet.String(keyLogLevel, log.InfoLevel,
		fmt.Sprintf("level of logging, permitted values are: %v, %v, %v, %v",
			log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel))
	flagSet.Bool(keyLogToStd, false,
		"if true, then logs are written to the console as well as to the log file")
	flagSet.String(keyLogFile, "", "path of the log file")
	flagSet.Bool(keyPID, false, "if true, then the process id is logged at start")
	flagSet.StringP(keyConfig, "c", "", "path of the config file (yaml, toml, json, ...)")
}

//LoadDotEnv exports the variables of the dotenv file at path, unless they are already set.
//A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot load %q: %w", path, err)
	}
	return nil
}

//Load makes v resolve every setting from the flags, then the environment, then the config file.
func Load(v *viper.Viper, flagSet *pflag.FlagSet) error {
	if err := v.BindPFlags(flagSet); err != nil {
		return fmt.Errorf("cannot bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("cannot read config file %q: %w", path, err)
		}
	}
	return nil
}

//New builds the settings from the resolved values of v and the positional arguments:
//SOURCE REPLICA [PERIOD_SECONDS] [LOG_FILE]. The optional positional arguments override the flags.
func New(v *viper.Viper, args []string) (*Settings, error) {
	if len(args) < 2 {
		return nil, errors.New("at least two arguments (for the directories for synchronization) must present")
	}
	if len(args) > 4 {
		return nil, fmt.Errorf("too many arguments: %d", len(args))
	}

	stg := &Settings{
		ScanPeriod:  v.GetDuration(keyScanPeriod),
		Checksum:    v.GetBool(keyChecksum),
		MTimeWindow: v.GetDuration(keyMTimeWindow),
		Excludes:    v.GetStringSlice(keyExclude),
		LogToStd:    v.GetBool(keyLogToStd),
		Once:        v.GetBool(keyOnce),
		PrintPID:    v.GetBool(keyPID),
	}

	var err error
	if stg.SrcDir, err = filepath.Abs(args[0]); err != nil {
		return nil, fmt.Errorf("path %q cannot be converted to absolute: %w", args[0], err)
	}
	if stg.ReplicaDir, err = filepath.Abs(args[1]); err != nil {
		return nil, fmt.Errorf("path %q cannot be converted to absolute: %w", args[1], err)
	}
	if stg.SrcDir == stg.ReplicaDir {
		return nil, errors.New("the directories for synchronization cannot be the same")
	}
	if isNested(stg.SrcDir, stg.ReplicaDir) || isNested(stg.ReplicaDir, stg.SrcDir) {
		return nil, errors.New("the directories for synchronization cannot be nested in each other")
	}

	if len(args) > 2 {
		seconds, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("period %q is not a whole number of seconds", args[2])
		}
		stg.ScanPeriod = time.Duration(seconds) * time.Second
	}
	if stg.ScanPeriod <= 0 {
		return nil, fmt.Errorf("scan period must be positive, got %v", stg.ScanPeriod)
	}
	if stg.MTimeWindow < 0 {
		return nil, fmt.Errorf("mtime window cannot be negative, got %v", stg.MTimeWindow)
	}

	logFile := v.GetString(keyLogFile)
	if len(args) > 3 {
		logFile = args[3]
	}
	if logFile != "" {
		if stg.LogFile, err = filepath.Abs(logFile); err != nil {
			return nil, fmt.Errorf("path %q cannot be converted to absolute: %w", logFile, err)
		}
	}

	level := log.Level(v.GetString(keyLogLevel))
	if !level.IsValid() {
		return nil, fmt.Errorf("logging level %q does not exist", level)
	}
	stg.LogLevel = log.Level(strings.ToLower(string(level)))

	stg.LockFile = v.GetString(keyLockFile)
	if stg.LockFile == "" {
		stg.LockFile = lock.DefaultPath(stg.ReplicaDir)
	} else if stg.LockFile, err = filepath.Abs(stg.LockFile); err != nil {
		return nil, fmt.Errorf("path %q cannot be converted to absolute: %w", v.GetString(keyLockFile), err)
	}
	if stg.LockFile == stg.ReplicaDir || isNested(stg.ReplicaDir, stg.LockFile) {
		return nil, errors.New("the lock file cannot be placed inside the replica directory")
	}

	return stg, nil
}

//Validate checks the directories on the filesystem. The replica may be missing, it is created at start.
func (stg *Settings) Validate() error {
	if err := validateDirectoryPath(stg.SrcDir); err != nil {
		return fmt.Errorf("the first (source) directory is invalid: %w", err)
	}
	info, err := os.Stat(stg.ReplicaDir)
	if err == nil && !info.IsDir() {
		return fmt.Errorf("the second (replica) directory is invalid: path %q is not a directory path", stg.ReplicaDir)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("the second (replica) directory is invalid: %w", err)
	}
	return nil
}

func validateDirectoryPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path %q is not a directory path", path)
	}
	return nil
}

//isNested reports whether path lies strictly inside dir. Both paths have to be absolute and clean.
func isNested(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
