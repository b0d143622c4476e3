package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const normalLogSize = 512

// Flags to modify Backend's behavior.
const (
	// LogFlagLongFile modifies the logger output to include full path and line number
	// of the logging callsite, e.g. /a/b/c/main.go:123.
	LogFlagLongFile uint32 = 1 << iota

	// LogFlagShortFile modifies the logger output to include filename and line number
	// of the logging callsite, e.g. main.go:123. takes precedence over LogFlagLongFile.
	LogFlagShortFile
)

// flagsFromEnv reads the logger flags from the LOGFLAGS environment variable.
// Multiple flags can be set at once, separated by commas.
func flagsFromEnv() (flags uint32) {
	for _, f := range strings.Split(os.Getenv("LOGFLAGS"), ",") {
		switch f {
		case "longfile":
			flags |= LogFlagLongFile
		case "shortfile":
			flags |= LogFlagShortFile
		}
	}
	return flags
}

// logsBuffer lets bursts of log lines (a reorg, an orphan chain being
// connected) queue up without blocking the ledger writer.
const logsBuffer = 1024

// Rotation controls when a log file is rolled and how many rolls are kept.
type Rotation struct {
	ThresholdKB int64
	MaxRolls    int
}

// DefaultRotation keeps 8 rolls of 100 MB.
var DefaultRotation = Rotation{ThresholdKB: 100 * 1000, MaxRolls: 8}

type logWriter struct {
	io.WriteCloser
	level Level
}

// Backend is a logging backend. Subsystems created from the backend write to
// the backend's writers. Backend provides atomic writes to the writers from
// all subsystems.
type Backend struct {
	flag      uint32
	isRunning *atomic.Bool
	writers   []logWriter
	writeChan chan logEntry
	syncClose sync.Mutex // held while entries are being written
}

// NewBackend creates a new logger backend, with the flags set in the
// LOGFLAGS environment variable.
func NewBackend() *Backend {
	return &Backend{
		flag:      flagsFromEnv(),
		isRunning: atomic.NewBool(false),
		writeChan: make(chan logEntry, logsBuffer),
	}
}

// AddLogFile adds a rotated file which receives every entry at logLevel
// or above. The file and its directory are created if missing.
func (b *Backend) AddLogFile(logFile string, logLevel Level, rotation Rotation) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return errors.Wrapf(err, "failed to create log directory")
		}
	}
	r, err := rotator.New(logFile, rotation.ThresholdKB, false, rotation.MaxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create file rotator")
	}
	return b.AddLogWriter(r, logLevel)
}

// AddLogWriter adds a writer which receives every entry at logLevel or
// above. Writers can only be added before Run.
func (b *Backend) AddLogWriter(writer io.WriteCloser, logLevel Level) error {
	if b.IsRunning() {
		return errors.New("the logger is already running")
	}
	b.writers = append(b.writers, logWriter{WriteCloser: writer, level: logLevel})
	return nil
}

// Run launches the logger backend in a separate goroutine. It should only
// be called once.
func (b *Backend) Run() error {
	if !b.isRunning.CompareAndSwap(false, true) {
		return errors.New("the logger is already running")
	}
	// The lock is taken here so that a Close racing with Run still waits
	// for the entries to be written.
	b.syncClose.Lock()
	go func() {
		defer func() {
			if err := recover(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Fatal error in logger.Backend goroutine: %+v\n", err)
				_, _ = fmt.Fprintf(os.Stderr, "Goroutine stacktrace: %s\n", debug.Stack())
			}
		}()
		b.runBlocking()
	}()
	return nil
}

func (b *Backend) runBlocking() {
	defer b.isRunning.Store(false)
	defer b.syncClose.Unlock()

	for entry := range b.writeChan {
		for _, writer := range b.writers {
			if entry.level >= writer.level {
				_, _ = writer.Write(entry.log)
			}
		}
	}
}

// IsRunning returns true if backend.Run() has been called and false if it hasn't.
func (b *Backend) IsRunning() bool {
	return b.isRunning.Load()
}

// Close flushes the pending entries and closes every writer.
func (b *Backend) Close() {
	close(b.writeChan)
	b.syncClose.Lock()
	defer b.syncClose.Unlock()
	for _, writer := range b.writers {
		_ = writer.Close()
	}
}

// Logger returns a new logger for a particular subsystem that writes to the
// Backend b. A tag describes the subsystem and is included in all log
// messages. The logger is off until a level is set.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{lvl: uint32(LevelOff), tag: subsystemTag, b: b, writeChan: b.writeChan}
}
