package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/paularlott/logger"
	logslog "github.com/paularlott/logger/slog"
)

const separator = "---------------------------------------------------"

var (
	mu            sync.Mutex
	defaultLogger logger.Logger
	runLog        io.WriteCloser
)

func init() {
	defaultLogger = logslog.New(logslog.Config{
		Level:  "info",
		Format: "console",
		Writer: os.Stdout,
	})
}

func Configure(level, format string) {
	ConfigureWriter(level, format, os.Stdout)
}

// ConfigureWriter sends log output to w instead of stdout
func ConfigureWriter(level, format string, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logslog.New(logslog.Config{
		Level:  level,
		Format: format,
		Writer: w,
	})
}

// OpenRunLog tees log output to path. The file is truncated so each run starts
// with an empty log. Call CloseRunLog when the run ends.
func OpenRunLog(path, level, format string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	ConfigureWriter(level, format, io.MultiWriter(os.Stdout, f))
	mu.Lock()
	runLog = f
	mu.Unlock()
	return nil
}

func CloseRunLog() {
	mu.Lock()
	f := runLog
	runLog = nil
	mu.Unlock()
	if f != nil {
		f.Close()
	}
}

// Separator marks the start of a phase in the run log
func Separator(phase string) {
	current().Info(separator, "phase", phase)
}

func Info(msg string, keysAndValues ...any) {
	current().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	current().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	current().Error(msg, keysAndValues...)
}

func Debug(msg string, keysAndValues ...any) {
	current().Debug(msg, keysAndValues...)
}

func current() logger.Logger {
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}
