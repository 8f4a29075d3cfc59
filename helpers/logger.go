package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"

	"sjsage522/tcasworker/logger"
)

// LoggerInterface records per-row outcomes of a stage run
type LoggerInterface interface {
	LogError(stage string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger appends skipped-row errors to a file and forwards info lines to the
// structured logger
type Logger struct {
	mu        sync.Mutex
	errorFile string
}

// NewLogger creates a new logger instance. An empty errorFile disables the file.
func NewLogger(errorFile string) *Logger {
	return &Logger{
		errorFile: errorFile,
	}
}

// LogError logs an error to a file with stage name and timestamp
func (l *Logger) LogError(stage string, err error) {
	logger.ForStage(stage).Warn().Err(err).Msg("row skipped")

	if l.errorFile == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, fileErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		logger.Error("open skip log %s: %v", l.errorFile, fileErr)
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, stage, err.Error())
}

// LogInfo logs an informational message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	logger.Info(format, args...)
}
