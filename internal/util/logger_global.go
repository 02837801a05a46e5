package util

import (
	"os"
	"sync"
)

var (
	globalLogger LoggerInterface
	loggerMu     sync.RWMutex
)

// InitLogger initializes the global logger. In debug mode entries go to
// stderr; with a log file they also go to the file. With neither, logging
// is a no-op so an embedded collector stays silent by default.
func InitLogger(logLevel, logFile string, debugToConsole bool) {
	logger := NewLogger(logLevel)

	if debugToConsole {
		logger.AddOutput(NewConsoleOutput(os.Stderr, FormatText))
	}
	if logFile != "" {
		if fileOutput, err := NewFileOutput(logFile, FormatText); err == nil {
			logger.AddOutput(fileOutput)
		}
	}

	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()
}

func getLogger() LoggerInterface {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// LogDebug convenience functions for logging
func LogDebug(msg string) {
	if l := getLogger(); l != nil {
		l.Debug(msg)
	}
}

func LogDebugf(format string, args ...interface{}) {
	if l := getLogger(); l != nil {
		l.Debugf(format, args...)
	}
}

func LogInfo(msg string) {
	if l := getLogger(); l != nil {
		l.Info(msg)
	}
}

func LogInfof(format string, args ...interface{}) {
	if l := getLogger(); l != nil {
		l.Infof(format, args...)
	}
}

func LogWarn(msg string) {
	if l := getLogger(); l != nil {
		l.Warn(msg)
	}
}

func LogWarnf(format string, args ...interface{}) {
	if l := getLogger(); l != nil {
		l.Warnf(format, args...)
	}
}

func LogError(msg string) {
	if l := getLogger(); l != nil {
		l.Error(msg)
	}
}

func LogErrorf(format string, args ...interface{}) {
	if l := getLogger(); l != nil {
		l.Errorf(format, args...)
	}
}
