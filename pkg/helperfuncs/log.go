package helperfuncs

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	color "github.com/TwinProduction/go-color"
)

// Level is the severity of a log line
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

var levelColors = map[Level]string{
	LevelDebug: color.Gray,
	LevelInfo:  color.Green,
	LevelWarn:  color.Yellow,
	LevelError: color.Red,
}

var (
	logMutex    sync.Mutex
	logOutput   io.Writer = os.Stdout
	logMinLevel           = LevelInfo
	logColors             = true
)

// SetLogOutput redirects log lines to w. Colours are turned off for anything but stdout/stderr
func SetLogOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logOutput = w
	logColors = w == os.Stdout || w == os.Stderr
}

// SetLogLevel drops every line below level
func SetLogLevel(level Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logMinLevel = level
}

func logf(level Level, format string, args ...interface{}) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if level < logMinLevel {
		return
	}

	name := levelNames[level]
	if logColors {
		name = levelColors[level] + name + color.Reset
	}
	fmt.Fprintf(logOutput, "%s [%s]: %s\n", time.Now().Format("2006-01-02T15:04:05.000Z07:00"), name, fmt.Sprintf(format, args...))
}

// Log writes an info line
func Log(format string, args ...interface{}) {
	logf(LevelInfo, format, args...)
}

func Debug(format string, args ...interface{}) {
	logf(LevelDebug, format, args...)
}

func Warn(format string, args ...interface{}) {
	logf(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	logf(LevelError, format, args...)
}
