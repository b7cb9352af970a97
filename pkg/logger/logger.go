package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the desk process and the relay.
// Output goes to stdout; the level is set once with Init(LOG_LEVEL).

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// ParseLevel maps a level name to a Level.
func ParseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return levelNames[level]
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func write(l Level, component, format string, v ...interface{}) {
	if l != LevelFatal && !enabled(l) {
		return
	}
	head := fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(levelNames[l]))
	if component != "" {
		head += component + ": "
	}
	logger.Printf(head+format, v...)
}

func Debugf(format string, v ...interface{}) { write(LevelDebug, "", format, v...) }
func Infof(format string, v ...interface{})  { write(LevelInfo, "", format, v...) }
func Warnf(format string, v ...interface{})  { write(LevelWarn, "", format, v...) }
func Errorf(format string, v ...interface{}) { write(LevelError, "", format, v...) }

func Fatalf(format string, v ...interface{}) {
	write(LevelFatal, "", format, v...)
	os.Exit(1)
}

func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// Component is a logger that prefixes every line with a component name,
// e.g. "session" or "notifications".
type Component struct {
	name string
}

// For returns a component-scoped logger.
func For(name string) *Component { return &Component{name: name} }

func (c *Component) Debugf(format string, v ...interface{}) { write(LevelDebug, c.name, format, v...) }
func (c *Component) Infof(format string, v ...interface{})  { write(LevelInfo, c.name, format, v...) }
func (c *Component) Warnf(format string, v ...interface{})  { write(LevelWarn, c.name, format, v...) }
func (c *Component) Errorf(format string, v ...interface{}) { write(LevelError, c.name, format, v...) }
