// Package logging provides the structured JSON line logger used by the
// domain-stack collaborators (HTTP demo server, expiry-sweep worker). The
// core ash package never logs: spec §5 makes it a pure function library,
// so logging belongs entirely to the stateful collaborators layered above
// it.
package logging

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/slyt3/ash/internal/assert"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
	levelCritical
)

// Fields captures structured context for a single log entry. ContextID,
// Binding, and Mode identify the ASH transaction in flight; ProofVersion
// records which proof generation (v1, v2.1, v2.3) was involved.
type Fields struct {
	RequestID    string `json:"request_id,omitempty"`
	ContextID    string `json:"context_id,omitempty"`
	Binding      string `json:"binding,omitempty"`
	Mode         string `json:"mode,omitempty"`
	ProofVersion string `json:"proof_version,omitempty"`
	Component    string `json:"component,omitempty"`
	Error        string `json:"error,omitempty"`
}

type entry struct {
	Timestamp string `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"msg"`
	Fields
}

var (
	levelOnce sync.Once
	minLevel  = levelInfo
)

func init() {
	if err := assert.Check(log.Default() != nil, "default logger must not be nil"); err != nil {
		return
	}
	log.SetFlags(0)
}

// Debug logs a debug-level message with structured fields in JSON format.
// Respects the ASH_LOG_LEVEL environment variable. Returns silently if msg
// is empty.
func Debug(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("debug", msg, fields)
}

// Info logs an info-level message. Default level when ASH_LOG_LEVEL is unset.
func Info(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("info", msg, fields)
}

// Warn logs a warning-level message.
func Warn(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("warn", msg, fields)
}

// Error logs an error-level message.
func Error(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("error", msg, fields)
}

// Critical logs a critical-level message, for faults that may take the
// demo server or CLI down.
func Critical(msg string, fields Fields) {
	if err := assert.Check(msg != "", "log message must not be empty"); err != nil {
		return
	}
	logWithLevel("critical", msg, fields)
}

func logWithLevel(level, msg string, fields Fields) {
	if !shouldLog(level) {
		return
	}
	out := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		log.Printf("{\"level\":\"error\",\"msg\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	log.Print(string(payload))
}

func shouldLog(level string) bool {
	levelOnce.Do(func() {
		envLevel := strings.ToLower(os.Getenv("ASH_LOG_LEVEL"))
		if envLevel == "" {
			envLevel = "info"
		}
		minLevel = levelValue(envLevel)
	})
	return levelValue(level) >= minLevel
}

func levelValue(level string) int {
	switch level {
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	case "critical":
		return levelCritical
	default:
		return levelInfo
	}
}
