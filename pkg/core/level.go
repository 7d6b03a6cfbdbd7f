package core

import "strings"

// Level is a free-form severity label written into each entry header.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// String returns the label as written to the log. An empty level is INFO.
func (l Level) String() string {
	s := strings.TrimSpace(string(l))
	if s == "" {
		return string(LevelInfo)
	}
	return s
}
