package utils

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

// NewLogger returns a leveled logger tagged with prefix. level is one of
// debug, info, warn, error or off; anything else means info.
func NewLogger(prefix, level string) *log.Logger {
	l := log.New(prefix)
	l.SetLevel(ParseLevel(level))
	return l
}

// DiscardLogger returns a logger that drops everything. Tests use it to
// keep output quiet.
func DiscardLogger(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}

// ParseLevel maps a level name onto gommon's levels.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	}
	return log.INFO
}
