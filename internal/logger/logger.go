package logger

import "os"

// New builds the default logger for a config
func New(config Config) (Logger, error) {
	return NewSlogLogger(config)
}

// Stderr returns a text logger writing to stderr at level
func Stderr(level Level) Logger {
	l, err := NewSlogLogger(Config{
		Level:   level,
		Format:  FormatText,
		Outputs: []OutputConfig{{Type: OutputStderr, Writer: os.Stderr}},
	})
	if err != nil {
		return &NullLogger{}
	}
	return l
}

// SetLevel changes the level of l when it supports runtime changes
func SetLevel(l Logger, level Level) bool {
	if lv, ok := l.(Leveler); ok {
		lv.SetLevel(level)
		return true
	}
	return false
}

// NullLogger discards everything
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, args ...any) {}
func (n *NullLogger) Info(msg string, args ...any)  {}
func (n *NullLogger) Warn(msg string, args ...any)  {}
func (n *NullLogger) Error(msg string, args ...any) {}
func (n *NullLogger) With(args ...any) Logger       { return n }
func (n *NullLogger) Sync() error                   { return nil }
func (n *NullLogger) Shutdown() error               { return nil }
