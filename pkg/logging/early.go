package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog prints to the console before the structured logger exists,
// i.e. while the configuration is still being loaded.
type EarlyLog struct {
	service string
	out     io.Writer
	errOut  io.Writer
}

func NewEarlyLog(service string) *EarlyLog {
	return &EarlyLog{
		service: service,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.print(l.errOut, "ERROR", msg, args...)
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.print(l.errOut, "FATAL", msg, args...)
	os.Exit(1)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.print(l.errOut, "WARN", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.print(l.out, "INFO", msg, args...)
}

func (l *EarlyLog) print(w io.Writer, level, msg string, args ...interface{}) {
	fmt.Fprintf(w, "%s [%s] %s\n", level, l.service, fmt.Sprintf(msg, args...))
}
