// Package logging defines the optional logger accepted by every bootloader
// component, plus adapters for it.
package logging

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Logger is an optional logging interface that can be provided to the
// bootloader components. This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// Nop discards everything.
type Nop struct{}

var _ Logger = Nop{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}

// Glog sends log lines to github.com/golang/glog. Debug lines are emitted at
// verbosity 1 (-v=1).
type Glog struct{}

var _ Logger = Glog{}

func (Glog) Debug(msg string, keysAndValues ...interface{}) {
	if glog.V(1) {
		glog.InfoDepth(1, Format(msg, keysAndValues...))
	}
}

func (Glog) Info(msg string, keysAndValues ...interface{}) {
	glog.InfoDepth(1, Format(msg, keysAndValues...))
}

func (Glog) Error(msg string, keysAndValues ...interface{}) {
	glog.ErrorDepth(1, Format(msg, keysAndValues...))
}

// Format renders msg followed by key=value pairs. A trailing key without a
// value is printed as key=<missing>.
func Format(msg string, keysAndValues ...interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v=<missing>", keysAndValues[i])
		}
	}
	return b.String()
}
