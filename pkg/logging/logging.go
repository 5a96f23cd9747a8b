// pkg/logging/logging.go

// Package logging writes the diagnostics log: append-only lines of
// "<timestamp> - <LEVEL>: <message>" with a header block per run.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the timestamp layout of every log line.
const TimestampFormat = "2006-01-02 15:04:05"

const separator = "=================================================================="

// LineFormatter renders entries as "<timestamp> - <LEVEL>: <message>".
// Fields follow the message as sorted key=value pairs.
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimestampFormat))
	b.WriteString(" - ")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString(": ")
	b.WriteString(strings.TrimRight(e.Message, "\n"))

	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, fieldValue(e.Data[k]))
		}
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func fieldValue(v any) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// New creates a logger writing to w in the line format. verbose enables
// debug entries.
func New(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(LineFormatter{})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// Open opens path for appending and returns a logger writing to it.
// Closing the returned closer closes the file.
func Open(path string, verbose bool) (*logrus.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return New(f, verbose), f, nil
}

// Header describes one run in the log.
type Header struct {
	Version string
	Started time.Time
	Host    string
	Config  string
	Node    string
	AutoFix bool
	User    string
}

// WriteHeader writes the header block that opens every run.
func WriteHeader(log logrus.FieldLogger, h Header) {
	log.Info(separator)
	log.Infof("preinstall-check %s", h.Version)
	log.Infof("Run started at %s", h.Started.Format(TimestampFormat))
	log.Infof("Host: %s", h.Host)
	if h.User != "" {
		log.Infof("User: %s", h.User)
	}
	log.Infof("Config: %s", h.Config)
	log.Infof("Node type: %s", h.Node)
	log.Infof("Auto-fix: %t", h.AutoFix)
	log.Info(separator)
}
