package quic

import "github.com/sirupsen/logrus"

// newNopLogger returns a logger that discards everything, for callers who
// don't want controller diagnostics. Mirrors distribution-distribution's
// pattern of always having a non-nil logger field rather than nil-checking
// at every call site.
func newNopLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return logrus.NewEntry(l)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// debugEnabled reports whether per-packet debug tracing should run. Hot
// path call sites check this before formatting, the same guard quic-go's
// utils.Logger.Debug() provides (see
// other_examples/080c34f5_..._sent_packet_handler.go.go), so log-string
// construction doesn't run on every packet when debug logging is off.
func debugEnabled(log *logrus.Entry) bool {
	return log.Logger.IsLevelEnabled(logrus.DebugLevel)
}
