package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// New returns a logger suitable for tests: debug level, no timestamps,
// writing through the test harness so output stays attached to the test.
func New(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
