package webd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/fix"
)

// newTestWebDaemon creates a WebDaemon storing in a temporary directory.
// It is stopped when the test ends.
func newTestWebDaemon(t *testing.T, opts ...func(*params.WebDaemonConfig)) *WebDaemon {
	t.Helper()
	t.Cleanup(common.SlogResetLevel(slog.LevelWarn + 1))
	config := params.DefaultTestWebDaemonConfig(t.TempDir())
	for _, opt := range opts {
		opt(config)
	}
	d, err := NewWebDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Stop)
	return d
}

// liveLine is testdata.Line retimed so its first fix is now.
// The position source only takes recent pushes as the current fix.
func liveLine(stepMeters float64, n int) []fix.Fix {
	fixes := testdata.Line(testdata.NYC, stepMeters, n, time.Second)
	shift := time.Now().UnixMilli() - fixes[0].Timestamp
	for i := range fixes {
		fixes[i].Timestamp += shift
	}
	return fixes
}
