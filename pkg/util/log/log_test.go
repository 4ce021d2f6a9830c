package log

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerFiltersByLevel(t *testing.T) {
	var lvl dslog.Level
	require.NoError(t, lvl.Set("warn"))

	buf := &bytes.Buffer{}
	logger := InitLoggerWithWriter(buf, "logfmt", lvl)

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown")
	require.Contains(t, buf.String(), "level=warn")
	require.Equal(t, logger, Logger)
}
