package logger

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFormatterSortsFields(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 10, 9, 14, 3, 7, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "tool failed",
		Data:    logrus.Fields{"tool": "market_data", "run_id": "abc", "duration": "2s"},
	}

	out, err := (&LineFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-10-09 14:03:07] [WARN] [] tool failed duration=2s run_id=abc tool=market_data\n", string(out))
}

func TestInitFallsBackToInfo(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	require.NoError(t, Init("chatty", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())

	require.NoError(t, Init("debug", ""))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
}
