package api

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogManagerRing(t *testing.T) {
	lm := NewLogManager(3)
	for i := 0; i < 5; i++ {
		lm.Add(LogEntry{Level: "info", Message: fmt.Sprintf("m%d", i)})
	}

	assert.Equal(t, 3, lm.Len())

	entries, total := lm.Page("", 1, 10)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 3)
	assert.Equal(t, "m2", entries[0].Message)
	assert.Equal(t, "m4", entries[2].Message)
}

func TestLogManagerPageAndFilter(t *testing.T) {
	lm := NewLogManager(10)
	lm.Add(LogEntry{Level: "info", Message: "a"})
	lm.Add(LogEntry{Level: "error", Message: "b"})
	lm.Add(LogEntry{Level: "info", Message: "c"})

	entries, total := lm.Page("info", 2, 1)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Message)

	entries, total = lm.Page("", 5, 10)
	assert.Equal(t, 3, total)
	assert.Empty(t, entries)

	lm.Clear()
	assert.Equal(t, 0, lm.Len())
}

func TestLogManagerDefaultCapacity(t *testing.T) {
	lm := NewLogManager(0)
	assert.Len(t, lm.entries, 1000)
}

func TestLogHook(t *testing.T) {
	lm := NewLogManager(10)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(NewLogHook(lm))

	logger.WithError(errors.New("boom")).WithField("node", "local").Error("RPC失败")

	entries, _ := lm.Page("error", 1, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, "RPC失败", entries[0].Message)
	assert.Equal(t, "boom", entries[0].Fields[logrus.ErrorKey])
	assert.Equal(t, "local", entries[0].Fields["node"])
}
