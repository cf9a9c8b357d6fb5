package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanLogger(t *testing.T) {
	t.Run("json output carries context fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewPlanLogger(&Config{Output: &buf}).
			WithAgent("loan_agent").
			WithPlan("p-123")

		logger.Info("plan started")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "plan started", entry["msg"])
		assert.Equal(t, "loan_agent", entry["agent"])
		assert.Equal(t, "p-123", entry["plan_id"])
	})

	t.Run("key value args become fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewPlanLogger(&Config{Output: &buf})
		logger.Info("plan adapted", "added", 2)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, float64(2), entry["added"])
	})

	t.Run("debug below level is dropped", func(t *testing.T) {
		var buf bytes.Buffer
		NewPlanLogger(&Config{Level: slog.LevelInfo, Output: &buf}).Debug("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("step failure logs at warn with error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewPlanLogger(&Config{Output: &buf})
		logger.LogStep("records", "loan_query", "failed", 10*time.Millisecond, errors.New("down"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "records", entry["step_id"])
		assert.Equal(t, "down", entry["error"])
	})

	t.Run("completion call logs token usage", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewPlanLogger(&Config{Output: &buf})
		logger.LogCompletionCall("gpt-4o-mini", 420, 50*time.Millisecond, nil)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "gpt-4o-mini", entry["model"])
		assert.Equal(t, float64(420), entry["token_count"])
		assert.Equal(t, true, entry["success"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		NewPlanLogger(&Config{Format: "text", Output: &buf}).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}

func TestNopPlanLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		l := NewNopPlanLogger()
		l.Error("dropped")
		l.LogPlanRun(3, "success", time.Second)
	})
}
