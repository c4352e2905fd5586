package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) Event {
	t.Helper()
	line := buf.String()
	idx := strings.Index(line, "AUDIT: ")
	require.GreaterOrEqual(t, idx, 0)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line[idx+len("AUDIT: "):])), &event))
	buf.Reset()
	return event
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLoggerTo(&buf)
	logger.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	t.Run("ledger event", func(t *testing.T) {
		logger.LogLedgerEvent("u1", "NEW", 3, 7)

		event := decodeLine(t, &buf)
		assert.Equal(t, "NEW", event.EventType)
		assert.Equal(t, "u1", event.UserID)
		assert.Equal(t, int64(3), event.TransactionID)
		assert.Equal(t, int64(7), event.PostingID)
		assert.Equal(t, "SUCCESS", event.Status)
	})

	t.Run("rejected event", func(t *testing.T) {
		logger.LogRejected("u1", "DELETE", "No posting for message 4")

		event := decodeLine(t, &buf)
		assert.Equal(t, "REJECTED", event.Status)
		assert.Equal(t, map[string]any{"reason": "No posting for message 4"}, event.Details)
	})

	t.Run("error", func(t *testing.T) {
		logger.LogError("u2", "ref-1", errors.New("boom"))

		event := decodeLine(t, &buf)
		assert.Equal(t, "ERROR", event.EventType)
		assert.Equal(t, "FAILED", event.Status)
		assert.Equal(t, map[string]any{"error": "boom", "ref": "ref-1"}, event.Details)
	})
}
