package events

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_Handle(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	t.Run("событие логируется", func(t *testing.T) {
		buf.Reset()
		err := a.Handle([]byte(`{"type":"user.points.changed","occurredAt":"2025-03-01T10:00:00Z","payload":{"userId":1,"change":50}}`))
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "type=user.points.changed")
		assert.Contains(t, buf.String(), `"change":50`)
	})

	t.Run("user.updated только в debug", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, a.Handle([]byte(`{"type":"user.updated","payload":{}}`)))
		assert.Empty(t, buf.String())
	})

	t.Run("нечитаемое сообщение подтверждается", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, a.Handle([]byte(`not json`)))
		assert.Contains(t, buf.String(), "malformed event dropped")

		buf.Reset()
		require.NoError(t, a.Handle([]byte(`{"payload":{}}`)))
		assert.Contains(t, buf.String(), "malformed event dropped")
	})
}
