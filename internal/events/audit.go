package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// AuditLogger пишет доменные события из очереди в журнал аудита.
type AuditLogger struct {
	log *slog.Logger
}

// NewAuditLogger создает обработчик очереди аудита.
func NewAuditLogger(log *slog.Logger) *AuditLogger {
	return &AuditLogger{log: log}
}

// Handle разбирает конверт события и логирует его. Нечитаемое сообщение
// подтверждается и только логируется, иначе оно возвращалось бы в очередь бесконечно.
func (a *AuditLogger) Handle(body []byte) error {
	var e struct {
		Type       string          `json:"type"`
		OccurredAt string          `json:"occurredAt"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Type == "" {
		a.log.Error("malformed event dropped", slog.Int("size", len(body)))
		return nil
	}

	// user.updated приходит на каждое изменение и дублирует более точные события.
	level := slog.LevelInfo
	if e.Type == UserUpdated {
		level = slog.LevelDebug
	}
	a.log.Log(context.Background(), level, "audit event",
		slog.String("type", e.Type),
		slog.String("occurred_at", e.OccurredAt),
		slog.String("payload", string(e.Payload)),
	)
	return nil
}
