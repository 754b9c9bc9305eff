// Package sl собирает настройку slog для сервисов user-points: выбор обработчика
// по окружению и атрибуты для ошибок.
package sl

import "log/slog"

// Err возвращает атрибут "error" с текстом ошибки. Для nil пишется "<nil>",
// поэтому атрибут безопасно передавать из веток, где ошибка может отсутствовать.
//
//	log.Error("failed to create transfer", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
