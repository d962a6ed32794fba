package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/region23/salonbot/internal/middleware"
	"github.com/region23/salonbot/pkg/logger"
	"github.com/region23/salonbot/pkg/metrics"
)

// telegramSecretHeader заголовок, в котором Telegram передает secret_token вебхука
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// secretMatches сравнивает секрет за постоянное время
func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// verifyTelegramSecret проверяет заголовок вебхука. Пустой секрет в конфигурации отключает проверку.
func (s *Server) verifyTelegramSecret(r *http.Request) bool {
	want := s.config.Telegram.WebhookSecret
	if want == "" {
		return true
	}
	return secretMatches(r.Header.Get(telegramSecretHeader), want)
}

// verifyBearer проверяет Authorization: Bearer <secret> для служебных эндпоинтов
func (s *Server) verifyBearer(r *http.Request) bool {
	want := s.config.Telegram.WebhookSecret
	if want == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && secretMatches(token, want)
}

// logFailedAuth пишет неудачную попытку доступа
func (s *Server) logFailedAuth(r *http.Request, reason string) {
	metrics.RecordError("server", "auth_failed")
	s.logger.Warn("Authentication failed",
		logger.String("reason", reason),
		logger.String("ip", middleware.GetRealIP(r)),
		logger.String("path", r.URL.Path),
		logger.String("user_agent", r.UserAgent()),
		logger.String("request_id", requestID(r.Context())),
	)
}
