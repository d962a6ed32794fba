package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/region23/salonbot/internal/config"
	"github.com/region23/salonbot/internal/middleware"
	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/pkg/logger"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UpdateHandler обрабатывает обновление Telegram
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update)
}

// SweepRunner запускает прогон напоминаний
type SweepRunner interface {
	RunSweep(ctx context.Context, now time.Time) reminder.DeliveryReport
}

// Deps внешние зависимости сервера
type Deps struct {
	Store   HealthStore
	Updates UpdateHandler
	Bot     *tgbot.Bot
	Sweeper SweepRunner
	Version string
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer    *http.Server
	config        *config.Config
	logger        *logger.Logger
	rateLimiter   *middleware.RateLimiter
	healthChecker *HealthChecker
	updates       UpdateHandler
	telegramBot   *tgbot.Bot
	sweeper       SweepRunner
}

// New создает новый HTTP сервер
func New(cfg *config.Config, log *logger.Logger, deps Deps) *Server {
	log = log.Named("http")

	server := &Server{
		config:        cfg,
		logger:        log,
		rateLimiter:   middleware.NewRateLimiter(cfg.Server.RequestsPerMin, time.Minute, log),
		healthChecker: NewHealthChecker(deps.Store, deps.Version, cfg.Reminder.SweepInterval),
		updates:       deps.Updates,
		telegramBot:   deps.Bot,
		sweeper:       deps.Sweeper,
	}

	server.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        server.setupRoutes(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return server
}

// Handler возвращает корневой обработчик со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes настраивает маршруты с middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthChecker.HealthHandler)
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/sweep", s.handleSweep)
	mux.Handle("/metrics", promhttp.Handler())

	return s.applyMiddleware(mux)
}

// applyMiddleware применяет middleware; последний добавленный выполняется первым
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	h := handler
	h = middleware.PrometheusMiddleware(h)
	h = middleware.HTTPRateLimitMiddleware(s.rateLimiter)(h)
	h = s.loggingMiddleware(h)
	h = s.requestIDMiddleware(h)
	h = s.securityHeadersMiddleware(h)
	return h
}

// handleWebhook обрабатывает Telegram webhook
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.verifyTelegramSecret(r) {
		s.logFailedAuth(r, "invalid webhook secret")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var update tgmodels.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("Failed to decode Telegram update",
			logger.String("request_id", requestID(r.Context())),
			logger.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	s.updates.HandleUpdate(ctx, s.telegramBot, &update)

	s.logger.Debug("Webhook processed",
		logger.Int64("update_id", update.ID),
		logger.Duration("processing_time", time.Since(start)))

	w.WriteHeader(http.StatusOK)
}

// sweepResponse JSON-представление отчета о прогоне
type sweepResponse struct {
	RunID  string                          `json:"run_id"`
	Now    time.Time                       `json:"now"`
	Sent   int                             `json:"sent"`
	Failed int                             `json:"failed"`
	Stages map[string]reminder.StageReport `json:"stages"`
	Errors []string                        `json:"errors,omitempty"`
}

func newSweepResponse(report reminder.DeliveryReport) sweepResponse {
	resp := sweepResponse{
		RunID:  report.RunID,
		Now:    report.Now,
		Sent:   report.Sent(),
		Failed: report.Failed(),
		Stages: make(map[string]reminder.StageReport, len(report.Stages)),
	}
	for stage, sr := range report.Stages {
		resp.Stages[stage.Name] = sr
	}
	for _, err := range report.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return resp
}

// handleSweep запускает прогон напоминаний для внешнего планировщика
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sweeper == nil {
		http.Error(w, "Sweep is not configured", http.StatusNotFound)
		return
	}
	if !s.verifyBearer(r) {
		s.logFailedAuth(r, "invalid sweep token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Reminder.SweepTimeout)
	defer cancel()

	report := s.sweeper.RunSweep(ctx, time.Time{})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newSweepResponse(report)); err != nil {
		s.logger.Error("Failed to write sweep report", logger.Error(err))
	}
}

// Start запускает сервер и блокируется до отмены ctx или ошибки
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", logger.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
