package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/region23/salonbot/pkg/metrics"
)

// knownEndpoints ограничивает кардинальность метки endpoint
var knownEndpoints = map[string]bool{
	"/":        true,
	"/health":  true,
	"/webhook": true,
	"/metrics": true,
	"/sweep":   true,
}

// PrometheusMiddleware добавляет метрики Prometheus для HTTP запросов
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Создаем ResponseWriter для захвата статус-кода
		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrappedWriter, r)

		endpoint := r.URL.Path
		if !knownEndpoints[endpoint] {
			endpoint = "other"
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrappedWriter.statusCode)

		metrics.RecordHTTPRequest(r.Method, endpoint, status)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
	})
}

// responseWriter оборачивает http.ResponseWriter для захвата статус-кода
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader захватывает статус-код ответа
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
