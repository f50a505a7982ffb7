package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthConfig — проверки для /healthz.
type HealthConfig struct {
	// DB — проверка базы данных (обычно pool.Ping).
	DB func(ctx context.Context) error

	// Broker — состояние соединения с RabbitMQ. Nil — брокер не используется.
	Broker func() bool

	Started time.Time
	Now     func() time.Time
}

// Health возвращает обработчик /healthz: 200 с аптаймом или 503
// с именем первой упавшей зависимости.
func Health(cfg HealthConfig) http.HandlerFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.DB != nil {
			if err := cfg.DB(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if cfg.Broker != nil && !cfg.Broker() {
			http.Error(w, "rabbitmq unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", cfg.Now().Sub(cfg.Started).Truncate(time.Second))
	}
}
