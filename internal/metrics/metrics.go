// Package metrics описывает метрики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор счётчиков HTTP-слоя и предметной области.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	usersCreated   prometheus.Counter
	pointsEarned   prometheus.Counter
	pointsRedeemed prometheus.Counter
	transfers      *prometheus.CounterVec
}

// New создает метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "user_points",
			Name:      "http_requests_total",
			Help:      "Количество HTTP-запросов по маршруту, методу и статусу.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "user_points",
			Name:      "http_request_duration_seconds",
			Help:      "Длительность обработки HTTP-запросов.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "user_points",
			Name:      "users_created_total",
			Help:      "Количество созданных пользователей.",
		}),
		pointsEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "user_points",
			Name:      "points_earned_total",
			Help:      "Сумма начисленных баллов.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "user_points",
			Name:      "points_redeemed_total",
			Help:      "Сумма списанных баллов.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "user_points",
			Name:      "transfers_total",
			Help:      "Количество переводов по результату.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.duration, m.usersCreated, m.pointsEarned, m.pointsRedeemed, m.transfers)
	return m
}

// Middleware считает запросы и их длительность. Маршрут берётся из шаблона chi,
// чтобы ID в пути не раздували число серий.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// UserCreated учитывает создание пользователя.
func (m *Metrics) UserCreated() {
	m.usersCreated.Inc()
}

// PointsEarned учитывает начисление баллов.
func (m *Metrics) PointsEarned(amount int) {
	m.pointsEarned.Add(float64(amount))
}

// PointsRedeemed учитывает списание баллов.
func (m *Metrics) PointsRedeemed(amount int) {
	m.pointsRedeemed.Add(float64(amount))
}

// TransferFinished учитывает перевод с результатом completed, replayed или failed.
func (m *Metrics) TransferFinished(result string) {
	m.transfers.WithLabelValues(result).Inc()
}
