package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight - количество запросов в обработке
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Текущее количество запросов в обработке",
		},
	)

	// TripTransitionsTotal - переходы поездок между состояниями
	TripTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_transitions_total",
			Help: "Количество переходов поездок между состояниями",
		},
		[]string{"to"},
	)

	// BroadcastPublishTotal - публикации событий в каналы
	BroadcastPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_publish_total",
			Help: "Количество публикаций событий реального времени",
		},
		[]string{"driver", "event", "result"},
	)

	// WithdrawalsTotal - попытки вывода средств
	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_withdrawals_total",
			Help: "Количество попыток вывода средств из кошелька",
		},
		[]string{"result"},
	)

	// WebsocketConnections - открытые websocket соединения
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Текущее количество websocket соединений",
		},
	)
)

// PrometheusMiddleware собирает метрики для HTTP запросов
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Увеличиваем счетчик запросов в обработке
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		// Фиксируем время начала запроса
		start := time.Now()

		// Обрабатываем запрос
		c.Next()

		// Вычисляем длительность запроса
		duration := time.Since(start).Seconds()

		// Получаем статус код и эндпоинт
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		// Увеличиваем счетчик запросов
		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()

		// Добавляем длительность запроса
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// TrackTripTransition отслеживает переход поездки в новое состояние
func TrackTripTransition(to string) {
	TripTransitionsTotal.WithLabelValues(to).Inc()
}

// TrackBroadcast отслеживает публикацию события
func TrackBroadcast(driver, event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	BroadcastPublishTotal.WithLabelValues(driver, event, result).Inc()
}

// TrackBroadcastDropped - событие не попало в очередь публикации
func TrackBroadcastDropped(driver, event string) {
	BroadcastPublishTotal.WithLabelValues(driver, event, "dropped").Inc()
}

// TrackWithdrawal отслеживает вывод средств: ok, insufficient, error
func TrackWithdrawal(result string) {
	WithdrawalsTotal.WithLabelValues(result).Inc()
}
