package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics собирает prometheus метрики аудио конвейера.
// Создается на каждый конвейер с инжектированным Registerer;
// nil Registerer в конфигурации отключает сбор полностью.
type Metrics struct {
	FramesReceived  prometheus.Counter
	FramesDropped   prometheus.Counter
	OutOfOrder      prometheus.Counter
	Merges          prometheus.Counter
	TimerFlushes    prometheus.Counter
	DeferredFlushes prometheus.Counter
	BatchesDropped  prometheus.Counter
	QueueDrops      prometheus.Counter
	DecodeErrors    prometheus.Counter
	QueueLength     prometheus.Gauge
	SegmentDuration prometheus.Histogram
}

// NewMetrics регистрирует метрики конвейера в указанном Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "frames_received_total", Help: "Принятые входящие аудио кадры",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "frames_dropped_total", Help: "Кадры, отброшенные при переполнении канала событий",
		}),
		OutOfOrder: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "frames_out_of_order_total", Help: "Кадры, пришедшие с нарушением порядка seq",
		}),
		Merges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "merges_total", Help: "Слияния партий кадров в сегменты",
		}),
		TimerFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "timer_flushes_total", Help: "Слияния, инициированные flush таймером",
		}),
		DeferredFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "deferred_flushes_total", Help: "Перевзводы flush таймера из-за недобора минимума",
		}),
		BatchesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "batches_dropped_total", Help: "Партии, отброшенные из-за ошибок сборки сегмента",
		}),
		QueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "queue_drops_total", Help: "Сегменты, вытесненные из очереди по ограничению",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "decode_errors_total", Help: "Кадры с поврежденными данными",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "segment_queue_length", Help: "Текущая длина очереди сегментов",
		}),
		SegmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "call_engine", Subsystem: "media",
			Name: "segment_duration_seconds", Help: "Длительность собранных сегментов",
			Buckets: prometheus.LinearBuckets(0.08, 0.08, 10),
		}),
	}
}
