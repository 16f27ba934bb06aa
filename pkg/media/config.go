package media

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config содержит параметры аудио конвейера одного звонка.
// Нулевые значения заполняются в DefaultConfig / NewPipeline.
type Config struct {
	// Формат PCM тракта
	Format Format

	// Длительность одного кадра захвата. Меньше - ниже исходящая
	// задержка, больше - меньше накладных расходов на конверт.
	FrameDuration time.Duration

	// Размер партии слияния B: столько кадров склеивается в сегмент
	// при нормальном темпе прихода.
	BatchSize int

	// Задержка flush таймера: столько ждем отстающие кадры, прежде
	// чем слить неполную партию.
	FlushDelay time.Duration

	// Минимум кадров для слияния по таймеру до первого старта
	// воспроизведения (минимизирует стартовую задержку).
	MinFlushBeforeStart int

	// Минимум кадров для слияния по таймеру после того, как поток
	// установился (уменьшает слышимые швы).
	MinFlushSteady int

	// Ограничение очереди сегментов. При переполнении старейшие
	// сегменты вытесняются с удалением их файлов.
	QueueBound int

	// Минимум сегментов в очереди перед самым первым стартом
	// воспроизведения.
	Prebuffer int

	// Длительность симметричного линейного fade на границах сегмента.
	FadeDuration time.Duration

	// Crossfade между сегментами. Отключен по умолчанию: на слабых
	// хостах дрожание таймеров дает артефакты хуже простого шва.
	CrossfadeEnabled bool

	// Перекрытие сегментов при crossfade.
	CrossfadeOverlap time.Duration

	// Количество дискретных шагов изменения громкости при crossfade.
	CrossfadeSteps int

	// Размер буфера канала событий конвейера.
	EventBuffer int

	// Логгер конвейера. nil - slog.Default().
	Logger *slog.Logger

	// Регистратор prometheus метрик. nil - метрики отключены.
	Registerer prometheus.Registerer
}

// DefaultConfig возвращает конфигурацию конвейера по умолчанию.
// Значения подобраны под голосовой звонок 16kHz mono:
//   - кадр 160ms, партия 2 кадра, flush 80ms
//   - очередь до 3 сегментов, prebuffer 1
//   - fade 4ms, crossfade выключен
func DefaultConfig() Config {
	return Config{
		Format:              DefaultFormat(),
		FrameDuration:       160 * time.Millisecond,
		BatchSize:           2,
		FlushDelay:          80 * time.Millisecond,
		MinFlushBeforeStart: 1,
		MinFlushSteady:      2,
		QueueBound:          3,
		Prebuffer:           1,
		FadeDuration:        4 * time.Millisecond,
		CrossfadeEnabled:    false,
		CrossfadeOverlap:    120 * time.Millisecond,
		CrossfadeSteps:      8,
		EventBuffer:         256,
	}
}

// withDefaults заполняет нулевые поля значениями по умолчанию.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Format == (Format{}) {
		c.Format = def.Format
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = def.FrameDuration
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushDelay <= 0 {
		c.FlushDelay = def.FlushDelay
	}
	if c.MinFlushBeforeStart <= 0 {
		c.MinFlushBeforeStart = def.MinFlushBeforeStart
	}
	if c.MinFlushSteady <= 0 {
		c.MinFlushSteady = def.MinFlushSteady
	}
	if c.QueueBound <= 0 {
		c.QueueBound = def.QueueBound
	}
	if c.Prebuffer <= 0 {
		c.Prebuffer = def.Prebuffer
	}
	if c.FadeDuration <= 0 {
		c.FadeDuration = def.FadeDuration
	}
	if c.CrossfadeOverlap <= 0 {
		c.CrossfadeOverlap = def.CrossfadeOverlap
	}
	if c.CrossfadeSteps <= 0 {
		c.CrossfadeSteps = def.CrossfadeSteps
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	if c.Format.BitsPerSample != 16 {
		return fmt.Errorf("media: поддерживается только 16-bit PCM, задано %d", c.Format.BitsPerSample)
	}
	if c.Format.Channels != 1 {
		return fmt.Errorf("media: поддерживается только mono, задано %d каналов", c.Format.Channels)
	}
	if c.MinFlushSteady < c.MinFlushBeforeStart {
		return fmt.Errorf("media: MinFlushSteady (%d) меньше MinFlushBeforeStart (%d)",
			c.MinFlushSteady, c.MinFlushBeforeStart)
	}
	if c.MinFlushSteady > c.BatchSize {
		return fmt.Errorf("media: MinFlushSteady (%d) больше BatchSize (%d)", c.MinFlushSteady, c.BatchSize)
	}
	return nil
}
