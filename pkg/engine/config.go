package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arzzra/call_engine/pkg/media"
	"github.com/arzzra/call_engine/pkg/video"
)

// Duration оборачивает time.Duration для разбора из YAML строк
// вида "160ms", "2s".
type Duration time.Duration

// UnmarshalYAML реализует yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("engine: разбор длительности %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config конфигурация движка звонков.
type Config struct {
	// Адрес WebSocket сигнального канала
	SignalingURL string `yaml:"signaling_url"`

	// Корень REST API управления звонками
	ControlURL string `yaml:"control_url"`

	// Автоподтверждение входящего звонка при bootstrap: если при
	// первом наблюдении удаленный статус все еще "inviting", accept
	// выполняется автоматически (push-notification сценарий).
	AutoAcceptIncoming bool `yaml:"auto_accept_incoming"`

	// Интервал отправки видео кадров
	VideoInterval Duration `yaml:"video_interval"`

	// Размер области отображения удаленного видео
	DisplayWidth  int `yaml:"display_width"`
	DisplayHeight int `yaml:"display_height"`

	// Настройки аудио конвейера (не из YAML: Logger и Registerer
	// инжектируются кодом)
	Media media.Config `yaml:"-"`

	// Переопределения аудио конвейера из YAML
	FrameDuration Duration `yaml:"frame_duration"`
	FlushDelay    Duration `yaml:"flush_delay"`
	BatchSize     int      `yaml:"batch_size"`
	QueueBound    int      `yaml:"queue_bound"`
	Prebuffer     int      `yaml:"prebuffer"`
	Crossfade     bool     `yaml:"crossfade"`
}

// DefaultConfig возвращает конфигурацию движка по умолчанию.
func DefaultConfig() Config {
	return Config{
		VideoInterval: Duration(video.DefaultSendInterval),
		DisplayWidth:  320,
		DisplayHeight: 240,
		Media:         media.DefaultConfig(),
	}
}

// LoadConfig читает конфигурацию из YAML файла поверх значений
// по умолчанию.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("engine: чтение конфигурации: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: разбор конфигурации: %w", err)
	}
	cfg.applyOverrides()
	return cfg, nil
}

// applyOverrides переносит YAML переопределения в конфигурацию
// аудио конвейера.
func (c *Config) applyOverrides() {
	if c.FrameDuration > 0 {
		c.Media.FrameDuration = time.Duration(c.FrameDuration)
	}
	if c.FlushDelay > 0 {
		c.Media.FlushDelay = time.Duration(c.FlushDelay)
	}
	if c.BatchSize > 0 {
		c.Media.BatchSize = c.BatchSize
	}
	if c.QueueBound > 0 {
		c.Media.QueueBound = c.QueueBound
	}
	if c.Prebuffer > 0 {
		c.Media.Prebuffer = c.Prebuffer
	}
	if c.Crossfade {
		c.Media.CrossfadeEnabled = true
	}
}
