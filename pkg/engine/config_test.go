package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoadConfig YAML значения ложатся поверх значений по умолчанию,
// переопределения аудио конвейера переносятся в media.Config.
func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
signaling_url: wss://example.com/ws
control_url: https://example.com/calls
auto_accept_incoming: true
video_interval: 200ms
display_width: 640
display_height: 480
frame_duration: 120ms
flush_delay: 60ms
batch_size: 3
queue_bound: 5
prebuffer: 2
crossfade: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/ws", cfg.SignalingURL)
	assert.Equal(t, "https://example.com/calls", cfg.ControlURL)
	assert.True(t, cfg.AutoAcceptIncoming)
	assert.Equal(t, 200*time.Millisecond, time.Duration(cfg.VideoInterval))
	assert.Equal(t, 640, cfg.DisplayWidth)
	assert.Equal(t, 480, cfg.DisplayHeight)

	assert.Equal(t, 120*time.Millisecond, cfg.Media.FrameDuration)
	assert.Equal(t, 60*time.Millisecond, cfg.Media.FlushDelay)
	assert.Equal(t, 3, cfg.Media.BatchSize)
	assert.Equal(t, 5, cfg.Media.QueueBound)
	assert.Equal(t, 2, cfg.Media.Prebuffer)
	assert.True(t, cfg.Media.CrossfadeEnabled)
}

// TestLoadConfigPartial незаданные поля сохраняют значения по умолчанию.
func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, "control_url: https://example.com/calls\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.DisplayWidth, cfg.DisplayWidth)
	assert.Equal(t, def.Media.FrameDuration, cfg.Media.FrameDuration)
	assert.Equal(t, def.Media.BatchSize, cfg.Media.BatchSize)
	assert.False(t, cfg.Media.CrossfadeEnabled)
}

// TestLoadConfigErrors отсутствующий файл и битые значения.
func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "нет.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "frame_duration: сто\n"))
	assert.Error(t, err, "длительность должна разбираться из строк time.ParseDuration")

	_, err = LoadConfig(writeConfig(t, "display_width: [1,2]\n"))
	assert.Error(t, err)
}
