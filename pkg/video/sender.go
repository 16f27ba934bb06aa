package video

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Camera абстрагирует устройство съемки одиночных кадров.
type Camera interface {
	// CaptureStill снимает один кадр низкого разрешения во временный
	// файл и возвращает путь к нему. Файл удаляет вызывающий.
	CaptureStill(ctx context.Context) (path string, err error)

	// Switch переключает активную камеру (фронтальная/тыловая).
	Switch() error
}

// SendFunc отправляет байты кадра в сигнальный канал.
type SendFunc func(ctx context.Context, data []byte) error

// Sender периодически снимает кадр, читает его байты, отправляет и
// удаляет временный файл. Ошибки отдельного кадра не останавливают
// тракт - следующий тик пробует снова.
type Sender struct {
	camera   Camera
	interval time.Duration
	send     SendFunc
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// DefaultSendInterval интервал съемки по умолчанию (10 Гц)
const DefaultSendInterval = 100 * time.Millisecond

// NewSender создает видео отправитель.
func NewSender(camera Camera, interval time.Duration, send SendFunc, log *slog.Logger) *Sender {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		camera:   camera,
		interval: interval,
		send:     send,
		log:      log.With("component", "video_sender"),
	}
}

// Start запускает периодическую съемку. Повторный Start без Stop не ошибка.
func (s *Sender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop останавливает съемку и дожидается завершения цикла. Идемпотентен.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SwitchCamera переключает активную камеру устройства.
func (s *Sender) SwitchCamera() error {
	return s.camera.Switch()
}

func (s *Sender) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.captureOne(ctx)
		}
	}
}

func (s *Sender) captureOne(ctx context.Context) {
	path, err := s.camera.CaptureStill(ctx)
	if err != nil {
		s.log.Warn("съемка кадра", "error", err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("удаление временного кадра", "path", path, "error", err)
		}
	}()
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("чтение кадра", "path", path, "error", err)
		return
	}
	if err := s.send(ctx, data); err != nil {
		s.log.Warn("отправка кадра", "error", err)
	}
}
