package media

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// FrameSink принимает готовый исходящий кадр. Вызывается из горутины
// устройства захвата с той же периодичностью, что и сами кадры.
type FrameSink func(seq uint64, pcm []byte)

// CapturePath реализует исходящий аудио тракт: кадры микрофона
// фиксированной длительности проходят подмену тишиной при mute и
// уходят в sink с монотонным seq.
//
// Подмена при mute сохраняет каденс: удаленный jitter buffer видит
// тот же поток кадров, только с нулевым payload. Ошибки захвата
// логируются и останавливают поток кадров, не завершая процесс.
type CapturePath struct {
	dev  CaptureDevice
	cfg  Config
	sink FrameSink
	log  *slog.Logger

	muted atomic.Bool
	seq   atomic.Uint64

	mu      sync.Mutex
	started bool
}

// NewCapturePath создает исходящий тракт поверх устройства захвата.
func NewCapturePath(dev CaptureDevice, cfg Config, sink FrameSink, log *slog.Logger) *CapturePath {
	if log == nil {
		log = slog.Default()
	}
	return &CapturePath{
		dev:  dev,
		cfg:  cfg.withDefaults(),
		sink: sink,
		log:  log.With("component", "capture"),
	}
}

// Start захватывает микрофон и начинает producing кадров.
func (p *CapturePath) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return NewPipelineError(ErrorCodePipelineAlreadyStarted, "", "тракт захвата уже запущен", nil)
	}
	err := p.dev.Start(p.cfg.Format, p.cfg.FrameDuration, p.onFrame)
	if err != nil {
		return NewPipelineError(ErrorCodeCaptureStart, "", "запуск устройства захвата", err)
	}
	p.started = true
	return nil
}

// Stop останавливает захват. Идемпотентен.
func (p *CapturePath) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	if err := p.dev.Stop(); err != nil {
		p.log.Warn("остановка устройства захвата", "error", err)
	}
}

// SetMuted включает или выключает подмену кадров тишиной.
func (p *CapturePath) SetMuted(muted bool) {
	p.muted.Store(muted)
}

// ToggleMute переключает mute и возвращает новое значение.
func (p *CapturePath) ToggleMute() bool {
	for {
		old := p.muted.Load()
		if p.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Muted возвращает текущее состояние mute.
func (p *CapturePath) Muted() bool {
	return p.muted.Load()
}

func (p *CapturePath) onFrame(pcm []byte) {
	if p.muted.Load() {
		// тот же размер, нулевой payload - каденс не меняется
		pcm = make([]byte, len(pcm))
	}
	p.sink(p.seq.Add(1), pcm)
}
