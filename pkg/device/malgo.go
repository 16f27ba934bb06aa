package device

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/arzzra/call_engine/pkg/media"
)

// MalgoContext общий miniaudio контекст для устройств захвата и
// воспроизведения. Создается один раз на процесс.
type MalgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewMalgoContext инициализирует miniaudio контекст.
func NewMalgoContext() (*MalgoContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("device: инициализация miniaudio: %w", err)
	}
	return &MalgoContext{ctx: ctx}, nil
}

// Close освобождает miniaudio контекст.
func (c *MalgoContext) Close() error {
	if err := c.ctx.Uninit(); err != nil {
		return fmt.Errorf("device: освобождение miniaudio: %w", err)
	}
	c.ctx.Free()
	return nil
}

// MalgoCapture реализует media.CaptureDevice поверх miniaudio.
// Сэмплы устройства накапливаются во внутреннем буфере и отдаются
// колбэку кадрами ровно запрошенной длительности.
type MalgoCapture struct {
	ctx *MalgoContext

	mu    sync.Mutex
	dev   *malgo.Device
	buf   []byte
	frame int
	onFrm func([]byte)
}

// NewMalgoCapture создает устройство захвата на общем контексте.
func NewMalgoCapture(ctx *MalgoContext) *MalgoCapture {
	return &MalgoCapture{ctx: ctx}
}

// Start захватывает микрофон в заданном формате.
func (c *MalgoCapture) Start(format media.Format, frameDuration time.Duration, onFrame func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return fmt.Errorf("device: захват уже запущен")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	c.frame = format.FrameBytes(frameDuration)
	c.buf = c.buf[:0]
	c.onFrm = onFrame

	dev, err := malgo.InitDevice(c.ctx.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: c.onData,
	})
	if err != nil {
		// miniaudio не различает причины кодом, отказ доступа приходит
		// текстом от бэкенда
		return media.NewPipelineError(media.ErrorCodeCaptureStart, "", "инициализация микрофона", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return media.NewPipelineError(media.ErrorCodeCaptureStart, "", "старт микрофона", err)
	}
	c.dev = dev
	return nil
}

func (c *MalgoCapture) onData(_, input []byte, _ uint32) {
	c.mu.Lock()
	c.buf = append(c.buf, input...)
	var frames [][]byte
	for len(c.buf) >= c.frame {
		frame := make([]byte, c.frame)
		copy(frame, c.buf[:c.frame])
		c.buf = c.buf[c.frame:]
		frames = append(frames, frame)
	}
	onFrame := c.onFrm
	c.mu.Unlock()
	if onFrame == nil {
		return
	}
	for _, f := range frames {
		onFrame(f)
	}
}

// Stop останавливает захват и освобождает устройство. Идемпотентен.
func (c *MalgoCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil
	}
	c.dev.Uninit()
	c.dev = nil
	c.onFrm = nil
	c.buf = nil
	return nil
}

// MalgoOutput реализует media.OutputDevice: один слот воспроизведения
// WAV сегментов через miniaudio с программной громкостью.
type MalgoOutput struct {
	ctx *MalgoContext

	mu         sync.Mutex
	dev        *malgo.Device
	pcm        []byte
	format     media.Format
	offset     int
	volume     float64
	stopped    bool
	onEnded    func()
	endedFired bool
}

// NewMalgoOutput создает слот воспроизведения на общем контексте.
func NewMalgoOutput(ctx *MalgoContext) *MalgoOutput {
	return &MalgoOutput{ctx: ctx, volume: 1.0}
}

// SetSource загружает WAV файл сегмента.
func (o *MalgoOutput) SetSource(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("device: чтение источника: %w", err)
	}
	format, pcm, err := media.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("device: разбор источника: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pcm = pcm
	o.format = format
	o.offset = 0
	o.endedFired = false
	return nil
}

// Play начинает воспроизведение текущего источника.
func (o *MalgoOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pcm == nil {
		return fmt.Errorf("device: источник не установлен")
	}
	if o.dev != nil {
		o.dev.Uninit()
		o.dev = nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(o.format.Channels)
	cfg.SampleRate = uint32(o.format.SampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(o.ctx.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: o.onData,
	})
	if err != nil {
		return fmt.Errorf("device: инициализация вывода: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("device: старт вывода: %w", err)
	}
	o.dev = dev
	o.stopped = false
	return nil
}

func (o *MalgoOutput) onData(output, _ []byte, _ uint32) {
	o.mu.Lock()
	n := copy(output, o.pcm[o.offset:])
	o.offset += n
	vol := o.volume
	ended := o.offset >= len(o.pcm) && !o.endedFired && !o.stopped
	if ended {
		o.endedFired = true
	}
	onEnded := o.onEnded
	o.mu.Unlock()

	// остаток буфера - тишина
	for i := n; i < len(output); i++ {
		output[i] = 0
	}
	if vol < 1.0 {
		scalePCM(output[:n], vol)
	}
	if ended && onEnded != nil {
		go onEnded()
	}
}

// Stop останавливает воспроизведение. Колбэк конца источника при
// этом не вызывается - он только для естественного окончания.
func (o *MalgoOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	if o.dev != nil {
		o.dev.Uninit()
		o.dev = nil
	}
	return nil
}

// SetVolume устанавливает громкость слота [0.0, 1.0].
func (o *MalgoOutput) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("device: громкость вне диапазона: %f", v)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
	return nil
}

// OnEnded регистрирует колбэк естественного окончания источника.
func (o *MalgoOutput) OnEnded(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

// scalePCM умножает int16 LE сэмплы на коэффициент громкости.
func scalePCM(pcm []byte, k float64) {
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		s = int16(float64(s) * k)
		pcm[i] = byte(uint16(s))
		pcm[i+1] = byte(uint16(s) >> 8)
	}
}
