// Команда loopback поднимает два движка звонков, связанных сигнальным
// каналом в памяти, и прогоняет полный сценарий: инициация, accept,
// обмен аудио кадрами, hangup. Устройства синтетические: микрофон
// генерирует синус, вывод имитирует воспроизведение по длительности
// сегмента. Используется для ручной проверки конвейера без звуковой
// подсистемы и сети.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arzzra/call_engine/pkg/call"
	"github.com/arzzra/call_engine/pkg/device"
	"github.com/arzzra/call_engine/pkg/engine"
	"github.com/arzzra/call_engine/pkg/media"
	"github.com/arzzra/call_engine/pkg/signaling"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(log)

	control, baseURL, stop := startControlServer(log)
	defer stop()

	chanA, chanB := signaling.MemPair()

	storeA, err := device.NewDirStore()
	if err != nil {
		log.Error("scratch хранилище", "error", err)
		os.Exit(1)
	}
	defer storeA.Close()
	storeB, err := device.NewDirStore()
	if err != nil {
		log.Error("scratch хранилище", "error", err)
		os.Exit(1)
	}
	defer storeB.Close()

	cfg := engine.DefaultConfig()
	cfg.Media.FrameDuration = 80 * time.Millisecond
	cfg.Media.FlushDelay = 40 * time.Millisecond

	engA := engine.New(cfg, chanA, signaling.NewControlClient(baseURL, log),
		engine.Devices{
			Capture: newToneCapture(440),
			Outputs: [2]media.OutputDevice{newSimOutput(), newSimOutput()},
			Store:   storeA,
		}, engine.WithLogger(log.With("side", "A")))
	engB := engine.New(cfg, chanB, signaling.NewControlClient(baseURL, log),
		engine.Devices{
			Capture: newToneCapture(660),
			Outputs: [2]media.OutputDevice{newSimOutput(), newSimOutput()},
			Store:   storeB,
		}, engine.WithLogger(log.With("side", "B")))

	ctx := context.Background()
	if err := engA.Initiate(ctx, "bob", call.MediaVoice); err != nil {
		log.Error("инициация", "error", err)
		os.Exit(1)
	}
	rec := control.lastRecord()

	if err := engB.HandleInvite(ctx, rec); err != nil {
		log.Error("приглашение", "error", err)
		os.Exit(1)
	}
	if err := engB.Accept(ctx); err != nil {
		log.Error("подтверждение", "error", err)
		os.Exit(1)
	}

	// Сервер уведомил бы звонящего сам; в демо доставляем событие вручную.
	accepted, _ := json.Marshal(signaling.CallRecord{
		ID: rec.ID, CallerID: rec.CallerID, CalleeID: rec.CalleeID,
		Kind: rec.Kind, Status: signaling.RecordStatusAccepted,
	})
	if err := chanB.Send(ctx, signaling.Envelope{Type: signaling.TypeCallAccepted, Payload: accepted}); err != nil {
		log.Error("доставка accepted", "error", err)
		os.Exit(1)
	}

	log.Info("звонок идет, обмен кадрами 3 секунды")
	time.Sleep(3 * time.Second)

	if err := engA.Hangup(ctx); err != nil {
		log.Error("hangup", "error", err)
	}
	_ = engA.Close()
	_ = engB.Close()
	log.Info("сценарий завершен")
}

// controlServer минимальный REST сервер управления звонками для демо.
type controlServer struct {
	mu  sync.Mutex
	rec signaling.CallRecord
}

func (s *controlServer) lastRecord() signaling.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

func (s *controlServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if strings.Trim(r.URL.Path, "/") == "" {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.rec = signaling.CallRecord{
			ID:       uuid.NewString(),
			CallerID: "alice",
			CalleeID: body["calleeId"],
			Kind:     body["kind"],
			Status:   signaling.RecordStatusInviting,
		}
		rec := s.rec
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(rec)
		return
	}
	// accept/reject/cancel/end - просто подтверждаем
	w.WriteHeader(http.StatusOK)
}

func startControlServer(log *slog.Logger) (*controlServer, string, func()) {
	srv := &controlServer{}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Error("control сервер", "error", err)
		os.Exit(1)
	}
	httpSrv := &http.Server{Handler: srv}
	go func() { _ = httpSrv.Serve(listener) }()
	return srv, "http://" + listener.Addr().String(), func() { _ = httpSrv.Close() }
}

// toneCapture синтетический микрофон: выдает кадры синуса заданной
// частоты с периодичностью кадра.
type toneCapture struct {
	freq float64

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newToneCapture(freq float64) *toneCapture {
	return &toneCapture{freq: freq}
}

func (t *toneCapture) Start(format media.Format, frameDuration time.Duration, onFrame func([]byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	frameBytes := format.FrameBytes(frameDuration)
	go func() {
		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()
		var phase float64
		step := 2 * math.Pi * t.freq / float64(format.SampleRate)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pcm := make([]byte, frameBytes)
				for i := 0; i+1 < frameBytes; i += 2 {
					s := int16(math.Sin(phase) * 8000)
					pcm[i] = byte(uint16(s))
					pcm[i+1] = byte(uint16(s) >> 8)
					phase += step
				}
				onFrame(pcm)
			}
		}
	}()
	return nil
}

func (t *toneCapture) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	return nil
}

// simOutput имитирует слот вывода: "воспроизводит" сегмент, вызывая
// onEnded через его реальную длительность.
type simOutput struct {
	mu      sync.Mutex
	dur     time.Duration
	timer   *time.Timer
	onEnded func()
}

func newSimOutput() *simOutput {
	return &simOutput{}
}

func (o *simOutput) SetSource(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format, pcm, err := media.DecodeWAV(data)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dur = format.PCMDuration(len(pcm))
	return nil
}

func (o *simOutput) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
	}
	ended := o.onEnded
	o.timer = time.AfterFunc(o.dur, func() {
		if ended != nil {
			ended()
		}
	})
	return nil
}

func (o *simOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return nil
}

func (o *simOutput) SetVolume(float64) error { return nil }

func (o *simOutput) OnEnded(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}
