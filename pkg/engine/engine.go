package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arzzra/call_engine/pkg/call"
	"github.com/arzzra/call_engine/pkg/media"
	"github.com/arzzra/call_engine/pkg/signaling"
	"github.com/arzzra/call_engine/pkg/video"
)

// Notifier получает пользовательские уведомления движка.
type Notifier interface {
	// Notify показывает короткое временное уведомление.
	Notify(message string)

	// DismissCallView закрывает экран звонка.
	DismissCallView()
}

// nopNotifier используется, когда уведомления не настроены.
type nopNotifier struct{}

func (nopNotifier) Notify(string)    {}
func (nopNotifier) DismissCallView() {}

// Devices внешние устройства, инжектируемые в движок.
type Devices struct {
	Capture media.CaptureDevice
	Outputs [2]media.OutputDevice
	Camera  video.Camera // nil для голосовых звонков
	Store   media.ScratchStore
}

// Option настраивает движок при создании.
type Option func(*Engine)

// WithNotifier устанавливает получателя пользовательских уведомлений.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithSpeakerConfirm устанавливает подтверждение перед включением
// громкой связи (риск эха). Возврат false отменяет переключение.
func WithSpeakerConfirm(confirm func() bool) Option {
	return func(e *Engine) { e.confirmSpeaker = confirm }
}

// WithLogger устанавливает логгер движка.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine контроллер одного активного звонка.
type Engine struct {
	cfg      Config
	log      *slog.Logger
	channel  signaling.Channel
	control  *signaling.ControlClient
	holder   *call.Holder
	devices  Devices
	notifier Notifier

	confirmSpeaker func() bool

	mu          sync.Mutex
	capture     *media.CapturePath
	pipeline    *media.Pipeline
	videoSender *video.Sender
	renderer    *video.Renderer
	route       media.Route
}

// New создает движок поверх сигнального канала, REST клиента
// управления и инжектированных устройств.
func New(cfg Config, channel signaling.Channel, control *signaling.ControlClient, devices Devices, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		log:      slog.Default(),
		channel:  channel,
		control:  control,
		holder:   call.NewHolder(),
		devices:  devices,
		notifier: nopNotifier{},
		route:    media.RouteEarpiece,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")

	channel.Handle(signaling.TypeCallAccepted, e.onRemoteAccepted)
	channel.Handle(signaling.TypeCallRejected, func(env signaling.Envelope) {
		e.onRemoteEnd(env, "звонок отклонен")
	})
	channel.Handle(signaling.TypeCallCanceled, func(env signaling.Envelope) {
		e.onRemoteEnd(env, "звонок отменен")
	})
	channel.Handle(signaling.TypeCallEnded, func(env signaling.Envelope) {
		e.onRemoteEnd(env, "звонок завершен")
	})
	channel.Handle(signaling.TypeAudioFrame, e.onAudioFrame)
	channel.Handle(signaling.TypeVideoFrame, e.onVideoFrame)
	return e
}

// ActiveCall возвращает активный звонок или nil.
func (e *Engine) ActiveCall() *call.Call {
	return e.holder.Get()
}

// Affordances возвращает действия, доступные для активного звонка.
func (e *Engine) Affordances() call.Affordances {
	c := e.holder.Get()
	if c == nil {
		return call.Affordances{}
	}
	return call.ComputeAffordances(c.Status(), c.Direction())
}

// Initiate начинает исходящий звонок к абоненту. Статус проходит
// outgoing -> ringing после создания записи на сервере.
func (e *Engine) Initiate(ctx context.Context, peerID string, kind call.MediaKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.holder.Get() != nil {
		return fmt.Errorf("engine: уже есть активный звонок")
	}
	c := call.NewOutgoing(peerID, kind)
	e.holder.Set(c)

	rec, err := e.control.Create(ctx, peerID, string(kind))
	if err != nil {
		_ = c.Fail()
		e.notifier.Notify("не удалось начать звонок")
		e.teardownLocked()
		e.notifier.DismissCallView()
		return fmt.Errorf("engine: инициация звонка: %w", err)
	}
	if err := c.Bind(rec.ID); err != nil {
		return err
	}
	e.log.Info("исходящий звонок создан", "call_id", rec.ID, "peer", peerID, "kind", kind)
	return nil
}

// HandleInvite регистрирует входящее приглашение. При включенном
// автоподтверждении и удаленном статусе "inviting" accept выполняется
// сразу (bootstrap из push уведомления).
func (e *Engine) HandleInvite(ctx context.Context, rec signaling.CallRecord) error {
	e.mu.Lock()
	if e.holder.Get() != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: уже есть активный звонок")
	}
	c := call.NewIncoming(rec.ID, rec.CallerID, call.MediaKind(rec.Kind))
	e.holder.Set(c)
	e.mu.Unlock()

	e.log.Info("входящий звонок", "call_id", rec.ID, "peer", rec.CallerID, "kind", rec.Kind)
	if e.cfg.AutoAcceptIncoming && rec.Status == signaling.RecordStatusInviting {
		return e.Accept(ctx)
	}
	return nil
}

// Accept подтверждает входящий звонок: запрос accept, затем запуск
// исходящего тракта. Неудача запроса переводит звонок в failed.
func (e *Engine) Accept(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.holder.Get()
	if c == nil || !call.ComputeAffordances(c.Status(), c.Direction()).CanAccept {
		return fmt.Errorf("engine: подтверждение недоступно")
	}
	if err := e.control.Accept(ctx, c.ID()); err != nil {
		_ = c.Fail()
		e.notifier.Notify("не удалось принять звонок")
		e.teardownLocked()
		e.notifier.DismissCallView()
		return fmt.Errorf("engine: подтверждение звонка: %w", err)
	}
	if err := c.LocalAccepted(); err != nil {
		return err
	}
	return e.startMediaLocked(c)
}

// Reject отклоняет входящий звонок. Запрос best-effort, локальные
// ресурсы освобождаются сразу.
func (e *Engine) Reject(ctx context.Context) error {
	return e.endLocally(ctx, "reject")
}

// Cancel отменяет исходящий звонок до ответа. Best-effort.
func (e *Engine) Cancel(ctx context.Context) error {
	return e.endLocally(ctx, "cancel")
}

// Hangup завершает установленный звонок. Best-effort.
func (e *Engine) Hangup(ctx context.Context) error {
	return e.endLocally(ctx, "end")
}

func (e *Engine) endLocally(ctx context.Context, action string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.holder.Get()
	if c == nil {
		return nil
	}
	aff := call.ComputeAffordances(c.Status(), c.Direction())
	// Запрос уходит в фоне: освобождение локальных ресурсов никогда
	// не ждет подтверждения сети.
	reqCtx := context.WithoutCancel(ctx)
	callID := c.ID()
	switch action {
	case "reject":
		if !aff.CanReject {
			return fmt.Errorf("engine: отклонение недоступно")
		}
		go e.control.Reject(reqCtx, callID)
	case "cancel":
		if !aff.CanCancel {
			return fmt.Errorf("engine: отмена недоступна")
		}
		if callID != "" {
			// запись могла еще не создаться на сервере
			go e.control.Cancel(reqCtx, callID)
		}
	case "end":
		if !aff.CanHangup {
			return fmt.Errorf("engine: завершение недоступно")
		}
		go e.control.End(reqCtx, callID)
	}
	_ = c.End()
	e.teardownLocked()
	e.notifier.DismissCallView()
	return nil
}

// ToggleMute переключает mute и возвращает новое значение.
// До запуска захвата всегда false.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capture == nil {
		return false
	}
	return e.capture.ToggleMute()
}

// SetOutputRoute переключает маршрут вывода звука. Переключение на
// громкую связь проходит через подтверждение из-за риска эха.
func (e *Engine) SetOutputRoute(r media.Route) error {
	if r == media.RouteSpeaker && e.confirmSpeaker != nil && !e.confirmSpeaker() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, out := range e.devices.Outputs {
		routable, ok := out.(media.RoutableOutput)
		if !ok {
			continue
		}
		if err := routable.SetRoute(r); err != nil {
			return fmt.Errorf("engine: переключение маршрута: %w", err)
		}
	}
	e.route = r
	return nil
}

// OutputRoute возвращает текущий маршрут вывода.
func (e *Engine) OutputRoute() media.Route {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.route
}

// SwitchCamera переключает активную камеру видео звонка.
func (e *Engine) SwitchCamera() error {
	e.mu.Lock()
	sender := e.videoSender
	e.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("engine: видео тракт не активен")
	}
	return sender.SwitchCamera()
}

// RetryCapture повторяет запуск захвата после отказа в доступе к
// микрофону. Вызывается только по явному действию пользователя.
func (e *Engine) RetryCapture() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.holder.Get()
	if c == nil || c.Status() != call.StatusAccepted {
		return fmt.Errorf("engine: повтор захвата недоступен")
	}
	return e.startMediaLocked(c)
}

// RemoteFrame возвращает последний отрисованный видео кадр или nil.
func (e *Engine) RemoteFrame() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer == nil {
		return nil
	}
	return e.renderer.Frame()
}

// Close разбирает активный звонок и закрывает сигнальный канал.
func (e *Engine) Close() error {
	e.mu.Lock()
	if c := e.holder.Get(); c != nil {
		_ = c.End()
	}
	e.teardownLocked()
	e.mu.Unlock()
	return e.channel.Close()
}

// --- обработчики удаленных событий ---

func (e *Engine) onRemoteAccepted(env signaling.Envelope) {
	rec, err := signaling.DecodeCallRecord(env.Payload)
	if err != nil {
		e.log.Warn("поврежденное событие call.accepted", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.holder.Get()
	if c == nil || !c.MatchesID(rec.ID) {
		return
	}
	if err := c.RemoteAccepted(); err != nil {
		e.log.Warn("событие accepted не применимо", "call_id", rec.ID, "error", err)
		return
	}
	if err := e.startMediaLocked(c); err != nil {
		e.log.Warn("запуск медиа после accepted", "call_id", rec.ID, "error", err)
	}
}

func (e *Engine) onRemoteEnd(env signaling.Envelope, notice string) {
	rec, err := signaling.DecodeCallRecord(env.Payload)
	if err != nil {
		e.log.Warn("поврежденное событие завершения", "type", env.Type, "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.holder.Get()
	if c == nil || !c.MatchesID(rec.ID) {
		// событие чужого или устаревшего звонка
		return
	}
	if err := c.End(); err != nil {
		return // уже в терминальном состоянии
	}
	e.teardownLocked()
	e.notifier.Notify(notice)
	e.notifier.DismissCallView()
}

func (e *Engine) onAudioFrame(env signaling.Envelope) {
	fp, pcm, err := signaling.DecodeFramePayload(env.Payload)
	if err != nil {
		e.log.Warn("поврежденный аудио кадр отброшен", "error", err)
		return
	}
	e.mu.Lock()
	c := e.holder.Get()
	pipeline := e.pipeline
	e.mu.Unlock()
	if c == nil || !c.MatchesID(fp.CallID) || pipeline == nil {
		return
	}
	pipeline.PushFrame(fp.Seq, pcm)
}

func (e *Engine) onVideoFrame(env signaling.Envelope) {
	fp, data, err := signaling.DecodeFramePayload(env.Payload)
	if err != nil {
		e.log.Warn("поврежденный видео кадр отброшен", "error", err)
		return
	}
	e.mu.Lock()
	c := e.holder.Get()
	if c == nil || !c.MatchesID(fp.CallID) {
		e.mu.Unlock()
		return
	}
	if e.renderer == nil {
		e.renderer = video.NewRenderer(e.cfg.DisplayWidth, e.cfg.DisplayHeight, e.log)
	}
	renderer := e.renderer
	e.mu.Unlock()
	if err := renderer.Render(data); err != nil {
		// новейший кадр всегда побеждает, испорченный просто пропускаем
		e.log.Warn("видео кадр отброшен", "error", err)
	}
}

// --- запуск и разбор медиа трактов ---

// startMediaLocked поднимает аудио конвейер и исходящий тракт.
// Успешный захват устройства завершает переход accepted -> in_call.
func (e *Engine) startMediaLocked(c *call.Call) error {
	if e.pipeline == nil {
		pipeline, err := media.NewPipeline(c.ID(), e.cfg.Media, e.devices.Store, e.devices.Outputs)
		if err != nil {
			_ = c.Fail()
			e.teardownLocked()
			return err
		}
		e.pipeline = pipeline
		pipeline.Start()
	}

	if e.capture == nil {
		callID := c.ID()
		e.capture = media.NewCapturePath(e.devices.Capture, e.cfg.Media, func(seq uint64, pcm []byte) {
			e.sendAudioFrame(callID, seq, pcm)
		}, e.log)
	}
	if err := e.capture.Start(); err != nil {
		if media.IsPermissionError(err) {
			// не терминально: пользователь может выдать доступ в
			// настройках и повторить через RetryCapture
			e.notifier.Notify("нет доступа к микрофону, откройте настройки")
			return err
		}
		_ = c.Fail()
		e.notifier.Notify("ошибка аудио устройства")
		e.teardownLocked()
		e.notifier.DismissCallView()
		return err
	}

	if err := c.MediaReady(); err != nil {
		return err
	}
	if c.Kind() == call.MediaVideo && e.devices.Camera != nil && e.videoSender == nil {
		callID := c.ID()
		e.videoSender = video.NewSender(e.devices.Camera, time.Duration(e.cfg.VideoInterval), func(ctx context.Context, data []byte) error {
			env, err := signaling.NewFrameEnvelope(signaling.TypeVideoFrame, callID, 0, data)
			if err != nil {
				return err
			}
			return e.channel.Send(ctx, env)
		}, e.log)
		e.videoSender.Start()
	}
	e.log.Info("звонок установлен", "call_id", c.ID())
	return nil
}

func (e *Engine) sendAudioFrame(callID string, seq uint64, pcm []byte) {
	env, err := signaling.NewFrameEnvelope(signaling.TypeAudioFrame, callID, seq, pcm)
	if err != nil {
		e.log.Warn("сборка конверта кадра", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.channel.Send(ctx, env); err != nil {
		e.log.Warn("отправка аудио кадра", "seq", seq, "error", err)
	}
}

// teardownLocked освобождает все ресурсы звонка. Идемпотентен:
// повторный вызов и вызов без запущенных трактов безопасны.
func (e *Engine) teardownLocked() {
	if e.videoSender != nil {
		e.videoSender.Stop()
		e.videoSender = nil
	}
	if e.capture != nil {
		e.capture.Stop()
		e.capture = nil
	}
	if e.pipeline != nil {
		_ = e.pipeline.Close()
		e.pipeline = nil
	}
	if e.renderer != nil {
		e.renderer.Reset()
		e.renderer = nil
	}
	e.holder.Clear()
}
