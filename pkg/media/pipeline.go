package media

import (
	"log/slog"
	"sync"
	"time"
)

// События цикла диспетчеризации конвейера
type (
	evFrame     struct{ seq uint64; pcm []byte }
	evFlush     struct{ gen uint64 }
	evEnded     struct{ slot int }
	evFadeStart struct{ gen uint64 }
	evFadeStep  struct{ gen uint64 }
	evSnapshot  struct{ reply chan Snapshot }
)

// Snapshot моментальное состояние конвейера для диагностики и тестов.
type Snapshot struct {
	JitterLength int
	QueueLength  int
	Playing      bool
	EverStarted  bool
	FlushArmed   bool
}

// Pipeline связывает входящий аудио тракт одного звонка: jitter
// buffer, шаг слияния, сборку сегментов и планировщик воспроизведения.
//
// Все состояние принадлежит одной горутине run; внешние вызовы
// (кадры сигнального канала, колбэки устройства вывода, таймеры)
// публикуют события в канал и обрабатываются последовательно.
type Pipeline struct {
	cfg     Config
	callID  string
	log     *slog.Logger
	store   ScratchStore
	metrics *Metrics

	events chan any
	quit   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// Принадлежит только горутине run
	jitter     jitterBuffer
	builder    segmentBuilder
	play       *playout
	flushGen   uint64
	flushArmed bool
	flushTimer *time.Timer
}

// NewPipeline создает конвейер звонка callID поверх scratch хранилища
// и двух слотов вывода (второй нужен только для crossfade).
func NewPipeline(callID string, cfg Config, store ScratchStore, outputs [2]OutputDevice) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, NewPipelineError(ErrorCodeConfigInvalid, callID, "конфигурация конвейера", err)
	}
	p := &Pipeline{
		cfg:    cfg,
		callID: callID,
		log:    cfg.Logger.With("component", "pipeline", "call_id", callID),
		store:  store,
		events: make(chan any, cfg.EventBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if cfg.Registerer != nil {
		p.metrics = NewMetrics(cfg.Registerer)
	}
	p.builder = segmentBuilder{cfg: cfg, store: store}
	p.play = newPlayout(cfg, outputs, store, p.log, p.postInternal, p.metrics)
	for i, out := range outputs {
		if out == nil {
			continue
		}
		slot := i
		out.OnEnded(func() {
			p.postInternal(evEnded{slot: slot})
		})
	}
	return p, nil
}

// Start запускает горутину диспетчеризации. Повторные вызовы не ошибка.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

// PushFrame отдает конвейеру пришедший кадр. Безопасен из любой
// горутины; при переполнении канала событий кадр отбрасывается -
// память не растет, когда сеть сильно отстает.
func (p *Pipeline) PushFrame(seq uint64, pcm []byte) {
	select {
	case p.events <- evFrame{seq: seq, pcm: pcm}:
	case <-p.quit:
	default:
		p.log.Warn("канал событий переполнен, кадр отброшен", "seq", seq)
		if p.metrics != nil {
			p.metrics.FramesDropped.Inc()
		}
	}
}

// Snapshot возвращает моментальное состояние конвейера.
// После Close возвращает нулевое значение.
func (p *Pipeline) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case p.events <- evSnapshot{reply: reply}:
		select {
		case s := <-reply:
			return s
		case <-p.done:
			return Snapshot{}
		}
	case <-p.quit:
		return Snapshot{}
	}
}

// Close выполняет teardown и дожидается остановки горутины.
// Идемпотентен: повторные вызовы сразу возвращаются после первого.
func (p *Pipeline) Close() error {
	p.startOnce.Do(func() {
		go p.run()
	})
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	<-p.done
	return nil
}

// postInternal публикует внутреннее событие (таймер, колбэк вывода).
func (p *Pipeline) postInternal(ev any) {
	select {
	case p.events <- ev:
	case <-p.quit:
	}
}

func (p *Pipeline) run() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			p.teardown()
			return
		case ev := <-p.events:
			p.dispatch(ev)
		}
	}
}

func (p *Pipeline) dispatch(ev any) {
	switch e := ev.(type) {
	case evFrame:
		p.handleFrame(e.seq, e.pcm)
	case evFlush:
		p.handleFlush(e.gen)
	case evEnded:
		p.play.onEnded(e.slot)
		p.observeQueue()
	case evFadeStart:
		p.play.onFadeStart(e.gen)
	case evFadeStep:
		p.play.onFadeStep(e.gen)
	case evSnapshot:
		e.reply <- Snapshot{
			JitterLength: p.jitter.length(),
			QueueLength:  p.play.queue.length(),
			Playing:      !p.play.idle(),
			EverStarted:  p.play.everStarted,
			FlushArmed:   p.flushArmed,
		}
	}
}

// handleFrame ставит кадр в jitter buffer и применяет политику
// слияния: по размеру партии немедленно, иначе взводит flush таймер.
func (p *Pipeline) handleFrame(seq uint64, pcm []byte) {
	if len(pcm) == 0 {
		if p.metrics != nil {
			p.metrics.DecodeErrors.Inc()
		}
		return
	}
	if p.jitter.push(seq, pcm) {
		p.log.Warn("кадр пришел с нарушением порядка", "seq", seq)
		if p.metrics != nil {
			p.metrics.OutOfOrder.Inc()
		}
	}
	if p.metrics != nil {
		p.metrics.FramesReceived.Inc()
	}

	if p.jitter.length() >= p.cfg.BatchSize {
		p.merge(p.jitter.popBatch(p.cfg.BatchSize), false)
		return
	}
	if !p.flushArmed {
		p.armFlush()
	}
}

// armFlush взводит flush таймер. Поколение flushGen отсекает
// срабатывания таймеров, переживших перевзвод или teardown.
func (p *Pipeline) armFlush() {
	p.flushGen++
	gen := p.flushGen
	p.flushArmed = true
	p.flushTimer = time.AfterFunc(p.cfg.FlushDelay, func() {
		p.postInternal(evFlush{gen: gen})
	})
}

// handleFlush сливает накопленную неполную партию, если достигнут
// минимальный порог: один кадр до самого первого воспроизведения,
// два после. Иначе таймер перевзводится.
func (p *Pipeline) handleFlush(gen uint64) {
	if gen != p.flushGen {
		return
	}
	p.flushArmed = false
	if p.jitter.length() == 0 {
		// партия уже слита по размеру, ждать нечего - таймер гаснет
		// до прихода следующего кадра
		return
	}

	minFrames := p.cfg.MinFlushBeforeStart
	if p.play.everStarted {
		minFrames = p.cfg.MinFlushSteady
	}
	if p.jitter.length() < minFrames {
		if p.metrics != nil {
			p.metrics.DeferredFlushes.Inc()
		}
		p.armFlush()
		return
	}
	p.merge(p.jitter.drain(), true)
}

// merge склеивает партию в сегмент и передает его планировщику.
// Испорченная партия отбрасывается, конвейер продолжает со следующей.
func (p *Pipeline) merge(batch [][]byte, byTimer bool) {
	seg, err := p.builder.build(batch)
	if err != nil {
		p.log.Warn("партия кадров отброшена", "frames", len(batch), "error", err)
		if p.metrics != nil {
			p.metrics.BatchesDropped.Inc()
		}
		return
	}
	if p.metrics != nil {
		p.metrics.Merges.Inc()
		if byTimer {
			p.metrics.TimerFlushes.Inc()
		}
		p.metrics.SegmentDuration.Observe(seg.Duration.Seconds())
	}
	if dropped := p.play.enqueue(seg); dropped > 0 && p.metrics != nil {
		p.metrics.QueueDrops.Add(float64(dropped))
	}
	p.play.notify()
	p.observeQueue()
}

func (p *Pipeline) observeQueue() {
	if p.metrics != nil {
		p.metrics.QueueLength.Set(float64(p.play.queue.length()))
	}
}

// teardown снимает таймеры, опустошает jitter buffer и разбирает
// планировщик. Вызывается ровно один раз из run при закрытии.
func (p *Pipeline) teardown() {
	if p.flushTimer != nil {
		p.flushTimer.Stop()
		p.flushTimer = nil
	}
	p.flushGen++
	p.flushArmed = false
	p.jitter.reset()
	p.play.teardown()
	p.observeQueue()
}
