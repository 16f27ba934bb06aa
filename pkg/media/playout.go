package media

import (
	"context"
	"log/slog"
	"time"

	"github.com/looplab/fsm"
)

// Состояния и события автомата планировщика воспроизведения.
const (
	playoutIdle    = "idle"
	playoutPlaying = "playing"

	playoutEventStart   = "start"
	playoutEventDrained = "drained"
)

// playout реализует планировщик воспроизведения: явный автомат
// idle/playing, ограниченная очередь сегментов и опциональный
// crossfade между двумя слотами вывода.
//
// Все методы вызываются только из цикла событий конвейера, поэтому
// состояние не защищается блокировками. Таймеры не трогают состояние
// сами - они публикуют события через post, а устаревшие срабатывания
// отсекаются поколением playGen.
type playout struct {
	cfg     Config
	outputs [2]OutputDevice
	store   ScratchStore
	log     *slog.Logger
	post    func(ev any)
	metrics *Metrics

	machine     *fsm.FSM
	queue       *segmentQueue
	everStarted bool

	activeSlot int
	current    Segment
	playGen    uint64

	// Состояние активного crossfade
	fadeActive  bool
	fadeStep    int
	fadeSlot    int
	fadeSegment Segment
	fadeEnded   bool
	fadeTimer   *time.Timer
	stepTimer   *time.Timer
}

func newPlayout(cfg Config, outputs [2]OutputDevice, store ScratchStore, log *slog.Logger, post func(ev any), m *Metrics) *playout {
	return &playout{
		cfg:     cfg,
		outputs: outputs,
		store:   store,
		log:     log.With("component", "playout"),
		post:    post,
		metrics: m,
		machine: fsm.NewFSM(
			playoutIdle,
			fsm.Events{
				{Name: playoutEventStart, Src: []string{playoutIdle}, Dst: playoutPlaying},
				{Name: playoutEventDrained, Src: []string{playoutPlaying}, Dst: playoutIdle},
			}, nil,
		),
		queue: &segmentQueue{bound: cfg.QueueBound, store: store, log: log},
	}
}

func (p *playout) idle() bool {
	return p.machine.Current() == playoutIdle
}

// enqueue ставит сегмент в очередь и возвращает количество вытесненных.
func (p *playout) enqueue(seg Segment) int {
	return p.queue.append(seg)
}

// notify реагирует на пополнение очереди: в idle старт разрешен после
// достижения prebuffer порога либо если воспроизведение уже когда-то
// начиналось.
func (p *playout) notify() {
	if !p.idle() {
		return
	}
	if !p.everStarted && p.queue.length() < p.cfg.Prebuffer {
		return
	}
	p.startNext()
}

// startNext берет старейший сегмент очереди и запускает его на
// активном слоте.
func (p *playout) startNext() {
	seg, ok := p.queue.pop()
	if !ok {
		if !p.idle() {
			_ = p.machine.Event(context.Background(), playoutEventDrained)
		}
		p.current = Segment{}
		return
	}
	p.current = seg
	p.playGen++
	p.everStarted = true
	if p.idle() {
		_ = p.machine.Event(context.Background(), playoutEventStart)
	}

	out := p.outputs[p.activeSlot]
	if err := p.startSlot(out, seg, 1.0); err != nil {
		p.log.Warn("запуск сегмента", "handle", seg.Handle, "error", err)
		p.deleteSegment(seg)
		p.startNext()
		return
	}
	p.armCrossfade(seg.Duration - p.cfg.CrossfadeOverlap)
}

func (p *playout) startSlot(out OutputDevice, seg Segment, volume float64) error {
	if err := out.SetSource(seg.Handle); err != nil {
		return err
	}
	if err := out.SetVolume(volume); err != nil {
		return err
	}
	return out.Play()
}

// armCrossfade взводит таймер упреждающего перехода за
// CrossfadeOverlap до естественного конца текущего сегмента.
func (p *playout) armCrossfade(delay time.Duration) {
	if !p.cfg.CrossfadeEnabled {
		return
	}
	if delay <= 0 {
		return
	}
	gen := p.playGen
	p.fadeTimer = time.AfterFunc(delay, func() {
		p.post(evFadeStart{gen: gen})
	})
}

// onEnded обрабатывает естественное окончание источника слота.
func (p *playout) onEnded(slot int) {
	if p.idle() {
		return
	}
	if p.fadeActive && slot == p.fadeSlot {
		// Новый сегмент короче перекрытия и доиграл еще во время ramp.
		// Защелкиваем факт: finishFade продвинет очередь сразу после
		// переключения, иначе воспроизведение встанет на отыгранном
		// сегменте без единого таймера.
		p.fadeEnded = true
		return
	}
	if slot != p.activeSlot {
		return
	}
	if p.fadeActive {
		// Старый сегмент закончился раньше завершения ramp - доводим
		// переход немедленно.
		p.finishFade()
		return
	}
	p.stopFadeTimer()
	p.deleteSegment(p.current)
	p.startNext()
}

// onFadeStart начинает crossfade: следующий сегмент беззвучно
// запускается на втором слоте, дальше громкости меняются ступенями.
func (p *playout) onFadeStart(gen uint64) {
	if gen != p.playGen || p.fadeActive {
		return
	}
	next, ok := p.queue.pop()
	if !ok {
		// Нечем перекрывать - сегмент доиграет до естественного конца.
		return
	}
	p.fadeSlot = 1 - p.activeSlot
	p.fadeSegment = next
	p.fadeStep = 0
	if err := p.startSlot(p.outputs[p.fadeSlot], next, 0); err != nil {
		p.log.Warn("запуск слота crossfade", "handle", next.Handle, "error", err)
		p.deleteSegment(next)
		return
	}
	p.fadeActive = true
	p.armFadeStep(gen)
}

func (p *playout) armFadeStep(gen uint64) {
	interval := p.cfg.CrossfadeOverlap / time.Duration(p.cfg.CrossfadeSteps)
	p.stepTimer = time.AfterFunc(interval, func() {
		p.post(evFadeStep{gen: gen})
	})
}

// onFadeStep выполняет один дискретный шаг ramp громкости.
func (p *playout) onFadeStep(gen uint64) {
	if gen != p.playGen || !p.fadeActive {
		return
	}
	p.fadeStep++
	v := float64(p.fadeStep) / float64(p.cfg.CrossfadeSteps)
	if err := p.outputs[p.fadeSlot].SetVolume(v); err != nil {
		p.log.Warn("громкость нового слота", "error", err)
	}
	if err := p.outputs[p.activeSlot].SetVolume(1 - v); err != nil {
		p.log.Warn("громкость старого слота", "error", err)
	}
	if p.fadeStep < p.cfg.CrossfadeSteps {
		p.armFadeStep(gen)
		return
	}
	p.finishFade()
}

// finishFade завершает переход: старый слот останавливается, его
// сегмент удаляется, новый слот становится текущим.
func (p *playout) finishFade() {
	if !p.fadeActive {
		return
	}
	p.stopStepTimer()
	old := p.activeSlot
	if err := p.outputs[old].Stop(); err != nil {
		p.log.Warn("остановка старого слота", "error", err)
	}
	p.deleteSegment(p.current)
	p.activeSlot = p.fadeSlot
	p.current = p.fadeSegment
	p.fadeSegment = Segment{}
	p.fadeActive = false
	p.playGen++
	if err := p.outputs[p.activeSlot].SetVolume(1); err != nil {
		p.log.Warn("громкость текущего слота", "error", err)
	}
	if p.fadeEnded {
		// Источник нового слота уже иссяк, его evEnded отработан -
		// продвигаемся немедленно.
		p.fadeEnded = false
		p.deleteSegment(p.current)
		p.current = Segment{}
		p.startNext()
		return
	}
	// Новый сегмент играет уже CrossfadeOverlap, перевзводим переход
	// на остаток его длительности.
	p.armCrossfade(p.current.Duration - 2*p.cfg.CrossfadeOverlap)
}

// teardown останавливает оба слота, снимает таймеры, удаляет все
// файлы сегментов и сбрасывает защелки. Идемпотентен и безопасен,
// когда ресурсы не захватывались.
func (p *playout) teardown() {
	p.stopFadeTimer()
	p.stopStepTimer()
	p.playGen++

	for _, out := range p.outputs {
		if out == nil {
			continue
		}
		if err := out.Stop(); err != nil {
			p.log.Warn("остановка слота вывода", "error", err)
		}
	}
	if p.current.Handle != "" {
		p.deleteSegment(p.current)
		p.current = Segment{}
	}
	if p.fadeActive && p.fadeSegment.Handle != "" {
		p.deleteSegment(p.fadeSegment)
		p.fadeSegment = Segment{}
	}
	p.fadeActive = false
	p.fadeEnded = false
	p.queue.clear()
	p.everStarted = false
	p.activeSlot = 0
	p.machine.SetState(playoutIdle)
}

func (p *playout) stopFadeTimer() {
	if p.fadeTimer != nil {
		p.fadeTimer.Stop()
		p.fadeTimer = nil
	}
}

func (p *playout) stopStepTimer() {
	if p.stepTimer != nil {
		p.stepTimer.Stop()
		p.stepTimer = nil
	}
}

func (p *playout) deleteSegment(seg Segment) {
	if seg.Handle == "" {
		return
	}
	if err := p.store.Delete(seg.Handle); err != nil {
		p.log.Warn("удаление файла сегмента", "handle", seg.Handle, "error", err)
	}
}
