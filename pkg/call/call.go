package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
)

// Status представляет статус звонка. Значения совпадают с состояниями FSM.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusOutgoing Status = "outgoing"
	StatusRinging  Status = "ringing"
	StatusIncoming Status = "incoming"
	StatusAccepted Status = "accepted"
	StatusInCall   Status = "in_call"
	StatusEnded    Status = "ended"
	StatusFailed   Status = "failed"
)

// Terminal сообщает, является ли статус терминальным.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// Direction направление звонка
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

func (d Direction) String() string {
	if d == DirectionIncoming {
		return "incoming"
	}
	return "outgoing"
}

// MediaKind вид медиа звонка
type MediaKind string

const (
	MediaVoice MediaKind = "voice"
	MediaVideo MediaKind = "video"
)

// События FSM звонка.
// Локальные: initiate, bind, accept_ok, media_ready, hangup.
// Удаленные: remote_accept, remote_end.
// Ошибочные: fail.
const (
	eventInitiate     = "initiate"
	eventBind         = "bind"
	eventRemoteAccept = "remote_accept"
	eventAcceptOK     = "accept_ok"
	eventMediaReady   = "media_ready"
	eventHangup       = "hangup"
	eventRemoteEnd    = "remote_end"
	eventFail         = "fail"
)

// Call представляет один звонок: идентичность плюс автомат статуса.
// Идентификатор появляется после создания записи на сервере (исходящий)
// или приходит вместе с приглашением (входящий).
type Call struct {
	mu        sync.RWMutex
	id        string
	peerID    string
	kind      MediaKind
	direction Direction
	machine   *fsm.FSM
}

// newStateMachine создает FSM статуса звонка.
// ringing достижим только из outgoing; incoming может перейти
// сразу в accepted или ended.
func newStateMachine(initial Status) *fsm.FSM {
	nonTerminal := []string{
		string(StatusOutgoing), string(StatusRinging),
		string(StatusIncoming), string(StatusAccepted), string(StatusInCall),
	}
	return fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: eventInitiate, Src: []string{string(StatusIdle)}, Dst: string(StatusOutgoing)},
			{Name: eventBind, Src: []string{string(StatusOutgoing)}, Dst: string(StatusRinging)},
			{Name: eventRemoteAccept, Src: []string{string(StatusOutgoing), string(StatusRinging)}, Dst: string(StatusAccepted)},
			{Name: eventAcceptOK, Src: []string{string(StatusIncoming)}, Dst: string(StatusAccepted)},
			{Name: eventMediaReady, Src: []string{string(StatusAccepted)}, Dst: string(StatusInCall)},
			{Name: eventHangup, Src: nonTerminal, Dst: string(StatusEnded)},
			{Name: eventRemoteEnd, Src: nonTerminal, Dst: string(StatusEnded)},
			{Name: eventFail, Src: nonTerminal, Dst: string(StatusFailed)},
		}, nil,
	)
}

// NewOutgoing создает исходящий звонок к указанному абоненту.
// Идентификатора звонка еще нет - он привязывается через Bind после
// создания записи на сервере.
func NewOutgoing(peerID string, kind MediaKind) *Call {
	c := &Call{
		peerID:    peerID,
		kind:      kind,
		direction: DirectionOutgoing,
		machine:   newStateMachine(StatusIdle),
	}
	// Переход idle -> outgoing всегда допустим на свежем автомате
	_ = c.machine.Event(context.Background(), eventInitiate)
	return c
}

// NewIncoming создает входящий звонок из полученного приглашения.
func NewIncoming(id, peerID string, kind MediaKind) *Call {
	return &Call{
		id:        id,
		peerID:    peerID,
		kind:      kind,
		direction: DirectionIncoming,
		machine:   newStateMachine(StatusIncoming),
	}
}

// ID возвращает идентификатор звонка (пустой до Bind для исходящих).
func (c *Call) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// PeerID возвращает идентификатор удаленного абонента.
func (c *Call) PeerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerID
}

// Kind возвращает вид медиа звонка.
func (c *Call) Kind() MediaKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// Direction возвращает направление звонка.
func (c *Call) Direction() Direction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.direction
}

// Status возвращает текущий статус звонка.
func (c *Call) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status(c.machine.Current())
}

// MatchesID сообщает, относится ли событие с данным идентификатором
// к этому звонку. События с чужим идентификатором игнорируются.
func (c *Call) MatchesID(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id != "" && c.id == id
}

// Bind привязывает идентификатор созданной записи и переводит
// исходящий звонок в ringing.
func (c *Call) Bind(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != "" {
		return fmt.Errorf("call: идентификатор уже привязан: %s", c.id)
	}
	if err := c.machine.Event(context.Background(), eventBind); err != nil {
		return fmt.Errorf("call: привязка идентификатора: %w", err)
	}
	c.id = id
	return nil
}

// RemoteAccepted применяет удаленное событие call.accepted.
func (c *Call) RemoteAccepted() error {
	return c.fire(eventRemoteAccept)
}

// LocalAccepted фиксирует успешный запрос подтверждения входящего звонка.
func (c *Call) LocalAccepted() error {
	return c.fire(eventAcceptOK)
}

// MediaReady фиксирует завершение захвата аудио устройства: accepted -> in_call.
func (c *Call) MediaReady() error {
	return c.fire(eventMediaReady)
}

// End переводит звонок в ended из любого нетерминального состояния.
// Используется и для локального hangup/reject/cancel, и для удаленных
// rejected/canceled/ended.
func (c *Call) End() error {
	return c.fire(eventRemoteEnd)
}

// Fail переводит звонок в failed из любого нетерминального состояния.
func (c *Call) Fail() error {
	return c.fire(eventFail)
}

func (c *Call) fire(event string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.Event(context.Background(), event); err != nil {
		return fmt.Errorf("call: событие %s из %s: %w", event, c.machine.Current(), err)
	}
	return nil
}
