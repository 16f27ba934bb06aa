package signaling

import (
	"context"
	"fmt"
	"sync"
)

// MemChannel реализует Channel в памяти. Send доставляет конверт
// обработчикам парного канала в той же горутине вызова, сохраняя
// порядок доставки. Используется в тестах и демо (cmd/loopback).
type MemChannel struct {
	peer *MemChannel

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	closeOnce sync.Once
	closed    chan struct{}
}

// MemPair создает пару связанных каналов в памяти.
func MemPair() (*MemChannel, *MemChannel) {
	a := &MemChannel{handlers: make(map[string]Handler), closed: make(chan struct{})}
	b := &MemChannel{handlers: make(map[string]Handler), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Send доставляет конверт обработчику парного канала.
func (c *MemChannel) Send(_ context.Context, env Envelope) error {
	select {
	case <-c.closed:
		return fmt.Errorf("signaling: канал закрыт")
	default:
	}
	c.peer.handlersMu.RLock()
	h := c.peer.handlers[env.Type]
	c.peer.handlersMu.RUnlock()
	if h != nil {
		h(env)
	}
	return nil
}

// Handle регистрирует обработчик для типа конверта.
func (c *MemChannel) Handle(envType string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[envType] = h
}

// Close закрывает канал. Идемпотентен.
func (c *MemChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
