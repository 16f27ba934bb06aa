package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Handler обрабатывает один входящий конверт.
// Обработчики одного канала вызываются последовательно в порядке
// прихода конвертов - параллельной доставки нет.
type Handler func(Envelope)

// Channel определяет двунаправленный сигнальный канал.
type Channel interface {
	// Send отправляет конверт. Потокобезопасен.
	Send(ctx context.Context, env Envelope) error

	// Handle регистрирует обработчик для типа конверта.
	// Конверты без обработчика молча отбрасываются.
	Handle(envType string, h Handler)

	// Close закрывает канал. Идемпотентен.
	Close() error
}

// WSChannel реализует Channel поверх WebSocket соединения.
// Одна горутина читает соединение и диспетчеризует конверты
// зарегистрированным обработчикам в порядке прихода.
type WSChannel struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex // websocket допускает только одного писателя

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	closeOnce sync.Once
	closed    chan struct{}
}

// DialWS устанавливает WebSocket соединение с сигнальным сервером
// и запускает цикл чтения.
func DialWS(ctx context.Context, url string, log *slog.Logger) (*WSChannel, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: подключение к %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	ch := &WSChannel{
		conn:     conn,
		log:      log.With("component", "signaling"),
		handlers: make(map[string]Handler),
		closed:   make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

// Send отправляет конверт в соединение.
func (c *WSChannel) Send(ctx context.Context, env Envelope) error {
	select {
	case <-c.closed:
		return fmt.Errorf("signaling: канал закрыт")
	default:
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("signaling: marshal конверта: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("signaling: установка дедлайна: %w", err)
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("signaling: отправка конверта %s: %w", env.Type, err)
	}
	return nil
}

// Handle регистрирует обработчик для типа конверта.
func (c *WSChannel) Handle(envType string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[envType] = h
}

// Close закрывает соединение и останавливает цикл чтения.
func (c *WSChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
	return nil
}

func (c *WSChannel) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warn("чтение сигнального канала прервано", "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("поврежденный конверт отброшен", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *WSChannel) dispatch(env Envelope) {
	c.handlersMu.RLock()
	h := c.handlers[env.Type]
	c.handlersMu.RUnlock()
	if h != nil {
		h(env)
	}
}
