package call

import "sync"

// Holder хранит текущий активный звонок, если он есть.
// Явное владеемое значение с операциями Set/Get/Clear вместо
// изменяемого глобального состояния: holder принадлежит контроллеру
// экрана звонка и передается явно.
type Holder struct {
	mu     sync.RWMutex
	active *Call
}

// NewHolder создает пустой holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Set устанавливает активный звонок.
func (h *Holder) Set(c *Call) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = c
}

// Get возвращает активный звонок или nil.
func (h *Holder) Get() *Call {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// Clear сбрасывает активный звонок. Безопасен на пустом holder.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = nil
}
