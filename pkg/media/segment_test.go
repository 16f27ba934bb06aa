package media

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore реализация ScratchStore в памяти для тестов.
type memStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	next    int
	deletes int
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Write(data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", fmt.Errorf("диск недоступен")
	}
	s.next++
	handle := fmt.Sprintf("seg-%d", s.next)
	s.files[handle] = append([]byte(nil), data...)
	return handle, nil
}

func (s *memStore) Delete(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, handle)
	s.deletes++
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *memStore) get(handle string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[handle]
}

// sample читает int16 LE сэмпл с указанным индексом.
func sample(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

// TestSegmentBuilder проверяет сборку сегмента: склейку партии,
// fade на границах, WAV контейнер и длительность.
func TestSegmentBuilder(t *testing.T) {
	store := newMemStore()
	cfg := DefaultConfig().withDefaults()
	cfg.FadeDuration = 1 * time.Millisecond
	builder := segmentBuilder{cfg: cfg, store: store}

	// два кадра по 40ms с постоянным уровнем
	frame := make([]byte, cfg.Format.FrameBytes(40*time.Millisecond))
	for i := 0; i+1 < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(uint16(10000)))
	}

	seg, err := builder.build([][]byte{frame, frame})
	require.NoError(t, err)
	assert.Equal(t, 80*time.Millisecond, seg.Duration)

	format, pcm, err := DecodeWAV(store.get(seg.Handle))
	require.NoError(t, err)
	assert.Equal(t, cfg.Format, format)
	require.Equal(t, 2*len(frame), len(pcm))

	// fade-in: первый сэмпл обнулен, уровень растет
	assert.Equal(t, int16(0), sample(pcm, 0))
	assert.Less(t, sample(pcm, 1), int16(10000))
	// середина без изменений
	assert.Equal(t, int16(10000), sample(pcm, len(pcm)/4))
	// fade-out: последний сэмпл почти нулевой
	last := len(pcm)/2 - 1
	assert.Less(t, sample(pcm, last), int16(200))
}

// TestSegmentBuilderErrors проверяет отбраковку пустых партий и
// ошибок записи.
func TestSegmentBuilderErrors(t *testing.T) {
	store := newMemStore()
	builder := segmentBuilder{cfg: DefaultConfig().withDefaults(), store: store}

	_, err := builder.build(nil)
	assert.Error(t, err)

	store.failAll = true
	_, err = builder.build([][]byte{make([]byte, 320)})
	assert.Error(t, err)
}

// TestSegmentQueueBound проверяет инвариант очереди: длина никогда
// не превышает ограничение, вытесненные сегменты теряют файлы.
func TestSegmentQueueBound(t *testing.T) {
	store := newMemStore()
	q := &segmentQueue{bound: 3, store: store, log: slog.Default()}

	var handles []string
	for i := 0; i < 5; i++ {
		h, err := store.Write([]byte{byte(i)})
		require.NoError(t, err)
		handles = append(handles, h)
		q.append(Segment{Handle: h, Duration: time.Millisecond})
		assert.LessOrEqual(t, q.length(), 3, "очередь вышла за ограничение")
	}

	// вытеснены два старейших, их файлы удалены
	assert.Equal(t, 3, q.length())
	assert.Nil(t, store.get(handles[0]))
	assert.Nil(t, store.get(handles[1]))
	assert.NotNil(t, store.get(handles[2]))

	// порядок извлечения FIFO
	seg, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, handles[2], seg.Handle)

	// извлеченным сегментом владеет вызывающий
	require.NoError(t, store.Delete(seg.Handle))

	q.clear()
	assert.Equal(t, 0, q.length())
	assert.Equal(t, 0, store.count(), "после clear не должно остаться файлов")
}

// TestApplyFadeShortBuffer проверяет буфер короче двух fade окон:
// ramp ужимается до половины буфера без паники.
func TestApplyFadeShortBuffer(t *testing.T) {
	f := DefaultFormat()
	pcm := make([]byte, 8) // 4 сэмпла
	for i := 0; i+1 < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], 1000)
	}
	applyFade(pcm, f, 100*time.Millisecond)
	assert.Equal(t, int16(0), sample(pcm, 0))
	assert.Equal(t, int16(0), sample(pcm, 3))
}
