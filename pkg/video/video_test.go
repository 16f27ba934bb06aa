package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCamera снимает кадры во временные файлы с заданным содержимым.
type fakeCamera struct {
	mu       sync.Mutex
	data     []byte
	failure  error
	shots    int
	switches int
	paths    []string
}

func (c *fakeCamera) CaptureStill(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure != nil {
		return "", c.failure
	}
	f, err := os.CreateTemp("", "still_*.jpg")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(c.data); err != nil {
		f.Close()
		return "", err
	}
	f.Close()
	c.shots++
	c.paths = append(c.paths, f.Name())
	return f.Name(), nil
}

func (c *fakeCamera) Switch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switches++
	return nil
}

func (c *fakeCamera) tempPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

// encodeJPEG кодирует одноцветное изображение для тестовых кадров.
func encodeJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// TestSenderLoop проверяет периодическую отправку кадров и удаление
// временных файлов после каждой отправки.
func TestSenderLoop(t *testing.T) {
	cam := &fakeCamera{data: []byte("кадр")}
	var mu sync.Mutex
	var sent [][]byte
	send := func(_ context.Context, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, data)
		return nil
	}

	s := NewSender(cam, 10*time.Millisecond, send, nil)
	s.Start()
	s.Start() // повторный Start не должен плодить циклы

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop() // идемпотентен

	mu.Lock()
	for _, data := range sent {
		assert.Equal(t, []byte("кадр"), data)
	}
	mu.Unlock()

	for _, path := range cam.tempPaths() {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "временный файл %s должен быть удален", path)
	}
}

// TestSenderCaptureFailure ошибка съемки не останавливает цикл.
func TestSenderCaptureFailure(t *testing.T) {
	cam := &fakeCamera{failure: fmt.Errorf("камера занята")}
	var count int
	var mu sync.Mutex
	send := func(_ context.Context, _ []byte) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	}

	s := NewSender(cam, 10*time.Millisecond, send, nil)
	s.Start()
	time.Sleep(50 * time.Millisecond)

	// камера восстановилась - кадры пошли
	cam.mu.Lock()
	cam.failure = nil
	cam.data = []byte("ок")
	cam.mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count > 0
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

// TestSenderSwitchCamera переключение пробрасывается устройству.
func TestSenderSwitchCamera(t *testing.T) {
	cam := &fakeCamera{}
	s := NewSender(cam, 0, func(context.Context, []byte) error { return nil }, nil)
	require.NoError(t, s.SwitchCamera())
	assert.Equal(t, 1, cam.switches)
}

// TestRendererReplace каждый кадр полностью замещает предыдущий на
// той же поверхности.
func TestRendererReplace(t *testing.T) {
	r := NewRenderer(32, 24, nil)
	assert.Nil(t, r.Frame(), "до первого кадра поверхности нет")

	require.NoError(t, r.Render(encodeJPEG(t, 32, 24, color.RGBA{R: 255, A: 255})))
	first := r.Frame()
	require.NotNil(t, first)
	assert.Equal(t, image.Rect(0, 0, 32, 24), first.Bounds())
	rc, _, _, _ := first.At(5, 5).RGBA()
	assert.Greater(t, rc, uint32(0x8000), "первый кадр красный")

	require.NoError(t, r.Render(encodeJPEG(t, 32, 24, color.RGBA{B: 255, A: 255})))
	second := r.Frame()
	assert.Same(t, first, second, "поверхность переиспользуется")
	rc2, _, bc2, _ := second.At(5, 5).RGBA()
	assert.Less(t, rc2, uint32(0x4000), "второй кадр замещает первый")
	assert.Greater(t, bc2, uint32(0x8000))
}

// TestRendererInvalidFrame битые байты отбрасываются без следа.
func TestRendererInvalidFrame(t *testing.T) {
	r := NewRenderer(16, 16, nil)
	assert.Error(t, r.Render([]byte("не изображение")))
	assert.Nil(t, r.Frame())
}

// TestRendererReset после сброса поверхность создается заново.
func TestRendererReset(t *testing.T) {
	r := NewRenderer(16, 16, nil)
	require.NoError(t, r.Render(encodeJPEG(t, 16, 16, color.White)))
	require.NotNil(t, r.Frame())
	r.Reset()
	assert.Nil(t, r.Frame())
	require.NoError(t, r.Render(encodeJPEG(t, 16, 16, color.Black)))
	assert.NotNil(t, r.Frame())
}
