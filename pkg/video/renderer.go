package video

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // кадры приходят как JPEG
	_ "image/png"
	"log/slog"
	"sync"
)

// Renderer отрисовывает удаленные видео кадры на закадровой
// поверхности. Поверхность создается лениво при первом кадре под
// размер области отображения и переиспользуется; каждый новый кадр
// полностью замещает предыдущий.
type Renderer struct {
	bounds image.Rectangle
	log    *slog.Logger

	mu      sync.RWMutex
	surface *image.RGBA
}

// NewRenderer создает renderer под область отображения заданного размера.
func NewRenderer(width, height int, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		bounds: image.Rect(0, 0, width, height),
		log:    log.With("component", "video_renderer"),
	}
}

// Render декодирует байты кадра и отрисовывает его, замещая
// предыдущий. Ошибка декодирования отбрасывает кадр.
func (r *Renderer) Render(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("video: декодирование кадра: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface == nil {
		r.surface = image.NewRGBA(r.bounds)
	}
	draw.Draw(r.surface, r.surface.Bounds(), img, img.Bounds().Min, draw.Src)
	return nil
}

// Frame возвращает текущую поверхность или nil, если кадров еще не было.
// Поверхность принадлежит renderer и перерисовывается следующим кадром.
func (r *Renderer) Frame() *image.RGBA {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.surface
}

// Reset отбрасывает поверхность; следующая Render создаст ее заново.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface = nil
}
