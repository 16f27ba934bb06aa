// Package media определяет интерфейсы внешних устройств аудио тракта
package media

import "time"

// Format описывает формат сырого PCM потока.
type Format struct {
	SampleRate    int // частота дискретизации, Гц
	Channels      int // количество каналов
	BitsPerSample int // разрядность сэмпла
}

// DefaultFormat возвращает формат тракта по умолчанию: mono 16kHz 16-bit.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond возвращает количество байт PCM на секунду звука.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// FrameBytes возвращает размер кадра указанной длительности в байтах.
func (f Format) FrameBytes(d time.Duration) int {
	return int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
}

// PCMDuration возвращает точную длительность PCM буфера данного формата.
func (f Format) PCMDuration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// CaptureDevice абстрагирует микрофон. Устройство доставляет кадры
// фиксированной длительности через колбэк до вызова Stop.
type CaptureDevice interface {
	// Start захватывает устройство и начинает доставку кадров.
	// Колбэк вызывается из горутины устройства.
	Start(format Format, frameDuration time.Duration, onFrame func(pcm []byte)) error

	// Stop останавливает захват и освобождает устройство. Идемпотентен.
	Stop() error
}

// OutputDevice абстрагирует один слот воспроизведения. Для crossfade
// планировщик использует два независимых слота.
type OutputDevice interface {
	// SetSource устанавливает источник - путь к WAV файлу сегмента.
	SetSource(path string) error

	// Play начинает воспроизведение текущего источника.
	Play() error

	// Stop останавливает воспроизведение. Идемпотентен.
	Stop() error

	// SetVolume устанавливает громкость слота в диапазоне [0.0, 1.0].
	SetVolume(v float64) error

	// OnEnded регистрирует колбэк естественного окончания источника.
	OnEnded(fn func())
}

// Route маршрут вывода звука
type Route int

const (
	RouteEarpiece Route = iota // разговорный динамик
	RouteSpeaker               // громкая связь
)

func (r Route) String() string {
	if r == RouteSpeaker {
		return "speaker"
	}
	return "earpiece"
}

// RoutableOutput опционально реализуется устройством вывода,
// поддерживающим переключение earpiece/speaker.
type RoutableOutput interface {
	SetRoute(r Route) error
}

// ScratchStore хранит временные файлы сегментов и видео кадров.
// Ничего долговременного в нем не живет.
type ScratchStore interface {
	// Write записывает данные в свежий файл и возвращает его handle (путь).
	Write(data []byte) (handle string, err error)

	// Delete удаляет файл по handle. Удаление отсутствующего файла не ошибка.
	Delete(handle string) error
}
