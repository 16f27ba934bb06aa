package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeWAV проверяет контейнер: корректность заголовка,
// сохранность PCM данных и вычисление длительности.
func TestEncodeDecodeWAV(t *testing.T) {
	format := DefaultFormat()
	// 100ms звука: 16000 Гц * 2 байта * 0.1с
	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	wav := EncodeWAV(pcm, format)
	require.Equal(t, wavHeaderSize+len(pcm), len(wav))

	gotFormat, gotPCM, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, format, gotFormat)
	assert.Equal(t, pcm, gotPCM)
	assert.Equal(t, 100*time.Millisecond, format.PCMDuration(len(gotPCM)))
}

// TestDecodeWAVInvalid проверяет отбраковку испорченных контейнеров.
func TestDecodeWAVInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"короче заголовка", make([]byte, 10)},
		{"не RIFF", make([]byte, wavHeaderSize)},
		{"обрезанный data чанк", func() []byte {
			wav := EncodeWAV(make([]byte, 1000), DefaultFormat())
			return wav[:len(wav)-100]
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeWAV(tt.data)
			assert.Error(t, err)
		})
	}
}

// TestFormatFrameBytes проверяет расчет размера кадра.
func TestFormatFrameBytes(t *testing.T) {
	f := DefaultFormat()
	assert.Equal(t, 32000, f.BytesPerSecond())
	assert.Equal(t, 5120, f.FrameBytes(160*time.Millisecond))
	assert.Equal(t, 2560, f.FrameBytes(80*time.Millisecond))
}
