package media

import (
	"encoding/binary"
	"fmt"
)

// wavHeaderSize размер канонического RIFF/WAVE заголовка для PCM
const wavHeaderSize = 44

// EncodeWAV оборачивает сырой PCM в минимальный несжатый WAV контейнер.
// Заголовок содержит корректные счетчики байт для заданного формата.
func EncodeWAV(pcm []byte, f Format) []byte {
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // размер fmt чанка
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM без сжатия
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// DecodeWAV разбирает минимальный WAV контейнер, записанный EncodeWAV.
// Возвращает формат и PCM данные без копирования.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < wavHeaderSize {
		return Format{}, nil, fmt.Errorf("media: WAV короче заголовка: %d байт", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("media: не WAV контейнер")
	}
	if audioFormat := binary.LittleEndian.Uint16(data[20:22]); audioFormat != 1 {
		return Format{}, nil, fmt.Errorf("media: неподдерживаемый формат WAV: %d", audioFormat)
	}
	f := Format{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
	}
	dataLen := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+dataLen > len(data) {
		return Format{}, nil, fmt.Errorf("media: WAV data чанк обрезан: заявлено %d, есть %d",
			dataLen, len(data)-wavHeaderSize)
	}
	return f, data[wavHeaderSize : wavHeaderSize+dataLen], nil
}
