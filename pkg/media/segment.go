package media

import (
	"log/slog"
	"time"
)

// Segment представляет слитый, готовый к воспроизведению аудио блок:
// WAV файл в scratch хранилище плюс его точная длительность.
// После постановки в очередь сегментом владеет только планировщик
// воспроизведения; файл удаляется после проигрывания или вытеснения.
type Segment struct {
	Handle   string
	Duration time.Duration
}

// segmentBuilder склеивает партию кадров в сегмент:
// конкатенация PCM, симметричный линейный fade на границах,
// WAV контейнер, запись в scratch файл.
type segmentBuilder struct {
	cfg   Config
	store ScratchStore
}

// build собирает сегмент из партии кадров. Партия с нулевым
// суммарным объемом не является сегментом.
func (b *segmentBuilder) build(batch [][]byte) (Segment, error) {
	total := 0
	for _, frame := range batch {
		total += len(frame)
	}
	if total == 0 {
		return Segment{}, NewPipelineError(ErrorCodeFrameDecode, "", "пустая партия кадров", nil)
	}

	pcm := make([]byte, 0, total)
	for _, frame := range batch {
		pcm = append(pcm, frame...)
	}

	applyFade(pcm, b.cfg.Format, b.cfg.FadeDuration)

	handle, err := b.store.Write(EncodeWAV(pcm, b.cfg.Format))
	if err != nil {
		return Segment{}, NewPipelineError(ErrorCodeSegmentWrite, "", "запись scratch файла", err)
	}
	return Segment{Handle: handle, Duration: b.cfg.Format.PCMDuration(len(pcm))}, nil
}

// applyFade накладывает линейный fade-in и fade-out длительностью d
// на границы PCM буфера. Убирает щелчки на стыках сегментов.
// Работает по месту с int16 little-endian сэмплами.
func applyFade(pcm []byte, f Format, d time.Duration) {
	totalSamples := len(pcm) / 2
	fadeSamples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	if fadeSamples*2 > totalSamples {
		fadeSamples = totalSamples / 2
	}
	if fadeSamples <= 0 {
		return
	}
	for i := 0; i < fadeSamples; i++ {
		scaleSample(pcm[i*2:], float64(i)/float64(fadeSamples))
		j := totalSamples - 1 - i
		scaleSample(pcm[j*2:], float64(i)/float64(fadeSamples))
	}
}

// scaleSample умножает один int16 LE сэмпл на коэффициент [0,1].
func scaleSample(b []byte, k float64) {
	s := int16(uint16(b[0]) | uint16(b[1])<<8)
	s = int16(float64(s) * k)
	b[0] = byte(uint16(s))
	b[1] = byte(uint16(s) >> 8)
}

// segmentQueue упорядоченная очередь сегментов, ожидающих
// воспроизведения. Ограничена сверху: при переполнении вытесняются
// старейшие сегменты, их файлы удаляются немедленно.
type segmentQueue struct {
	segments []Segment
	bound    int
	store    ScratchStore
	log      *slog.Logger
}

// append добавляет сегмент и подрезает очередь до ограничения.
// Возвращает количество вытесненных сегментов.
func (q *segmentQueue) append(seg Segment) int {
	q.segments = append(q.segments, seg)
	dropped := 0
	for len(q.segments) > q.bound {
		oldest := q.segments[0]
		q.segments = q.segments[1:]
		if err := q.store.Delete(oldest.Handle); err != nil {
			q.log.Warn("удаление вытесненного сегмента", "handle", oldest.Handle, "error", err)
		}
		dropped++
	}
	return dropped
}

// pop извлекает старейший сегмент. Второе значение false на пустой очереди.
func (q *segmentQueue) pop() (Segment, bool) {
	if len(q.segments) == 0 {
		return Segment{}, false
	}
	seg := q.segments[0]
	q.segments = q.segments[1:]
	return seg, true
}

// length возвращает количество сегментов в очереди.
func (q *segmentQueue) length() int {
	return len(q.segments)
}

// clear удаляет все сегменты очереди вместе с файлами.
func (q *segmentQueue) clear() {
	for _, seg := range q.segments {
		if err := q.store.Delete(seg.Handle); err != nil {
			q.log.Warn("удаление сегмента при teardown", "handle", seg.Handle, "error", err)
		}
	}
	q.segments = nil
}
