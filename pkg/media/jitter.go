package media

// jitterBuffer накапливает пришедшие кадры в порядке прихода.
// Транспорт считается упорядоченным, пересортировка не выполняется;
// нарушения монотонности seq только подсчитываются. Буфер принадлежит
// исключительно циклу событий конвейера и не нуждается в блокировках.
//
// Инвариант: буфер опустошается при каждом слиянии по размеру партии
// и при каждом flush по таймеру - кадры никогда не задерживаются
// в нем неограниченно.
type jitterBuffer struct {
	frames  [][]byte
	lastSeq uint64
	gotAny  bool
}

// push добавляет кадр и сообщает, пришел ли он с нарушением порядка seq.
func (jb *jitterBuffer) push(seq uint64, pcm []byte) (outOfOrder bool) {
	if jb.gotAny && seq <= jb.lastSeq {
		outOfOrder = true
	}
	if !jb.gotAny || seq > jb.lastSeq {
		jb.lastSeq = seq
	}
	jb.gotAny = true
	jb.frames = append(jb.frames, pcm)
	return outOfOrder
}

// length возвращает количество накопленных кадров.
func (jb *jitterBuffer) length() int {
	return len(jb.frames)
}

// popBatch извлекает n старейших кадров в порядке прихода.
func (jb *jitterBuffer) popBatch(n int) [][]byte {
	if n > len(jb.frames) {
		n = len(jb.frames)
	}
	batch := jb.frames[:n:n]
	jb.frames = append([][]byte(nil), jb.frames[n:]...)
	return batch
}

// drain извлекает все накопленные кадры.
func (jb *jitterBuffer) drain() [][]byte {
	return jb.popBatch(len(jb.frames))
}

// reset отбрасывает содержимое буфера.
func (jb *jitterBuffer) reset() {
	jb.frames = nil
}
