package signaling

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Типы входящих и исходящих конвертов сигнального канала
const (
	TypeCallAccepted = "call.accepted"
	TypeCallRejected = "call.rejected"
	TypeCallCanceled = "call.canceled"
	TypeCallEnded    = "call.ended"
	TypeAudioFrame   = "audio.frame"
	TypeVideoFrame   = "video.frame"
)

// Статусы записи звонка на стороне сервера
const (
	RecordStatusInviting = "inviting"
	RecordStatusAccepted = "accepted"
	RecordStatusEnded    = "ended"
)

// Envelope представляет один конверт сигнального канала.
// Payload хранится сырым и разбирается по значению Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CallRecord представляет запись звонка в том виде, в котором она
// передается сервером в payload событий call.*.
type CallRecord struct {
	ID       string `json:"id"`
	CallerID string `json:"callerId"`
	CalleeID string `json:"calleeId"`
	Kind     string `json:"kind"`   // "voice" или "video"
	Status   string `json:"status"` // см. RecordStatus*
}

// FramePayload представляет payload кадров audio.frame и video.frame.
// Data содержит base64 представление сырых байт кадра - транспорт
// пропускает только ASCII-безопасные данные.
// Seq растет монотонно на стороне отправителя; приемник не выполняет
// пересортировку, но считает нарушения порядка (см. pkg/media).
type FramePayload struct {
	CallID string `json:"callId"`
	Seq    uint64 `json:"seq"`
	Data   string `json:"data"`
}

// NewFrameEnvelope собирает конверт медиа кадра с base64 кодированием данных.
func NewFrameEnvelope(envType, callID string, seq uint64, data []byte) (Envelope, error) {
	if envType != TypeAudioFrame && envType != TypeVideoFrame {
		return Envelope{}, fmt.Errorf("signaling: недопустимый тип кадра %q", envType)
	}
	payload, err := json.Marshal(FramePayload{
		CallID: callID,
		Seq:    seq,
		Data:   base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("signaling: marshal кадра: %w", err)
	}
	return Envelope{Type: envType, Payload: payload}, nil
}

// DecodeFramePayload разбирает payload кадра и декодирует base64 данные.
func DecodeFramePayload(raw json.RawMessage) (FramePayload, []byte, error) {
	var fp FramePayload
	if err := json.Unmarshal(raw, &fp); err != nil {
		return FramePayload{}, nil, fmt.Errorf("signaling: unmarshal кадра: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(fp.Data)
	if err != nil {
		return FramePayload{}, nil, fmt.Errorf("signaling: base64 кадра: %w", err)
	}
	return fp, data, nil
}

// DecodeCallRecord разбирает payload события call.*.
func DecodeCallRecord(raw json.RawMessage) (CallRecord, error) {
	var rec CallRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CallRecord{}, fmt.Errorf("signaling: unmarshal записи звонка: %w", err)
	}
	return rec, nil
}
