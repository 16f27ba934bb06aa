package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameEnvelopeRoundtrip проверяет сборку и разбор конверта кадра.
func TestFrameEnvelopeRoundtrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xfe, 0xff}
	env, err := NewFrameEnvelope(TypeAudioFrame, "c1", 42, data)
	require.NoError(t, err)
	assert.Equal(t, TypeAudioFrame, env.Type)

	fp, got, err := DecodeFramePayload(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "c1", fp.CallID)
	assert.Equal(t, uint64(42), fp.Seq)
	assert.Equal(t, data, got)
}

// TestFrameEnvelopeInvalid проверяет отбраковку недопустимых конвертов.
func TestFrameEnvelopeInvalid(t *testing.T) {
	_, err := NewFrameEnvelope(TypeCallAccepted, "c1", 1, nil)
	assert.Error(t, err, "тип call.* не является кадром")

	_, _, err = DecodeFramePayload(json.RawMessage(`{нет`))
	assert.Error(t, err)

	_, _, err = DecodeFramePayload(json.RawMessage(`{"callId":"c1","seq":1,"data":"не base64!"}`))
	assert.Error(t, err)
}

// TestDecodeCallRecord разбор payload событий call.*.
func TestDecodeCallRecord(t *testing.T) {
	raw := json.RawMessage(`{"id":"c9","callerId":"alice","calleeId":"bob","kind":"voice","status":"inviting"}`)
	rec, err := DecodeCallRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, CallRecord{
		ID: "c9", CallerID: "alice", CalleeID: "bob",
		Kind: "voice", Status: RecordStatusInviting,
	}, rec)

	_, err = DecodeCallRecord(json.RawMessage(`[]`))
	assert.Error(t, err)
}

// TestMemPairDelivery проверяет доставку конвертов между парными
// каналами в памяти и поведение после закрытия.
func TestMemPairDelivery(t *testing.T) {
	a, b := MemPair()
	ctx := context.Background()

	var mu sync.Mutex
	var got []Envelope
	b.Handle(TypeCallAccepted, func(env Envelope) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, env)
	})

	env := Envelope{Type: TypeCallAccepted, Payload: json.RawMessage(`{"id":"c1"}`)}
	require.NoError(t, a.Send(ctx, env))
	// конверт без обработчика молча отбрасывается
	require.NoError(t, a.Send(ctx, Envelope{Type: TypeCallEnded}))

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, env, got[0])
	mu.Unlock()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Error(t, a.Send(ctx, env), "закрытый канал не отправляет")
	// парный канал остается рабочим на отправку
	assert.NoError(t, b.Send(ctx, env))
}

// TestControlClientCreate проверяет создание записи звонка.
func TestControlClientCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob", body["calleeId"])
		assert.Equal(t, "voice", body["kind"])
		_ = json.NewEncoder(w).Encode(CallRecord{
			ID: "c5", CallerID: "alice", CalleeID: "bob",
			Kind: "voice", Status: RecordStatusInviting,
		})
	}))
	defer srv.Close()

	client := NewControlClient(srv.URL, nil)
	rec, err := client.Create(context.Background(), "bob", "voice")
	require.NoError(t, err)
	assert.Equal(t, "c5", rec.ID)
	assert.Equal(t, RecordStatusInviting, rec.Status)
}

// TestControlClientAccept проверяет путь запроса и проброс ошибки
// сервера.
func TestControlClientAccept(t *testing.T) {
	var gotPath string
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client := NewControlClient(srv.URL, nil)
	require.NoError(t, client.Accept(context.Background(), "c5"))
	assert.Equal(t, "/c5/accept", gotPath)

	status = http.StatusConflict
	assert.Error(t, client.Accept(context.Background(), "c5"))
}

// TestControlClientBestEffort завершающие запросы не возвращают
// ошибок даже при недоступном сервере.
func TestControlClientBestEffort(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	client := NewControlClient(srv.URL, nil)
	client.Reject(ctx, "c1")
	client.Cancel(ctx, "c2")
	client.End(ctx, "c3")

	mu.Lock()
	assert.Equal(t, []string{"/c1/reject", "/c2/cancel", "/c3/end"}, paths)
	mu.Unlock()

	// сервер вообще недоступен - тоже не паника и не ошибка
	dead := NewControlClient("http://127.0.0.1:1", nil)
	dead.End(ctx, "c4")
}
