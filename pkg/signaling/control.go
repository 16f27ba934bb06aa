package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ControlClient выполняет REST запросы управления звонком.
//
// Create и Accept возвращают ошибку вызывающему - от их результата
// зависят переходы состояний. Reject, Cancel и End всегда best-effort:
// локальные ресурсы освобождаются независимо от того, подтвердил ли
// сервер запрос, поэтому их ошибки только логируются.
type ControlClient struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewControlClient создает REST клиент управления звонком.
// baseURL указывает на корень API, например "https://api.example.com/calls".
func NewControlClient(baseURL string, log *slog.Logger) *ControlClient {
	if log == nil {
		log = slog.Default()
	}
	return &ControlClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.With("component", "call_control"),
	}
}

// Create создает запись исходящего звонка и возвращает ее.
// До успешного ответа у звонка нет идентификатора.
func (c *ControlClient) Create(ctx context.Context, peerID, kind string) (CallRecord, error) {
	body := map[string]string{"calleeId": peerID, "kind": kind}
	var rec CallRecord
	if err := c.post(ctx, "", body, &rec); err != nil {
		return CallRecord{}, fmt.Errorf("signaling: создание звонка: %w", err)
	}
	return rec, nil
}

// Accept подтверждает входящий звонок.
func (c *ControlClient) Accept(ctx context.Context, callID string) error {
	if err := c.post(ctx, "/"+callID+"/accept", nil, nil); err != nil {
		return fmt.Errorf("signaling: подтверждение звонка %s: %w", callID, err)
	}
	return nil
}

// Reject отклоняет входящий звонок. Best-effort.
func (c *ControlClient) Reject(ctx context.Context, callID string) {
	c.bestEffort(ctx, callID, "reject")
}

// Cancel отменяет исходящий звонок до ответа. Best-effort.
func (c *ControlClient) Cancel(ctx context.Context, callID string) {
	c.bestEffort(ctx, callID, "cancel")
}

// End завершает активный звонок. Best-effort.
func (c *ControlClient) End(ctx context.Context, callID string) {
	c.bestEffort(ctx, callID, "end")
}

func (c *ControlClient) bestEffort(ctx context.Context, callID, action string) {
	if err := c.post(ctx, "/"+callID+"/"+action, nil, nil); err != nil {
		c.log.Warn("запрос управления звонком не доставлен",
			"action", action, "call_id", callID, "error", err)
	}
}

func (c *ControlClient) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("статус %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("разбор ответа: %w", err)
		}
	}
	return nil
}
