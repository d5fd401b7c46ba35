package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pft/internal/apperr"
)

// DoJSON sends in (when non-nil) as a JSON body and decodes a successful
// response into out (when non-nil). Non-2xx responses become apperr errors classified
// by status, carrying the server's message.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	op := opName(method, path)
	req := Request{Method: method, Path: path}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		req.Body = body
		req.Header = http.Header{"Content-Type": []string{"application/json"}}
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.FromStatus(op, resp.StatusCode, ErrorMessage(resp))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// GetJSON fetches path and decodes the response as T.
func GetJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.DoJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// PostJSON posts body to path and decodes the response as T.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.DoJSON(ctx, http.MethodPost, path, body, &out)
	return out, err
}

func PatchJSON[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var out T
	err := c.DoJSON(ctx, http.MethodPatch, path, body, &out)
	return out, err
}

// Delete issues DELETE path, discarding any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.DoJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ErrorMessage extracts a human message from an error response: the "detail"
// field, then "message", else "<status> <status text>". It consumes the body.
func ErrorMessage(resp *http.Response) string {
	fallback := resp.Status
	if fallback == "" {
		fallback = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fallback
	}
	if msg := detailMessage(payload.Detail); msg != "" {
		return msg
	}
	if payload.Message != "" {
		return payload.Message
	}
	return fallback
}

// detailMessage handles both a plain string and a list of {msg} entries.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg == "" {
			continue
		}
		if n := len(it.Loc); n > 0 {
			msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[n-1], it.Msg))
			continue
		}
		msgs = append(msgs, it.Msg)
	}
	return strings.Join(msgs, "; ")
}
