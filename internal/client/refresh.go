package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"pft/internal/log"
)

const refreshFlightKey = "refresh"

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Refresh asks the server for a new access token using the refresh cookie.
// Concurrent callers share a single in-flight call and observe the same
// result. ok is false on any failure; Refresh never returns an error.
func (c *Client) Refresh(ctx context.Context) (token string, ok bool) {
	ch := c.refreshes.DoChan(refreshFlightKey, func() (any, error) {
		// Detached so one caller giving up does not fail the others.
		return c.refresh(context.WithoutCancel(ctx)), nil
	})

	select {
	case <-ctx.Done():
		return "", false
	case res := <-ch:
		token, _ = res.Val.(string)
		return token, token != ""
	}
}

func (c *Client) refresh(ctx context.Context) string {
	token := c.requestRefresh(ctx)
	c.metrics.Refresh(token != "")
	if token == "" {
		return ""
	}

	// Keep whatever remember-me choice the session was created with.
	persist := c.tokens.PersistFlag()
	if err := c.tokens.Set(token, persist); err != nil {
		c.logger.WarnContext(ctx, "Refreshed token could not be persisted", log.FieldError, err)
	}
	c.logger.InfoContext(ctx, "Access token refreshed", log.FieldPersist, persist)
	return token
}

func (c *Client) requestRefresh(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(RefreshPath), nil)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to build refresh request", log.FieldError, err)
		return ""
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Request(http.MethodPost, 0)
		c.logger.WarnContext(ctx, "Refresh request failed", log.FieldError, err)
		return ""
	}
	defer resp.Body.Close()
	c.metrics.Request(http.MethodPost, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		c.logger.InfoContext(ctx, "Refresh rejected", log.FieldStatusCode, resp.StatusCode)
		return ""
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.WarnContext(ctx, "Refresh response not decodable", log.FieldError, err)
		return ""
	}
	if body.AccessToken == "" {
		c.logger.WarnContext(ctx, "Refresh response carried no access token")
	}
	return body.AccessToken
}
