package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/chemstock/internal/infrastructure/logger"
	"github.com/erp/chemstock/internal/infrastructure/telemetry"
)

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// handleUnauthorized obtains a new access token for the retry of a request
// that got a 401. It ends the session when that is impossible.
func (c *Client) handleUnauthorized(ctx context.Context, original *APIError) (string, error) {
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	if refreshToken == "" {
		c.observeRefresh(telemetry.RefreshNoToken)
		return "", c.expire(ctx, original)
	}

	var access string
	if c.coalesce {
		access, err = c.sharedRefresh(ctx, refreshToken)
	} else {
		access, err = c.refresh(ctx, refreshToken)
	}
	if err != nil {
		// The caller gave up; the refresh token may still be valid.
		if ctx.Err() != nil {
			return "", err
		}
		return "", c.expire(ctx, err)
	}
	return access, nil
}

// sharedRefresh joins the refresh already running for refreshToken, if any.
// The shared call is detached from any one caller's cancellation and bounded
// by the client timeout only.
func (c *Client) sharedRefresh(ctx context.Context, refreshToken string) (string, error) {
	ch := c.refreshes.DoChan(refreshToken, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), refreshToken)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			c.observeRefresh(telemetry.RefreshCoalesced)
		}
		access, _ := res.Val.(string)
		return access, nil
	}
}

// refresh exchanges refreshToken for a new pair and stores it. It bypasses
// Do so a 401 from the refresh endpoint is never refreshed itself.
func (c *Client) refresh(ctx context.Context, refreshToken string) (string, error) {
	u, err := url.Parse(c.baseURL + ScopeAuth.prefix() + RefreshPath)
	if err != nil {
		return "", fmt.Errorf("building refresh URL: %w", err)
	}
	payload, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", err
	}

	ctx, span := telemetry.StartSpan(ctx, "api token refresh", telemetry.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating refresh request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.observe(http.MethodPost, u.Path, 0, duration)
		c.observeRefresh(telemetry.RefreshFailure)
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	defer httpResp.Body.Close()
	c.observe(http.MethodPost, u.Path, httpResp.StatusCode, duration)

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.observeRefresh(telemetry.RefreshFailure)
		return "", fmt.Errorf("reading refresh response: %w", err)
	}
	resp := &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, Body: data}
	if !resp.IsSuccess() {
		c.observeRefresh(telemetry.RefreshFailure)
		apiErr := newAPIError(http.MethodPost, u, resp)
		telemetry.RecordError(span, apiErr)
		return "", apiErr
	}

	var tokens refreshResponse
	if err := resp.Decode(&tokens); err != nil {
		c.observeRefresh(telemetry.RefreshFailure)
		return "", err
	}
	if tokens.Access == "" {
		c.observeRefresh(telemetry.RefreshFailure)
		return "", errors.New("refresh response carries no access token")
	}

	if err := c.tokens.SetTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		c.observeRefresh(telemetry.RefreshFailure)
		return "", fmt.Errorf("storing refreshed tokens: %w", err)
	}

	c.observeRefresh(telemetry.RefreshSuccess)
	logger.L(ctx).Info("access token refreshed")
	return tokens.Access, nil
}

// expire clears the session, notifies the hook and returns the error to hand
// back to the caller.
func (c *Client) expire(ctx context.Context, cause error) error {
	log := logger.L(ctx)
	if err := c.tokens.Logout(ctx); err != nil {
		log.Error("failed to clear session", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.ObserveSessionExpired()
	}
	log.Warn("session expired", zap.Error(cause))

	err := &SessionExpiredError{Cause: cause}
	if c.onExpired != nil {
		c.onExpired(ctx, err)
	}
	return err
}

func (c *Client) observeRefresh(result string) {
	if c.metrics != nil {
		c.metrics.ObserveRefresh(result)
	}
}
