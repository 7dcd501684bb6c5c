package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/educonnect/educonnect-client/internal/session"
	"github.com/educonnect/educonnect-client/pkg/errors"
	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/educonnect/educonnect-client/pkg/metrics"
	"go.uber.org/zap"
)

// tokenPair is the refresh endpoint's data payload.
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshAccessToken runs the token refresh protocol: an unauthenticated
// POST to the refresh endpoint whose only credential is the HTTP-only cookie
// riding in the transport's jar. On success the store's access token is
// patched in place; on any failure storage is left untouched. The protocol
// never retries itself.
//
// Concurrent 401s from parallel requests collapse into a single in-flight
// refresh; every waiter observes the shared outcome.
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (interface{}, error) {
		return nil, c.refreshOnce(ctx)
	})
	return err
}

func (c *Client) refreshOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// No Authorization header: the refresh capability is the cookie, not the
	// (expired) access token.

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		logger.Debug("Refresh rejected", zap.Int("status", resp.StatusCode))
		return errors.RefreshFailedError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	var env Envelope[tokenPair]
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to decode refresh envelope: %w", err)
	}

	if env.Data == nil || env.Data.AccessToken == "" {
		metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
		return errors.RefreshFailedError("no access token in response")
	}

	patch := session.Patch{AccessToken: &env.Data.AccessToken}
	if env.Data.RefreshToken != "" {
		patch.RefreshToken = &env.Data.RefreshToken
	}
	if err := c.store.Patch(patch); err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	logger.Debug("Access token refreshed")
	return nil
}
