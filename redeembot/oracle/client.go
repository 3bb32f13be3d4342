// Package oracle talks to the external redemption service. The service both
// grades the verification challenge and performs the redemption in a single
// call; the two cannot be decomposed into a dry-run check plus a commit.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result codes returned by the redemption service.
const (
	OutcomeSuccess        = 0
	OutcomeBadChallenge   = 20002
	OutcomeBadPlayerID    = 20003
	OutcomeCodeNotFound   = 20401
	OutcomeAlreadyClaimed = 20402
	OutcomeCodeExpired    = 20403
	OutcomeCodeDisabled   = 20404
	OutcomeCodeConsumed   = 20409
	OutcomeServerBusy     = 30001
)

// ErrUnavailable is returned for any transport failure or malformed response.
// The client never retries on its own; retrying is a workflow decision.
var ErrUnavailable = errors.New("redemption oracle unavailable")

// IsCodeUnusable reports whether the outcome means the submitted code itself
// is bad (missing, expired, disabled or consumed) and should be poisoned.
func IsCodeUnusable(code int) bool {
	switch code {
	case OutcomeCodeNotFound, OutcomeCodeExpired, OutcomeCodeDisabled, OutcomeCodeConsumed:
		return true
	}
	return false
}

// IsRetryable reports whether the oracle wants the challenge re-answered.
func IsRetryable(code int) bool {
	return code == OutcomeServerBusy || code == OutcomeBadChallenge
}

// Challenge is one issued verification challenge. The image is opaque to the
// core; only the platform layer renders it.
type Challenge struct {
	ID       string
	Image    []byte
	IssuedAt time.Time
}

type Outcome struct {
	Code    int
	Message string
}

type Client interface {
	IssueChallenge(ctx context.Context) (*Challenge, error)
	Redeem(ctx context.Context, playerID, giftCode, challengeID, answer string) (*Outcome, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds a client for the given host. The host may be given
// with or without a scheme and with or without a trailing slash.
func NewHTTPClient(host string, timeout time.Duration) *HTTPClient {
	baseURL := strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "https://" + baseURL
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) IssueChallenge(ctx context.Context) (*Challenge, error) {
	var generated struct {
		Code int `json:"code"`
		Data struct {
			CaptchaID string `json:"captchaId"`
		} `json:"data"`
	}

	if err := c.postJSON(ctx, "/api/v1/captcha/generate", nil, &generated); err != nil {
		return nil, err
	}
	if generated.Code != 0 || generated.Data.CaptchaID == "" {
		return nil, fmt.Errorf("%w: challenge generation returned code %d", ErrUnavailable, generated.Code)
	}

	image, err := c.getBytes(ctx, "/api/v1/captcha/image/"+generated.Data.CaptchaID)
	if err != nil {
		return nil, err
	}

	return &Challenge{
		ID:       generated.Data.CaptchaID,
		Image:    image,
		IssuedAt: time.Now(),
	}, nil
}

func (c *HTTPClient) Redeem(ctx context.Context, playerID, giftCode, challengeID, answer string) (*Outcome, error) {
	payload := map[string]string{
		"userId":    playerID,
		"giftCode":  giftCode,
		"captchaId": challengeID,
		"captcha":   answer,
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}

	if err := c.postJSON(ctx, "/api/v1/giftcode/claim", payload, &result); err != nil {
		return nil, err
	}

	return &Outcome{Code: result.Code, Message: result.Msg}, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response from %s: %v", ErrUnavailable, path, err)
	}

	return nil
}

func (c *HTTPClient) getBytes(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty challenge image", ErrUnavailable)
	}

	return data, nil
}
