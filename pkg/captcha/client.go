package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"assessment-generator/internal/config"
)

// Client verifies reCAPTCHA response tokens against the siteverify API.
type Client interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type clientImpl struct {
	http      *http.Client
	secret    string
	verifyURL string
}

// NewClient creates a new reCAPTCHA client
func NewClient(httpClient *http.Client, cfg config.CaptchaConfig) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &clientImpl{http: httpClient, secret: cfg.Secret, verifyURL: cfg.VerifyURL}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (c *clientImpl) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("error building captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("error verifying captcha: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha service returned status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("error decoding captcha response: %w", err)
	}
	return out.Success, nil
}
