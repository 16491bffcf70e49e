package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// RecaptchaEndpoint is Google's reCAPTCHA v3 verification endpoint.
	RecaptchaEndpoint = "https://www.google.com/recaptcha/api/siteverify"
	// TurnstileEndpoint is Cloudflare's Turnstile verification endpoint.
	TurnstileEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
)

// Result is the verdict returned by the verification endpoint.
type Result struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

// Verifier checks client-supplied challenge tokens against a third-party
// verification endpoint. Any transport or decode failure is returned as an
// error so callers fail closed; a request is never approved silently.
type Verifier struct {
	endpoint string
	secret   string
	minScore float64 // 0 disables the score check (Turnstile has no score)
	client   *http.Client
}

// NewVerifier creates a Verifier for the given endpoint and shared secret.
func NewVerifier(endpoint, secret string, minScore float64) *Verifier {
	return &Verifier{
		endpoint: endpoint,
		secret:   secret,
		minScore: minScore,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify forwards the token and secret to the verification endpoint and
// returns the verdict. Result.Success reflects both the endpoint's verdict
// and, when configured, the minimum bot-likelihood score.
func (v *Verifier) Verify(ctx context.Context, token string) (*Result, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification endpoint returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}

	if result.Success && v.minScore > 0 && result.Score < v.minScore {
		result.Success = false
	}

	return &result, nil
}
