// Package captcha verifies reCAPTCHA tokens submitted with public bookings.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SiteVerifyURL is Google's verification endpoint.
const SiteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var (
	// ErrMissingToken is returned when the client sent no token.
	ErrMissingToken = errors.New("captcha token missing")
	// ErrRejected is returned when the provider says the token is not valid.
	ErrRejected = errors.New("captcha rejected")
	// ErrUnavailable wraps transport and decoding failures.
	ErrUnavailable = errors.New("captcha verification unavailable")
)

// Verifier checks a client token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// New returns a reCAPTCHA verifier for secret, or a verifier that accepts
// everything when secret is empty (local development).
func New(secret string) Verifier {
	if strings.TrimSpace(secret) == "" {
		return Disabled{}
	}
	return &Recaptcha{Secret: secret, Endpoint: SiteVerifyURL, Client: &http.Client{Timeout: 5 * time.Second}}
}

// Disabled accepts every request.
type Disabled struct{}

func (Disabled) Verify(context.Context, string, string) error { return nil }

// Recaptcha calls the siteverify API.
type Recaptcha struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (r *Recaptcha) Verify(ctx context.Context, token, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}
	form := url.Values{"secret": {r.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ","))
	}
	return nil
}
