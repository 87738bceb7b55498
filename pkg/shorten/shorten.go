// Package shorten is a client for an external URL-shortening service. The
// codec knows nothing about this service; it only guarantees the long URL.
package shorten

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/groovekit/groovekit/pkg/logger"
)

// FailureKind classifies shortener failures for callers that branch on them.
type FailureKind string

const (
	FailureUnauthorized FailureKind = "unauthorized"
	FailureRateLimited  FailureKind = "rate_limited"
	FailureNetwork      FailureKind = "network"
	FailureUnknown      FailureKind = "unknown"
)

// Failure is a typed shortening error.
type Failure struct {
	Kind   FailureKind
	Status int
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("shorten: %s (status %d): %s", f.Kind, f.Status, f.Detail)
}

// Client talks to one shortener endpoint.
type Client struct {
	http *resty.Client
}

// New builds a client for the service at baseURL. The token may be empty for
// anonymous services.
func New(baseURL, token string, timeout time.Duration) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", "GrooveKit/1.0")
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug("shortener request", "method", req.Method, "url", req.URL)
		return nil
	})
	return &Client{http: c}
}

type shortenRequest struct {
	URL string `json:"url"`
}

type shortenResponse struct {
	ShortURL string `json:"short_url"`
}

// Shorten exchanges a long URL for a short one. Failures carry a
// FailureKind so callers can distinguish auth problems from throttling and
// transient network errors.
func (c *Client) Shorten(longURL string) (string, error) {
	var out shortenResponse
	resp, err := c.http.R().
		SetBody(shortenRequest{URL: longURL}).
		SetResult(&out).
		Post("/shorten")
	if err != nil {
		return "", &Failure{Kind: FailureNetwork, Detail: err.Error()}
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		if out.ShortURL == "" {
			return "", &Failure{Kind: FailureUnknown, Status: resp.StatusCode(), Detail: "empty short_url in response"}
		}
		return out.ShortURL, nil
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return "", &Failure{Kind: FailureUnauthorized, Status: resp.StatusCode(), Detail: resp.String()}
	case resp.StatusCode() == http.StatusTooManyRequests:
		return "", &Failure{Kind: FailureRateLimited, Status: resp.StatusCode(), Detail: resp.String()}
	default:
		return "", &Failure{Kind: FailureUnknown, Status: resp.StatusCode(), Detail: resp.String()}
	}
}
