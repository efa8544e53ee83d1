package nitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/errors"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/ratelimit"
)

// Client fetches and classifies pages from a Nitter proxy
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    *ratelimit.HostLimiter
	logger     logger.Logger
}

// NewClient creates a new proxy client. A nil limiter disables request pacing.
func NewClient(cfg *config.ProxyConfig, limiter *ratelimit.HostLimiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}

	// Accept-Encoding is left to the transport so responses are decompressed
	// transparently.
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
		logger:  log,
	}
}

// BaseURL returns the proxy base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	if err := c.limiter.WaitURL(req.Context(), req.URL.String()); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":      req.Method,
			"url":         req.URL.String(),
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "network error")
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// FetchPage fetches one page and classifies the outcome. Proxy-level failures
// are reported through Page.Status; an error is returned only when the
// request could not be made at all or ctx was cancelled.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &Page{Status: StatusTransient, ErrorText: err.Error()}, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Page{Status: StatusRateLimited, StatusCode: resp.StatusCode, ErrorText: "Rate limited"}, nil
	case resp.StatusCode == http.StatusNotFound:
		return &Page{Status: StatusNotFound, StatusCode: resp.StatusCode, ErrorText: "not found"}, nil
	case errors.IsRetryableStatusCode(resp.StatusCode):
		return &Page{
			Status:     StatusTransient,
			StatusCode: resp.StatusCode,
			ErrorText:  fmt.Sprintf("HTTP error: %d", resp.StatusCode),
		}, nil
	default:
		return &Page{
			Status:     StatusFatal,
			StatusCode: resp.StatusCode,
			ErrorText:  fmt.Sprintf("HTTP error: %d", resp.StatusCode),
		}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &Page{Status: StatusTransient, StatusCode: resp.StatusCode, ErrorText: err.Error()}, nil
	}

	page := ParsePage(bytes.NewReader(body), c.baseURL)
	page.StatusCode = resp.StatusCode
	if page.Malformed {
		c.logger.WarnWithFields("malformed proxy response", map[string]interface{}{
			"url":          pageURL,
			"body_preview": preview(body),
		})
	}
	if page.Status != StatusOK {
		c.logger.WarnWithFields("proxy error panel", map[string]interface{}{
			"url":    pageURL,
			"status": string(page.Status),
			"text":   page.ErrorText,
		})
	}
	return page, nil
}

// Probe checks that the proxy answers its landing page with 200
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, RootURL(c.baseURL), nil)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeProxyUnavailable, err, "proxy probe failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrorTypeProxyUnavailable, "proxy probe returned %d", resp.StatusCode).
			WithCode(resp.StatusCode)
	}
	return nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
