// Package broker is an HTTP client for an NGSI-LD context broker.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/metrics"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/retry"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxConns   = 50
	defaultBatchSize  = 50
	defaultBatchDelay = 100 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// BaseURL is the NGSI-LD API root, e.g. http://orion:1026/ngsi-ld/v1.
	BaseURL string
	// HealthURL is the broker root serving /version; defaults to the host of BaseURL.
	HealthURL  string
	Token      string
	Tenant     string
	ContextURL string
	Timeout    time.Duration
	// MaxConns bounds concurrent sockets to the broker.
	MaxConns   int
	BatchDelay time.Duration
	Retry      retry.Policy
	// HTTPClient overrides the pooled client built from the options.
	HTTPClient *http.Client
}

// Client talks to the broker's entity, batch and subscription endpoints.
type Client struct {
	baseURL    string
	healthURL  string
	token      string
	tenant     string
	contextURL string
	batchDelay time.Duration
	retry      retry.Policy
	http       *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New builds a Client. logger and m may be nil.
func New(opts Options, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.BatchDelay == 0 {
		opts.BatchDelay = defaultBatchDelay
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: NewTransport(opts.MaxConns),
		}
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	health := strings.TrimRight(opts.HealthURL, "/")
	if health == "" {
		health = hostRoot(base)
	}

	return &Client{
		baseURL:    base,
		healthURL:  health,
		token:      opts.Token,
		tenant:     opts.Tenant,
		contextURL: opts.ContextURL,
		batchDelay: opts.BatchDelay,
		retry:      opts.Retry,
		http:       httpClient,
		logger:     logger.Named("broker"),
		metrics:    m,
	}
}

// NewTransport returns a keep-alive transport capped at maxConns sockets per host.
func NewTransport(maxConns int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

func hostRoot(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Scheme + "://" + u.Host
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends one logical request, retrying transient failures.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) (*response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("broker %s: encode: %w", op, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := retry.Do(ctx, c.retry, nil, func(ctx context.Context) (*response, error) {
		return c.send(ctx, op, method, u, body)
	})
	if err != nil {
		c.metrics.BrokerRequest(op, statusLabel(err))
		return nil, err
	}
	c.metrics.BrokerRequest(op, "ok")
	return resp, nil
}

func (c *Client) send(ctx context.Context, op, method, u string, body []byte) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.contextURL != "" {
			req.Header.Set("Link", fmt.Sprintf(`<%s>; rel="http://www.w3.org/ns/json-ld#context"; type="application/ld+json"`, c.contextURL))
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.tenant != "" {
		req.Header.Set("NGSILD-Tenant", c.tenant)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("broker request failed", zap.String("operation", op), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

func statusLabel(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode)
	}
	return "error"
}

// HealthCheck probes GET <healthURL>/version without credentials.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL+"/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("broker health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
