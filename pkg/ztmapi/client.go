package ztmapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/config"
)

type Client struct {
	BaseURL string
	APIKey  string

	StopsResourceID     string
	TimetableResourceID string
	VehiclesResourceID  string

	HTTPClient *http.Client

	// Retries is the number of extra attempts for a failed request. Zero disables retrying.
	Retries int
}

func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		BaseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:              cfg.APIKey,
		StopsResourceID:     cfg.StopsResourceID,
		TimetableResourceID: cfg.TimetableResourceID,
		VehiclesResourceID:  cfg.VehiclesResourceID,
		HTTPClient:          &http.Client{Timeout: cfg.Timeout.Std()},
		Retries:             cfg.FetchRetries,
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

// HTTPError is returned for responses with a 4xx or 5xx status.
type HTTPError struct {
	URL, Status string
	StatusCode  int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

func (e *HTTPError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (c *Client) endpointURL(action string, query url.Values) string {
	query.Set("apikey", c.APIKey)
	return fmt.Sprintf("%s/%s/?%s", c.BaseURL, action, query.Encode())
}

// getResult performs the request and returns the raw "result" member of the response,
// which is either the payload or the sentinel string.
func (c *Client) getResult(ctx context.Context, action string, query url.Values) (json.RawMessage, error) {
	requestURL := c.endpointURL(action, query)

	var result json.RawMessage
	operation := func() error {
		var err error
		result, err = c.doRequest(ctx, requestURL)
		if err == nil {
			return nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.Retries > 0 {
		exponential := backoff.NewExponentialBackOff()
		exponential.InitialInterval = 500 * time.Millisecond
		policy = backoff.WithMaxRetries(exponential, uint64(c.Retries))
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("action", action).Dur("wait", wait).Msg("Retrying API request")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) doRequest(ctx context.Context, requestURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)

		// the api key travels in the query string
		location := *resp.Request.URL
		location.RawQuery = ""

		return nil, &HTTPError{
			URL:        location.String(),
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
		}
	}

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(body.Result) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("response has no result"))
	}

	return body.Result, nil
}
