package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/cache"
	"github.com/soulconnect/soulconnect/internal/logging"
)

// Fetcher performs agent network requests against the real origin.
// Relative URLs are resolved against Origin.
type Fetcher struct {
	client *http.Client
	origin *url.URL
	logger *logrus.Logger
}

// NewFetcher builds a Fetcher. client may be nil, in which case NewClient(0) is used.
func NewFetcher(client *http.Client, origin string, logger *logrus.Logger) (*Fetcher, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin must be absolute: %q", origin)
	}
	if client == nil {
		client = NewClient(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fetcher{client: client, origin: base, logger: logger}, nil
}

// Fetch sends req and buffers the whole response body. Any status is a
// successful fetch; only transport failures return an error.
func (f *Fetcher) Fetch(ctx context.Context, req cache.Request) (*cache.Response, error) {
	if f == nil {
		return nil, errors.New("fetcher is nil")
	}
	ref, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}
	target := f.origin.ResolveReference(ref)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	CopyHeaders(httpReq.Header, req.Header)
	httpReq.Header.Del("Host")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.logger.WithFields(logrus.Fields{
			"action": "network_fetch",
			"method": method,
			"url":    target.String(),
		}).WithError(err).Debug("network request failed")
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	header := make(http.Header, len(resp.Header))
	CopyHeaders(header, resp.Header)

	finalURL := target.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	f.logger.WithFields(logrus.Fields{
		"action": "network_fetch",
		"method": method,
		"url":    finalURL,
		"status": resp.StatusCode,
	}).Debug("network request completed")

	return &cache.Response{
		Status: resp.StatusCode,
		Header: header,
		Body:   payload,
		URL:    finalURL,
	}, nil
}
