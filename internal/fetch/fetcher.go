package fetch

import (
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// FetchedPage holds the result of fetching a page
type FetchedPage struct {
	URL          string // URL fetched
	ResponseCode int    // Response code returned
	ContentType  string // Content-Type header as sent
	Body         []byte // Response body, decoded to UTF-8
}

// Fetcher fetches a given URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchedPage, error)
}

var _ Fetcher = (*pageFetcher)(nil)

// pageFetcher implements Fetcher
type pageFetcher struct {
	client  *http.Client
	headers map[string]string
	timeout time.Duration
	log     *slog.Logger
}

type Args struct {
	Client  *http.Client
	Headers map[string]string
	Timeout time.Duration
	Logger  *slog.Logger
}

// New returns a new Fetcher
func New(a *Args) Fetcher {
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := a.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &pageFetcher{
		client:  client,
		headers: a.Headers,
		timeout: a.Timeout,
		log:     log.With("component", "fetcher"),
	}
}

// Fetch performs a single GET of url. There are no retries: a failed
// request is reported to the caller as is.
func (f *pageFetcher) Fetch(ctx context.Context, url string) (FetchedPage, error) {
	p := FetchedPage{URL: url}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return p, errors.Wrap(err, "create request")
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}

	f.log.Debug("get", "url", url)
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return p, errors.Wrapf(err, "get %s", url)
	}
	defer resp.Body.Close()

	p.ResponseCode = resp.StatusCode
	p.ContentType = resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p, errors.Wrapf(ErrUnexpectedStatus, "get %s: %d", url, resp.StatusCode)
	}

	body, err := readBody(resp)
	if err != nil {
		return p, errors.Wrapf(err, "read %s", url)
	}
	p.Body = body

	f.log.Debug("got", "url", url, "code", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	return p, nil
}

// readBody undoes any content encoding and converts the body to UTF-8.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(r)
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer gz.Close()
		r = gz
	}

	utf8, err := charset.NewReader(r, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.Wrap(err, "convert response to utf8")
	}
	return io.ReadAll(utf8)
}
