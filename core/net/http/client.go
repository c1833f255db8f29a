package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kochabx/studycore/errors"
)

const (
	defaultBufferSize = 4096
	maxBufferSize     = 1024 * 1024
	maxResponseSize   = 32 << 20
)

// Doer is satisfied by *http.Client and by test doubles
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small JSON/form HTTP client
type Client struct {
	doer       Doer
	baseURL    string
	header     http.Header
	bufferPool sync.Pool
}

// Option configures the client
type Option func(*Client)

// WithDoer sets the transport used to execute requests
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// WithBaseURL resolves relative request paths against base
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout sets a client-wide timeout on the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if hc, ok := c.doer.(*http.Client); ok {
			hc.Timeout = d
		}
	}
}

// WithDefaultHeader adds a header sent on every request
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// New creates a client
func New(opts ...Option) *Client {
	c := &Client{
		doer:   &http.Client{},
		header: make(http.Header),
		bufferPool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body as JSON into dest
func (r *Response) Decode(dest any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, dest)
}

type requestOption struct {
	header http.Header
	query  url.Values
}

// RequestOption configures a single request
type RequestOption func(*requestOption)

// WithHeader sets a request header
func WithHeader(key, value string) RequestOption {
	return func(o *requestOption) {
		o.header.Set(key, value)
	}
}

// WithBearer sets the Authorization header
func WithBearer(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithQuery adds query parameters
func WithQuery(key, value string) RequestOption {
	return func(o *requestOption) {
		o.query.Add(key, value)
	}
}

// Request sends the request and reads the whole response.
// Body encoding: nil, io.Reader, []byte as is, url.Values as a form, anything else as JSON.
// Transport errors become NetworkTimeout or NetworkFailure; HTTP statuses are left to the caller.
func (c *Client) Request(ctx context.Context, method, rawURL string, body any, opts ...RequestOption) (*Response, error) {
	o := &requestOption{header: make(http.Header), query: make(url.Values)}
	for _, opt := range opts {
		opt(o)
	}

	req, err := c.newRequest(ctx, method, c.resolve(rawURL), body)
	if err != nil {
		return nil, errors.BadRequest("build request: %v", err).WithCause(err)
	}

	for k, v := range c.header {
		req.Header[k] = v
	}
	for k, v := range o.header {
		req.Header[k] = v
	}
	if len(o.query) > 0 {
		q := req.URL.Query()
		for k, vs := range o.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, classify(ctx, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classify(ctx, method, req.URL.Path, err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, target string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, target, nil, opts...)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, target string, body any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, target, body, opts...)
}

// PostForm performs a form encoded POST request
func (c *Client) PostForm(ctx context.Context, target string, form url.Values, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, target, form, opts...)
}

func (c *Client) resolve(raw string) string {
	if c.baseURL == "" || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return c.baseURL + "/" + strings.TrimLeft(raw, "/")
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType string
	)

	switch v := body.(type) {
	case nil:
	case io.Reader:
		reader = v
	case []byte:
		reader = bytes.NewReader(v)
		contentType = ContentTypeJSON
	case json.RawMessage:
		reader = bytes.NewReader(v)
		contentType = ContentTypeJSON
	case url.Values:
		reader = strings.NewReader(v.Encode())
		contentType = ContentTypeForm
	default:
		buf := c.bufferPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer func() {
			if buf.Cap() <= maxBufferSize {
				c.bufferPool.Put(buf)
			}
		}()
		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return nil, err
		}
		reader = bytes.NewReader(bytes.Clone(buf.Bytes()))
		contentType = ContentTypeJSON
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", ContentTypeJSON)
	return req, nil
}

func classify(ctx context.Context, method, path string, err error) error {
	md := map[string]string{"method": method, "path": path}

	var ne net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(stderrors.As(err, &ne) && ne.Timeout()) {
		return errors.NetworkTimeout("request timed out").WithMetadata(md).WithCause(err)
	}
	return errors.NetworkFailure("request failed: %v", err).WithMetadata(md).WithCause(err)
}
