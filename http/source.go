// Package http provides a download source that streams a URL's content as
// ordered byte chunks for extraction.
package http

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
)

// chunkSize is the size of chunks read off the response body.
const chunkSize = 64 << 10

// Source downloads a URL and exposes the response body as a chunk stream.
type Source struct {
	url     string
	client  *nethttp.Client
	headers nethttp.Header
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewSource creates a Source for url.
func NewSource(url string, opts ...Option) *Source {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	return s
}

// Open issues the GET request and returns a Stream over the response body.
// The caller must close the stream when done. Any non-200 status is a
// download error.
func (s *Source) Open(ctx context.Context) (*Stream, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		req.Header[key] = values
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != nethttp.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: %s", s.url, resp.Status)
	}

	return &Stream{body: resp.Body, size: resp.ContentLength}, nil
}

// Stream delivers a response body as ordered byte chunks. It satisfies the
// extraction engine's ChunkStream interface.
type Stream struct {
	body io.ReadCloser
	size int64
	err  error
}

// Size returns the Content-Length reported by the server, or -1 if unknown.
func (s *Stream) Size() int64 {
	return s.size
}

// Next returns the next chunk of the body, or io.EOF once exhausted.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.err != nil {
			return nil, s.err
		}
		buf := make([]byte, chunkSize)
		n, err := s.body.Read(buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			return buf[:n], nil
		}
		if s.err != nil {
			return nil, s.err
		}
	}
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
