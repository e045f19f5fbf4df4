package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// defaultChunkBacklog bounds how many chunks the stream producer may run
// ahead of the extraction goroutine.
const defaultChunkBacklog = 16

// readerChunkSize is the chunk size used by ReaderStream.
const readerChunkSize = 64 << 10

// ChunkStream delivers a payload as an ordered sequence of byte chunks.
// Next returns the next chunk, io.EOF after the final chunk, or the
// download-layer error that ended the stream. Returned chunks must not be
// reused by the producer. A stream is consumed exactly once, front to back.
type ChunkStream interface {
	Next(ctx context.Context) ([]byte, error)
}

// ReaderStream adapts an io.Reader into a ChunkStream. It is mainly useful
// for extracting local files and for tests.
type ReaderStream struct {
	r   io.Reader
	err error
}

// NewReaderStream wraps r as a ChunkStream.
func NewReaderStream(r io.Reader) *ReaderStream {
	return &ReaderStream{r: r}
}

// Next reads the next chunk from the underlying reader.
func (s *ReaderStream) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.err != nil {
			return nil, s.err
		}
		buf := make([]byte, readerChunkSize)
		n, err := s.r.Read(buf)
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

// runBlocking bridges stream onto a blocking consumer. The calling
// goroutine pumps chunks into a bounded FIFO channel while fn runs on its
// own goroutine, reading the chunks back through a blocking io.Reader. The
// channel capacity throttles the producer when the consumer falls behind.
//
// When the stream ends, the reader sees io.EOF. When the stream fails,
// forwarding stops, the channel closes (so fn still observes end-of-input
// rather than an error), and the stream error takes precedence over fn's
// result. When fn returns without draining the stream — a tar reader stops
// at the end-of-archive marker and ignores trailing bytes — the pump is
// released and the leftover data is discarded. Cancelling ctx stops the
// pump but does not interrupt fn, which may run to completion on the
// chunks it already received.
func runBlocking[T any](ctx context.Context, stream ChunkStream, backlog int, fn func(io.Reader) (T, error)) (T, error) {
	if backlog <= 0 {
		backlog = defaultChunkBacklog
	}
	ch := make(chan []byte, backlog)

	g, gctx := errgroup.WithContext(ctx)

	// pumpCtx ends as soon as fn returns, so the pump cannot stay blocked
	// on a full channel (or a slow stream) once the consumer is done.
	pumpCtx, stopPump := context.WithCancel(gctx)

	var streamErr error

	g.Go(func() error {
		defer close(ch)
		for {
			chunk, err := stream.Next(pumpCtx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if pumpCtx.Err() != nil {
					// The consumer finished early or the group is tearing
					// down; gctx carries the group error, nil otherwise.
					return gctx.Err()
				}
				streamErr = fmt.Errorf("read download stream: %w", err)
				return streamErr
			}
			select {
			case ch <- chunk:
			case <-pumpCtx.Done():
				return gctx.Err()
			}
		}
	})

	var out T
	g.Go(func() error {
		defer stopPump()
		var err error
		out, err = fn(&chunkReader{ch: ch})
		return err
	})

	err := g.Wait()
	// A stream failure wins over whatever the consumer made of the
	// resulting truncation.
	if streamErr != nil {
		err = streamErr
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// chunkReader exposes a chunk channel as a blocking io.Reader. A closed
// channel reads as io.EOF.
type chunkReader struct {
	ch  <-chan []byte
	rem []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.rem) == 0 {
		chunk, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		r.rem = chunk
	}
	n := copy(p, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}

// streamReader adapts a ChunkStream into an io.Reader consumed on the
// caller's goroutine, for codecs that compose with the stream directly.
type streamReader struct {
	ctx    context.Context
	stream ChunkStream
	rem    []byte
	err    error
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.rem) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		chunk, err := r.stream.Next(r.ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("read download stream: %w", err)
			}
			r.err = err
			return 0, err
		}
		r.rem = chunk
	}
	n := copy(p, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}
