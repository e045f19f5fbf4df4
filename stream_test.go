package unpack

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedStream yields a fixed sequence of chunks followed by a terminal
// error, io.EOF by default.
type chunkedStream struct {
	chunks [][]byte
	err    error
}

func (s *chunkedStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

// streamOf splits data into a chunkedStream of chunkSize-byte chunks.
func streamOf(data []byte, chunkSize int) *chunkedStream {
	var chunks [][]byte
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return &chunkedStream{chunks: chunks}
}

func TestRunBlockingDeliversInOrder(t *testing.T) {
	t.Parallel()

	stream := &chunkedStream{chunks: [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}}

	got, err := runBlocking(context.Background(), stream, 0, func(r io.Reader) ([]byte, error) {
		return io.ReadAll(r)
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("alphabetagamma"), got)
}

func TestRunBlockingSmallBacklog(t *testing.T) {
	t.Parallel()

	data := make([]byte, 256<<10)
	_, err := rand.Read(data)
	require.NoError(t, err)

	// A backlog far smaller than the chunk count forces the producer to
	// block on the channel until the consumer drains it.
	got, err := runBlocking(context.Background(), streamOf(data, 1<<10), 2, func(r io.Reader) ([]byte, error) {
		return io.ReadAll(r)
	})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestRunBlockingStreamError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("connection reset")
	stream := &chunkedStream{
		chunks: [][]byte{[]byte("one"), []byte("two")},
		err:    errBoom,
	}

	var seen []byte
	_, err := runBlocking(context.Background(), stream, 0, func(r io.Reader) ([]byte, error) {
		var err error
		seen, err = io.ReadAll(r)
		return seen, err
	})
	require.ErrorIs(t, err, errBoom)

	// The consumer observes exactly the chunks forwarded before the
	// failure, terminated by EOF rather than an error.
	assert.Equal(t, []byte("onetwo"), seen)
}

func TestRunBlockingConsumerStopsEarly(t *testing.T) {
	t.Parallel()

	// The consumer returns after 10 bytes while far more chunks than the
	// backlog can hold are still queued; the pump must be released rather
	// than stay blocked on the full channel.
	data := make([]byte, 256<<10)
	got, err := runBlocking(context.Background(), streamOf(data, 1<<10), 4, func(r io.Reader) ([]byte, error) {
		buf := make([]byte, 10)
		_, err := io.ReadFull(r, buf)
		return buf, err
	})
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestRunBlockingStreamErrorWinsOverWorker(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("reset by peer")
	stream := &chunkedStream{chunks: [][]byte{[]byte("abc")}, err: errBoom}

	// The consumer fails on the truncated input, but the stream error that
	// caused the truncation is the one reported.
	_, err := runBlocking(context.Background(), stream, 0, func(r io.Reader) ([]byte, error) {
		buf := make([]byte, 1<<20)
		_, err := io.ReadFull(r, buf)
		return nil, err
	})
	require.ErrorIs(t, err, errBoom)
	require.NotErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRunBlockingWorkerError(t *testing.T) {
	t.Parallel()

	errWrite := errors.New("disk full")
	stream := streamOf([]byte("payload"), 3)

	_, err := runBlocking(context.Background(), stream, 0, func(io.Reader) (struct{}, error) {
		return struct{}{}, errWrite
	})
	require.ErrorIs(t, err, errWrite)
}

func TestRunBlockingCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runBlocking(ctx, streamOf([]byte("payload"), 2), 0, func(r io.Reader) ([]byte, error) {
		return io.ReadAll(r)
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaderStream(t *testing.T) {
	t.Parallel()

	data := make([]byte, 150<<10)
	_, err := rand.Read(data)
	require.NoError(t, err)

	stream := NewReaderStream(bytes.NewReader(data))
	ctx := context.Background()

	var got []byte
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
	}
	assert.True(t, bytes.Equal(data, got))

	// The stream stays terminated after EOF.
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderStreamCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := NewReaderStream(bytes.NewReader([]byte("data")))
	_, err := stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
