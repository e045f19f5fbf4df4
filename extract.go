package unpack

import (
	"bufio"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Extractor turns downloaded byte streams into files on disk. The zero
// value is ready to use.
type Extractor struct {
	logger  *slog.Logger
	backlog int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithChunkBacklog sets the capacity of the channel buffering chunks
// between the stream producer and the extraction goroutine. The capacity
// bounds how far the download can run ahead of decompression and disk
// writes. Values <= 0 use the default.
func WithChunkBacklog(n int) Option {
	return func(e *Extractor) {
		e.backlog = n
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// log returns the logger, falling back to a discard logger if nil.
func (e *Extractor) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// Extract reads stream and writes its contents under path according to
// format. For Bin and Bz2, path names the output file; for the tar family
// and Zip, it names the destination directory. Parent directories are
// created as needed. The returned ledger lists every file and directory
// written, relative to path.
//
// Each call uses at most one extraction goroutine and shares no state with
// other calls. Concurrent extractions into the same destination tree are
// not synchronized at this layer.
func (e *Extractor) Extract(ctx context.Context, stream ChunkStream, path string, format PkgFmt) (*ExtractedFiles, error) {
	shape, codec := format.Decompose()
	switch shape {
	case ShapeTar:
		return e.extractTar(ctx, stream, path, codec)
	case ShapeBin:
		return e.extractBin(ctx, stream, path)
	case ShapeZip:
		return e.extractZip(ctx, stream, path)
	case ShapeBz2:
		return e.extractBz2(ctx, stream, path)
	default:
		return nil, fmt.Errorf("unpack: unhandled shape %d", shape)
	}
}

// extractBin writes the stream verbatim to the file at path.
func (e *Extractor) extractBin(ctx context.Context, stream ChunkStream, path string) (*ExtractedFiles, error) {
	e.log().Debug("writing binary", "path", path)

	return runBlocking(ctx, stream, e.backlog, func(r io.Reader) (*ExtractedFiles, error) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}

		var files ExtractedFiles
		files.addFile(filepath.Base(path))

		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := writeAll(f, r); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		return &files, nil
	})
}

// extractBz2 decompresses the stream straight into the file at path. The
// bzip2 reader composes with the stream directly, so this path stays on the
// caller's goroutine instead of going through the channel bridge.
func (e *Extractor) extractBz2(ctx context.Context, stream ChunkStream, path string) (*ExtractedFiles, error) {
	e.log().Debug("decompressing bzip2", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	src := bzip2.NewReader(&streamReader{ctx: ctx, stream: stream})
	w := bufio.NewWriter(f)
	if _, err := copyContext(ctx, w, src); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	var files ExtractedFiles
	files.addFile(filepath.Base(path))
	return &files, nil
}

// writeAll copies r into f through a buffered writer and flushes.
func writeAll(f *os.File, r io.Reader) error {
	w := bufio.NewWriter(f)
	if _, err := io.Copy(w, r); err != nil {
		return err
	}
	return w.Flush()
}

// copyContext copies src to dst, checking for context cancellation between
// reads. It follows the stdlib io.Copy loop.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32<<10)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}
