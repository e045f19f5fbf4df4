package unpack

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// extractTar unpacks a tar-family archive into the directory at dst.
func (e *Extractor) extractTar(ctx context.Context, stream ChunkStream, dst string, codec TarBasedFmt) (*ExtractedFiles, error) {
	e.log().Debug("extracting tar archive", "codec", codec.String(), "dst", dst)

	return runBlocking(ctx, stream, e.backlog, func(r io.Reader) (*ExtractedFiles, error) {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		return unpackTar(r, dst, codec)
	})
}

// unpackTar runs the entry loop on the extraction goroutine. Directory
// entries are deferred until every file is written, so a directory's own
// (possibly restrictive) permissions are applied only after its contents
// exist; intermediate directories are created implicitly during file
// unpacking.
func unpackTar(r io.Reader, dst string, codec TarBasedFmt) (*ExtractedFiles, error) {
	if _, err := os.Lstat(dst); err != nil {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return nil, err
		}
	}

	// Canonicalizing dst keeps deeply nested entry paths within platform
	// path-length limits. Failure is non-fatal; extraction proceeds against
	// the original path.
	if resolved, err := filepath.EvalSymlinks(dst); err == nil {
		dst = resolved
	}

	src, closeCodec, err := newDecompressor(r, codec)
	if err != nil {
		return nil, err
	}
	defer closeCodec()

	tr := tar.NewReader(src)

	var files ExtractedFiles
	var dirs []*tar.Header

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		// The reader flags ".." entries under GODEBUG=tarinsecurepath=0 but
		// still returns a usable header; the unpack guard below makes the
		// skip-or-write decision either way.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeReg:
			ok, err := unpackEntry(dst, hdr, tr)
			if err != nil {
				return nil, err
			}
			if !ok {
				// Traversal guard refused the entry; skip, don't fail.
				continue
			}
			rel, err := normalizeEntryPath(hdr.Name)
			if err != nil {
				return nil, err
			}
			files.addFile(rel)
		case tar.TypeDir:
			dirs = append(dirs, hdr)
		default:
			// Symlinks, devices and the rest are neither written nor recorded.
		}
	}

	for _, hdr := range dirs {
		ok, err := unpackEntry(dst, hdr, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rel, err := normalizeEntryPath(hdr.Name)
		if err != nil {
			return nil, err
		}
		files.addDir(rel)
	}

	return &files, nil
}

// newDecompressor layers the codec's decompression filter over r. The
// returned close function releases decoder resources.
func newDecompressor(r io.Reader, codec TarBasedFmt) (io.Reader, func(), error) {
	noop := func() {}
	switch codec {
	case TarNone:
		return r, noop, nil
	case TarBzip2:
		return bzip2.NewReader(r), noop, nil
	case TarGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return gz, noop, nil
	case TarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open xz stream: %w", err)
		}
		return xr, noop, nil
	case TarZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unpack: unknown tar codec %d", codec)
	}
}

// unpackEntry writes one archive entry under dst. It refuses any entry
// whose path contains a parent-directory component, returning false with no
// error: the entry is skipped, not a failure. For directory entries content
// is ignored and may be nil.
func unpackEntry(dst string, hdr *tar.Header, content io.Reader) (bool, error) {
	parts, ok := entryPathParts(hdr.Name)
	if !ok || len(parts) == 0 {
		return false, nil
	}
	target := filepath.Join(dst, filepath.Join(parts...))
	mode := hdr.FileInfo().Mode().Perm()

	if hdr.Typeflag == tar.TypeDir {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return false, err
		}
		if err := os.Chmod(target, mode); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	return true, nil
}

// entryPathParts splits a slash-separated entry name into its ordinary
// components, dropping root and current-directory markers. ok is false when
// the name contains a parent-directory component.
func entryPathParts(name string) (parts []string, ok bool) {
	for part := range strings.SplitSeq(name, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return nil, false
		default:
			parts = append(parts, part)
		}
	}
	return parts, true
}

// normalizeEntryPath rebuilds the ledger path for an entry that already
// passed the unpack guard. A parent-directory component here means the
// guard was bypassed, which is a bug rather than bad input.
func normalizeEntryPath(name string) (string, error) {
	parts, ok := entryPathParts(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", errTraversalAfterGuard, name)
	}
	return strings.Join(parts, "/"), nil
}
