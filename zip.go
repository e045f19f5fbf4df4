package unpack

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// extractZip drains the stream into an anonymous temporary file, then
// extracts the now-seekable archive into the directory at dst. Zip needs
// the buffering step because its central directory lives at the end of the
// payload and a forward-only stream cannot seek to it.
func (e *Extractor) extractZip(ctx context.Context, stream ChunkStream, dst string) (*ExtractedFiles, error) {
	e.log().Debug("buffering zip archive to tempfile", "dst", dst)

	return runBlocking(ctx, stream, e.backlog, func(r io.Reader) (*ExtractedFiles, error) {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}

		tmp, err := os.CreateTemp("", "unpack-zip-")
		if err != nil {
			return nil, err
		}
		defer tmp.Close()
		defer os.Remove(tmp.Name())

		size, err := io.Copy(tmp, r)
		if err != nil {
			return nil, err
		}

		return unpackZip(tmp, size, dst)
	})
}

// unpackZip extracts a fully buffered zip payload into dst. Entries with
// parent-directory path components are skipped, matching the tar guard.
// Directory permissions are applied only after all files are written.
func unpackZip(ra io.ReaderAt, size int64, dst string) (*ExtractedFiles, error) {
	zr, err := zip.NewReader(ra, size)
	// The reader flags ".." entry names under GODEBUG=zipinsecurepath=0 but
	// is still usable; the path guard below skips those entries either way.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, err
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(dst); err == nil {
		dst = resolved
	}

	var files ExtractedFiles
	type dirPerm struct {
		target string
		mode   os.FileMode
	}
	var dirPerms []dirPerm

	for _, f := range zr.File {
		parts, ok := entryPathParts(f.Name)
		if !ok || len(parts) == 0 {
			continue
		}
		rel := strings.Join(parts, "/")
		target := filepath.Join(dst, filepath.Join(parts...))
		mode := f.Mode()

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			if perm := mode.Perm(); perm != 0 {
				dirPerms = append(dirPerms, dirPerm{target, perm})
			}
			files.addDir(rel)
		case mode.IsRegular():
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0o644
			}
			if err := writeZipFile(target, f, perm); err != nil {
				return nil, err
			}
			files.addFile(rel)
		default:
			// Symlinks and other special entries are ignored.
		}
	}

	for _, d := range dirPerms {
		if err := os.Chmod(d.target, d.mode); err != nil {
			return nil, err
		}
	}

	return &files, nil
}

func writeZipFile(target string, f *zip.File, perm os.FileMode) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
