package unpack

import (
	"fmt"
	"strings"
)

// PkgFmt identifies the compression/container scheme used to deliver a
// package. The zero value is Tgz, the most common delivery format.
type PkgFmt uint8

const (
	// Tgz is a tar archive compressed with gzip.
	Tgz PkgFmt = iota
	// Tar is an uncompressed tar archive.
	Tar
	// Tbz2 is a tar archive compressed with bzip2.
	Tbz2
	// Txz is a tar archive compressed with xz.
	Txz
	// Tzstd is a tar archive compressed with zstd.
	Tzstd
	// Zip is a zip archive.
	Zip
	// Bin is a raw binary written verbatim.
	Bin
	// Bz2 is a bzip2-compressed single file, not a tar archive.
	Bz2
)

func (f PkgFmt) String() string {
	switch f {
	case Tgz:
		return "tgz"
	case Tar:
		return "tar"
	case Tbz2:
		return "tbz2"
	case Txz:
		return "txz"
	case Tzstd:
		return "tzstd"
	case Zip:
		return "zip"
	case Bin:
		return "bin"
	case Bz2:
		return "bz2"
	default:
		return "unknown"
	}
}

// ParsePkgFmt parses a format name, case-insensitively. It accepts the
// names produced by [PkgFmt.String].
func ParsePkgFmt(s string) (PkgFmt, error) {
	switch strings.ToLower(s) {
	case "tgz":
		return Tgz, nil
	case "tar":
		return Tar, nil
	case "tbz2":
		return Tbz2, nil
	case "txz":
		return Txz, nil
	case "tzstd":
		return Tzstd, nil
	case "zip":
		return Zip, nil
	case "bin":
		return Bin, nil
	case "bz2":
		return Bz2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f PkgFmt) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *PkgFmt) UnmarshalText(text []byte) error {
	parsed, err := ParsePkgFmt(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Shape classifies how a package format is extracted.
type Shape uint8

const (
	// ShapeTar marks the tar-family formats.
	ShapeTar Shape = iota
	// ShapeBin marks the raw binary format.
	ShapeBin
	// ShapeZip marks the zip archive format.
	ShapeZip
	// ShapeBz2 marks the standalone bzip2 format.
	ShapeBz2
)

// Decompose maps a format onto its extraction shape. Every format belongs
// to exactly one shape; for ShapeTar the returned TarBasedFmt carries the
// compression codec, for the other shapes it is meaningless.
func (f PkgFmt) Decompose() (Shape, TarBasedFmt) {
	switch f {
	case Tar:
		return ShapeTar, TarNone
	case Tbz2:
		return ShapeTar, TarBzip2
	case Tgz:
		return ShapeTar, TarGzip
	case Txz:
		return ShapeTar, TarXz
	case Tzstd:
		return ShapeTar, TarZstd
	case Bin:
		return ShapeBin, 0
	case Zip:
		return ShapeZip, 0
	case Bz2:
		return ShapeBz2, 0
	default:
		// Out-of-range values behave like the zero value.
		return ShapeTar, TarGzip
	}
}

// TarBasedFmt enumerates the tar-family formats by their compression codec.
type TarBasedFmt uint8

const (
	// TarNone is an uncompressed tar archive.
	TarNone TarBasedFmt = iota
	// TarBzip2 is tar + bzip2.
	TarBzip2
	// TarGzip is tar + gzip.
	TarGzip
	// TarXz is tar + xz.
	TarXz
	// TarZstd is tar + zstd.
	TarZstd
)

// PkgFmt converts the tar-family format back to its PkgFmt value.
func (t TarBasedFmt) PkgFmt() PkgFmt {
	switch t {
	case TarNone:
		return Tar
	case TarBzip2:
		return Tbz2
	case TarGzip:
		return Tgz
	case TarXz:
		return Txz
	case TarZstd:
		return Tzstd
	default:
		return Tgz
	}
}

func (t TarBasedFmt) String() string {
	return t.PkgFmt().String()
}

// Extensions returns the filename suffixes recognized for the format, in
// match order. The empty string in Bin's list lets extension-less names
// match; on Windows targets Bin additionally matches ".exe".
func (f PkgFmt) Extensions(isWindows bool) []string {
	switch f {
	case Tar:
		return []string{".tar"}
	case Tbz2:
		return []string{".tbz2", ".tar.bz2"}
	case Tgz:
		return []string{".tgz", ".tar.gz"}
	case Txz:
		return []string{".txz", ".tar.xz"}
	case Tzstd:
		return []string{".tzstd", ".tzst", ".tar.zst"}
	case Zip:
		return []string{".zip"}
	case Bz2:
		return []string{".bz2"}
	case Bin:
		if isWindows {
			return []string{".bin", "", ".exe"}
		}
		return []string{".bin", ""}
	default:
		return nil
	}
}

// GuessPkgFormat infers the package format from the filename portion of a
// URL-like string by inspecting up to its last three dot-separated parts,
// right to left. Compound "tar.<ext>" suffixes require a non-empty stem
// before the "tar" part, so a bare "tar.gz" does not match. Suffixes are
// matched case-insensitively. ok is false when no suffix matches.
func GuessPkgFormat(name string) (format PkgFmt, ok bool) {
	last := name
	var secondLast string
	hasRest := false
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		last = name[i+1:]
		rest := name[:i]
		secondLast = rest
		if j := strings.LastIndexByte(rest, '.'); j >= 0 {
			secondLast = rest[j+1:]
			hasRest = true
		}
	}
	tarSecond := strings.EqualFold(secondLast, "tar")

	// compound marks a two-part "tar.<ext>" match, which is validated
	// against the remaining suffix parts below.
	compound := false
	switch strings.ToLower(last) {
	case "tar":
		format = Tar
	case "tbz2":
		format = Tbz2
	case "bz2":
		if tarSecond {
			format, compound = Tbz2, true
		} else {
			format = Bz2
		}
	case "tgz":
		format = Tgz
	case "gz":
		if !tarSecond {
			return 0, false
		}
		format, compound = Tgz, true
	case "txz":
		format = Txz
	case "xz":
		if !tarSecond {
			return 0, false
		}
		format, compound = Txz, true
	case "tzstd", "tzst":
		format = Tzstd
	case "zst":
		if !tarSecond {
			return 0, false
		}
		format, compound = Tzstd, true
	case "exe", "bin":
		format = Bin
	case "zip":
		format = Zip
	default:
		return 0, false
	}

	if compound && !hasRest {
		return 0, false
	}
	return format, true
}
