// Package unpack turns downloaded package payloads into files on disk.
//
// A payload arrives as an ordered stream of byte chunks ([ChunkStream]),
// typically an HTTP response body. [Extractor.Extract] routes the stream to
// a format-specific strategy — raw binary, bzip2 single file, the tar family
// with four compression codecs, or zip — and returns an [ExtractedFiles]
// ledger of every path it wrote. Payloads are never buffered whole in
// memory; the one exception is zip, which is drained to an anonymous
// temporary file because its central directory needs random access.
//
// [GuessPkgFormat] infers a package format from a download URL or filename:
//
//	format, ok := unpack.GuessPkgFormat("tool-1.0-x86_64.tar.gz") // Tgz, true
//
// Tar-family and zip extraction refuse entries whose paths contain
// parent-directory components, so a hostile archive cannot write outside the
// destination directory. Refused entries are skipped and never appear in the
// ledger; the rest of the archive still extracts.
package unpack
