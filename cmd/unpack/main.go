// Command unpack downloads a package and extracts it to a destination path.
//
// The format is guessed from the URL unless -format is given. For bin and
// bz2 the destination names the output file; for archives it names the
// destination directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/meigma/unpack"
	unpackhttp "github.com/meigma/unpack/http"
)

func main() {
	var (
		url     = flag.String("url", "", "package URL to download")
		dest    = flag.String("dest", ".", "destination file or directory")
		format  = flag.String("format", "", "package format (default: guessed from URL)")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *url == "" {
		flag.Usage()
		os.Exit(2)
	}

	var pkgFmt unpack.PkgFmt
	if *format != "" {
		parsed, err := unpack.ParsePkgFmt(*format)
		if err != nil {
			log.Fatal(err)
		}
		pkgFmt = parsed
	} else {
		guessed, ok := unpack.GuessPkgFormat(*url)
		if !ok {
			log.Fatalf("cannot guess package format of %q; pass -format", *url)
		}
		pkgFmt = guessed
	}

	var opts []unpack.Option
	if *verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, unpack.WithLogger(slog.New(handler)))
	}

	ctx := context.Background()
	stream, err := unpackhttp.NewSource(*url).Open(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer stream.Close()

	files, err := unpack.New(opts...).Extract(ctx, stream, *dest, pkgFmt)
	if err != nil {
		log.Fatal(err)
	}

	for _, dir := range files.Dirs {
		fmt.Println(dir + "/")
	}
	for _, file := range files.Files {
		fmt.Println(file)
	}
}
