package uzip

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/nguyengg/uzip/zip/scan"
)

// UnpackOptions customises Unpack and UnpackFile.
type UnpackOptions struct {
	// ScanOptions modifies how the central directory is found and read.
	//
	// The context given to Unpack always replaces [scan.Options.Ctx].
	ScanOptions []func(*scan.Options)

	// ExtractOptions modifies how each entry is extracted.
	ExtractOptions []func(*ExtractOptions)

	// SortByOffset extracts entries in ascending local header offset order instead of central directory order.
	SortByOffset bool

	// OnCentralDirectory is called once the central directory has been read and before any entry is extracted.
	OnCentralDirectory func(r scan.EOCDRecord, entries []scan.Entry)

	// OnSkip is called for every entry that could not be extracted.
	//
	// The error is either a *scan.CorruptedEntryError or an error returned by Extract. A partial output file of a
	// failed copy has already been removed (unless [ExtractOptions.KeepPartial] is true) when this is called.
	OnSkip func(e scan.Entry, err error)

	// OnExtract is called for every entry that has been extracted successfully.
	OnExtract func(e scan.Entry, path string, written int64)
}

// UnpackResult summarises a successful Unpack.
type UnpackResult struct {
	// Entries is the number of entries declared by the archive.
	Entries int
	// Extracted is the number of entries that have been extracted.
	Extracted int
	// Skipped is the number of entries that have been skipped.
	Skipped int
	// Written is the total number of bytes written to output files.
	Written int64
	// Paths contains the output files in extraction order.
	Paths []string
}

// Unpack extracts the raw payload of every entry in the archive in src.
//
// An error is returned only if the archive as a whole cannot be processed: the EOCD record cannot be found, the
// central directory is truncated or invalid, or the context is cancelled. Per-entry failures (corrupted local file
// header, destination cannot be created, truncated payload) are reported to [UnpackOptions.OnSkip] and never stop the
// remaining entries from being extracted.
func Unpack(ctx context.Context, src io.ReadSeeker, optFns ...func(*UnpackOptions)) (res UnpackResult, err error) {
	opts := &UnpackOptions{}
	for _, fn := range optFns {
		fn(opts)
	}

	r, entries, err := scan.CentralDirectory(src, append(slices.Clone(opts.ScanOptions), func(o *scan.Options) {
		o.Ctx = ctx
	})...)
	if err != nil {
		return res, err
	}

	res.Entries = len(entries)
	if opts.OnCentralDirectory != nil {
		opts.OnCentralDirectory(r, entries)
	}

	if opts.SortByOffset {
		entries = slices.Clone(entries)
		slices.SortStableFunc(entries, func(a, b scan.Entry) int {
			return cmp.Compare(a.Offset, b.Offset)
		})
	}

	extractOpts := newExtractOptions(opts.ExtractOptions)
	buf := make([]byte, extractOpts.BufferSize)

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		path, written, err := unpackEntry(ctx, src, e, extractOpts, buf)
		if err != nil {
			if isContextErr(err) {
				return res, err
			}

			res.Skipped++
			if opts.OnSkip != nil {
				opts.OnSkip(e, err)
			}
			continue
		}

		res.Extracted++
		res.Written += written
		res.Paths = append(res.Paths, path)
		if opts.OnExtract != nil {
			opts.OnExtract(e, path, written)
		}
	}

	return res, nil
}

func unpackEntry(ctx context.Context, src io.ReadSeeker, e scan.Entry, opts *ExtractOptions, buf []byte) (string, int64, error) {
	h, err := scan.ReadLocalHeader(src, e)
	if err != nil {
		return "", 0, err
	}

	return extract(ctx, src, e, h, opts, buf)
}

// UnpackFile is a convenient wrapper around Unpack that opens the named local file.
//
// The file is closed before UnpackFile returns, on every path.
func UnpackFile(ctx context.Context, name string, optFns ...func(*UnpackOptions)) (UnpackResult, error) {
	f, err := os.Open(name)
	if err != nil {
		return UnpackResult{}, fmt.Errorf(`open file "%s" error: %w`, name, err)
	}
	defer f.Close()

	return Unpack(ctx, f, optFns...)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
