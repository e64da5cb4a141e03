// Package extract unpacks the archives given on the command line one at a time.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/uzip"
	"github.com/nguyengg/uzip/internal"
	"github.com/nguyengg/uzip/internal/config"
	"github.com/nguyengg/uzip/s3readseeker"
	"github.com/nguyengg/uzip/zip/scan"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

// ErrInvalidS3URI is returned if an archive name starts with "s3://" but does not name both a bucket and a key.
var ErrInvalidS3URI = errors.New(`invalid S3 URI: expected "s3://bucket/key"`)

// Driver unpacks archives named by a local path or an S3 URI.
//
// The zero value is ready to use: files are written to the current working directory of the OS file system.
type Driver struct {
	// Fs is the file system that output files are created in.
	//
	// By default, afero.NewOsFs is used.
	Fs afero.Fs
	// Dir is the output directory. It must already exist.
	Dir string

	// Placeholder replaces path separators in entry names. By default, scan.DefaultPlaceholder is used.
	Placeholder byte
	// MaxNameLength is the longest accepted entry name. By default, scan.DefaultMaxNameLength is used.
	MaxNameLength int

	NoOverwrite  bool
	KeepPartial  bool
	SortByOffset bool

	// Progress shows a progress bar for every entry instead of logging progress periodically.
	Progress bool

	// Stdout receives the entry count and per-entry lines. By default, os.Stdout is used.
	Stdout io.Writer
	// Stderr receives the progress bars. By default, os.Stderr is used.
	Stderr io.Writer

	// NewS3Client returns the client used to read archives from the given bucket.
	//
	// By default, config.NewS3ClientForBucket is used.
	NewS3Client func(ctx context.Context, bucket string) (s3readseeker.ReadSeekerClient, error)
}

// Unpack extracts the raw payload of every entry in the named archive.
//
// The archive is closed before Unpack returns. Warnings about skipped entries and the final summary are written to
// the logger attached to ctx via internal.WithLogger.
func (d *Driver) Unpack(ctx context.Context, name string) (res uzip.UnpackResult, err error) {
	logger := internal.MustLogger(ctx)

	src, closer, err := d.open(ctx, name)
	if err != nil {
		return res, err
	}
	defer closer()

	var (
		stdout    = d.stdout()
		bar       *progressbar.ProgressBar
		sometimes *rate.Sometimes
	)

	res, err = uzip.Unpack(ctx, src, func(opts *uzip.UnpackOptions) {
		opts.ScanOptions = append(opts.ScanOptions, func(opts *scan.Options) {
			if d.Placeholder != 0 {
				opts.Placeholder = d.Placeholder
			}
			if d.MaxNameLength != 0 {
				opts.MaxNameLength = d.MaxNameLength
			}
		})

		opts.ExtractOptions = append(opts.ExtractOptions, func(opts *uzip.ExtractOptions) {
			if d.Fs != nil {
				opts.Fs = d.Fs
			}
			opts.Dir = d.Dir
			opts.NoOverwrite = d.NoOverwrite
			opts.KeepPartial = d.KeepPartial

			opts.OnCreate = func(e scan.Entry, path string) {
				_, _ = fmt.Fprintf(stdout, "Unpacking `%s' (offset: 0x%08x) (csize: 0x%08x)\n", e.Name, e.Offset, e.CompressedSize)

				if d.Progress && e.CompressedSize > 0 {
					bar = internal.DefaultBytes(d.stderr(), int64(e.CompressedSize), e.Name)
					return
				}

				bar = nil
				sometimes = &rate.Sometimes{Interval: 5 * time.Second}
				sometimes.Do(func() {})
			}

			opts.OnProgress = func(e scan.Entry, written int64) {
				if bar != nil {
					_ = bar.Set64(written)
					return
				}

				sometimes.Do(func() {
					logger.Printf(`extracted %.2f%% of "%s" (%s) so far`, float64(written)/float64(e.CompressedSize)*100.0, e.Name, humanize.IBytes(uint64(e.CompressedSize)))
				})
			}
		})

		opts.SortByOffset = d.SortByOffset

		opts.OnCentralDirectory = func(r scan.EOCDRecord, _ []scan.Entry) {
			_, _ = fmt.Fprintf(stdout, "Total files in (`%s'): %d\n", name, r.EntryCount())
		}

		opts.OnSkip = func(e scan.Entry, err error) {
			if bar != nil {
				_ = bar.Exit()
				bar = nil
			}

			logger.Printf(`warning: skip entry "%s": %v`, e.Name, err)
		}

		opts.OnExtract = func(scan.Entry, string, int64) {
			if bar != nil {
				_ = bar.Finish()
				bar = nil
			}
		}
	})
	if bar != nil {
		_ = bar.Exit()
	}
	if err != nil {
		return res, err
	}

	logger.Printf("extracted %d/%d entries (%s)", res.Extracted, res.Entries, humanize.IBytes(uint64(res.Written)))
	return res, nil
}

// open returns the archive as an io.ReadSeeker along with the function to close it.
func (d *Driver) open(ctx context.Context, name string) (io.ReadSeeker, func(), error) {
	if !strings.HasPrefix(name, "s3://") {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, fmt.Errorf("open archive error: %w", err)
		}

		return f, func() { _ = f.Close() }, nil
	}

	bucket, key, err := ParseS3URI(name)
	if err != nil {
		return nil, nil, err
	}

	newS3Client := d.NewS3Client
	if newS3Client == nil {
		newS3Client = func(ctx context.Context, bucket string) (s3readseeker.ReadSeekerClient, error) {
			return config.NewS3ClientForBucket(ctx, bucket)
		}
	}

	client, err := newS3Client(ctx, bucket)
	if err != nil {
		return nil, nil, fmt.Errorf("create S3 client error: %w", err)
	}

	src, err := s3readseeker.New(client, bucket, key, func(opts *s3readseeker.Options) {
		opts.CtxFn = func() context.Context {
			return ctx
		}
		opts.ExpectedBucketOwner = config.ForBucket(bucket).ExpectedBucketOwner
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open archive error: %w", err)
	}

	return src, func() {}, nil
}

// ParseS3URI parses "s3://bucket/key" into its bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf(`%w, got "%s"`, ErrInvalidS3URI, uri)
	}

	return bucket, key, nil
}

func (d *Driver) stdout() io.Writer {
	if d.Stdout != nil {
		return d.Stdout
	}

	return os.Stdout
}

func (d *Driver) stderr() io.Writer {
	if d.Stderr != nil {
		return d.Stderr
	}

	return os.Stderr
}
