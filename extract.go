package uzip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nguyengg/uzip/util"
	"github.com/nguyengg/uzip/zip/scan"
	"github.com/spf13/afero"
)

const defaultBufferSize = 32 * 1024

// ExtractOptions customises Extract.
type ExtractOptions struct {
	// Fs is the file system that output files are created in.
	//
	// By default, afero.NewOsFs is used.
	Fs afero.Fs

	// Dir is the directory that output files are created in. It must already exist.
	//
	// By default, the current working directory is used.
	Dir string

	// NoOverwrite prevents an existing file from being truncated.
	//
	// If true, a new name is picked with util.OpenExclFile instead, e.g. "a-1.txt", "a-2.txt", etc.
	NoOverwrite bool

	// KeepPartial keeps the output file of a failed copy instead of removing it.
	KeepPartial bool

	// BufferSize is the size of the copy buffer.
	//
	// By default, 32 KiB is used.
	BufferSize int

	// Perm is the permission of newly created files.
	//
	// By default, 0666 (before umask) is used.
	Perm os.FileMode

	// OnCreate is called right after the output file has been created and before any byte is copied.
	OnCreate func(e scan.Entry, path string)

	// OnProgress is called after every write with the number of bytes copied so far.
	OnProgress func(e scan.Entry, written int64)
}

func newExtractOptions(optFns []func(*ExtractOptions)) *ExtractOptions {
	opts := &ExtractOptions{
		Fs:         afero.NewOsFs(),
		Dir:        ".",
		BufferSize: defaultBufferSize,
		Perm:       0666,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	return opts
}

// Extract copies the raw payload of the given entry from src to a new file named after [scan.Entry.Name].
//
// The local header h must have been read with scan.ReadLocalHeader for the same entry. The payload is copied verbatim:
// it is never decompressed and its checksum is never verified. Exactly [scan.Entry.CompressedSize] bytes are copied
// upon a nil error.
//
// The path of the output file is returned as soon as it has been created, even if the copy fails. If the copy does
// fail, the output file is removed unless [ExtractOptions.KeepPartial] is true. The returned error wraps
// ErrInvalidOutputName, ErrCreateDestination, or ErrTruncatedPayload where applicable.
func Extract(ctx context.Context, src io.ReadSeeker, e scan.Entry, h scan.LocalHeader, optFns ...func(*ExtractOptions)) (path string, written int64, err error) {
	return extract(ctx, src, e, h, newExtractOptions(optFns), nil)
}

func extract(ctx context.Context, src io.ReadSeeker, e scan.Entry, h scan.LocalHeader, opts *ExtractOptions, buf []byte) (path string, written int64, err error) {
	switch e.Name {
	case "", ".", "..":
		return "", 0, fmt.Errorf(`%w: "%s"`, ErrInvalidOutputName, e.Name)
	}

	if _, err = src.Seek(h.DataOffset(), io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("set read offset to 0x%x error: %w", h.DataOffset(), err)
	}

	f, err := opts.create(e.Name)
	if err != nil {
		return "", 0, fmt.Errorf(`%w "%s": %w`, ErrCreateDestination, e.Name, err)
	}

	path = f.Name()
	if opts.OnCreate != nil {
		opts.OnCreate(e, path)
	}

	if buf == nil {
		buf = make([]byte, opts.BufferSize)
	}

	var w io.Writer = f
	if opts.OnProgress != nil {
		w = &progressWriter{w: f, fn: func(written int64) { opts.OnProgress(e, written) }}
	}

	written, err = CopyNWithContext(ctx, w, src, int64(e.CompressedSize), buf)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf(`close file "%s" error: %w`, path, cerr)
	}

	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncatedPayload, e.CompressedSize, written)
		}

		if !opts.KeepPartial {
			_ = opts.Fs.Remove(path)
		}

		return path, written, err
	}

	return path, written, nil
}

// create opens the output file for the given sanitized name.
func (opts *ExtractOptions) create(name string) (afero.File, error) {
	if opts.NoOverwrite {
		stem, ext := util.StemAndExt(name)
		if stem == "." {
			// a name such as ".txt" is all extension.
			stem, ext = name, ""
		}

		return util.OpenExclFile(opts.Fs, opts.Dir, stem, ext, opts.Perm)
	}

	return opts.Fs.OpenFile(filepath.Join(opts.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, opts.Perm)
}

// progressWriter reports the cumulative number of bytes written after every Write.
type progressWriter struct {
	w       io.Writer
	fn      func(written int64)
	written int64
}

func (p *progressWriter) Write(b []byte) (n int, err error) {
	n, err = p.w.Write(b)
	p.written += int64(n)
	p.fn(p.written)
	return
}
