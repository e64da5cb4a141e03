package uzip

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/uzip/internal/ziptest"
	"github.com/nguyengg/uzip/zip/scan"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

// withFs extracts to the out directory of the given file system.
func withFs(fs afero.Fs) func(*UnpackOptions) {
	return func(options *UnpackOptions) {
		options.ExtractOptions = append(options.ExtractOptions, func(options *ExtractOptions) {
			options.Fs = fs
			options.Dir = "out"
		})
	}
}

func TestUnpack(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "a.txt", Data: []byte("abcd")},
		{Name: "b.txt"},
	}, nil)

	fs := afero.NewMemMapFs()
	var count int
	var extracted []string
	res, err := Unpack(context.Background(), bytes.NewReader(a.Bytes), withFs(fs), func(options *UnpackOptions) {
		options.OnCentralDirectory = func(r scan.EOCDRecord, entries []scan.Entry) {
			count = r.EntryCount()
		}
		options.OnExtract = func(e scan.Entry, path string, written int64) {
			extracted = append(extracted, e.Name)
		}
		options.OnSkip = func(e scan.Entry, err error) {
			assert.Failf(t, "unexpected skip", "entry %s skipped: %v", e.Name, err)
		}
	})
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"a.txt", "b.txt"}, extracted)
	assert.Equal(t, UnpackResult{
		Entries:   2,
		Extracted: 2,
		Written:   4,
		Paths:     []string{filepath.Join("out", "a.txt"), filepath.Join("out", "b.txt")},
	}, res)

	data, err := afero.ReadFile(fs, filepath.Join("out", "a.txt"))
	assert.NoErrorf(t, err, "ReadFile() error = %v", err)
	assert.Equal(t, []byte("abcd"), data)

	data, err = afero.ReadFile(fs, filepath.Join("out", "b.txt"))
	assert.NoErrorf(t, err, "ReadFile() error = %v", err)
	assert.Empty(t, data)
}

func TestUnpack_Empty(t *testing.T) {
	a := ziptest.Build(nil, nil)

	fs := afero.NewMemMapFs()
	res, err := Unpack(context.Background(), bytes.NewReader(a.Bytes), withFs(fs))
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, UnpackResult{}, res)

	exists, err := afero.DirExists(fs, "out")
	assert.NoErrorf(t, err, "DirExists() error = %v", err)
	assert.False(t, exists)
}

func TestUnpack_NoEOCD(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a.txt", Data: []byte("abcd")}}, nil)

	fs := afero.NewMemMapFs()
	_, err := Unpack(context.Background(), bytes.NewReader(a.Bytes[:a.CDOffset]), withFs(fs))
	assert.ErrorIsf(t, err, scan.ErrNoEOCDFound, "Unpack() error = %v, want ErrNoEOCDFound", err)

	exists, err := afero.Exists(fs, filepath.Join("out", "a.txt"))
	assert.NoErrorf(t, err, "Exists() error = %v", err)
	assert.False(t, exists)
}

func TestUnpack_CorruptedSignature(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a.txt", Data: []byte("abcd")}}, nil)
	data := bytes.Clone(a.Bytes)
	data[a.Offsets[0]+3] = 0xff

	fs := afero.NewMemMapFs()
	var skipped []error
	res, err := Unpack(context.Background(), bytes.NewReader(data), withFs(fs), func(options *UnpackOptions) {
		options.OnSkip = func(e scan.Entry, err error) {
			skipped = append(skipped, err)
		}
	})
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, UnpackResult{Entries: 1, Skipped: 1}, res)
	if assert.Len(t, skipped, 1) {
		assert.ErrorIs(t, skipped[0], scan.ErrCorruptedEntry)
	}

	exists, err := afero.Exists(fs, filepath.Join("out", "a.txt"))
	assert.NoErrorf(t, err, "Exists() error = %v", err)
	assert.False(t, exists)
}

func TestUnpack_MismatchedNameLength(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "a.txt", Data: []byte("abcd")},
		{Name: "b.txt", Data: []byte("efgh"), LocalName: []byte("b.txt.orig")},
		{Name: "c.txt", Data: []byte("ijkl")},
	}, nil)

	fs := afero.NewMemMapFs()
	var skipped []string
	res, err := Unpack(context.Background(), bytes.NewReader(a.Bytes), withFs(fs), func(options *UnpackOptions) {
		options.OnSkip = func(e scan.Entry, err error) {
			assert.ErrorIs(t, err, scan.ErrCorruptedEntry)
			skipped = append(skipped, e.Name)
		}
	})
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, []string{"b.txt"}, skipped)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{filepath.Join("out", "a.txt"), filepath.Join("out", "c.txt")}, res.Paths)

	exists, err := afero.Exists(fs, filepath.Join("out", "b.txt"))
	assert.NoErrorf(t, err, "Exists() error = %v", err)
	assert.False(t, exists)
}

func TestUnpack_Separators(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "path/to/a.txt", Data: []byte("abcd")},
		{Name: `path\to\b.txt`, Data: []byte("efgh")},
		{Name: "empty/"},
	}, nil)

	fs := afero.NewMemMapFs()
	res, err := Unpack(context.Background(), bytes.NewReader(a.Bytes), withFs(fs))
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, []string{
		filepath.Join("out", "path_to_a.txt"),
		filepath.Join("out", "path_to_b.txt"),
		filepath.Join("out", "empty_"),
	}, res.Paths)

	// no directory is ever created under the output directory.
	exists, err := afero.DirExists(fs, filepath.Join("out", "path"))
	assert.NoErrorf(t, err, "DirExists() error = %v", err)
	assert.False(t, exists)
}

func TestUnpack_Placeholder(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "path/to/a.txt", Data: []byte("abcd")}}, nil)

	fs := afero.NewMemMapFs()
	res, err := Unpack(context.Background(), bytes.NewReader(a.Bytes), withFs(fs), func(options *UnpackOptions) {
		options.ScanOptions = append(options.ScanOptions, func(options *scan.Options) {
			options.Placeholder = '+'
		})
	})
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, []string{filepath.Join("out", "path+to+a.txt")}, res.Paths)
}

func TestUnpack_TruncatedPayload(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "a.txt", Data: []byte("abcd")},
		{Name: "b.txt", Data: []byte("efgh")},
	}, nil)

	// the second entry claims far more bytes than there are left in the archive.
	data := bytes.Clone(a.Bytes)
	cdfh := a.CDOffset + 46 + int64(len("a.txt"))
	binary.LittleEndian.PutUint32(data[cdfh+20:], 1000)

	fs := afero.NewMemMapFs()
	var skipped []error
	res, err := Unpack(context.Background(), bytes.NewReader(data), withFs(fs), func(options *UnpackOptions) {
		options.OnSkip = func(e scan.Entry, err error) {
			skipped = append(skipped, err)
		}
	})
	assert.NoErrorf(t, err, "Unpack() error = %v", err)
	assert.Equal(t, 1, res.Extracted)
	if assert.Len(t, skipped, 1) {
		assert.ErrorIs(t, skipped[0], ErrTruncatedPayload)
	}

	exists, err := afero.Exists(fs, filepath.Join("out", "b.txt"))
	assert.NoErrorf(t, err, "Exists() error = %v", err)
	assert.False(t, exists)
}

func TestUnpack_SortByOffset(t *testing.T) {
	entries := []ziptest.Entry{
		{Name: "a.txt", Data: []byte("abcd")},
		{Name: "b.txt", Data: []byte("efgh")},
		{Name: "c.txt", Data: []byte("ijkl")},
	}
	a := ziptest.BuildWithOrder(entries, nil, []int{2, 0, 1})

	tests := []struct {
		name         string
		sortByOffset bool
		want         []string
	}{
		{
			name: "central directory order",
			want: []string{"c.txt", "a.txt", "b.txt"},
		},
		{
			name:         "local header offset order",
			sortByOffset: true,
			want:         []string{"a.txt", "b.txt", "c.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			_, err := Unpack(context.Background(), bytes.NewReader(a.Bytes), withFs(afero.NewMemMapFs()), func(options *UnpackOptions) {
				options.SortByOffset = tt.sortByOffset
				options.OnExtract = func(e scan.Entry, path string, written int64) {
					got = append(got, e.Name)
				}
			})
			assert.NoErrorf(t, err, "Unpack() error = %v", err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnpack_ArchiveZip(t *testing.T) {
	// deflated entries are extracted verbatim so they must match archive/zip's raw reader byte for byte.
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, name := range []string{"test/a.txt", "test/path/b.txt", "test/another/path/c.txt"} {
		w, err := zw.Create(name)
		assert.NoErrorf(t, err, "Create(%s) error = %v", name, err)
		_, err = w.Write(bytes.Repeat([]byte(name), 100))
		assert.NoErrorf(t, err, "Write(%s) error = %v", name, err)
	}
	err := zw.Close()
	assert.NoErrorf(t, err, "Close() error = %v", err)

	fs := afero.NewMemMapFs()
	res, err := Unpack(context.Background(), bytes.NewReader(buf.Bytes()), withFs(fs))
	assert.NoErrorf(t, err, "Unpack() error = %v", err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.NoErrorf(t, err, "NewReader(...) error = %v", err)
	assert.Len(t, res.Paths, len(zr.File))

	for i, f := range zr.File {
		r, err := f.OpenRaw()
		assert.NoErrorf(t, err, "OpenRaw(%s) error = %v", f.Name, err)
		want, err := io.ReadAll(r)
		assert.NoErrorf(t, err, "ReadAll(%s) error = %v", f.Name, err)

		got, err := afero.ReadFile(fs, res.Paths[i])
		assert.NoErrorf(t, err, "ReadFile(%s) error = %v", res.Paths[i], err)
		assert.Equalf(t, want, got, "mismatched raw payload for %s", f.Name)
	}
}

func TestUnpack_Cancelled(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a.txt", Data: []byte("abcd")}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Unpack(ctx, bytes.NewReader(a.Bytes), withFs(afero.NewMemMapFs()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnpackFile(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "a.txt", Data: []byte("abcd")},
		{Name: "path/to/b.txt", Data: []byte("efgh")},
	}, []byte("archive comment"))

	dir := t.TempDir()
	name := filepath.Join(dir, "test.zip")
	err := os.WriteFile(name, a.Bytes, 0644)
	assert.NoErrorf(t, err, "WriteFile() error = %v", err)

	res, err := UnpackFile(context.Background(), name, func(options *UnpackOptions) {
		options.ExtractOptions = append(options.ExtractOptions, func(options *ExtractOptions) {
			options.Dir = dir
		})
	})
	assert.NoErrorf(t, err, "UnpackFile() error = %v", err)
	assert.Equal(t, 2, res.Extracted)

	data, err := os.ReadFile(filepath.Join(dir, "path_to_b.txt"))
	assert.NoErrorf(t, err, "ReadFile() error = %v", err)
	assert.Equal(t, []byte("efgh"), data)

	_, err = UnpackFile(context.Background(), filepath.Join(dir, "does-not-exist.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
