// Package s3readseeker reads an S3 object as an io.ReadSeeker using ranged GetObject calls.
//
// This lets an archive stored in S3 be scanned backwards for its EOCD record and then read at arbitrary offsets without
// downloading the whole object first.
package s3readseeker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReadSeeker uses ranged GetObject to implement io.ReadSeeker and io.ReaderAt.
type ReadSeeker interface {
	io.ReadSeeker
	io.ReaderAt

	// Size returns the size of the S3 object that was determined from the initial HeadObject.
	Size() int64
}

// ReadSeekerClient abstracts the S3 APIs that are needed to implement ReadSeeker.
type ReadSeekerClient interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// DefaultBufferSize is the default value for Options.BufferSize.
const DefaultBufferSize = 64 * 1024

// Options customises New.
type Options struct {
	// BufferSize is used to provide buffered read-ahead for every Read call.
	//
	// By default, DefaultBufferSize is used so that consecutive small Reads (such as a local file header followed by
	// its payload) don't end up with several GetObject calls if one bigger GetObject call is more efficient.
	//
	// Pass zero or a negative value to disable this feature.
	BufferSize int

	// CtxFn returns a context.Context to be used with every GetObject or HeadObject call.
	//
	// By default, context.Background is used.
	CtxFn func() context.Context

	// ExpectedBucketOwner is passed to every GetObject and HeadObject call if not nil.
	ExpectedBucketOwner *string
}

// New returns a ReadSeeker with the given bucket and key.
//
// The client will be used to determine a valid size for the file.
func New(client ReadSeekerClient, bucket, key string, optFns ...func(*Options)) (ReadSeeker, error) {
	opts := &Options{
		BufferSize: DefaultBufferSize,
		CtxFn:      context.Background,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.CtxFn == nil {
		opts.CtxFn = context.Background
	}

	headObjectOutput, err := client.HeadObject(opts.CtxFn(), &s3.HeadObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: opts.ExpectedBucketOwner,
	})
	if err != nil {
		return nil, fmt.Errorf(`determine size of "s3://%s/%s" error: %w`, bucket, key, err)
	}

	return &readSeeker{
		client:              client,
		bucket:              bucket,
		key:                 key,
		expectedBucketOwner: opts.ExpectedBucketOwner,
		ctxFn:               opts.CtxFn,
		size:                aws.ToInt64(headObjectOutput.ContentLength),
		bufferSize:          max(0, opts.BufferSize),
	}, nil
}

// readSeeker implements ReadSeeker.
//
// buf always contains the bytes starting at off, if any.
type readSeeker struct {
	client              ReadSeekerClient
	bucket, key         string
	expectedBucketOwner *string
	ctxFn               func() context.Context
	off, size           int64
	buf                 bytes.Buffer
	bufferSize          int
}

func (r *readSeeker) Size() int64 {
	return r.size
}

func (r *readSeeker) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.off >= r.size {
		return 0, io.EOF
	}

	if r.buf.Len() == 0 {
		if err = r.fill(len(p)); err != nil {
			return 0, err
		}
	}

	n, _ = r.buf.Read(p)
	r.off += int64(n)
	return n, nil
}

// fill replaces the content of the buffer with the next range starting at off.
func (r *readSeeker) fill(m int) error {
	rangeEnd := min(r.size, r.off+int64(max(m, r.bufferSize))) - 1

	body, err := r.getObjectRange(r.off, rangeEnd)
	if err != nil {
		return err
	}
	defer body.Close()

	r.buf.Reset()
	if _, err = r.buf.ReadFrom(body); err != nil {
		r.buf.Reset()
		return fmt.Errorf("read range [%d, %d] error: %w", r.off, rangeEnd, err)
	}
	if r.buf.Len() == 0 {
		return io.ErrUnexpectedEOF
	}

	return nil
}

func (r *readSeeker) ReadAt(p []byte, off int64) (n int, err error) {
	m := int64(len(p))
	if m == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, ErrSeekBeforeFirstByte
	}
	if off >= r.size {
		return 0, io.EOF
	}

	end := min(r.size, off+m)
	body, err := r.getObjectRange(off, end-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if n, err = io.ReadFull(body, p[:end-off]); err == nil && end-off < m {
		err = io.EOF
	}

	return
}

func (r *readSeeker) getObjectRange(start, end int64) (io.ReadCloser, error) {
	getObjectOutput, err := r.client.GetObject(r.ctxFn(), &s3.GetObjectInput{
		Bucket:              aws.String(r.bucket),
		Key:                 aws.String(r.key),
		ExpectedBucketOwner: r.expectedBucketOwner,
		Range:               aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, fmt.Errorf("get range [%d, %d] error: %w", start, end, err)
	}

	return getObjectOutput.Body, nil
}

var ErrSeekBeforeFirstByte = errors.New("seek ends up before first byte")
var ErrInvalidWhence = errors.New("invalid whence")

// Seek implements io.Seeker.
//
// Seeking to or past the end of the object is allowed; subsequent Reads return io.EOF. Buffered bytes are kept if the
// new offset is within the buffer.
func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	var off int64
	switch whence {
	case io.SeekStart:
		off = offset
	case io.SeekCurrent:
		off = r.off + offset
	case io.SeekEnd:
		off = r.size + offset
	default:
		return r.off, ErrInvalidWhence
	}

	if off < 0 {
		return r.off, ErrSeekBeforeFirstByte
	}

	if delta := off - r.off; delta >= 0 && delta <= int64(r.buf.Len()) {
		r.buf.Next(int(delta))
	} else {
		r.buf.Reset()
	}

	r.off = off
	return r.off, nil
}
