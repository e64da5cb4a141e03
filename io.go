package uzip

import (
	"context"
	"fmt"
	"io"
)

// CopyNWithContext is a variant of io.CopyN that is cancellable via context.
//
// Similar to io.CopyBuffer, if buf is nil, a new buffer of size 32*1024 is created. Unlike io.CopyN, it does not matter
// if src implements [io.WriterTo] or dst implements [io.ReaderFrom] because those interfaces do not support context.
//
// Exactly n bytes are copied upon a nil error. If src ends early, the number of bytes copied so far is returned along
// with io.ErrUnexpectedEOF.
//
// The context is checked for done status after every write. As a result, having too small a buffer may introduce too
// much overhead, while having a very large buffer may cause context cancellation to have a delayed effect.
func CopyNWithContext(ctx context.Context, dst io.Writer, src io.Reader, n int64, buf []byte) (written int64, err error) {
	if buf == nil {
		buf = make([]byte, 32*1024)
	}

	var nr, nw int
	for written < n {
		nr, err = src.Read(buf[:min(int64(len(buf)), n-written)])

		if nr > 0 {
			switch nw, err = dst.Write(buf[0:nr]); {
			case err != nil:
				return written, err
			case nr < nw:
				return written, io.ErrShortWrite
			case nr != nw:
				return written, fmt.Errorf("invalid write: expected to write %d bytes, wrote %d bytes instead", nr, nw)
			}

			written += int64(nw)

			select {
			case <-ctx.Done():
				return written, ctx.Err()
			default:
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	if written < n {
		return written, io.ErrUnexpectedEOF
	}

	return written, nil
}
