package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// OpenExclFile creates a new file for writing with the condition that the file did not exist prior to this call.
//
// The second argument is the parent directory of the file to be created. The third argument is the stem of the file,
// the fourth the extension. For example, the stem of "hello-world.txt" is "hello-world", its ext ".txt". But with
// "hello-world.txt.bin", filepath.Ext will think ".bin" is the ext while this method allows you to choose ".txt.bin"
// as extension instead. If you use ".txt.bin" as extension, the naming is more natural: it will be
// "hello-world-1.txt.bin" or "hello-world-2.txt.bin" instead of "hello-world.txt-1.bin". See StemAndExt for a variant
// of filepath.Ext that allows up to 6 characters to be counted as ext.
//
// The file is opened with flag `os.O_RDWR|os.O_CREATE|os.O_EXCL`. Caller is responsible for closing the file upon a
// successful return.
//
// This method gives you a more predictable name over afero.TempFile at the cost of performance and concurrency.
func OpenExclFile(fs afero.Fs, parent, stem, ext string, perm os.FileMode) (file afero.File, err error) {
	name := filepath.Join(parent, stem+ext)
	for i := 0; ; {
		switch file, err = fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm); {
		case err == nil:
			return
		case errors.Is(err, os.ErrExist):
			i++
			name = filepath.Join(parent, fmt.Sprintf("%s-%d%s", stem, i, ext))
		default:
			return nil, fmt.Errorf("create file error: %w", err)
		}
	}
}
