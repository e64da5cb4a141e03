package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/uzip/internal"
	"github.com/nguyengg/uzip/internal/config"
	"github.com/nguyengg/uzip/internal/extract"
	"github.com/nguyengg/uzip/s3readseeker"
	"github.com/nguyengg/uzip/zip/scan"
	"github.com/spf13/afero"
)

// Command extracts the raw payload of every entry of every archive given as positional arguments.
type Command struct {
	Dir           flags.Filename `short:"d" long:"dir" description:"directory to write extracted files to" value-name:"DIR"`
	Placeholder   string         `long:"placeholder" description:"byte that replaces path separators in entry names" value-name:"CHAR"`
	MaxNameLength int            `long:"max-name-length" description:"longest accepted entry name; a longer one fails the whole archive" value-name:"N"`
	NoOverwrite   bool           `short:"n" long:"no-overwrite" description:"pick a new name such as a-1.txt instead of truncating an existing file"`
	KeepPartial   bool           `long:"keep-partial" description:"keep the output file of a failed copy instead of removing it"`
	SortByOffset  bool           `long:"sort-by-offset" description:"extract entries in local header offset order instead of central directory order"`
	FailFast      bool           `long:"fail-fast" description:"stop at the first archive that cannot be processed"`
	Progress      bool           `long:"progress" description:"show a progress bar for every entry"`
	Profile       string         `short:"p" long:"profile" description:"AWS profile used to read s3://bucket/key archives" value-name:"PROFILE"`

	Args struct {
		Archives []string `positional-arg-name:"archive" description:"local ZIP files or s3://bucket/key URIs" required:"yes"`
	} `positional-args:"yes"`

	fs             afero.Fs
	stdout, stderr io.Writer
	newS3Client    func(ctx context.Context, bucket string) (s3readseeker.ReadSeekerClient, error)
}

// New returns a Command whose options default to the given configuration.
//
// Flags given on the command line override these defaults.
func New(c config.UnpackConfig) *Command {
	cmd := &Command{
		Dir:           ".",
		Placeholder:   string(scan.DefaultPlaceholder),
		MaxNameLength: scan.DefaultMaxNameLength,
		NoOverwrite:   c.NoOverwrite,
		KeepPartial:   c.KeepPartial,
		SortByOffset:  c.SortByOffset,
		FailFast:      c.FailFast,
		Progress:      c.Progress,
	}

	if c.Dir != "" {
		cmd.Dir = flags.Filename(c.Dir)
	}
	if c.Placeholder != "" {
		cmd.Placeholder = c.Placeholder
	}
	if c.MaxNameLength != 0 {
		cmd.MaxNameLength = c.MaxNameLength
	}

	return cmd
}

// NewParser returns the parser for the given command.
func NewParser(c *Command) (*flags.Parser, error) {
	p := flags.NewNamedParser("uzip", flags.Default)
	p.ShortDescription = "raw ZIP entry extractor"
	p.LongDescription = "Extracts the stored bytes of every entry of ZIP archives without decompressing them.\n\n" +
		"Defaults can be set in section [unpack] of a .uzip file in the working directory or any of its ancestors."
	if _, err := p.AddGroup("Options", "", c); err != nil {
		return nil, err
	}

	return p, nil
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	if len(c.Placeholder) != 1 {
		return fmt.Errorf(`invalid placeholder "%s": must be exactly one byte`, c.Placeholder)
	}
	if c.MaxNameLength <= 0 || c.MaxNameLength > 0xffff {
		return fmt.Errorf("invalid max name length %d: must be in range [1, 65535]", c.MaxNameLength)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if c.Profile != "" {
		config.DefaultLoader.Profile = c.Profile
	}

	fs := c.fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(string(c.Dir), 0755); err != nil {
		return fmt.Errorf(`create output directory "%s" error: %w`, c.Dir, err)
	}

	d := &extract.Driver{
		Fs:            fs,
		Dir:           string(c.Dir),
		Placeholder:   c.Placeholder[0],
		MaxNameLength: c.MaxNameLength,
		NoOverwrite:   c.NoOverwrite,
		KeepPartial:   c.KeepPartial,
		SortByOffset:  c.SortByOffset,
		Progress:      c.Progress,
		Stdout:        c.stdout,
		Stderr:        c.stderr,
		NewS3Client:   c.newS3Client,
	}

	stderr := c.stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	success, failed := 0, 0
	n := len(c.Args.Archives)
	for i, name := range c.Args.Archives {
		logger := internal.NewLogger(stderr, i, n, name)

		_, err := d.Unpack(internal.WithLogger(ctx, logger), name)
		if err == nil {
			success++
			continue
		}

		if ctx.Err() != nil {
			logger.Printf("interrupted: %v", err)
			return ctx.Err()
		}

		logger.Printf("error: %v", err)
		failed++

		if c.FailFast {
			break
		}
	}

	log.New(stderr, "", 0).Printf("successfully unpacked %d/%d archives", success, n)
	if failed != 0 {
		return fmt.Errorf("%d/%d archives could not be unpacked", failed, n)
	}

	return nil
}
