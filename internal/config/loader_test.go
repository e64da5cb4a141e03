package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testConfig = `
[unpack]
dir = out
placeholder = -
max-name-length = 255
no-overwrite = true
sort-by-offset = yes

[s3]
profile = default-profile

[s3://my-bucket]
aws-profile = bucket-profile
expected-bucket-owner = 123456789012
`

func TestLoader_LoadFrom(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, Name), []byte(testConfig), 0644)
	assert.NoErrorf(t, err, "WriteFile() error = %v", err)

	// a directory with the same name is not a config file so the search keeps going up.
	nested := filepath.Join(root, "a", "b")
	err = os.MkdirAll(filepath.Join(nested, Name), 0755)
	assert.NoErrorf(t, err, "MkdirAll() error = %v", err)

	l := &Loader{}
	path, err := l.LoadFrom(context.Background(), nested)
	assert.NoErrorf(t, err, "LoadFrom() error = %v", err)
	assert.Equal(t, filepath.Join(root, Name), path)

	assert.Equal(t, UnpackConfig{
		Dir:           "out",
		Placeholder:   "-",
		MaxNameLength: 255,
		NoOverwrite:   true,
		SortByOffset:  true,
	}, l.ForUnpack())

	c := l.ForBucket("my-bucket")
	assert.Equal(t, "bucket-profile", c.AWSProfile)
	if assert.NotNil(t, c.ExpectedBucketOwner) {
		assert.Equal(t, "123456789012", *c.ExpectedBucketOwner)
	}

	c = l.ForBucket("other-bucket")
	assert.Equal(t, "default-profile", c.AWSProfile)
	assert.Nil(t, c.ExpectedBucketOwner)
}

func TestLoader_LoadFrom_NotFound(t *testing.T) {
	l := &Loader{}
	path, err := l.LoadFrom(context.Background(), t.TempDir())
	assert.NoErrorf(t, err, "LoadFrom() error = %v", err)

	// the temp dir may be nested in a directory that has a config file of its own.
	if path == "" {
		assert.Equal(t, UnpackConfig{}, l.ForUnpack())
	}
}

func TestLoader_LoadFrom_Invalid(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, Name), []byte("[unpack\ndir = out"), 0644)
	assert.NoErrorf(t, err, "WriteFile() error = %v", err)

	l := &Loader{}
	path, err := l.LoadFrom(context.Background(), root)
	assert.Errorf(t, err, "LoadFrom() should have failed")
	assert.Equal(t, filepath.Join(root, Name), path)
	assert.Equal(t, UnpackConfig{}, l.ForUnpack())
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Loader{}).LoadFrom(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
