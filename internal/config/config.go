package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

// UnpackConfig contains the [unpack] settings.
//
// The zero value of every field means the setting was not given and the built-in default applies.
type UnpackConfig struct {
	Dir           string
	Placeholder   string
	MaxNameLength int
	NoOverwrite   bool
	KeepPartial   bool
	SortByOffset  bool
	FailFast      bool
	Progress      bool
}

// ForUnpack returns configuration for unpack.
func (l *Loader) ForUnpack() (c UnpackConfig) {
	sec := l.section("unpack")
	if sec == nil {
		return c
	}

	c.Dir = sec.Key("dir").String()
	c.Placeholder = sec.Key("placeholder").String()
	c.MaxNameLength = sec.Key("max-name-length").MustInt(0)
	c.NoOverwrite = sec.Key("no-overwrite").MustBool(false)
	c.KeepPartial = sec.Key("keep-partial").MustBool(false)
	c.SortByOffset = sec.Key("sort-by-offset").MustBool(false)
	c.FailFast = sec.Key("fail-fast").MustBool(false)
	c.Progress = sec.Key("progress").MustBool(false)

	return
}

// ForUnpack calls Loader.ForUnpack on the DefaultLoader instance.
func ForUnpack() (c UnpackConfig) {
	return DefaultLoader.ForUnpack()
}

// BucketConfig contains configuration settings for reading archives from a specific bucket.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
}

// ForBucket returns configuration for a specific bucket.
//
// Settings from section [s3://bucket] take precedence over the ones from section [s3].
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket

	if sec := l.section("s3"); sec != nil {
		c.AWSProfile = sec.Key("profile").String()
	}

	sec := l.section("s3://" + bucket)
	if sec == nil {
		return c
	}

	if v := sec.Key("aws-profile").String(); v != "" {
		c.AWSProfile = v
	}
	if sec.HasKey("expected-bucket-owner") {
		c.ExpectedBucketOwner = aws.String(sec.Key("expected-bucket-owner").String())
	}

	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) (c BucketConfig) {
	return DefaultLoader.ForBucket(bucket)
}
