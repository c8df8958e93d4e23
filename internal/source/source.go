// Package source opens intake sheets from the local filesystem or from an
// S3-compatible bucket (AWS S3 or MinIO) addressed as s3://bucket/key.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/logging"
)

const s3Scheme = "s3://"

// ErrNotFound is returned when the file or object does not exist.
var ErrNotFound = errors.New("source not found")

// Config holds the S3 connection parameters. Credentials fall back to the
// default AWS chain when the static keys are empty.
type Config struct {
	Region          string
	Endpoint        string // optional; set for MinIO and other S3-compatible stores
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      *http.Client // optional; replaces the SDK's transport
}

// Opener reads sheets by location. The S3 client is created on first use so
// local-only runs never load AWS configuration.
type Opener struct {
	cfg Config

	once      sync.Once
	client    *s3.Client
	clientErr error
}

// New creates an Opener.
func New(cfg Config) *Opener {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return &Opener{cfg: cfg}
}

// IsS3 reports whether the location is an s3:// URL.
func IsS3(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// ParseS3 splits s3://bucket/key.
func ParseS3(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url %q needs a bucket and a key", location)
	}
	return bucket, key, nil
}

// Name returns the file name the sheet is known by: the base of the path
// or object key. The extension selects the sheet format.
func Name(location string) string {
	if IsS3(location) {
		if _, key, err := ParseS3(location); err == nil {
			return path.Base(key)
		}
	}
	return filepath.Base(location)
}

// Open returns the raw content at location.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsS3(location) {
		f, err := os.Open(location)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", location, err)
		}
		return f, nil
	}

	bucket, key, err := ParseS3(location)
	if err != nil {
		return nil, err
	}
	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("fetching sheet from s3", "bucket", bucket, "key", key)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("get %s: %w", location, err)
	}
	return out.Body, nil
}

// ReadSheet opens and parses the sheet at location.
func (o *Opener) ReadSheet(ctx context.Context, location string, opts core.ReadOptions) (*core.Sheet, error) {
	rc, err := o.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return core.ReadSheet(Name(location), rc, opts)
}

func (o *Opener) s3Client(ctx context.Context) (*s3.Client, error) {
	o.once.Do(func() {
		loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.cfg.Region)}
		if o.cfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(o.cfg.AccessKeyID, o.cfg.SecretAccessKey, "")))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			o.clientErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		o.client = s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
			opts.UsePathStyle = o.cfg.PathStyle
			if o.cfg.Endpoint != "" {
				opts.BaseEndpoint = aws.String(o.cfg.Endpoint)
			}
			if o.cfg.HTTPClient != nil {
				opts.HTTPClient = o.cfg.HTTPClient
			}
		})
	})
	return o.client, o.clientErr
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
