// Package s3 implements storage.Backend on S3-compatible object storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/florinutz/icelake/storage"
)

// API is the subset of *s3.Client the backend uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds connection settings. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Backend reads objects below a key prefix in a single bucket.
type Backend struct {
	client API
	bucket string
	prefix string // "" or ends with "/"
}

// ParseURI splits an s3://bucket/prefix URI.
func ParseURI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 uri %s: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("parse s3 uri %s: scheme %q is not s3", uri, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("parse s3 uri %s: missing bucket", uri)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// New builds an S3 client from cfg and returns a backend rooted at
// bucket/prefix.
func New(ctx context.Context, bucket, prefix string, cfg Config) (*Backend, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), bucket, prefix), nil
}

// NewWithClient returns a backend using an existing client.
func NewWithClient(client API, bucket, prefix string) *Backend {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Backend{client: client, bucket: bucket, prefix: prefix}
}

// Name returns "s3".
func (b *Backend) Name() string { return "s3" }

func (b *Backend) key(p string) string {
	return b.prefix + strings.TrimPrefix(p, "/")
}

func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head s3://%s/%s: %w", b.bucket, b.key(p), err)
}

func (b *Backend) Read(ctx context.Context, p string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get s3://%s/%s: %w", b.bucket, b.key(p), storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", b.bucket, b.key(p), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", b.bucket, b.key(p), err)
	}
	return data, nil
}

// List returns the objects directly below the "directory" of prefix, in
// the key order S3 returns them. Common prefixes are skipped.
func (b *Backend) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	full := b.key(prefix)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(full),
		Delimiter: aws.String("/"),
	})

	var out []storage.Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", b.bucket, full, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, storage.Entry{
				Path: strings.TrimPrefix(key, b.prefix),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
