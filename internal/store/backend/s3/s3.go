// Package s3 stores documents as JSON objects in an S3 compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vesaa/backdrop/internal/store/common"
)

// Backend implements backend.Backend for AWS S3.
type Backend struct {
	logger log.Logger

	bucket string
	prefix string
	client *s3.Client
}

// New creates an S3 backend.
func New(ctx context.Context, l log.Logger, c Config) (*Backend, error) {
	if c.Region == "" || c.Bucket == "" {
		return nil, errors.New("missing required S3 configuration: region or bucket not specified")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.Key != "" && c.Secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.Key, c.Secret, ""),
		))
	} else {
		level.Info(l).Log("msg", "no static S3 credentials provided, using the default credential chain")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		level.Error(l).Log("msg", "could not load AWS configuration", "err", err)
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.PathStyle
	})

	return &Backend{
		logger: l,
		bucket: c.Bucket,
		prefix: c.Prefix,
		client: client,
	}, nil
}

// Get downloads the object for p.
func (b *Backend) Get(ctx context.Context, p string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(common.ObjectKey(b.prefix, p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get the object, %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read the object, %w", err)
	}
	return body, nil
}

// Put uploads body as the object for p, replacing any previous version.
func (b *Backend) Put(ctx context.Context, p string, body []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(common.ObjectKey(b.prefix, p)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put the object, %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
