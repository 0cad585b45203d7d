package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"smartkeiba/internal/config"
	"smartkeiba/internal/domain"
)

const defaultS3Region = "us-east-1"

var _ domain.Sink = (*S3)(nil)

// S3 stores files in an S3-compatible bucket.
type S3 struct {
	client *s3.Client
	loc    Location
}

// NewS3 creates an S3 sink. Static credentials from cfg are used with
// path-style addressing against a custom endpoint; otherwise the default
// AWS credential chain applies.
func NewS3(ctx context.Context, loc Location, cfg config.SinkConfig) (*S3, error) {
	region := defaultS3Region
	if cfg.S3Region != nil && *cfg.S3Region != "" {
		region = *cfg.S3Region
	}

	if cfg.HasS3Credentials() {
		opts := s3.Options{
			Region:      region,
			Credentials: credentials.NewStaticCredentialsProvider(*cfg.S3KeyID, *cfg.S3Secret, ""),
		}
		if cfg.S3Endpoint != nil && *cfg.S3Endpoint != "" {
			opts.BaseEndpoint = aws.String(endpointURL(*cfg.S3Endpoint))
			opts.UsePathStyle = true
		}
		return &S3{client: s3.New(opts), loc: loc}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != nil && *cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL(*cfg.S3Endpoint))
			o.UsePathStyle = true
		})
	}
	return &S3{client: s3.NewFromConfig(awsCfg, s3Opts...), loc: loc}, nil
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Put uploads r to bucket/prefix/name.
func (s *S3) Put(ctx context.Context, name string, r io.Reader) error {
	body, err := seekable(r)
	if err != nil {
		return fmt.Errorf("buffer %s: %w", name, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.loc.Host),
		Key:         aws.String(s.loc.key(name)),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	return err
}

func (s *S3) String() string { return "s3://" + s.loc.Host + "/" + s.loc.Prefix }
