/*
Package archive keeps a copy of every newsletter issue in an S3 bucket. In
development the bucket is served by the s3dev command.
*/
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/oops"
)

type Archive struct {
	client *s3.Client
	bucket string
}

// New returns nil when no bucket is configured. A nil *Archive is valid and
// archives nothing.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if !cfg.Configured() {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.New(err, "failed to load archive S3 config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		// S3-compatible stores (and s3dev) don't understand aws-chunked uploads
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

var reIllegalKeyChars = regexp.MustCompile(`[^a-z0-9\-]+`)

func slugify(s string) string {
	slug := strings.Trim(reIllegalKeyChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	if slug == "" {
		return "issue"
	}
	return slug
}

// NewsletterKey is where an issue sent at the given time is stored.
func NewsletterKey(subject string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("newsletters/%s/%s-%s-%s.html",
		at.Format("2006"),
		at.Format("2006-01-02T150405Z"),
		slugify(subject),
		uuid.New().String()[:8],
	)
}

// PutNewsletter stores a rendered issue and returns its key. The bucket is
// created on first use if it does not exist.
func (a *Archive) PutNewsletter(ctx context.Context, subject, html string, at time.Time) (string, error) {
	if a == nil {
		return "", nil
	}

	key := NewsletterKey(subject, at)
	upload := func() error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &a.bucket,
			Key:         &key,
			Body:        bytes.NewReader([]byte(html)),
			ContentType: aws.String("text/html; charset=utf-8"),
			Metadata: map[string]string{
				"subject": subject,
			},
		})
		return err
	}

	err := upload()
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "NoSuchBucket" {
			_, err := a.client.CreateBucket(ctx, &s3.CreateBucketInput{
				Bucket: &a.bucket,
			})
			if err != nil {
				return "", oops.New(err, "failed to create archive bucket")
			}

			if err := upload(); err != nil {
				return "", oops.New(err, "failed to archive newsletter")
			}
		} else {
			return "", oops.New(err, "failed to archive newsletter")
		}
	}

	return key, nil
}
