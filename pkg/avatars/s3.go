// Package avatars stores profile photos in S3. Each account owns a single
// object at <id>/avatar.jpg; the bucket URL is what gets persisted on the
// account row.
package avatars

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/feather-app/feather/pkg/config"
)

var tracer = otel.Tracer("feather/avatars")

const avatarContentType = "image/jpeg"

// S3Store stores avatars in an S3 bucket
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	http      *http.Client
	bucket    string
	endpoint  string
	signTTL   time.Duration
	logger    *logrus.Logger
}

// NewS3Store creates an avatar store from the service configuration
func NewS3Store(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*S3Store, error) {
	var awsConfig aws.Config
	var err error

	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		// static credentials (MinIO or AWS with explicit keys)
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKeyID,
				cfg.S3SecretAccessKey,
				"",
			)),
		)
	} else {
		// default credential chain (IAM roles, env vars, etc.)
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	if logger == nil {
		logger = logrus.New()
	}

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		http:      &http.Client{Timeout: 30 * time.Second},
		bucket:    cfg.S3Bucket,
		endpoint:  cfg.S3Endpoint,
		signTTL:   cfg.SignedURLTTL,
		logger:    logger,
	}, nil
}

// Key returns the object key for an account's avatar
func Key(id string) string {
	return id + "/avatar.jpg"
}

// PublicURL returns the URL the avatar is served from once uploaded
func (s *S3Store) PublicURL(id string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, Key(id))
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, Key(id))
}

// SignedUploadURL presigns a PUT for the account's avatar object so the
// client can upload directly to the bucket
func (s *S3Store) SignedUploadURL(ctx context.Context, id string) (string, error) {
	ctx, span := tracer.Start(ctx, "S3.PresignPutObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", Key(id)),
		))
	defer span.End()

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(Key(id)),
		ContentType: aws.String(avatarContentType),
	}, s3.WithPresignExpires(s.signTTL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign upload")
		return "", fmt.Errorf("presigning avatar upload: %w", err)
	}
	span.SetStatus(codes.Ok, "upload url presigned")
	return req.URL, nil
}

// Import downloads an image from sourceURL and stores it as the account's
// avatar. Used to pull the Facebook profile photo at signup.
func (s *S3Store) Import(ctx context.Context, id, sourceURL string) error {
	ctx, span := tracer.Start(ctx, "S3.ImportAvatar",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", Key(id)),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("building avatar fetch: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch source image")
		return fmt.Errorf("fetching avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "source returned non-200")
		return fmt.Errorf("fetching avatar: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read source image")
		return fmt.Errorf("reading avatar: %w", err)
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(Key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(avatarContentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to s3")
		return fmt.Errorf("storing avatar: %w", err)
	}
	span.SetStatus(codes.Ok, "avatar imported")

	s.logger.WithFields(logrus.Fields{
		"account_id": id,
		"bytes":      len(data),
	}).Info("avatar imported")
	return nil
}

// Delete removes the account's avatar object
func (s *S3Store) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "S3.DeleteObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", Key(id)),
		))
	defer span.End()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(id)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete object")
		return fmt.Errorf("deleting avatar: %w", err)
	}
	span.SetStatus(codes.Ok, "object deleted")
	return nil
}
