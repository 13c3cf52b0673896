package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// SelfieService stores clock-in verification selfies in S3-compatible
// object storage
type SelfieService struct {
	s3Client *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewSelfieService creates a new selfie service. An empty accessKey falls
// back to the default AWS credential chain; a non-empty endpoint switches
// to an S3-compatible provider with path-style addressing.
func NewSelfieService(region, bucket, accessKey, secretKey, endpoint string) (*SelfieService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &SelfieService{
		s3Client: s3Client,
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
	}, nil
}

// Store uploads a captured frame under attendance/{booking_id}/ and returns
// the object's URL
func (s *SelfieService) Store(ctx context.Context, bookingID, staffID string, frame []byte) (string, error) {
	key := fmt.Sprintf("attendance/%s/%s.jpg", bookingID, uuid.New().String())

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(frame),
		ContentType: aws.String("image/jpeg"),
		Metadata: map[string]string{
			"staff-id": staffID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload selfie: %w", err)
	}

	return s.objectURL(key), nil
}

func (s *SelfieService) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
