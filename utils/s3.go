// utils/s3.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var s3Client *s3.Client
var s3Bucket string

// InitS3 configures the object storage client for kill photos. Works with
// any S3-compatible endpoint (path-style addressing, static credentials).
func InitS3() error {
	endpoint := os.Getenv("S3_ENDPOINT")
	region := os.Getenv("S3_REGION")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	s3Bucket = os.Getenv("S3_BUCKET")

	if endpoint == "" || s3Bucket == "" {
		return fmt.Errorf("S3_ENDPOINT and S3_BUCKET must be set")
	}
	if region == "" {
		region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)),
	)
	if err != nil {
		return fmt.Errorf("failed to load S3 config: %w", err)
	}

	s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return nil
}

// S3Enabled reports whether object storage was configured at startup.
// Kill photos are optional; a core without storage still runs.
func S3Enabled() bool {
	return s3Client != nil
}

// UploadKillPhoto stores an elimination photo under the game's prefix. The
// key embeds a uuid so repeated kills by one player never collide.
func UploadKillPhoto(gameCode string, playerID uint, contentType string, data []byte) error {
	if !S3Enabled() {
		return fmt.Errorf("object storage is not configured")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := fmt.Sprintf("kills/%s/%d-%s", strings.ToUpper(gameCode), playerID, uuid.NewString())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload kill photo: %w", err)
	}

	return nil
}
