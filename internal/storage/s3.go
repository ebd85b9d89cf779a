// Package storage publishes finished videos.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Uploader copies a local file to remote storage and returns a URL for it.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader puts objects under bucket/prefix and answers with a presigned
// GET URL.
type S3Uploader struct {
	client    putObjectAPI
	presigner presignAPI
	bucket    string
	prefix    string
	expiry    time.Duration
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader builds an uploader from an S3 client.
func NewS3Uploader(client *s3.Client, bucket, prefix string, expiry time.Duration) *S3Uploader {
	return newS3Uploader(client, s3.NewPresignClient(client), bucket, prefix, expiry)
}

func newS3Uploader(client putObjectAPI, presigner presignAPI, bucket, prefix string, expiry time.Duration) *S3Uploader {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &S3Uploader{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		expiry:    expiry,
	}
}

// Upload stores localPath under prefix/key.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	objectKey := u.objectKey(key)
	contentType := contentTypeFor(localPath)

	log.Debug().Str("bucket", u.bucket).Str("key", objectKey).Int64("size", info.Size()).Msg("Starting S3 upload")
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &u.bucket,
		Key:           &objectKey,
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject: %w", err)
	}

	result, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &u.bucket,
		Key:    &objectKey,
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}

	log.Info().Str("bucket", u.bucket).Str("key", objectKey).Msg("Video uploaded")
	return result.URL, nil
}

func (u *S3Uploader) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if u.prefix == "" {
		return key
	}
	return path.Join(u.prefix, key)
}

// contentTypeFor pins the media types this tool produces; the system mime
// table does not always know them.
func contentTypeFor(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
