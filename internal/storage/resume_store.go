package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"torrentctl/internal/repository"
)

// ObjectAPI is the subset of the S3 client used by ResumeStore.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ResumeStore keeps resume-data blobs as objects named <prefix>/<id>.resume.
type ResumeStore struct {
	client ObjectAPI
	bucket string
	prefix string
}

func NewResumeStore(client ObjectAPI, bucket, prefix string) *ResumeStore {
	return &ResumeStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *ResumeStore) Init(ctx context.Context) error {
	if s.bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	return nil
}

func (s *ResumeStore) key(torrentID string) string {
	if s.prefix == "" {
		return torrentID + ".resume"
	}
	return s.prefix + "/" + torrentID + ".resume"
}

func (s *ResumeStore) Save(ctx context.Context, torrentID string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(torrentID)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-bittorrent-resume"),
		ACL:           types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("put resume object: %w", err)
	}
	return nil
}

func (s *ResumeStore) Load(ctx context.Context, torrentID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(torrentID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("resume object %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get resume object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read resume object: %w", err)
	}
	return data, nil
}

func (s *ResumeStore) Delete(ctx context.Context, torrentID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(torrentID)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete resume object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ repository.ResumeDataRepository = (*ResumeStore)(nil)
