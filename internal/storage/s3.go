package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yourorg/calibr8/internal/iopkg"
)

var ErrInvalidURI = errors.New("invalid s3 uri")

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store archives masterlists and exports in a bucket. MinIO works through
// AWS_ENDPOINT_URL_S3 and AWS_S3_FORCE_PATH_STYLE.
type S3Store struct {
	get objectGetter
	up  objectUploader
}

func NewS3Store(ctx context.Context) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		o.UsePathStyle = strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true")
	})
	return &S3Store{get: client, up: manager.NewUploader(client)}, nil
}

type objectRef struct {
	bucket string
	key    string
}

func parseObjectRef(uri string) (objectRef, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return objectRef{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "s3" {
		return objectRef{}, fmt.Errorf("%w: scheme %q", ErrInvalidURI, u.Scheme)
	}
	ref := objectRef{bucket: u.Host, key: strings.TrimPrefix(u.Path, "/")}
	if ref.bucket == "" || ref.key == "" {
		return objectRef{}, fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return ref, nil
}

func (r objectRef) String() string { return "s3://" + r.bucket + "/" + r.key }

// contentType covers the spreadsheet formats the catalog accepts and produces.
func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}

// Get also serves file:// URIs so an import can point at either.
func (s *S3Store) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	if strings.HasPrefix(uri, "file://") {
		return iopkg.Open(ctx, uri)
	}
	ref, err := parseObjectRef(uri)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.get.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(ref.bucket), Key: aws.String(ref.key)})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", ref, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	ref, err := parseObjectRef(uri)
	if err != nil {
		return "", err
	}
	_, err = s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ref.bucket),
		Key:         aws.String(ref.key),
		Body:        body,
		ContentType: aws.String(contentType(ref.key)),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", ref, err)
	}
	return ref.String(), nil
}
