package storage

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/calibr8/internal/iopkg"
)

type fakeS3 struct {
	objects map[string][]byte
	types   []string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	n := int64(len(b))
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b)), ContentLength: &n}, nil
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.types = append(f.types, aws.ToString(in.ContentType))
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &manager.UploadOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	f := &fakeS3{objects: map[string][]byte{}}
	s := &S3Store{get: f, up: f}
	ctx := context.Background()

	uri, err := s.Put(ctx, "s3://calibr8/masterlists/a.csv", strings.NewReader("tags\nA\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3://calibr8/masterlists/a.csv", uri)

	rc, n, err := s.Get(ctx, uri)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "tags\nA\n", string(b))
	assert.Equal(t, []string{"text/csv"}, f.types)
}

func TestS3StoreRejectsBadURI(t *testing.T) {
	s := &S3Store{}
	_, err := s.Put(context.Background(), "s3://bucket-only", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidURI)
	_, err = s.Put(context.Background(), "http://x/y", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a/b.CSV"))
	assert.Equal(t, "application/vnd.ms-excel", contentType("plant.xls"))
	assert.Equal(t, "application/octet-stream", contentType("notes"))
}

func TestArchiveLocal(t *testing.T) {
	base := "file://" + t.TempDir()
	store, err := New(context.Background(), base)
	require.NoError(t, err)
	a := Archive{Store: store, Base: base}
	require.True(t, a.Enabled())

	uri, err := a.Save(context.Background(), "../../etc/plant.csv", strings.NewReader("tags\nA\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, base+"/"))
	assert.Equal(t, "plant.csv", filepath.Base(uri))

	rc, _, err := store.Get(context.Background(), uri)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "tags\nA\n", string(b))
}

func TestArchiveDisabled(t *testing.T) {
	a := Archive{}
	assert.False(t, a.Enabled())
	_, err := a.Save(context.Background(), "x.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestRouterDispatchesByScheme(t *testing.T) {
	f := &fakeS3{objects: map[string][]byte{"b/in/plant.csv": []byte("tags\nTI-1\n")}}
	created := 0
	r := &Router{newS3: func(context.Context) (ObjectStore, error) {
		created++
		return &S3Store{get: f, up: f}, nil
	}}
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "local.csv")
	_, err := r.Put(ctx, "file://"+p, strings.NewReader("tags\nA\n"))
	require.NoError(t, err)
	assert.Zero(t, created)

	rc, n, err := r.Get(ctx, "s3://b/in/plant.csv")
	require.NoError(t, err)
	rc.Close()
	assert.EqualValues(t, 10, n)
	_, err = r.Put(ctx, "s3://b/out/x.xlsx", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	_, _, err = r.Get(ctx, "ftp://h/x")
	assert.ErrorIs(t, err, iopkg.ErrUnsupportedScheme)
}
