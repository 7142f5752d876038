package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papercast/internal/config"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "intro.mp4", strings.NewReader("first"), 5))
	require.NoError(t, store.Save(ctx, "intro.mp4", strings.NewReader("second"), 6))
	rc, err := store.Open(ctx, "intro.mp4")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx, "intro.mp4"))
	require.NoError(t, store.Delete(ctx, "intro.mp4"))
	_, err = store.Open(ctx, "intro.mp4")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestPublishFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))
	dir := t.TempDir()
	store := NewLocal(dir, "")
	require.NoError(t, PublishFile(context.Background(), store, "out.mp4", src))
	data, err := os.ReadFile(filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)
	require.Equal(t, "video", string(data))

	require.Error(t, PublishFile(context.Background(), store, "missing.mp4", filepath.Join(t.TempDir(), "missing.mp4")))
	require.Error(t, PublishFile(context.Background(), store, "dir.mp4", t.TempDir()))
}

func TestLocalStoreRejectsPaths(t *testing.T) {
	store := NewLocal(t.TempDir(), "")
	require.Error(t, store.Save(context.Background(), "../x.mp4", strings.NewReader(""), 0))
	_, err := store.Open(context.Background(), "a/b.mp4")
	require.Error(t, err)
}

func TestLocalStoreURL(t *testing.T) {
	require.Equal(t, "http://localhost:3000/media/videos/1080p60/a.mp4", NewLocal("x", "").URL("a.mp4", "http://localhost:3000/"))
	require.Equal(t, "https://cdn.example.com/v/a.mp4", NewLocal("x", "https://cdn.example.com/v/").URL("a.mp4", "ignored"))
}

func TestNewUnknownStore(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{})
	require.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := &s3Store{
		client:  fake,
		bucket:  "media",
		prefix:  "videos",
		baseURL: bucketURL(endpointURL("minio.local:9000", false), "media"),
	}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a.mp4", strings.NewReader("video"), 5))
	require.Equal(t, "video/mp4", fake.types["videos/a.mp4"])

	rc, err := store.Open(ctx, "a.mp4")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.Equal(t, "video", string(data))

	require.NoError(t, store.Delete(ctx, "a.mp4"))
	_, err = store.Open(ctx, "a.mp4")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.Equal(t, "http://minio.local:9000/media/videos/a.mp4", store.URL("a.mp4", ""))
	store.publicURL = "https://cdn.example.com/"
	require.Equal(t, "https://cdn.example.com/videos/a.mp4", store.URL("a.mp4", ""))
}

func TestCreateS3StoreRequiresCredentials(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"endpoint": "x", "bucket": "b"}})
	require.Error(t, err)
}
