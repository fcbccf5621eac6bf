package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func keyIs(key string) interface{} {
	return mock.MatchedBy(func(in interface{}) bool {
		switch v := in.(type) {
		case *s3.HeadObjectInput:
			return *v.Key == key && *v.Bucket == "music"
		case *s3.PutObjectInput:
			return *v.Key == key && *v.Bucket == "music"
		case *s3.GetObjectInput:
			return *v.Key == key && *v.Bucket == "music"
		case *s3.DeleteObjectInput:
			return *v.Key == key && *v.Bucket == "music"
		}
		return false
	})
}

func TestS3Storage_SongKey(t *testing.T) {
	s := &S3Storage{bucket: "music"}
	assert.Equal(t, "songs/Song X.mp3", s.SongKey("Song X.mp3"))
	assert.Equal(t, "songs/passwd", s.SongKey("../../etc/passwd"))
}

func TestS3Storage_Exists(t *testing.T) {
	api := new(MockObjectAPI)
	s := &S3Storage{client: api, bucket: "music"}

	api.On("HeadObject", mock.Anything, keyIs("songs/a.mp3")).Return(&s3.HeadObjectOutput{}, nil)
	api.On("HeadObject", mock.Anything, keyIs("songs/b.mp3")).
		Return(nil, &smithy.GenericAPIError{Code: "NotFound", Message: "not found"})
	api.On("HeadObject", mock.Anything, keyIs("songs/c.mp3")).
		Return(nil, errors.New("connection reset"))

	ok, err := s.Exists(context.Background(), "a.mp3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "b.mp3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(context.Background(), "c.mp3")
	assert.Error(t, err)
}

func TestS3Storage_UploadFile(t *testing.T) {
	api := new(MockObjectAPI)
	s := &S3Storage{client: api, bucket: "music"}

	src := filepath.Join(t.TempDir(), "Song X.mp3")
	require.NoError(t, os.WriteFile(src, []byte("mp3"), 0o600))

	var body []byte
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "songs/Song X.mp3" && *in.ContentType == "audio/mpeg"
	})).Run(func(args mock.Arguments) {
		body, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
	}).Return(&s3.PutObjectOutput{}, nil)

	require.NoError(t, s.UploadFile(context.Background(), "Song X.mp3", src, "audio/mpeg"))
	assert.Equal(t, "mp3", string(body))
	api.AssertExpectations(t)
}

func TestS3Storage_DownloadFile(t *testing.T) {
	api := new(MockObjectAPI)
	s := &S3Storage{client: api, bucket: "music"}

	api.On("GetObject", mock.Anything, keyIs("songs/Song X.mp3")).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("mp3 bytes"))}, nil)

	dest := filepath.Join(t.TempDir(), "out.mp3")
	require.NoError(t, s.DownloadFile(context.Background(), "Song X.mp3", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "mp3 bytes", string(data))
}

func TestS3Storage_DownloadFileError(t *testing.T) {
	api := new(MockObjectAPI)
	s := &S3Storage{client: api, bucket: "music"}

	api.On("GetObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	dest := filepath.Join(t.TempDir(), "out.mp3")
	assert.Error(t, s.DownloadFile(context.Background(), "x.mp3", dest))
	assert.NoFileExists(t, dest)
}

func TestS3Storage_DeleteFile(t *testing.T) {
	api := new(MockObjectAPI)
	s := &S3Storage{client: api, bucket: "music"}

	api.On("DeleteObject", mock.Anything, keyIs("songs/x.mp3")).Return(&s3.DeleteObjectOutput{}, nil)

	assert.NoError(t, s.DeleteFile(context.Background(), "x.mp3"))
	api.AssertExpectations(t)
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Options{})
	assert.Error(t, err)
}
