package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects   map[string][]byte
	putErr    error
	deleteErr error
	truncate  bool
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.truncate && len(data) > 0 {
		data = data[:len(data)-1]
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://bucket.example/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc",
		Method: http.MethodGet,
	}, nil
}

func newTestS3() (*S3, *fakeS3, *fakePresigner) {
	api := &fakeS3{objects: map[string][]byte{}}
	p := &fakePresigner{}
	return &S3{client: api, presign: p, bucket: "medfiles"}, api, p
}

func TestS3_PutReportsStoredSize(t *testing.T) {
	s, api, _ := newTestS3()

	loc, err := s.Put(context.Background(), "patients/p1/a/x.pdf", []byte("12345"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(5), loc.Size)
	assert.Contains(t, api.objects, "patients/p1/a/x.pdf")
}

func TestS3_PutSurfacesShortWrite(t *testing.T) {
	s, api, _ := newTestS3()
	api.truncate = true

	loc, err := s.Put(context.Background(), "k", []byte("12345"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), loc.Size)
}

func TestS3_PutError(t *testing.T) {
	s, api, _ := newTestS3()
	api.putErr = errors.New("connection reset")

	_, err := s.Put(context.Background(), "k", []byte("x"), "")
	assert.Error(t, err)
}

func TestS3_DeleteMissingKeyIsNotAnError(t *testing.T) {
	s, api, _ := newTestS3()

	require.NoError(t, s.Delete(context.Background(), "missing"))

	api.deleteErr = &types.NoSuchKey{}
	require.NoError(t, s.Delete(context.Background(), "missing"))

	api.deleteErr = errors.New("access denied")
	assert.Error(t, s.Delete(context.Background(), "missing"))
}

func TestS3_SignedURL(t *testing.T) {
	s, _, p := newTestS3()

	u, err := s.SignedURL(context.Background(), "patients/p1/a/x.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "patients/p1/a/x.pdf")
	assert.Equal(t, 15*time.Minute, p.expires)
}
