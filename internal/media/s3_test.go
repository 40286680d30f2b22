package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeObjects serves a fixed key set the way S3 reports hits and misses.
type fakeObjects struct {
	objects map[string]string
	err     error
	keys    []string
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3_Open(t *testing.T) {
	t.Parallel()
	fake := &fakeObjects{objects: map[string]string{"signs/WORLD_SIGN.mp4": "video"}}
	s := newS3(fake, S3Config{Bucket: "b", Prefix: "signs/"})

	v, err := s.Open(context.Background(), "WORLD_SIGN")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer v.Close()
	if v.Size != 5 || v.ContentType != ContentType {
		t.Errorf("video = size %d type %q", v.Size, v.ContentType)
	}
	if fake.keys[0] != "signs/WORLD_SIGN.mp4" {
		t.Errorf("key = %q", fake.keys[0])
	}
}

func TestS3_NotFound(t *testing.T) {
	t.Parallel()
	fake := &fakeObjects{objects: map[string]string{}}
	s := newS3(fake, S3Config{Bucket: "b"})

	if _, err := s.Open(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open err = %v, want ErrNotFound", err)
	}
	if ok, err := s.Exists(context.Background(), "missing"); err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}
	if _, err := s.Open(context.Background(), "../x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(unsafe) err = %v, want ErrNotFound", err)
	}
	if len(fake.keys) != 2 {
		t.Errorf("unsafe id reached the bucket: keys = %v", fake.keys)
	}
}

func TestS3_OtherErrorsPropagate(t *testing.T) {
	t.Parallel()
	boom := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	s := newS3(&fakeObjects{err: boom}, S3Config{Bucket: "b"})

	_, err := s.Open(context.Background(), "x")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Open err = %v, want access error", err)
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "AccessDenied" {
		t.Errorf("err = %v, want wrapped AccessDenied", err)
	}
	if _, err := s.Exists(context.Background(), "x"); err == nil {
		t.Error("Exists: expected error")
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	t.Parallel()
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Error("expected error for empty bucket")
	}
}
