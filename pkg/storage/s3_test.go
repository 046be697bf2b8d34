package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/teslashibe/go-narrate/pkg/storage"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	body   []byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func TestS3PutObject(t *testing.T) {
	fake := &fakeS3{}
	sink := storage.NewS3WithClient(storage.S3Config{Bucket: "narrations", Region: "us-east-1"}, fake)

	url, err := sink.PutObject(context.Background(), "audio/rec1-1700000000000.mp3", []byte{1, 2, 3}, "audio/mpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://narrations.s3.us-east-1.amazonaws.com/audio/rec1-1700000000000.mp3" {
		t.Errorf("unexpected url %s", url)
	}

	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.Bucket) != "narrations" || aws.ToString(in.Key) != "audio/rec1-1700000000000.mp3" {
		t.Errorf("unexpected target %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != "audio/mpeg" {
		t.Errorf("unexpected content type %s", aws.ToString(in.ContentType))
	}
	if !bytes.Equal(fake.body, []byte{1, 2, 3}) {
		t.Errorf("unexpected body %v", fake.body)
	}
}

func TestS3PutObjectError(t *testing.T) {
	boom := errors.New("access denied")
	sink := storage.NewS3WithClient(storage.S3Config{Bucket: "b", Region: "r"}, &fakeS3{err: boom})

	url, err := sink.PutObject(context.Background(), "k", []byte{1}, "audio/mpeg")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if url != "" {
		t.Errorf("expected no url on failure, got %s", url)
	}
}

func TestS3URL(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.S3Config
		want string
	}{
		{
			name: "virtual hosted",
			cfg:  storage.S3Config{Bucket: "b", Region: "eu-west-2"},
			want: "https://b.s3.eu-west-2.amazonaws.com/audio/x.mp3",
		},
		{
			name: "public base",
			cfg:  storage.S3Config{Bucket: "b", Region: "r", PublicURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/audio/x.mp3",
		},
		{
			name: "path style endpoint",
			cfg:  storage.S3Config{Bucket: "b", Region: "r", Endpoint: "http://minio:9000", PathStyle: true},
			want: "http://minio:9000/b/audio/x.mp3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storage.NewS3WithClient(tt.cfg, &fakeS3{}).URL("audio/x.mp3"); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestS3AgainstEndpoint(t *testing.T) {
	var (
		mu          sync.Mutex
		method      string
		path        string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		mu.Unlock()
		io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := storage.NewS3(context.Background(), storage.S3Config{
		Bucket:          "narrations",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		Endpoint:        srv.URL,
		PathStyle:       true,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	url, err := sink.PutObject(context.Background(), "audio/rec1-1.mp3", []byte("ID3"), "audio/mpeg")
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if url != srv.URL+"/narrations/audio/rec1-1.mp3" {
		t.Errorf("unexpected url %s", url)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/narrations/audio/rec1-1.mp3" {
		t.Errorf("unexpected request %s %s", method, path)
	}
	if contentType != "audio/mpeg" {
		t.Errorf("unexpected content type %s", contentType)
	}
}

func TestNewS3Validation(t *testing.T) {
	if _, err := storage.NewS3(context.Background(), storage.S3Config{Region: "r"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := storage.NewS3(context.Background(), storage.S3Config{Bucket: "b"}); err == nil {
		t.Error("expected error without region")
	}
}
