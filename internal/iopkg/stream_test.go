package iopkg

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	getBody       []byte
	getErr        error
	putLastBucket string
	putLastKey    string
	putLastBody   []byte
	putErr        error
	deleted       []string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rc := io.NopCloser(bytes.NewReader(f.getBody))
	cl := int64(len(f.getBody))
	return &s3.GetObjectOutput{Body: rc, ContentLength: &cl}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putLastBucket = aws.ToString(in.Bucket)
	f.putLastKey = aws.ToString(in.Key)
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.putLastBody = b
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func withFakeS3(t *testing.T, f *fakeS3) func() {
	old := newS3Client
	newS3Client = func(ctx context.Context) (s3iface, error) { return f, nil }
	return func() { newS3Client = old }
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "rows.json")
	content := `[{"a":1}]`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rc, sz, err := Open(context.Background(), "file://"+p)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer rc.Close()
	if sz != int64(len(content)) {
		t.Fatalf("size got %d want %d", sz, len(content))
	}
	b, _ := io.ReadAll(rc)
	if string(b) != content {
		t.Fatalf("content mismatch: %q", string(b))
	}
}

func TestWriteReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "out.json")
	if err := WriteFile(context.Background(), "file://"+p, []byte("abc")); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}
	b, err := ReadFile(context.Background(), p)
	if err != nil || string(b) != "abc" {
		t.Fatalf("ReadFile=%q, %v", b, err)
	}
}

func TestOpenS3Mock(t *testing.T) {
	f := &fakeS3{getBody: []byte("data-from-s3")}
	defer withFakeS3(t, f)()
	b, err := ReadFile(context.Background(), "s3://bucket/key/path.json")
	if err != nil {
		t.Fatalf("ReadFile s3 err: %v", err)
	}
	if string(b) != string(f.getBody) {
		t.Fatalf("content mismatch: %q", string(b))
	}
}

func TestCreateWriterS3Mock(t *testing.T) {
	f := &fakeS3{}
	defer withFakeS3(t, f)()
	w, c, err := CreateWriter(context.Background(), "s3://mybucket/dir/rows.json")
	if err != nil {
		t.Fatalf("CreateWriter s3 err: %v", err)
	}
	_, _ = w.Write([]byte("payload"))
	if err := c.Close(); err != nil {
		t.Fatalf("close err: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close err: %v", err)
	}
	if f.putLastBucket != "mybucket" {
		t.Fatalf("bucket %q", f.putLastBucket)
	}
	if f.putLastKey != "dir/rows.json" {
		t.Fatalf("key %q", f.putLastKey)
	}
	if string(f.putLastBody) != "payload" {
		t.Fatalf("body %q", string(f.putLastBody))
	}
}

func TestRemove(t *testing.T) {
	p := filepath.Join(t.TempDir(), "staged", "formatted.json")
	if err := WriteFile(context.Background(), "file://"+p, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := Remove(context.Background(), "file://"+p); err != nil {
		t.Fatalf("Remove err: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	if err := Remove(context.Background(), "file://"+p); err != nil {
		t.Fatalf("second Remove err: %v", err)
	}

	f := &fakeS3{}
	defer withFakeS3(t, f)()
	if err := Remove(context.Background(), "s3://bucket/staging/x/formatted.json"); err != nil {
		t.Fatalf("Remove s3 err: %v", err)
	}
	if len(f.deleted) != 1 || f.deleted[0] != "bucket/staging/x/formatted.json" {
		t.Fatalf("deleted=%v", f.deleted)
	}
	if err := Remove(context.Background(), "gs://b/k"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUnsupportedScheme(t *testing.T) {
	if _, _, err := Open(context.Background(), "gs://b/k"); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, err := CreateWriter(context.Background(), "gs://b/k"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJoin(t *testing.T) {
	if got := Join("s3://b/prefix/", "/x.json"); got != "s3://b/prefix/x.json" {
		t.Fatalf("Join=%q", got)
	}
}
