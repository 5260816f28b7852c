package iopkg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yourorg/table-export/internal/storage"
)

// s3iface is the minimal subset of s3 client methods we use; allows test fakes.
type s3iface interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// newS3Client constructs an s3 client; overridden in tests.
var newS3Client = func(ctx context.Context) (s3iface, error) {
	return storage.NewS3Client(ctx)
}

// Open returns a ReadCloser and (if known) size for file:// or s3:// URIs.
func Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, 0, err
	}
	switch u.Scheme {
	case "file", "":
		p := strings.TrimPrefix(uri, "file://")
		f, err := os.Open(p)
		if err != nil {
			return nil, 0, err
		}
		st, _ := f.Stat()
		var sz int64
		if st != nil {
			sz = st.Size()
		}
		return f, sz, nil
	case "s3":
		cl, err := newS3Client(ctx)
		if err != nil {
			return nil, 0, err
		}
		resp, err := cl.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(u.Host), Key: aws.String(strings.TrimPrefix(u.Path, "/")),
		})
		if err != nil {
			return nil, 0, err
		}
		var sz int64
		if resp.ContentLength != nil {
			sz = *resp.ContentLength
		}
		return resp.Body, sz, nil
	default:
		return nil, 0, errors.New("unsupported scheme: " + u.Scheme)
	}
}

// ReadFile reads the whole object at uri.
func ReadFile(ctx context.Context, uri string) ([]byte, error) {
	rc, _, err := Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Create creates a local file (file scheme). For S3 use CreateWriter with s3://.
func Create(path string) (io.Writer, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// CreateWriter supports file:// and s3://. S3 content is buffered and uploaded on Close.
func CreateWriter(ctx context.Context, uri string) (io.Writer, io.Closer, error) {
	if strings.HasPrefix(uri, "file://") || !strings.Contains(uri, "://") {
		return Create(strings.TrimPrefix(uri, "file://"))
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, nil, err
	}
	if u.Scheme != "s3" {
		return nil, nil, errors.New("unsupported scheme for CreateWriter: " + u.Scheme)
	}
	var buf bytes.Buffer
	done := false
	return &buf, closerFunc(func() error {
		if done {
			return nil
		}
		done = true
		cl, err := newS3Client(ctx)
		if err != nil {
			return err
		}
		_, err = cl.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
			Body:   bytes.NewReader(buf.Bytes()),
		})
		return err
	}), nil
}

// WriteFile writes data to uri in one go.
func WriteFile(ctx context.Context, uri string, data []byte) error {
	w, c, err := CreateWriter(ctx, uri)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = c.Close()
		return err
	}
	return c.Close()
}

// Remove deletes the object at uri. A missing local file is not an error.
func Remove(ctx context.Context, uri string) error {
	if strings.HasPrefix(uri, "file://") || !strings.Contains(uri, "://") {
		return os.RemoveAll(strings.TrimPrefix(uri, "file://"))
	}
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	if u.Scheme != "s3" {
		return errors.New("unsupported scheme for Remove: " + u.Scheme)
	}
	cl, err := newS3Client(ctx)
	if err != nil {
		return err
	}
	_, err = cl.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	return err
}

// Join appends name to a file:// or s3:// prefix.
func Join(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
