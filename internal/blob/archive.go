// Package blob archives published page trees in an S3-compatible bucket.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("blob: object not found")

const latestName = "latest.json"

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Archive stores each published tree twice: under its revision hash and as
// the latest snapshot of the page.
type Archive struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and creates the bucket when missing.
func New(ctx context.Context, opts Options) (*Archive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}
	return &Archive{client: client, bucket: opts.Bucket}, nil
}

// ObjectKey is the location of one archived revision. An empty hash names the
// latest snapshot.
func ObjectKey(websiteID, pageID, hash string) string {
	name := latestName
	if hash != "" {
		name = hash + ".json"
	}
	return path.Join("sites", websiteID, pageID, name)
}

func (a *Archive) PutPublished(ctx context.Context, websiteID, pageID, hash string, content []byte) error {
	for _, key := range []string{ObjectKey(websiteID, pageID, hash), ObjectKey(websiteID, pageID, "")} {
		_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"page-id":  pageID,
				"revision": hash,
			},
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	return nil
}

// GetPublished reads the latest archived tree of a page.
func (a *Archive) GetPublished(ctx context.Context, websiteID, pageID string) ([]byte, error) {
	return a.get(ctx, ObjectKey(websiteID, pageID, ""))
}

// GetRevision reads one archived revision.
func (a *Archive) GetRevision(ctx context.Context, websiteID, pageID, hash string) ([]byte, error) {
	return a.get(ctx, ObjectKey(websiteID, pageID, hash))
}

func (a *Archive) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(key, err)
	}
	return content, nil
}

func translate(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("get %s: %w", key, err)
}
