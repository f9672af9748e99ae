package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// RemoteConfig describes an S3-compatible object store endpoint.
type RemoteConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// RemoteTier is a Tier backed by an S3-compatible object store, one object
// per block. It is the slowest tier and has unlimited capacity.
type RemoteTier struct {
	client *minio.Client
	bucket string
	prefix string
	blocks atomic.Int64
}

// OpenRemote connects to the object store and ensures the bucket exists.
func OpenRemote(ctx context.Context, cfg RemoteConfig) (*RemoteTier, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: remote tier client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: remote tier bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: remote tier bucket create: %w", err)
		}
	}
	t := &RemoteTier{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	for obj := range client.ListObjects(ctx, cfg.Bucket, minio.ListObjectsOptions{Prefix: cfg.Prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("storage: remote tier listing: %w", obj.Err)
		}
		t.blocks.Add(1)
	}
	return t, nil
}

func (t *RemoteTier) objectName(index uint64) string {
	return fmt.Sprintf("%sblock-%016x.bin", t.prefix, index)
}

// Kind returns KindRemote.
func (t *RemoteTier) Kind() Kind { return KindRemote }

// ReadBlock fetches the object for index.
func (t *RemoteTier) ReadBlock(ctx context.Context, index uint64) ([]byte, error) {
	obj, err := t.client.GetObject(ctx, t.bucket, t.objectName(index), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	frame, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return frame, nil
}

// WriteBlock uploads the frame for index.
func (t *RemoteTier) WriteBlock(ctx context.Context, index uint64, frame []byte) error {
	existed, err := t.Contains(ctx, index)
	if err != nil {
		return err
	}
	_, err = t.client.PutObject(ctx, t.bucket, t.objectName(index),
		bytes.NewReader(frame), int64(len(frame)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return err
	}
	if !existed {
		t.blocks.Add(1)
	}
	return nil
}

// Contains stats the object for index.
func (t *RemoteTier) Contains(ctx context.Context, index uint64) (bool, error) {
	_, err := t.client.StatObject(ctx, t.bucket, t.objectName(index), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes the object for index.
func (t *RemoteTier) Remove(ctx context.Context, index uint64) error {
	existed, err := t.Contains(ctx, index)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := t.client.RemoveObject(ctx, t.bucket, t.objectName(index), minio.RemoveObjectOptions{}); err != nil {
		return err
	}
	t.blocks.Add(-1)
	return nil
}

// Stats returns the tracked object count; capacity is unlimited.
func (t *RemoteTier) Stats() Stats {
	return Stats{Kind: KindRemote, Blocks: t.blocks.Load(), Capacity: -1}
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (t *RemoteTier) Close() error { return nil }
