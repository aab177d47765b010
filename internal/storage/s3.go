// Package storage provides S3-compatible object storage for raw fetch
// snapshots, so a feed payload can be re-examined after the fact.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/DNABoe/jetmonitor/internal/config"
)

// Client wraps an S3-compatible object storage client. A zero-endpoint
// configuration yields a disabled client whose methods are no-ops.
type Client struct {
	s3     *s3.Client
	bucket string
}

// SnapshotMeta records where a raw payload came from and when.
type SnapshotMeta struct {
	SourceID   uuid.UUID `json:"source_id"`
	FetchedAt  time.Time `json:"fetched_at"`
	PayloadSHA string    `json:"payload_sha256"`
	Size       int       `json:"size_bytes"`
}

// NewClient creates a storage client for any S3-compatible endpoint.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("S3 endpoint not configured, snapshot archive disabled")
		return &Client{bucket: cfg.Bucket}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		o.UsePathStyle = true
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
	}, nil
}

// Configured returns true if the snapshot archive is usable.
func (c *Client) Configured() bool {
	return c != nil && c.s3 != nil
}

// StoreSnapshot compresses and uploads the raw payload fetched from a source,
// plus a small metadata object alongside it. Disabled clients skip silently
// so the pipeline never depends on the archive.
func (c *Client) StoreSnapshot(ctx context.Context, sourceID uuid.UUID, fetchedAt time.Time, payload []byte) error {
	if !c.Configured() {
		return nil
	}
	if len(payload) == 0 {
		return nil
	}

	prefix := fmt.Sprintf("snapshots/%s/%s", sourceID, fetchedAt.UTC().Format("20060102T150405Z"))

	meta := SnapshotMeta{
		SourceID:   sourceID,
		FetchedAt:  fetchedAt.UTC(),
		PayloadSHA: sha256sum(payload),
		Size:       len(payload),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal meta: %w", err)
	}

	compressed, err := gzipCompress(payload)
	if err != nil {
		return fmt.Errorf("storage: compress payload: %w", err)
	}

	uploads := map[string][]byte{
		prefix + "/payload.xml.gz": compressed,
		prefix + "/meta.json":      metaJSON,
	}
	for key, body := range uploads {
		_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &c.bucket,
			Key:    &key,
			Body:   bytes.NewReader(body),
		})
		if err != nil {
			return fmt.Errorf("storage: upload %s: %w", key, err)
		}
		slog.Debug("snapshot uploaded", "key", key, "size", len(body))
	}
	return nil
}

// GetSnapshot retrieves and decompresses one archived payload.
func (c *Client) GetSnapshot(ctx context.Context, sourceID uuid.UUID, fetchedAt time.Time) ([]byte, *SnapshotMeta, error) {
	if !c.Configured() {
		return nil, nil, fmt.Errorf("storage: not configured")
	}

	prefix := fmt.Sprintf("snapshots/%s/%s", sourceID, fetchedAt.UTC().Format("20060102T150405Z"))

	compressed, err := c.getObject(ctx, prefix+"/payload.xml.gz")
	if err != nil {
		return nil, nil, err
	}
	payload, err := gzipDecompress(compressed)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: decompress payload: %w", err)
	}

	metaData, err := c.getObject(ctx, prefix+"/meta.json")
	if err != nil {
		return nil, nil, err
	}
	var meta SnapshotMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("storage: unmarshal meta: %w", err)
	}

	return payload, &meta, nil
}

func (c *Client) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
