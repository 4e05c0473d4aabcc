package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/minio/minio-go/v7"
)

const (
	contentTypeJSON = "application/json"
	reportsFolder   = "reports"
)

// UploadSnapshot writes the snapshot as JSON under reports/YYYY/MM/DD/<uuid>.json
// keyed by its generation date and returns where it can be downloaded.
func (b *Bucket) UploadSnapshot(ctx context.Context, snapshot *entity.AnalyticsSnapshot) (*entity.SnapshotObject, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("can't marshal snapshot: %w", err)
	}

	key := b.snapshotKey(snapshot.GeneratedAt, uuid.NewString())
	info, err := b.cli.PutObject(ctx, b.S3BucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentTypeJSON,
	})
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't upload snapshot",
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("can't upload snapshot %s: %w", key, err)
	}

	return &entity.SnapshotObject{
		Key:  key,
		URL:  b.getCDNURL(key),
		Size: info.Size,
	}, nil
}

func (b *Bucket) snapshotKey(generatedAt time.Time, name string) string {
	folder := path.Join(reportsFolder, generatedAt.UTC().Format("2006/01/02"))
	return b.constructFullPath(folder, name, "json")
}

func (b *Bucket) constructFullPath(folder, fileName, ext string) string {
	return path.Clean(path.Join(b.BaseFolder, folder, fileName) + "." + ext)
}

func (b *Bucket) getCDNURL(filePath string) string {
	if b.SubdomainEndpoint != "" {
		return fmt.Sprintf("https://%s/%s", b.SubdomainEndpoint, filePath)
	}
	return fmt.Sprintf("https://%s.%s/%s", b.S3BucketName, b.S3Endpoint, filePath)
}
