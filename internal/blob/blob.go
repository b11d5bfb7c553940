// Package blob publishes finished report files to durable storage. Reports
// of one run are stored below runs/<run_id>/ on either the local filesystem
// or an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bmdscreen/internal/config"
)

// Driver identifies a blob backend
type Driver string

// Supported drivers
const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Store is the write side of a blob backend
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Driver() Driver
}

// New builds the store selected by cfg. The "none" driver returns a nil
// store and no error.
func New(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverNone, "":
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.Dir)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PathStyle:       cfg.PathStyle,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}

// Published describes one uploaded report file
type Published struct {
	File string `json:"file"`
	Key  string `json:"key"`
	Size int64  `json:"size_bytes"`
}

// Publisher uploads the report files of a run
type Publisher struct {
	store  Store
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a publisher writing below prefix
func NewPublisher(store Store, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With(slog.String("component", "blob_publisher"), slog.String("driver", string(store.Driver()))),
	}
}

// Key returns the object key of a report file for a run
func (p *Publisher) Key(runID, file string) string {
	return path.Join(p.prefix, "runs", runID, filepath.Base(file))
}

// Publish uploads every file under runs/<run_id>/ and stops at the first
// failure
func (p *Publisher) Publish(ctx context.Context, runID string, files []string) ([]Published, error) {
	if runID == "" {
		return nil, fmt.Errorf("publish: empty run id")
	}

	start := time.Now()
	out := make([]Published, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pub, err := p.publishFile(ctx, runID, file)
		if err != nil {
			return out, err
		}
		out = append(out, pub)
	}

	p.logger.InfoContext(ctx, "reports published",
		slog.String("run_id", runID),
		slog.Int("files", len(out)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (p *Publisher) publishFile(ctx context.Context, runID, file string) (Published, error) {
	f, err := os.Open(file)
	if err != nil {
		return Published{}, fmt.Errorf("open report %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Published{}, fmt.Errorf("stat report %s: %w", file, err)
	}

	key := p.Key(runID, file)
	if err := p.store.Put(ctx, key, f, contentType(file)); err != nil {
		return Published{}, fmt.Errorf("put %s: %w", key, err)
	}
	p.logger.DebugContext(ctx, "report uploaded", slog.String("key", key), slog.Int64("size", info.Size()))
	return Published{File: file, Key: key, Size: info.Size()}, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
