package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/aristath/marketintel/internal/database"
)

// Source is one local artifact BackupService keeps in object storage. For a
// SQLite-backed source, DB is set and the service takes an atomic
// `VACUUM INTO` copy before upload; for a plain-file source (the msgpack
// window snapshot) DB is nil and the service uploads Path directly.
type Source struct {
	Name string
	Path string
	DB   *database.DB // nil for a plain-file source
}

// s3API is the slice of *s3.Client this service calls, narrowed to an
// interface so tests can supply a fake instead of talking to AWS.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// BackupService periodically snapshots Sources to S3 under a timestamped
// key and prunes objects older than Retention: VACUUM INTO + integrity
// verify for SQLite sources, a direct read for plain-file sources, then
// age-based rotation of stale objects.
type BackupService struct {
	s3        s3API
	bucket    string
	prefix    string
	sources   []Source
	retention time.Duration
	log       zerolog.Logger
}

// Config configures a BackupService. cfg.AWS is an already-resolved
// aws.Config (loaded by the caller via aws-sdk-go-v2/config, which this
// module does not otherwise depend on); passing it in keeps this package's
// own dependency surface to the core SDK and the S3 client only.
type Config struct {
	AWS       aws.Config
	Bucket    string
	Prefix    string
	Retention time.Duration // default 30 days
}

// NewBackupService builds a BackupService over sources.
func NewBackupService(cfg Config, sources []Source, log zerolog.Logger) *BackupService {
	retention := cfg.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &BackupService{
		s3:        s3.NewFromConfig(cfg.AWS),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		sources:   sources,
		retention: retention,
		log:       log.With().Str("component", "backup_service").Logger(),
	}
}

// Name implements scheduler.Job.
func (b *BackupService) Name() string { return "backup" }

// Run backs up every configured source and prunes stale objects,
// loop-and-continue style: one source's failure is logged and does not
// stop the others.
func (b *BackupService) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, src := range b.sources {
		if err := b.backupOne(ctx, src); err != nil {
			b.log.Error().Str("source", src.Name).Err(err).Msg("backup failed")
			continue
		}
		if err := b.prune(ctx, src); err != nil {
			b.log.Warn().Str("source", src.Name).Err(err).Msg("prune failed")
		}
	}
	return nil
}

func (b *BackupService) backupOne(ctx context.Context, src Source) error {
	start := time.Now()

	localPath := src.Path
	if src.DB != nil {
		tmp := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%d.db", src.Name, time.Now().UnixNano()))
		if _, err := src.DB.Conn().ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", tmp)); err != nil {
			return fmt.Errorf("vacuum into: %w", err)
		}
		defer os.Remove(tmp)

		if err := verifySQLite(tmp); err != nil {
			return fmt.Errorf("verify backup: %w", err)
		}
		localPath = tmp
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	key := b.objectKey(src.Name, time.Now())
	if _, err := b.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(string(data)),
	}); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	b.log.Info().
		Str("source", src.Name).
		Str("key", key).
		Int("bytes", len(data)).
		Dur("duration_ms", time.Since(start)).
		Msg("backup uploaded")
	return nil
}

func (b *BackupService) objectKey(sourceName string, at time.Time) string {
	return fmt.Sprintf("%s%s/%s_%s.bak", b.prefix, sourceName, sourceName, at.UTC().Format("20060102_150405"))
}

// prune deletes objects for src whose LastModified is older than
// b.retention, an age-cutoff rotation rather than a count-based one.
func (b *BackupService) prune(ctx context.Context, src Source) error {
	cutoff := time.Now().Add(-b.retention)
	listPrefix := b.prefix + src.Name + "/"

	var toDelete []string
	var continuationToken *string
	for {
		out, err := b.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(listPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range out.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				toDelete = append(toDelete, aws.ToString(obj.Key))
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	sort.Strings(toDelete)
	for _, key := range toDelete {
		if _, err := b.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		}); err != nil {
			b.log.Warn().Str("key", key).Err(err).Msg("failed to delete stale backup")
			continue
		}
		b.log.Debug().Str("key", key).Msg("deleted stale backup")
	}
	return nil
}

// verifySQLite opens path and runs a PRAGMA integrity_check before the
// backup is trusted enough to upload.
func verifySQLite(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
