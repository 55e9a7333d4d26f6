package reliability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/database"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	listErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	buf := make([]byte, 0)
	if in.Body != nil {
		b := make([]byte, 4096)
		for {
			n, err := in.Body.Read(b)
			buf = append(buf, b[:n]...)
			if err != nil {
				break
			}
		}
	}
	f.objects[aws.ToString(in.Key)] = buf
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var contents []types.Object
	for key := range f.objects {
		contents = append(contents, types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(time.Now().Add(-48 * time.Hour)),
		})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestBackupService(fake s3API, sources []Source, retention time.Duration) *BackupService {
	return &BackupService{
		s3:        fake,
		bucket:    "test-bucket",
		prefix:    "backups/",
		sources:   sources,
		retention: retention,
		log:       zerolog.Nop(),
	}
}

func TestBackupService_Name(t *testing.T) {
	b := newTestBackupService(newFakeS3(), nil, time.Hour)
	assert.Equal(t, "backup", b.Name())
}

func TestBackupService_BackupOne_PlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.msgpack")
	require.NoError(t, os.WriteFile(path, []byte("window-state"), 0o644))

	fake := newFakeS3()
	b := newTestBackupService(fake, []Source{{Name: "snapshot", Path: path}}, time.Hour)

	require.NoError(t, b.backupOne(context.Background(), b.sources[0]))
	assert.Len(t, fake.objects, 1)
	for _, data := range fake.objects {
		assert.Equal(t, "window-state", string(data))
	}
}

func TestBackupService_BackupOne_SQLiteSource(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "snapshots.db"),
		Profile: database.ProfileSnapshot,
		Name:    "snapshots",
	})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec("CREATE TABLE window_snapshots (ticker TEXT)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO window_snapshots (ticker) VALUES ('AAPL')")
	require.NoError(t, err)

	fake := newFakeS3()
	b := newTestBackupService(fake, []Source{{Name: "snapshots", DB: db}}, time.Hour)

	require.NoError(t, b.backupOne(context.Background(), b.sources[0]))
	assert.Len(t, fake.objects, 1)
}

func TestBackupService_Run_OneSourceFailureDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	goodPath := filepath.Join(dir, "good.msgpack")
	require.NoError(t, os.WriteFile(goodPath, []byte("ok"), 0o644))

	fake := newFakeS3()
	b := newTestBackupService(fake, []Source{
		{Name: "missing", Path: filepath.Join(dir, "does_not_exist.msgpack")},
		{Name: "good", Path: goodPath},
	}, 72*time.Hour)

	require.NoError(t, b.Run())
	assert.Len(t, fake.objects, 1)
}

func TestBackupService_ObjectKey(t *testing.T) {
	b := newTestBackupService(newFakeS3(), nil, time.Hour)
	at := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	key := b.objectKey("snapshots", at)
	assert.Equal(t, "backups/snapshots/snapshots_20260731_120000.bak", key)
}

func TestBackupService_Prune_DeletesObjectsOlderThanRetention(t *testing.T) {
	fake := newFakeS3()
	fake.objects["backups/snapshots/snapshots_old.bak"] = []byte("stale")

	b := newTestBackupService(fake, nil, time.Hour)
	require.NoError(t, b.prune(context.Background(), Source{Name: "snapshots"}))

	assert.Empty(t, fake.objects)
}

func TestVerifySQLite_RejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.db")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite file"), 0o644))

	err := verifySQLite(path)
	assert.Error(t, err)
}

func TestVerifySQLite_AcceptsValidDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "valid.db"),
		Profile: database.ProfileSnapshot,
		Name:    "valid",
	})
	require.NoError(t, err)
	db.Close()

	require.NoError(t, verifySQLite(filepath.Join(dir, "valid.db")))
}
