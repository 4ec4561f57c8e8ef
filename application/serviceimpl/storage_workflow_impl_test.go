package serviceimpl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"veobatch/domain/models"
	"veobatch/domain/ports"
)

// fakeBackend จดลำดับการเขียนไว้ตรวจว่า fast มาก่อน durable เสมอ
type fakeBackend struct {
	mu         sync.Mutex
	writes     []string // "fast:<key>" / "durable:<key>" ตามลำดับ
	deleted    []string
	fastErr    error
	durableErr error

	// ฝั่งอ่าน สำหรับ test ที่ไล่ลำดับ source ของ upscale
	fastGets    int
	durableGets int
	fastGetErr  error
}

func (b *fakeBackend) PutFast(ctx context.Context, reader io.Reader, size int64, key, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fastErr != nil {
		return "", b.fastErr
	}
	b.writes = append(b.writes, "fast:"+key)
	return "http://fast.local/" + key, nil
}

func (b *fakeBackend) DeleteFast(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBackend) PutDurable(ctx context.Context, reader io.Reader, size int64, key, contentType string) (*ports.DurableObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.durableErr != nil {
		return nil, b.durableErr
	}
	b.writes = append(b.writes, "durable:"+key)
	return &ports.DurableObject{Ref: key, URL: "s3://archive/" + key}, nil
}

func (b *fakeBackend) GetDurable(ctx context.Context, ref, destPath string) error {
	b.mu.Lock()
	b.durableGets++
	b.mu.Unlock()
	return os.WriteFile(destPath, []byte("archived"), 0644)
}

func (b *fakeBackend) GetFast(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fastGetErr != nil {
		return nil, b.fastGetErr
	}
	b.fastGets++
	return io.NopCloser(strings.NewReader("fast")), nil
}

func (b *fakeBackend) GetProviderName() string {
	return "fake"
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStoreDualWrite(t *testing.T) {
	backend := &fakeBackend{}
	videoRepo := newFakeVideoRepo()
	workflow := NewStorageWorkflow(backend, videoRepo, time.Hour)

	jobID := uuid.New()
	videoID := uuid.New()
	artifact := writeArtifact(t, "video-bytes")

	result, err := workflow.Store(context.Background(), artifact, jobID, videoID)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	wantKey := fmt.Sprintf("jobs/%s/%s.mp4", jobID, videoID)
	if result.FastKey != wantKey {
		t.Errorf("fast key = %q, want %q", result.FastKey, wantKey)
	}
	if result.FastURL != "http://fast.local/"+wantKey {
		t.Errorf("fast url = %q", result.FastURL)
	}
	if result.DurableRef != wantKey {
		t.Errorf("durable ref = %q, want %q", result.DurableRef, wantKey)
	}
	if result.FastExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Errorf("fast expiry %v should be roughly ttl away", result.FastExpiresAt)
	}

	if len(backend.writes) != 2 {
		t.Fatalf("writes = %v, want fast then durable", backend.writes)
	}
	if backend.writes[0] != "fast:"+wantKey || backend.writes[1] != "durable:"+wantKey {
		t.Errorf("write order = %v, fast tier must be written first", backend.writes)
	}
}

func TestStoreUpscaledUsesSeparateKey(t *testing.T) {
	backend := &fakeBackend{}
	workflow := NewStorageWorkflow(backend, newFakeVideoRepo(), time.Hour)

	jobID := uuid.New()
	videoID := uuid.New()
	artifact := writeArtifact(t, "upscaled-bytes")

	result, err := workflow.StoreUpscaled(context.Background(), artifact, jobID, videoID)
	if err != nil {
		t.Fatalf("StoreUpscaled() error = %v", err)
	}

	wantKey := fmt.Sprintf("jobs/%s/%s-4k.mp4", jobID, videoID)
	if result.FastKey != wantKey {
		t.Errorf("fast key = %q, want %q", result.FastKey, wantKey)
	}
}

func TestStoreRejectsBadArtifacts(t *testing.T) {
	workflow := NewStorageWorkflow(&fakeBackend{}, newFakeVideoRepo(), time.Hour)
	jobID := uuid.New()
	videoID := uuid.New()

	t.Run("missing file", func(t *testing.T) {
		_, err := workflow.Store(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), jobID, videoID)
		if err == nil {
			t.Error("expected error for missing artifact")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := workflow.Store(context.Background(), writeArtifact(t, ""), jobID, videoID)
		if err == nil {
			t.Error("expected error for empty artifact")
		}
	})
}

func TestStoreFastTierFailureAborts(t *testing.T) {
	backend := &fakeBackend{fastErr: errors.New("connection refused")}
	workflow := NewStorageWorkflow(backend, newFakeVideoRepo(), time.Hour)

	_, err := workflow.Store(context.Background(), writeArtifact(t, "bytes"), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error when fast tier write fails")
	}
	if len(backend.writes) != 0 {
		t.Errorf("durable tier must not be written after fast failure, got %v", backend.writes)
	}
}

func TestStoreDurableTierFailureAborts(t *testing.T) {
	backend := &fakeBackend{durableErr: errors.New("bucket gone")}
	workflow := NewStorageWorkflow(backend, newFakeVideoRepo(), time.Hour)

	_, err := workflow.Store(context.Background(), writeArtifact(t, "bytes"), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error when durable tier write fails")
	}
}

func TestStoreSchedulesFastExpiry(t *testing.T) {
	backend := &fakeBackend{}
	video := &models.Video{ID: uuid.New(), JobID: uuid.New(), Status: models.VideoStatusCompleted}
	videoRepo := newFakeVideoRepo(video)
	workflow := NewStorageWorkflow(backend, videoRepo, 20*time.Millisecond)

	result, err := workflow.Store(context.Background(), writeArtifact(t, "bytes"), video.JobID, video.ID)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	video.FastKey = result.FastKey
	video.FastURL = result.FastURL
	video.FastExpiresAt = &result.FastExpiresAt

	fastCleared := func() bool {
		videoRepo.mu.Lock()
		defer videoRepo.mu.Unlock()
		return video.FastKey == ""
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !fastCleared() {
		time.Sleep(5 * time.Millisecond)
	}

	backend.mu.Lock()
	deleted := append([]string(nil), backend.deleted...)
	backend.mu.Unlock()
	if len(deleted) != 1 || deleted[0] != result.FastKey {
		t.Fatalf("deleted = %v, want fast object removed after ttl", deleted)
	}
	if !fastCleared() {
		t.Error("fast tier fields should be cleared after expiry")
	}
}

func TestSweepExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := &models.Video{ID: uuid.New(), JobID: uuid.New(), FastKey: "jobs/a/expired.mp4", FastURL: "http://fast.local/a", FastExpiresAt: &past}
	live := &models.Video{ID: uuid.New(), JobID: uuid.New(), FastKey: "jobs/b/live.mp4", FastExpiresAt: &future}
	cleared := &models.Video{ID: uuid.New(), JobID: uuid.New(), FastKey: "", FastExpiresAt: &past}

	backend := &fakeBackend{}
	videoRepo := newFakeVideoRepo(expired, live, cleared)
	workflow := NewStorageWorkflow(backend, videoRepo, time.Hour)

	if err := workflow.SweepExpired(context.Background()); err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}

	if len(backend.deleted) != 1 || backend.deleted[0] != "jobs/a/expired.mp4" {
		t.Errorf("deleted = %v, want only the expired key", backend.deleted)
	}
	if expired.FastKey != "" || expired.FastURL != "" {
		t.Errorf("expired video fields should be cleared, got key=%q", expired.FastKey)
	}
	if live.FastKey == "" {
		t.Error("live video must not be swept")
	}
}
