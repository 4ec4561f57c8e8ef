package serviceimpl

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"veobatch/domain/models"
	"veobatch/domain/ports"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/pkg/config"
)

// ---- fakes ----

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func newFakeJobRepo(jobs ...*models.Job) *fakeJobRepo {
	r := &fakeJobRepo{jobs: make(map[uuid.UUID]*models.Job)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return job, nil
}

func (r *fakeJobRepo) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	return nil, nil
}

func (r *fakeJobRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("record not found")
	}
	for key, value := range fields {
		switch key {
		case "status":
			job.Status = value.(models.JobStatus)
		case "completed_videos":
			job.CompletedVideos = asInt(value)
		case "failed_videos":
			job.FailedVideos = asInt(value)
		case "total_images":
			job.TotalImages = asInt(value)
		case "total_prompts":
			job.TotalPrompts = asInt(value)
		case "expected_videos":
			job.ExpectedVideos = asInt(value)
		case "current_processing":
			job.CurrentProcessing = value.(string)
		case "images_folder_path":
			job.ImagesFolderPath = value.(string)
		case "prompts_file_path":
			job.PromptsFilePath = value.(string)
		case "error_summary":
			job.ErrorSummary = value.(models.ErrorSummary)
		}
	}
	return nil
}

// counter fields มาเป็น int จาก service บางตัวและ int64 จาก gorm Count
func asInt(value interface{}) int {
	switch n := value.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func (r *fakeJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"status": status})
}

func (r *fakeJobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *fakeJobRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.jobs)), nil
}

func (r *fakeJobRepo) GetStuckProcessing(ctx context.Context) ([]*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stuck []*models.Job
	for _, job := range r.jobs {
		if job.Status == models.JobStatusProcessing {
			stuck = append(stuck, job)
		}
	}
	return stuck, nil
}

type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[uuid.UUID]*models.Video
	// fields ที่ persist ล่าสุดต่อ video เอาไว้ assert ว่าอะไรถูกเขียนลง DB
	lastFields map[uuid.UUID]map[string]interface{}
}

func newFakeVideoRepo(videos ...*models.Video) *fakeVideoRepo {
	r := &fakeVideoRepo{
		videos:     make(map[uuid.UUID]*models.Video),
		lastFields: make(map[uuid.UUID]map[string]interface{}),
	}
	for _, v := range videos {
		r.videos[v.ID] = v
	}
	return r
}

func (r *fakeVideoRepo) Create(ctx context.Context, video *models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[video.ID] = video
	return nil
}

func (r *fakeVideoRepo) CreateBatch(ctx context.Context, videos []*models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range videos {
		r.videos[v.ID] = v
	}
	return nil
}

func (r *fakeVideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return video, nil
}

func (r *fakeVideoRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Video
	for _, v := range r.videos {
		if v.JobID == jobID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) GetSelected(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error) {
	return nil, nil
}

func (r *fakeVideoRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return errors.New("record not found")
	}
	merged, ok := r.lastFields[id]
	if !ok {
		merged = make(map[string]interface{})
		r.lastFields[id] = merged
	}
	for key, value := range fields {
		merged[key] = value
		switch key {
		case "status":
			video.Status = value.(models.VideoStatus)
		case "error_type":
			switch t := value.(type) {
			case models.ErrorType:
				video.ErrorType = t
			case string:
				video.ErrorType = models.ErrorType(t)
			}
		case "error_message":
			video.ErrorMessage = value.(string)
		case "retry_count":
			video.RetryCount = asInt(value)
		case "upscaled":
			video.Upscaled = value.(bool)
		case "resolution":
			video.Resolution = value.(string)
		}
	}
	return nil
}

func (r *fakeVideoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
	return nil
}

func (r *fakeVideoRepo) DeleteByJobID(ctx context.Context, jobID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.videos {
		if v.JobID == jobID {
			delete(r.videos, id)
			delete(r.lastFields, id)
		}
	}
	return nil
}

func (r *fakeVideoRepo) CountByJobAndStatus(ctx context.Context, jobID uuid.UUID, status models.VideoStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, v := range r.videos {
		if v.JobID == jobID && v.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeVideoRepo) GetExpiredFast(ctx context.Context, now time.Time) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Video
	for _, v := range r.videos {
		if v.FastKey != "" && v.FastExpiresAt != nil && v.FastExpiresAt.Before(now) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) ClearFastTier(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.videos[id]; ok {
		v.FastURL = ""
		v.FastKey = ""
		v.FastExpiresAt = nil
	}
	return nil
}

func (r *fakeVideoRepo) GetStuckGenerating(ctx context.Context, threshold time.Time) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Video
	for _, v := range r.videos {
		if v.Status == models.VideoStatusGenerating && v.GenerationStartedAt != nil && v.GenerationStartedAt.Before(threshold) {
			out = append(out, v)
		}
	}
	return out, nil
}

// fakeDriver เล่นสคริปต์ผล generation ต่อ attempt:
// outcomes[i] == "" แปลว่า attempt ที่ i+1 สำเร็จ ไม่งั้นคือ error message จากหน้าเว็บ
type fakeDriver struct {
	mu       sync.Mutex
	loginErr error
	logins   int
	closes   int
	submits  int
	outcomes []string
	onSubmit func() // hook หลัง submit สำหรับ test ที่ต้อง cancel กลางทาง
}

func (d *fakeDriver) Login(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logins++
	return d.loginErr
}

func (d *fakeDriver) Submit(ctx context.Context, imagePath, promptText string) error {
	d.mu.Lock()
	d.submits++
	hook := d.onSubmit
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (d *fakeDriver) PollStatus(ctx context.Context) (*ports.GenerationStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.submits - 1
	msg := ""
	if idx >= 0 && idx < len(d.outcomes) {
		msg = d.outcomes[idx]
	}
	if msg == "" {
		return &ports.GenerationStatus{State: ports.GenerationCompleted}, nil
	}
	return &ports.GenerationStatus{State: ports.GenerationError, ErrorMessage: msg}, nil
}

func (d *fakeDriver) Download(ctx context.Context, outputPath string) error {
	return os.WriteFile(outputPath, []byte("video-bytes"), 0644)
}

func (d *fakeDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

type fakeWorkflow struct {
	mu     sync.Mutex
	stores int
	err    error
}

func (f *fakeWorkflow) Store(ctx context.Context, artifactPath string, jobID, videoID uuid.UUID) (*services.StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.stores++
	return &services.StoreResult{
		FastURL:       "http://fast.local/jobs/" + jobID.String() + "/" + videoID.String() + ".mp4",
		FastKey:       "jobs/" + jobID.String() + "/" + videoID.String() + ".mp4",
		FastExpiresAt: time.Now().Add(time.Hour),
		DurableRef:    "jobs/" + jobID.String() + "/" + videoID.String() + ".mp4",
		DurableURL:    "s3://archive/jobs/" + jobID.String() + "/" + videoID.String() + ".mp4",
	}, nil
}

func (f *fakeWorkflow) StoreUpscaled(ctx context.Context, artifactPath string, jobID, videoID uuid.UUID) (*services.StoreResult, error) {
	return f.Store(ctx, artifactPath, jobID, videoID)
}

func (f *fakeWorkflow) SweepExpired(ctx context.Context) error {
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*ports.JobProgressEvent
}

func (p *fakePublisher) PublishProgress(ctx context.Context, event *ports.JobProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// ---- fixtures ----

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			UploadPath: t.TempDir(),
			OutputPath: t.TempDir(),
		},
		Flow: config.FlowConfig{
			PollInterval:     time.Millisecond,
			MaxWait:          200 * time.Millisecond,
			OutputsPerPrompt: 2,
		},
		Retry: config.RetryConfig{
			MaxAttempts: 2,
			Delay:       time.Millisecond,
		},
	}
}

func testJob(t *testing.T) *models.Job {
	t.Helper()
	return &models.Job{
		ID:               uuid.New(),
		Name:             "batch-1",
		Status:           models.JobStatusPending,
		ImagesFolderPath: t.TempDir(),
		PromptsFilePath:  "/uploads/prompts.txt",
		ExpectedVideos:   2,
	}
}

func queuedVideo(jobID uuid.UUID, promptNum, outputIdx int) *models.Video {
	return &models.Video{
		ID:            uuid.New(),
		JobID:         jobID,
		ImageFilename: "1.jpg",
		PromptNumber:  promptNum,
		PromptText:    "animate",
		OutputIndex:   outputIdx,
		Status:        models.VideoStatusQueued,
	}
}

func newTestService(jobRepo repositories.JobRepository, videoRepo repositories.VideoRepository, driver ports.AutomationDriver, workflow services.StorageWorkflow, pub ports.ProgressPublisherPort, cfg *config.Config) services.GenerationService {
	return NewGenerationService(jobRepo, videoRepo, driver, workflow, pub, nil, cfg)
}

// ---- tests ----

func TestPendingItems(t *testing.T) {
	jobID := uuid.New()

	completed := queuedVideo(jobID, 1, 1)
	completed.Status = models.VideoStatusCompleted
	failed := queuedVideo(jobID, 1, 2)
	failed.Status = models.VideoStatusFailed
	generating := queuedVideo(jobID, 2, 1)
	generating.Status = models.VideoStatusGenerating

	queued := queuedVideo(jobID, 2, 2)
	duplicate := queuedVideo(jobID, 2, 2)

	queue := pendingItems([]*models.Video{completed, failed, generating, queued, duplicate})

	if len(queue) != 1 {
		t.Fatalf("got %d pending items, want 1", len(queue))
	}
	if queue[0] != queued {
		t.Error("duplicate (prompt, output) pair should be dropped, keeping the first")
	}
}

func TestRunJobCompletesAllItems(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)
	v2 := queuedVideo(job.ID, 1, 2)

	jobRepo := newFakeJobRepo(job)
	videoRepo := newFakeVideoRepo(v1, v2)
	driver := &fakeDriver{}
	workflow := &fakeWorkflow{}
	pub := &fakePublisher{}

	svc := newTestService(jobRepo, videoRepo, driver, workflow, pub, testConfig(t))

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("job status = %s, want %s", job.Status, models.JobStatusCompleted)
	}
	if job.CompletedVideos != 2 || job.FailedVideos != 0 {
		t.Errorf("counters = %d/%d, want 2/0", job.CompletedVideos, job.FailedVideos)
	}
	if job.CurrentProcessing != "" {
		t.Errorf("current_processing should be cleared, got %q", job.CurrentProcessing)
	}

	for _, v := range []*models.Video{v1, v2} {
		if v.Status != models.VideoStatusCompleted {
			t.Errorf("video %s status = %s, want completed", v.ID, v.Status)
		}
		fields := videoRepo.lastFields[v.ID]
		if fields["fast_url"] == "" || fields["durable_ref"] == "" {
			t.Errorf("video %s: storage refs not persisted: %v", v.ID, fields)
		}
	}

	if driver.logins != 1 {
		t.Errorf("logins = %d, want 1 session for the whole batch", driver.logins)
	}
	if driver.closes != 1 {
		t.Errorf("closes = %d, want 1", driver.closes)
	}
	if workflow.stores != 2 {
		t.Errorf("storage handoffs = %d, want 2", workflow.stores)
	}
	if len(pub.events) != 2 {
		t.Errorf("progress events = %d, want 2", len(pub.events))
	}
}

func TestRunJobNotFound(t *testing.T) {
	svc := newTestService(newFakeJobRepo(), newFakeVideoRepo(), &fakeDriver{}, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RunJob(context.Background(), uuid.New())
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRunJobAlreadyProcessing(t *testing.T) {
	job := testJob(t)
	job.Status = models.JobStatusProcessing

	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(), &fakeDriver{}, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RunJob(context.Background(), job.ID)
	if !errors.Is(err, services.ErrAlreadyRunning) {
		t.Errorf("error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunJobMissingInputs(t *testing.T) {
	job := testJob(t)
	job.ImagesFolderPath = ""
	job.PromptsFilePath = ""

	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(), &fakeDriver{}, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RunJob(context.Background(), job.ID)
	if !errors.Is(err, services.ErrMissingInputs) {
		t.Errorf("error = %v, want ErrMissingInputs", err)
	}
}

func TestRunJobSetupFailure(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	driver := &fakeDriver{loginErr: errors.New("chrome crashed on startup")}
	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), driver, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RunJob(context.Background(), job.ID)
	if err == nil {
		t.Fatal("expected setup error")
	}

	if job.Status != models.JobStatusFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
	if len(job.ErrorSummary) != 1 {
		t.Fatalf("error summary entries = %d, want 1", len(job.ErrorSummary))
	}
	// item ไม่ถูกแตะเมื่อ setup พัง - ยัง queued สำหรับรอบถัดไป
	if v1.Status != models.VideoStatusQueued {
		t.Errorf("video status = %s, want queued", v1.Status)
	}
}

func TestRunJobTerminalContentError(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	driver := &fakeDriver{outcomes: []string{"Prompt violates our content policy"}}
	videoRepo := newFakeVideoRepo(v1)
	svc := newTestService(newFakeJobRepo(job), videoRepo, driver, &fakeWorkflow{}, nil, testConfig(t))

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}

	if v1.Status != models.VideoStatusFailed {
		t.Errorf("video status = %s, want failed", v1.Status)
	}
	if v1.ErrorType != models.ErrorTypePolicyViolation {
		t.Errorf("error type = %s, want %s", v1.ErrorType, models.ErrorTypePolicyViolation)
	}
	// attempt ที่พังก็เป็น attempt - นับเข้า retry_count แม้ไม่ retry
	if v1.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1 (the failed attempt counts)", v1.RetryCount)
	}
	if driver.submits != 1 {
		t.Errorf("submits = %d, want 1", driver.submits)
	}

	// batch จบปกติแม้ item เดียวที่มี fail
	if job.Status != models.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if job.FailedVideos != 1 {
		t.Errorf("failed counter = %d, want 1", job.FailedVideos)
	}
}

func TestRunJobProminentPeopleCountsAttempt(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	driver := &fakeDriver{outcomes: []string{"Prompt mentions prominent people"}}
	videoRepo := newFakeVideoRepo(v1)
	svc := newTestService(newFakeJobRepo(job), videoRepo, driver, &fakeWorkflow{}, nil, testConfig(t))

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}

	if v1.Status != models.VideoStatusFailed {
		t.Errorf("video status = %s, want failed", v1.Status)
	}
	if v1.ErrorType != models.ErrorTypeProminentPeople {
		t.Errorf("error type = %s, want %s", v1.ErrorType, models.ErrorTypeProminentPeople)
	}
	if v1.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1 on a first-attempt terminal failure", v1.RetryCount)
	}
	if got := videoRepo.lastFields[v1.ID]["retry_count"]; asInt(got) != 1 {
		t.Errorf("persisted retry_count = %v, want 1", got)
	}
	if driver.submits != 1 {
		t.Errorf("submits = %d, terminal errors must not re-submit", driver.submits)
	}
}

func TestRunJobHighDemandRetriesThenSucceeds(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	// attempt แรกเจอ high demand, attempt สองผ่าน
	driver := &fakeDriver{outcomes: []string{"Flow is experiencing high demand", ""}}
	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), driver, &fakeWorkflow{}, nil, testConfig(t))

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}

	if v1.Status != models.VideoStatusCompleted {
		t.Errorf("video status = %s, want completed", v1.Status)
	}
	if v1.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", v1.RetryCount)
	}
	if driver.submits != 2 {
		t.Errorf("submits = %d, want 2", driver.submits)
	}
}

func TestRunJobHighDemandExhaustsRetries(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	// MaxAttempts = 2 ใน testConfig: fail 3 ครั้งติดพอให้หมดโควต้า
	driver := &fakeDriver{outcomes: []string{"high demand", "high demand", "high demand"}}
	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), driver, &fakeWorkflow{}, nil, testConfig(t))

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}

	if v1.Status != models.VideoStatusFailed {
		t.Errorf("video status = %s, want failed", v1.Status)
	}
	if v1.ErrorType != models.ErrorTypeHighDemand {
		t.Errorf("error type = %s, want %s", v1.ErrorType, models.ErrorTypeHighDemand)
	}
	// 2 retry + attempt สุดท้ายที่ปิดเป็น failed = 3 failed attempts
	if v1.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3 (every failed attempt counts)", v1.RetryCount)
	}
	if driver.submits != 3 {
		t.Errorf("submits = %d, want 3", driver.submits)
	}
}

func TestRunJobCancelledContext(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), &fakeDriver{}, &fakeWorkflow{}, nil, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.RunJob(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("job status = %s, want cancelled", job.Status)
	}
}

func TestRunJobCancelledMidGenerationLeavesItemUntouched(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := &fakeDriver{onSubmit: cancel}
	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), driver, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RunJob(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}

	// cancel ไม่ใช่ failure - item ค้าง generating ไว้ ไม่ปั๊มเป็น failed
	if v1.Status != models.VideoStatusGenerating {
		t.Errorf("video status = %s, want generating left as-is", v1.Status)
	}
	if v1.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", v1.RetryCount)
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("job status = %s, want cancelled", job.Status)
	}
}

func TestRunJobCancelledDuringRetryBackoff(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// backoff ยาวพอให้ cancel ชิงตัดก่อนแน่นอน
	cfg := testConfig(t)
	cfg.Retry.Delay = time.Minute

	driver := &fakeDriver{
		outcomes: []string{"high demand"},
		onSubmit: func() { time.AfterFunc(20*time.Millisecond, cancel) },
	}
	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), driver, &fakeWorkflow{}, nil, cfg)

	err := svc.RunJob(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}

	if v1.Status == models.VideoStatusFailed {
		t.Errorf("video marked failed by a cancel, want it left in-flight")
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("job status = %s, want cancelled", job.Status)
	}
	if driver.submits != 1 {
		t.Errorf("submits = %d, want 1 (no re-attempt after cancel)", driver.submits)
	}
}

func TestRegenerateVideo(t *testing.T) {
	job := testJob(t)
	job.Status = models.JobStatusCompleted

	v1 := queuedVideo(job.ID, 1, 1)
	v1.Status = models.VideoStatusFailed
	v1.ErrorType = models.ErrorTypeHighDemand
	v1.ErrorMessage = "high demand"
	v1.RetryCount = 2

	driver := &fakeDriver{}
	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), driver, &fakeWorkflow{}, nil, testConfig(t))

	if err := svc.RegenerateVideo(context.Background(), v1.ID, "new prompt text"); err != nil {
		t.Fatalf("RegenerateVideo() error = %v", err)
	}

	if v1.Status != models.VideoStatusCompleted {
		t.Errorf("video status = %s, want completed", v1.Status)
	}
	if v1.PromptText != "new prompt text" {
		t.Errorf("prompt text = %q, want replacement applied", v1.PromptText)
	}
	if v1.RetryCount != 0 {
		t.Errorf("retry count = %d, want reset to 0", v1.RetryCount)
	}
	if driver.logins != 1 || driver.closes != 1 {
		t.Errorf("driver session: logins=%d closes=%d, want 1/1", driver.logins, driver.closes)
	}
}

func TestRegenerateVideoInvalidState(t *testing.T) {
	job := testJob(t)
	v1 := queuedVideo(job.ID, 1, 1) // ยัง queued ไม่ใช่ terminal

	svc := newTestService(newFakeJobRepo(job), newFakeVideoRepo(v1), &fakeDriver{}, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RegenerateVideo(context.Background(), v1.ID, "")
	if !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestRegenerateVideoNotFound(t *testing.T) {
	svc := newTestService(newFakeJobRepo(), newFakeVideoRepo(), &fakeDriver{}, &fakeWorkflow{}, nil, testConfig(t))

	err := svc.RegenerateVideo(context.Background(), uuid.New(), "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
