package serviceimpl

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"veobatch/domain/models"
)

func writePromptsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePromptsFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[int]string
	}{
		{
			"basic",
			"prompt_1: Animate the character waving\nprompt_2: Zoom into the background",
			map[int]string{1: "Animate the character waving", 2: "Zoom into the background"},
		},
		{
			"multiline prompt",
			"prompt_1: First line\nsecond line continues\nprompt_2: Short one",
			map[int]string{1: "First line\nsecond line continues", 2: "Short one"},
		},
		{
			"case insensitive header",
			"PROMPT_1: upper\nPrompt_2: mixed",
			map[int]string{1: "upper", 2: "mixed"},
		},
		{
			"leading whitespace before header",
			"  prompt_1: indented header",
			map[int]string{1: "indented header"},
		},
		{
			"non sequential numbers",
			"prompt_3: third\nprompt_7: seventh",
			map[int]string{3: "third", 7: "seventh"},
		},
		{
			"empty prompt skipped",
			"prompt_1:\nprompt_2: real text",
			map[int]string{2: "real text"},
		},
		{
			"blank lines between prompts",
			"prompt_1: one\n\n\nprompt_2: two\n",
			map[int]string{1: "one", 2: "two"},
		},
		{
			"header text inline does not split",
			"prompt_1: mentions prompt_2: inline but same line continues",
			map[int]string{1: "mentions prompt_2: inline but same line continues"},
		},
		{
			"no headers",
			"just some text without any markers",
			map[int]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePromptsFile(writePromptsFile(t, tt.content))
			if err != nil {
				t.Fatalf("parsePromptsFile() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d prompts, want %d (%v)", len(got), len(tt.want), got)
			}
			for num, text := range tt.want {
				if got[num] != text {
					t.Errorf("prompt %d = %q, want %q", num, got[num], text)
				}
			}
		})
	}
}

func TestParsePromptsFileMissing(t *testing.T) {
	_, err := parsePromptsFile(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"1.jpg", "2.png", "3.jpeg", "4.webp",
		"10_character.jpg", // เลขนำหน้าพอ
		"cover.jpg",        // ไม่มีเลข
		"5.txt",            // ไม่ใช่รูป
		"6.JPG",            // นามสกุลตัวใหญ่
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "7"), 0755); err != nil {
		t.Fatal(err)
	}

	images, err := collectImages(dir)
	if err != nil {
		t.Fatalf("collectImages() error = %v", err)
	}

	want := map[int]string{
		1:  "1.jpg",
		2:  "2.png",
		3:  "3.jpeg",
		4:  "4.webp",
		6:  "6.JPG",
		10: "10_character.jpg",
	}
	if len(images) != len(want) {
		t.Fatalf("got %d images, want %d (%v)", len(images), len(want), images)
	}
	for num, name := range want {
		if images[num] != name {
			t.Errorf("image %d = %q, want %q", num, images[num], name)
		}
	}
}

func TestValidateInputs(t *testing.T) {
	tests := []struct {
		name    string
		images  map[int]string
		prompts map[int]string
		wantErr string
	}{
		{
			"matching sets",
			map[int]string{1: "1.jpg", 2: "2.jpg"},
			map[int]string{1: "a", 2: "b"},
			"",
		},
		{
			"no images",
			map[int]string{},
			map[int]string{1: "a"},
			"no indexed images found in archive",
		},
		{
			"no prompts",
			map[int]string{1: "1.jpg"},
			map[int]string{},
			"no prompts found in prompts file",
		},
		{
			"count mismatch",
			map[int]string{1: "1.jpg"},
			map[int]string{1: "a", 2: "b"},
			"image count (1) doesn't match prompt count (2)",
		},
		{
			"index mismatch both ways",
			map[int]string{1: "1.jpg", 3: "3.jpg"},
			map[int]string{1: "a", 2: "b"},
			"Mismatch: Missing images for prompts: [2]. Missing prompts for images: [3].",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInputs(tt.images, tt.prompts)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateInputs() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildVideoRecords(t *testing.T) {
	jobID := uuid.New()
	images := map[int]string{2: "2.png", 1: "1.jpg"}
	prompts := map[int]string{1: "first", 2: "second"}

	videos := buildVideoRecords(jobID, images, prompts, 2)

	if len(videos) != 4 {
		t.Fatalf("got %d records, want 4", len(videos))
	}

	// เรียงตาม prompt number แล้วค่อย output index
	wantOrder := []struct {
		promptNum int
		outputIdx int
		image     string
		text      string
	}{
		{1, 1, "1.jpg", "first"},
		{1, 2, "1.jpg", "first"},
		{2, 1, "2.png", "second"},
		{2, 2, "2.png", "second"},
	}

	for i, want := range wantOrder {
		v := videos[i]
		if v.PromptNumber != want.promptNum || v.OutputIndex != want.outputIdx {
			t.Errorf("record %d: got prompt %d output %d, want prompt %d output %d",
				i, v.PromptNumber, v.OutputIndex, want.promptNum, want.outputIdx)
		}
		if v.ImageFilename != want.image {
			t.Errorf("record %d: image = %q, want %q", i, v.ImageFilename, want.image)
		}
		if v.PromptText != want.text {
			t.Errorf("record %d: prompt text = %q, want %q", i, v.PromptText, want.text)
		}
		if v.JobID != jobID {
			t.Errorf("record %d: wrong job id", i)
		}
		if v.Status != models.VideoStatusQueued {
			t.Errorf("record %d: status = %s, want %s", i, v.Status, models.VideoStatusQueued)
		}
		if v.ID == uuid.Nil {
			t.Errorf("record %d: missing id", i)
		}
	}
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "images.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractZip(t *testing.T) {
	t.Run("flat archive", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{
			"1.jpg": "one",
			"2.jpg": "two",
		})
		dest := filepath.Join(t.TempDir(), "out")

		dir, err := extractZip(zipPath, dest)
		if err != nil {
			t.Fatalf("extractZip() error = %v", err)
		}
		if dir != dest {
			t.Errorf("dir = %q, want %q", dir, dest)
		}
		for _, name := range []string{"1.jpg", "2.jpg"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("missing extracted file %s: %v", name, err)
			}
		}
	})

	t.Run("single nested folder unwrapped", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{
			"images/1.jpg": "one",
			"images/2.jpg": "two",
		})
		dest := filepath.Join(t.TempDir(), "out")

		dir, err := extractZip(zipPath, dest)
		if err != nil {
			t.Fatalf("extractZip() error = %v", err)
		}
		if dir != filepath.Join(dest, "images") {
			t.Errorf("dir = %q, want nested folder path", dir)
		}
		if _, err := os.Stat(filepath.Join(dir, "1.jpg")); err != nil {
			t.Errorf("missing file in nested folder: %v", err)
		}
	})

	t.Run("macos metadata skipped", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{
			"1.jpg":           "one",
			"__MACOSX/1.jpg":  "junk",
			"._2.jpg":         "junk",
			"__MACOSX/._meta": "junk",
		})
		dest := filepath.Join(t.TempDir(), "out")

		dir, err := extractZip(zipPath, dest)
		if err != nil {
			t.Fatalf("extractZip() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "__MACOSX")); !os.IsNotExist(err) {
			t.Error("__MACOSX should not be extracted")
		}
		if _, err := os.Stat(filepath.Join(dir, "._2.jpg")); !os.IsNotExist(err) {
			t.Error("._ resource fork should not be extracted")
		}
		if _, err := os.Stat(filepath.Join(dir, "1.jpg")); err != nil {
			t.Errorf("real file missing: %v", err)
		}
	})

	t.Run("path traversal entries ignored", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{
			"../evil.jpg": "bad",
			"1.jpg":       "good",
		})
		parent := t.TempDir()
		dest := filepath.Join(parent, "out")

		if _, err := extractZip(zipPath, dest); err != nil {
			t.Fatalf("extractZip() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(parent, "evil.jpg")); !os.IsNotExist(err) {
			t.Error("traversal entry escaped the destination")
		}
	})
}

func TestProcessUploadReplacesExistingVideos(t *testing.T) {
	job := testJob(t)
	jobRepo := newFakeJobRepo(job)
	videoRepo := newFakeVideoRepo()

	svc := NewUploadService(jobRepo, videoRepo, testConfig(t))

	upload := func() {
		t.Helper()
		zipPath := writeZip(t, map[string]string{"1.jpg": "one"})
		promptsPath := writePromptsFile(t, "prompt_1: Animate the character")

		result, err := svc.ProcessUpload(context.Background(), job.ID, zipPath, promptsPath)
		if err != nil {
			t.Fatalf("ProcessUpload() error = %v", err)
		}
		if result.ExpectedVideos != 2 {
			t.Fatalf("expected videos = %d, want 2", result.ExpectedVideos)
		}
	}

	upload()
	// upload รอบสองกับ job เดิมต้องแทนที่ชุดเก่า ไม่ใช่งอกเพิ่ม
	// ไม่งั้น (prompt, output_index) ซ้ำและ counter นับเกิน expected_videos
	upload()

	videos, err := videoRepo.GetByJobID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 {
		t.Errorf("video rows after re-upload = %d, want 2", len(videos))
	}
	if job.ExpectedVideos != 2 {
		t.Errorf("job expected_videos = %d, want 2", job.ExpectedVideos)
	}
}
