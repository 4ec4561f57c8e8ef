package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"veobatch/domain/ports"
	"veobatch/pkg/logger"
)

// FlowClient implements AutomationDriver ผ่าน HTTP ไปหา Playwright sidecar
// sidecar เป็นคนคุม browser จริง - client นี้แค่ส่งคำสั่งและอ่านผล
type FlowClient struct {
	baseURL string
	http    *http.Client
}

type FlowClientConfig struct {
	BaseURL string        // http://localhost:9400
	Timeout time.Duration // ต่อ request (download ใช้ timeout แยก)
}

func NewFlowClient(config FlowClientConfig) ports.AutomationDriver {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &FlowClient{
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// statusResponse payload จาก GET /session/status
type statusResponse struct {
	State        string `json:"state"` // pending, completed, error
	ErrorMessage string `json:"error_message"`
}

// Login เปิด browser session ใหม่บน sidecar
func (c *FlowClient) Login(ctx context.Context) error {
	resp, err := c.post(ctx, "/session", nil, "")
	if err != nil {
		return fmt.Errorf("driver login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("driver login failed: %s", readErrorBody(resp))
	}

	logger.InfoContext(ctx, "Automation session opened", "driver", c.baseURL)
	return nil
}

// Submit ส่งภาพ + prompt เป็น multipart form
func (c *FlowClient) Submit(ctx context.Context, imagePath, promptText string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if err := writer.WriteField("prompt", promptText); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}

	resp, err := c.post(ctx, "/session/submit", &body, writer.FormDataContentType())
	if err != nil {
		return fmt.Errorf("driver submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("driver submit failed: %s", readErrorBody(resp))
	}
	return nil
}

// PollStatus อ่านสถานะ generation ปัจจุบันจาก sidecar
func (c *FlowClient) PollStatus(ctx context.Context) (*ports.GenerationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("driver poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("driver poll failed: %s", readErrorBody(resp))
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode driver status: %w", err)
	}

	return &ports.GenerationStatus{
		State:        ports.GenerationState(status.State),
		ErrorMessage: status.ErrorMessage,
	}, nil
}

// Download ดึงไฟล์วิดีโอจาก sidecar ลง outputPath
func (c *FlowClient) Download(ctx context.Context, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session/download", nil)
	if err != nil {
		return err
	}

	// download ไฟล์ใหญ่ ใช้ client แยกที่ไม่มี timeout รวม (ctx คุม deadline แทน)
	downloadClient := &http.Client{}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", readErrorBody(resp))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	dst, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("download failed: %w", err)
	}
	if written == 0 {
		os.Remove(outputPath)
		return fmt.Errorf("download failed: empty response body")
	}

	logger.DebugContext(ctx, "Video downloaded from driver", "path", outputPath, "bytes", written)
	return nil
}

// Close ปิด session คืน browser resource
func (c *FlowClient) Close(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/session", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("driver close failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("driver close failed: %s", readErrorBody(resp))
	}
	return nil
}

func (c *FlowClient) post(ctx context.Context, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.http.Do(req)
}

// readErrorBody อ่าน body สั้นๆ มาใส่ error message
func readErrorBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(data) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, string(data))
}
