package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/audio"
)

const DefaultWhisperURL = "http://localhost:9000"

// WhisperClient talks to a self-hosted whisper-asr-webservice instance with
// language auto-detection enabled.
type WhisperClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewWhisperClient(baseURL string, logger *logrus.Logger) *WhisperClient {
	if baseURL == "" {
		baseURL = DefaultWhisperURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &WhisperClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

func (w *WhisperClient) Name() string {
	return "whisper"
}

func (w *WhisperClient) Transcribe(ctx context.Context, clip audio.Clip) (*Result, error) {
	if err := clip.Validate(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", clip.Filename())
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	// No language parameter: the service detects it.
	url := w.baseURL + "/asr?encode=true&task=transcribe&output=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		w.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"body":        string(raw),
		}).Error("Whisper service error")
		return nil, fmt.Errorf("whisper service returned status %d", resp.StatusCode)
	}

	var out struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"language":    out.Language,
		"text_length": len(out.Text),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Whisper transcription completed")

	return &Result{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Engine:   w.Name(),
	}, nil
}
