package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/valpere/voxpair/internal/audio"
)

// OpenAIClient uses the hosted Whisper model. The verbose_json response
// carries the detected language as a full lower-case name ("hindi").
type OpenAIClient struct {
	client openai.Client
	model  string
	logger *logrus.Logger
}

func NewOpenAIClient(apiKey, baseURL, model string, logger *logrus.Logger) *OpenAIClient {
	if model == "" {
		model = openai.AudioModelWhisper1
	}
	if logger == nil {
		logger = logrus.New()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

func (o *OpenAIClient) Name() string {
	return "openai"
}

func (o *OpenAIClient) Transcribe(ctx context.Context, clip audio.Clip) (*Result, error) {
	if err := clip.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	tr, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(clip.Data), clip.Filename(), clip.ContentType),
		Model:          o.model,
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription failed: %w", err)
	}

	lang := gjson.Get(tr.RawJSON(), "language").String()

	o.logger.WithFields(logrus.Fields{
		"model":       o.model,
		"language":    lang,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("OpenAI transcription completed")

	return &Result{
		Text:     strings.TrimSpace(tr.Text),
		Language: lang,
		Engine:   o.Name(),
	}, nil
}
