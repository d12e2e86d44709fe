// Package recognizer transcribes recorded clips and reports the language the
// speech engine heard.
package recognizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/audio"
	"github.com/valpere/voxpair/internal/detector"
)

// Result is a transcript plus the engine's raw language tag. Empty Text means
// no speech was heard.
type Result struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Engine   string `json:"engine"`
}

type Recognizer interface {
	Name() string
	Transcribe(ctx context.Context, clip audio.Clip) (*Result, error)
}

// New returns the recognizer for engine ("whisper" or "openai").
func New(engine, baseURL, apiKey, model string, logger *logrus.Logger) (Recognizer, error) {
	switch engine {
	case "whisper", "":
		return NewWhisperClient(baseURL, logger), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai recognizer requires an API key")
		}
		return NewOpenAIClient(apiKey, baseURL, model, logger), nil
	}
	return nil, fmt.Errorf("unknown recognizer engine %q", engine)
}

// TagFallback fills in a missing language tag by running text detection over
// the transcript. The detector should know more languages than the configured
// pairs: a detector limited to pair languages always answers with a pair
// member, and untagged speech in any other language would never be rejected.
// When detection is inconclusive the tag stays empty and the turn is rejected.
type TagFallback struct {
	next     Recognizer
	detector *detector.Detector
	logger   *logrus.Logger
}

func WithTagFallback(next Recognizer, det *detector.Detector, logger *logrus.Logger) *TagFallback {
	if logger == nil {
		logger = logrus.New()
	}
	return &TagFallback{next: next, detector: det, logger: logger}
}

func (t *TagFallback) Name() string {
	return t.next.Name()
}

func (t *TagFallback) Transcribe(ctx context.Context, clip audio.Clip) (*Result, error) {
	res, err := t.next.Transcribe(ctx, clip)
	if err != nil {
		return nil, err
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" || strings.TrimSpace(res.Language) != "" {
		return res, nil
	}

	if code, ok := t.detector.DetectISO(res.Text); ok {
		t.logger.WithFields(logrus.Fields{
			"engine":   res.Engine,
			"detected": code,
		}).Debug("Recognizer reported no language, inferred from transcript")
		res.Language = code
	}
	return res, nil
}
