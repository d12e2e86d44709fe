package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Piper speaks through a rhasspy/wyoming-piper HTTP endpoint, which streams
// a WAV body per request.
type Piper struct {
	baseURL string
	voices  map[string]string
	client  *http.Client
	logger  *logrus.Logger
}

func NewPiper(baseURL string, voices map[string]string, logger *logrus.Logger) *Piper {
	if logger == nil {
		logger = logrus.New()
	}
	return &Piper{
		baseURL: strings.TrimRight(baseURL, "/"),
		voices:  voices,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (p *Piper) Name() string {
	return "piper"
}

func (p *Piper) Synthesize(ctx context.Context, text, code string) (*Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	voice, ok := p.voices[code]
	if !ok {
		return nil, fmt.Errorf("no piper voice configured for %q", code)
	}

	u, err := url.Parse(p.baseURL + "/api/text-to-speech")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("text", text)
	q.Set("voice", voice)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeWAV)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piper request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("piper returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = ContentTypeWAV
	}

	p.logger.WithFields(logrus.Fields{
		"voice":       voice,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Piper synthesis completed")

	return &Audio{Data: body, ContentType: ct}, nil
}
