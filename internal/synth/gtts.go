package synth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/chunker"
)

const DefaultGTTSURL = "https://translate.google.com"

const gttsUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// GTTS speaks through the Google Translate TTS endpoint. The endpoint caps
// each request at 100 characters, so longer text is chunked and the MP3
// segments are concatenated.
type GTTS struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewGTTS(baseURL string, logger *logrus.Logger) *GTTS {
	if baseURL == "" {
		baseURL = DefaultGTTSURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &GTTS{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (g *GTTS) Name() string {
	return "gtts"
}

func (g *GTTS) Synthesize(ctx context.Context, text, code string) (*Audio, error) {
	chunks := chunker.Split(text, chunker.DefaultMaxRunes)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var out bytes.Buffer
	for i, chunk := range chunks {
		data, err := g.fetch(ctx, chunk, code, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out.Write(data)
	}

	g.logger.WithFields(logrus.Fields{
		"lang":   code,
		"chunks": len(chunks),
		"bytes":  out.Len(),
	}).Debug("gTTS synthesis completed")

	return &Audio{Data: out.Bytes(), ContentType: ContentTypeMP3}, nil
}

func (g *GTTS) fetch(ctx context.Context, chunk, code string, idx, total int) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", code)
	params.Set("q", chunk)
	params.Set("total", strconv.Itoa(total))
	params.Set("idx", strconv.Itoa(idx))
	params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", gttsUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gtts request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"lang":        code,
		}).Error("gTTS service error")
		return nil, fmt.Errorf("gtts returned status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("gtts returned no audio")
	}
	return body, nil
}
