package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/voxpair/internal/postprocess"
)

const DefaultLLMModel = "gpt-4o-mini"

// LLMService translates with a chat model behind any OpenAI-compatible
// endpoint (OpenAI, OpenRouter, Ollama's /v1).
type LLMService struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

func NewLLMService(cfg ServiceConfig, logger *logrus.Logger) *LLMService {
	model := cfg.Model
	if model == "" {
		model = DefaultLLMModel
	}
	if logger == nil {
		logger = logrus.New()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &LLMService{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

func (s *LLMService) Name() string {
	return "llm"
}

func (s *LLMService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	target := languageName(req.TargetLang)
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildSystemPrompt(languageName(req.SourceLang), target)),
			openai.UserMessage(req.Text),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		result.Error = "empty response from model"
		return result, fmt.Errorf("empty response from model")
	}

	result.TranslatedText = postprocess.Clean(completion.Choices[0].Message.Content, target)
	result.Confidence = 0.7
	result.Metadata = map[string]string{
		"model":             completion.Model,
		"prompt_tokens":     fmt.Sprintf("%d", completion.Usage.PromptTokens),
		"completion_tokens": fmt.Sprintf("%d", completion.Usage.CompletionTokens),
	}

	s.logger.WithFields(logrus.Fields{
		"model":       completion.Model,
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("LLM translation completed")

	return result, nil
}

func (s *LLMService) IsAvailable(ctx context.Context) error {
	_, err := s.client.Models.List(ctx)
	return err
}

// SupportedLanguages is open-ended for a chat model; the pair registry
// decides what is asked for.
func (s *LLMService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return nil, nil
}

func buildSystemPrompt(source, target string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an interpreter in a spoken conversation. Translate the user's utterance from %s to %s.\n", source, target)
	sb.WriteString("The text is a speech transcript and may lack punctuation. ")
	sb.WriteString("Reply with the translation only: no explanations, no quotes, no transliteration.")
	return sb.String()
}

// languageName turns a code into an English language name for prompts,
// falling back to the code itself.
func languageName(code string) string {
	if code == "" {
		return "the speaker's language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
