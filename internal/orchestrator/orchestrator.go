// Package orchestrator runs the configured translation services for one
// request and picks the result to use.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/translator"
)

// ErrAllFailed wraps the per-service errors when no service produced text.
var ErrAllFailed = errors.New("all translation services failed")

// Validator judges whether a translation is in the requested language.
type Validator interface {
	Check(translatedText, targetLang string) error
}

// Memory is a translation cache consulted before any service is called.
type Memory interface {
	GetCachedTranslation(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error)
	SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string) error
}

type OrchestratorConfig struct {
	// Timeout bounds each service call.
	Timeout time.Duration
}

type OrchestratorResult struct {
	// Results holds successful results in service priority order.
	Results   []translator.ServiceResult
	Errors    []error
	Succeeded int
	Failed    int
}

type Orchestrator struct {
	services  []translator.TranslationService
	config    OrchestratorConfig
	validator Validator
	memory    Memory
	logger    *logrus.Logger
}

type Option func(*Orchestrator)

func WithValidator(v Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

func WithMemory(m Memory) Option {
	return func(o *Orchestrator) { o.memory = m }
}

func WithLogger(l *logrus.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(services []translator.TranslationService, config OrchestratorConfig, opts ...Option) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	o := &Orchestrator{
		services: services,
		config:   config,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute calls every service in parallel. Empty translations count as
// failures. Each service is called once.
func (o *Orchestrator) Execute(ctx context.Context, req translator.TranslateRequest) *OrchestratorResult {
	type outcome struct {
		res *translator.ServiceResult
		err error
	}

	outcomes := make([]outcome, len(o.services))
	var wg sync.WaitGroup
	for i, svc := range o.services {
		wg.Add(1)
		go func(index int, service translator.TranslationService) {
			defer wg.Done()

			serviceCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
			defer cancel()

			res, err := service.Translate(serviceCtx, req)
			outcomes[index] = outcome{res: res, err: err}
		}(i, svc)
	}
	wg.Wait()

	result := &OrchestratorResult{}
	for i, oc := range outcomes {
		name := o.services[i].Name()
		switch {
		case oc.err != nil:
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", name, oc.err))
			result.Failed++
		case oc.res == nil:
			result.Errors = append(result.Errors, fmt.Errorf("%s: no result", name))
			result.Failed++
		case oc.res.Error != "":
			result.Errors = append(result.Errors, fmt.Errorf("%s: %s", name, oc.res.Error))
			result.Failed++
		case strings.TrimSpace(oc.res.TranslatedText) == "":
			result.Errors = append(result.Errors, fmt.Errorf("%s: empty translation", name))
			result.Failed++
		default:
			result.Results = append(result.Results, *oc.res)
			result.Succeeded++
		}
	}

	return result
}

// Translate returns the translation to use for req: a cached entry when the
// memory has one, otherwise the highest-priority successful service result,
// preferring results that pass validation.
func (o *Orchestrator) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	if o.memory != nil {
		cached, found, err := o.memory.GetCachedTranslation(ctx, req.Text, req.SourceLang, req.TargetLang)
		if err != nil {
			o.logger.WithError(err).Warn("Translation memory lookup failed")
		} else if found {
			return &translator.ServiceResult{
				ServiceName:    "memory",
				TranslatedText: cached,
				Confidence:     1.0,
			}, nil
		}
	}

	result := o.Execute(ctx, req)
	for _, err := range result.Errors {
		o.logger.WithError(err).Warn("Translation service failed")
	}
	if result.Succeeded == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(result.Errors...))
	}

	chosen := result.Results[0]
	if o.validator != nil {
		for _, r := range result.Results {
			if err := o.validator.Check(r.TranslatedText, req.TargetLang); err != nil {
				o.logger.WithFields(logrus.Fields{
					"service": r.ServiceName,
					"reason":  err.Error(),
				}).Warn("Translation failed validation")
				continue
			}
			chosen = r
			break
		}
	}

	if o.memory != nil {
		if err := o.memory.SaveToMemory(ctx, req.Text, req.SourceLang, req.TargetLang, chosen.TranslatedText, chosen.ServiceName); err != nil {
			o.logger.WithError(err).Warn("Failed to save translation memory")
		}
	}

	return &chosen, nil
}
