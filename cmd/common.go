/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/valpere/voxpair/internal/detector"
	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/orchestrator"
	"github.com/valpere/voxpair/internal/pipeline"
	"github.com/valpere/voxpair/internal/recognizer"
	"github.com/valpere/voxpair/internal/session"
	"github.com/valpere/voxpair/internal/store"
	"github.com/valpere/voxpair/internal/synth"
	"github.com/valpere/voxpair/internal/translator"
	"github.com/valpere/voxpair/internal/validator"
)

// app holds the collaborators shared by serve and converse.
type app struct {
	registry *language.Registry
	sessions *session.Manager
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

func newApp() (*app, error) {
	a := &app{}

	registry, err := language.New(cfg.LanguageTables())
	if err != nil {
		return nil, fmt.Errorf("invalid language configuration: %w", err)
	}
	a.registry = registry
	a.sessions = session.NewManager(registry, cfg.Bounds())

	var codes []string
	for _, p := range registry.Pairs() {
		codes = append(codes, string(p.A), string(p.B))
	}
	det := detector.New(codes...)

	rec, err := recognizer.New(cfg.Recognizer.Engine, cfg.Recognizer.BaseURL, cfg.Recognizer.APIKey, cfg.Recognizer.Model, logger)
	if err != nil {
		return nil, err
	}

	services, err := translator.Build(cfg.Translation.Services, cfg.Translation.Providers, logger)
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		if c, ok := svc.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if cfg.Translation.Validate {
		opts = append(opts, orchestrator.WithValidator(validator.New(det)))
	}
	if cfg.Cache.Enabled {
		db, err := store.New(cfg.Cache.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open translation memory: %w", err)
		}
		a.closers = append(a.closers, db)
		opts = append(opts, orchestrator.WithMemory(db))
	}
	orch := orchestrator.New(services, orchestrator.OrchestratorConfig{Timeout: cfg.Translation.Timeout}, opts...)

	syn, err := synth.New(synth.Config{
		Engine:  cfg.Synth.Engine,
		BaseURL: cfg.Synth.BaseURL,
		Voices:  cfg.Synth.Voices,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Untagged transcripts are checked against every language lingua knows so
	// speech outside the pair is still rejected. Models load on first use.
	tagDet := detector.New()
	a.pipeline = pipeline.New(registry, recognizer.WithTagFallback(rec, tagDet, logger), orch, syn, logger)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close resource")
		}
	}
}

// findPair accepts a pair label or its codes ("en-hi", "hi:en").
func findPair(reg *language.Registry, s string) (language.Pair, error) {
	if p, ok := reg.Pair(s); ok {
		return p, nil
	}
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == ':' || r == ',' || r == '/'
	})
	if len(fields) == 2 {
		a, b := language.Code(fields[0]), language.Code(fields[1])
		for _, p := range reg.Pairs() {
			if (p.A == a && p.B == b) || (p.A == b && p.B == a) {
				return p, nil
			}
		}
	}
	return language.Pair{}, fmt.Errorf("%w: %q (see \"voxpair pairs\")", session.ErrUnknownPair, s)
}
