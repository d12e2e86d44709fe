// Package pipeline runs one conversation turn: recognize the clip, route it
// within the session's pair, translate, log and synthesize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/audio"
	"github.com/valpere/voxpair/internal/history"
	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/recognizer"
	"github.com/valpere/voxpair/internal/router"
	"github.com/valpere/voxpair/internal/session"
	"github.com/valpere/voxpair/internal/synth"
	"github.com/valpere/voxpair/internal/translator"
)

// Translator produces the translation for one request. The orchestrator
// satisfies it.
type Translator interface {
	Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error)
}

// Outcome describes how far a turn got. Fields past the failing stage are
// left empty.
type Outcome struct {
	State      string            `json:"state"`
	Recognized string            `json:"recognized,omitempty"`
	RawTag     string            `json:"raw_tag,omitempty"`
	Detected   language.Code     `json:"detected,omitempty"`
	Direction  *router.Direction `json:"direction,omitempty"`
	Service    string            `json:"service,omitempty"`
	Turn       *history.Turn     `json:"turn,omitempty"`

	Audio        *synth.Audio `json:"-"`
	SynthesisErr error        `json:"-"`
}

type Pipeline struct {
	registry   *language.Registry
	recognizer recognizer.Recognizer
	translator Translator
	synth      synth.Synthesizer
	logger     *logrus.Logger
	now        func() time.Time
}

// New wires a pipeline. A nil synthesizer makes every logged turn end in
// StateSynthesisFailed.
func New(registry *language.Registry, rec recognizer.Recognizer, tr Translator, syn synth.Synthesizer, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		registry:   registry,
		recognizer: rec,
		translator: tr,
		synth:      syn,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one turn against s. The session log gains exactly one turn
// when translation succeeds and is untouched otherwise. A synthesis failure
// is reported on Outcome.SynthesisErr with a nil error. The returned Outcome
// is non-nil unless the session is busy.
func (p *Pipeline) Run(ctx context.Context, s *session.Session, clip audio.Clip) (out *Outcome, err error) {
	if !s.TryBegin() {
		turnsTotal.WithLabelValues("busy").Inc()
		return nil, ErrTurnInProgress
	}
	defer s.End()

	pair, duration := s.Settings()
	log := p.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"pair":    pair.String(),
	})
	machine := newMachine(log)
	out = &Outcome{State: StateIdle}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Turn panicked")
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
			out.State = StateFailed
		}
		turnsTotal.WithLabelValues(outcomeLabel(out.State, err)).Inc()
	}()

	err = p.run(ctx, machine, log, turnInput{session: s, pair: pair, duration: duration, clip: clip}, out)
	out.State = machine.Current()

	fields := logrus.Fields{"state": out.State, "raw_tag": out.RawTag}
	if out.Direction != nil {
		fields["src_lang"] = out.Direction.Source
		fields["tgt_lang"] = out.Direction.Target
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("Turn did not complete")
	} else {
		log.WithFields(fields).Info("Turn completed")
	}
	return out, err
}

// turnInput is the session state captured when the turn starts.
type turnInput struct {
	session  *session.Session
	pair     language.Pair
	duration time.Duration
	clip     audio.Clip
}

func (p *Pipeline) run(ctx context.Context, m *fsm.FSM, log *logrus.Entry, in turnInput, out *Outcome) error {
	s, clip := in.session, in.clip

	step := func(event string) error {
		if err := m.Event(ctx, event); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnexpected, event, err)
		}
		return nil
	}
	fail := func(cause error) error {
		if err := m.Event(ctx, eventFail); err != nil {
			log.WithError(err).Warn("Failed to mark turn as failed")
		}
		return cause
	}

	// Recording: the clip is already captured, cap it at the session duration.
	if err := step(eventRecord); err != nil {
		return fail(err)
	}
	if clip.Duration <= 0 {
		clip.Duration = in.duration
	}
	clip, err := audio.Trim(clip)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrUnexpected, err))
	}
	if err := clip.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrUnexpected, err))
	}

	if err := step(eventRecognize); err != nil {
		return fail(err)
	}
	start := time.Now()
	res, err := p.recognizer.Transcribe(ctx, clip)
	stageDuration.WithLabelValues("recognize").Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(fmt.Errorf("%w: recognition: %w", ErrUnexpected, err))
	}
	text := strings.TrimSpace(res.Text)
	out.Recognized = text
	out.RawTag = res.Language
	if text == "" {
		if err := step(eventNoSpeech); err != nil {
			return fail(err)
		}
		return ErrNoSpeech
	}

	if err := step(eventRoute); err != nil {
		return fail(err)
	}
	out.Detected = p.registry.Normalize(res.Language)
	dir, err := router.Resolve(p.registry, in.pair, res.Language)
	if err != nil {
		if serr := step(eventReject); serr != nil {
			return fail(serr)
		}
		return err
	}
	out.Direction = &dir

	if err := step(eventTranslate); err != nil {
		return fail(err)
	}
	start = time.Now()
	result, err := p.translator.Translate(ctx, translator.TranslateRequest{
		Text:       text,
		SourceLang: string(dir.Source),
		TargetLang: string(dir.Target),
	})
	stageDuration.WithLabelValues("translate").Observe(time.Since(start).Seconds())
	if err == nil && (result == nil || strings.TrimSpace(result.TranslatedText) == "") {
		err = errors.New("empty translation")
	}
	if err != nil {
		return fail(&TranslationError{Source: dir.Source, Target: dir.Target, Err: err})
	}
	translated := strings.TrimSpace(result.TranslatedText)
	out.Service = result.ServiceName

	if err := step(eventLog); err != nil {
		return fail(err)
	}
	turn := history.Turn{
		ID:          uuid.New().String(),
		Time:        p.now(),
		SourceLang:  dir.Source,
		TargetLang:  dir.Target,
		SourceText:  text,
		TargetText:  translated,
		DetectedRaw: res.Language,
	}
	s.Log.Append(turn)
	out.Turn = &turn

	// The turn is logged from here on; later faults only affect the voice.
	advance := func(event string) {
		if err := m.Event(ctx, event); err != nil {
			log.WithError(err).WithField("event", event).Warn("Turn state change rejected")
		}
	}

	advance(eventSynthesize)
	start = time.Now()
	voice, err := p.speak(ctx, dir.Target, translated)
	stageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	if err != nil {
		out.SynthesisErr = fmt.Errorf("%w: %w", ErrSynthesis, err)
		advance(eventSynthesisFail)
		return nil
	}
	s.StoreVoice(turn.ID, voice)
	out.Audio = voice
	advance(eventFinish)
	return nil
}

func (p *Pipeline) speak(ctx context.Context, target language.Code, text string) (a *synth.Audio, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesizer panicked: %v", r)
		}
	}()

	if p.synth == nil {
		return nil, errors.New("no synthesizer configured")
	}
	return p.synth.Synthesize(ctx, text, p.registry.SpeechCode(target))
}

func outcomeLabel(state string, err error) string {
	if state == StateFailed && errors.Is(err, ErrTranslation) {
		return "translation_failed"
	}
	if !isTerminal(state) {
		return StateFailed
	}
	return state
}
