package pipeline

import (
	"errors"
	"fmt"

	"github.com/valpere/voxpair/internal/language"
)

var (
	// ErrNoSpeech means recognition produced no text. Nothing is logged.
	ErrNoSpeech = errors.New("could not detect any speech")

	// ErrTranslation is matched by every TranslationError. Nothing is logged.
	ErrTranslation = errors.New("translation failed")

	// ErrSynthesis marks a logged turn whose speech could not be produced.
	// It is reported on Outcome.SynthesisErr, never returned by Run.
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrUnexpected wraps any other fault caught at the turn boundary.
	ErrUnexpected = errors.New("unexpected failure")

	// ErrTurnInProgress rejects a turn on a session that is already running one.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
)

type TranslationError struct {
	Source language.Code
	Target language.Code
	Err    error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation %s -> %s failed: %v", e.Source, e.Target, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

func (e *TranslationError) Is(target error) bool {
	return target == ErrTranslation
}
