// Package router decides which way a turn is translated inside the selected
// language pair.
package router

import (
	"errors"
	"fmt"

	"github.com/valpere/voxpair/internal/language"
)

// ErrLanguageNotInPair is matched by every RejectedError.
var ErrLanguageNotInPair = errors.New("detected language is not part of the selected pair")

// Direction is the resolved source and target of a turn.
type Direction struct {
	Source   language.Code `json:"source"`
	Target   language.Code `json:"target"`
	Detected language.Code `json:"detected"`
	RawTag   string        `json:"raw_tag"`
}

// RejectedError reports a detected language that matches neither member of
// the pair.
type RejectedError struct {
	Detected language.Code
	RawTag   string
	Pair     language.Pair
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("detected language %q is not part of the selected pair (%s)", e.Detected, e.Pair)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrLanguageNotInPair
}

// Resolve normalizes rawTag and picks the direction: speaking A translates to
// B, speaking B translates to A, anything else is rejected.
func Resolve(reg *language.Registry, pair language.Pair, rawTag string) (Direction, error) {
	detected := reg.Normalize(rawTag)

	switch detected {
	case pair.A:
		return Direction{Source: pair.A, Target: pair.B, Detected: detected, RawTag: rawTag}, nil
	case pair.B:
		return Direction{Source: pair.B, Target: pair.A, Detected: detected, RawTag: rawTag}, nil
	}

	return Direction{}, &RejectedError{Detected: detected, RawTag: rawTag, Pair: pair}
}
