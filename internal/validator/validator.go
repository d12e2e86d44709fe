// Package validator checks that a translation came back in the language it
// was requested in.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/voxpair/internal/detector"
)

// minValidationLength is the rune count below which detection is too noisy
// to judge; shorter texts pass.
const minValidationLength = 20

type Validator struct {
	det *detector.Detector
}

func New(det *detector.Detector) *Validator {
	return &Validator{det: det}
}

// Check returns an error when translatedText is empty or is confidently
// detected as a language other than targetLang.
func (v *Validator) Check(translatedText, targetLang string) error {
	text := strings.TrimSpace(translatedText)
	if text == "" {
		return fmt.Errorf("translation is empty")
	}
	if targetLang == "" || len([]rune(text)) < minValidationLength {
		return nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return nil
	}
	if !strings.EqualFold(detected, targetLang) {
		return fmt.Errorf("expected %s but detected %s", targetLang, detected)
	}
	return nil
}
