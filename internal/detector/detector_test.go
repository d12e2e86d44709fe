package detector

import (
	"testing"
)

func TestDetector_DetectISO(t *testing.T) {
	d := New("en", "ar", "hi", "tl")

	tests := []struct {
		name     string
		text     string
		wantCode string
		wantOK   bool
	}{
		{
			name:   "empty text",
			text:   "",
			wantOK: false,
		},
		{
			name:   "whitespace only",
			text:   "   ",
			wantOK: false,
		},
		{
			name:     "english text",
			text:     "Hello, how are you doing today? I would like to order some coffee.",
			wantCode: "en",
			wantOK:   true,
		},
		{
			name:     "arabic text",
			text:     "مرحبا، كيف حالك اليوم؟ أود أن أطلب بعض القهوة.",
			wantCode: "ar",
			wantOK:   true,
		},
		{
			name:     "hindi text",
			text:     "नमस्ते, आज आप कैसे हैं? मैं कुछ कॉफ़ी मंगवाना चाहता हूँ।",
			wantCode: "hi",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := d.DetectISO(tt.text)
			if ok != tt.wantOK {
				t.Errorf("DetectISO(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
				return
			}
			if tt.wantOK && code != tt.wantCode {
				t.Errorf("DetectISO(%q) = %q, want %q", tt.text, code, tt.wantCode)
			}
		})
	}
}

func TestNew_UnknownCodesFallBack(t *testing.T) {
	d := New("si")

	code, ok := d.DetectISO("Bonjour, ceci est un test en français.")
	if !ok || code != "fr" {
		t.Errorf("expected fr from full detector, got %q (ok=%v)", code, ok)
	}
}
