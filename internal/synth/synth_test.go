package synth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "default is gtts", cfg: Config{}, want: "gtts"},
		{name: "piper", cfg: Config{Engine: "piper", BaseURL: "http://tts:5000"}, want: "piper"},
		{name: "piper without url", cfg: Config{Engine: "piper"}, wantErr: true},
		{name: "unknown", cfg: Config{Engine: "espeak"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, quietLogger())
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Name() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, s.Name())
			}
		})
	}
}

func TestGTTS_SynthesizeChunks(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate_tts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("tl") != "hi" || q.Get("client") != "tw-ob" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if len([]rune(q.Get("q"))) > 100 {
			t.Errorf("chunk exceeds 100 runes: %d", len([]rune(q.Get("q"))))
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3:" + q.Get("idx") + ";"))
	}))
	defer server.Close()

	g := NewGTTS(server.URL, quietLogger())
	text := strings.Repeat("यह एक लंबा वाक्य है। ", 12)

	out, err := g.Synthesize(context.Background(), text, "hi")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if out.ContentType != ContentTypeMP3 {
		t.Errorf("expected mp3, got %s", out.ContentType)
	}
	if calls.Load() < 2 {
		t.Errorf("expected several chunk requests, got %d", calls.Load())
	}
	if !strings.HasPrefix(string(out.Data), "mp3:0;mp3:1;") {
		t.Errorf("expected segments concatenated in order, got %q", out.Data)
	}
}

func TestGTTS_EmptyText(t *testing.T) {
	g := NewGTTS("http://unused", quietLogger())
	if _, err := g.Synthesize(context.Background(), "  ", "en"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestGTTS_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewGTTS(server.URL, quietLogger())
	if _, err := g.Synthesize(context.Background(), "Hello", "en"); err == nil {
		t.Error("expected error for non-OK status")
	}
}

func TestPiper_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/text-to-speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("voice") != "en_US-lessac-medium" {
			t.Errorf("unexpected voice %q", r.URL.Query().Get("voice"))
		}
		if r.URL.Query().Get("text") != "Hello" {
			t.Errorf("unexpected text %q", r.URL.Query().Get("text"))
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	p := NewPiper(server.URL, map[string]string{"en": "en_US-lessac-medium"}, quietLogger())
	out, err := p.Synthesize(context.Background(), " Hello ", "en")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(out.Data) != "RIFF" || out.ContentType != "audio/wav" {
		t.Errorf("unexpected audio %+v", out)
	}
}

func TestPiper_MissingVoice(t *testing.T) {
	p := NewPiper("http://unused", map[string]string{"en": "en_US-lessac-medium"}, quietLogger())
	if _, err := p.Synthesize(context.Background(), "Hello", "si"); err == nil {
		t.Error("expected error for language without voice")
	}
}

func TestPiper_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewPiper(server.URL, map[string]string{"en": "x"}, quietLogger())
	if _, err := p.Synthesize(context.Background(), "Hello", "en"); err == nil {
		t.Error("expected error for non-OK status")
	}
}
