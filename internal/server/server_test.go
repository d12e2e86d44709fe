package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/audio"
	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/pipeline"
	"github.com/valpere/voxpair/internal/recognizer"
	"github.com/valpere/voxpair/internal/session"
	"github.com/valpere/voxpair/internal/synth"
	"github.com/valpere/voxpair/internal/translator"
)

type fakeRecognizer struct {
	text, lang  string
	contentType string
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Transcribe(_ context.Context, clip audio.Clip) (*recognizer.Result, error) {
	f.contentType = clip.ContentType
	return &recognizer.Result{Text: f.text, Language: f.lang, Engine: "fake"}, nil
}

type fakeTranslator struct {
	text string
	err  error
}

func (f *fakeTranslator) Translate(_ context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &translator.ServiceResult{ServiceName: "fake", TranslatedText: f.text}, nil
}

type fakeSynth struct {
	err error
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(_ context.Context, text, code string) (*synth.Audio, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &synth.Audio{Data: []byte("ID3" + text), ContentType: synth.ContentTypeMP3}, nil
}

type testEnv struct {
	handler  http.Handler
	sessions *session.Manager
	rec      *fakeRecognizer
	tr       *fakeTranslator
	syn      *fakeSynth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reg := language.Default()
	env := &testEnv{
		sessions: session.NewManager(reg, session.DefaultBounds),
		rec:      &fakeRecognizer{text: "नमस्ते", lang: "hi"},
		tr:       &fakeTranslator{text: "Hello"},
		syn:      &fakeSynth{},
	}
	p := pipeline.New(reg, env.rec, env.tr, env.syn, logger)
	env.handler = New(Dependencies{
		Registry: reg,
		Sessions: env.sessions,
		Pipeline: p,
		Logger:   logger,
	}).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, sessionID string, data []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="clip"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/turns", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T, pair string) SessionResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/sessions", map[string]any{"pair": pair, "duration_seconds": 5})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var s SessionResponse
	decode(t, w, &s)
	return s
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func wavBytes() []byte {
	return audio.EncodeWAV(make([]byte, 32000), audio.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16})
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/metrics", nil); w.Code != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", w.Code)
	}
	w := env.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "MediaRecorder") {
		t.Errorf("expected embedded UI, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `method: "DELETE", keepalive: true`) {
		t.Error("expected the UI to end its session on pagehide")
	}
}

func TestListPairs(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/pairs", nil)
	var pairs []PairResponse
	decode(t, w, &pairs)

	if len(pairs) != 4 {
		t.Fatalf("expected 4 pairs, got %d", len(pairs))
	}
	if pairs[0].Label != "English ↔ Arabic" || pairs[0].BName != "Arabic" {
		t.Errorf("unexpected first pair %+v", pairs[0])
	}
}

func TestCreateSession_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing pair", body: map[string]any{"duration_seconds": 5}},
		{name: "unknown pair", body: map[string]any{"pair": "English ↔ French"}},
		{name: "duration too long", body: map[string]any{"pair": "English ↔ Hindi", "duration_seconds": 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/sessions", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestSessionUpdateConcurrentWithReads(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")
	path := "/api/sessions/" + s.ID

	bodies := []string{
		`{"pair":"English ↔ Arabic","duration_seconds":8}`,
		`{"pair":"English ↔ Hindi","duration_seconds":4}`,
	}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(body string) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)
			if w.Code != http.StatusOK && w.Code != http.StatusConflict {
				t.Errorf("PATCH: unexpected status %d: %s", w.Code, w.Body.String())
			}
		}(bodies[i%2])
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("GET: unexpected status %d", w.Code)
				return
			}
			var got SessionResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Errorf("GET: invalid body: %v", err)
				return
			}
			if !(got.Pair.B == "ar" && got.DurationSeconds == 8) &&
				!(got.Pair.B == "hi" && (got.DurationSeconds == 4 || got.DurationSeconds == 5)) {
				t.Errorf("inconsistent session snapshot: %s/%ds", got.Pair.B, got.DurationSeconds)
			}
		}()
	}
	wg.Wait()
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")

	if s.DurationSeconds != 5 || s.Pair.B != "hi" {
		t.Errorf("unexpected session %+v", s)
	}

	w := env.do(t, http.MethodPatch, "/api/sessions/"+s.ID, map[string]any{"pair": "English ↔ Arabic", "duration_seconds": 8})
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated SessionResponse
	decode(t, w, &updated)
	if updated.Pair.B != "ar" || updated.DurationSeconds != 8 {
		t.Errorf("unexpected updated session %+v", updated)
	}

	if w := env.do(t, http.MethodGet, "/api/sessions", nil); w.Code != http.StatusOK {
		t.Errorf("list: expected 200, got %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/api/sessions/"+s.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("DELETE: expected 204, got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/sessions/"+s.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
	var errResp ErrorResponse
	decode(t, w, &errResp)
	if errResp.Kind != KindNotFound {
		t.Errorf("expected kind %s, got %s", KindNotFound, errResp.Kind)
	}
}

func TestRunTurn_Success(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")

	w := env.upload(t, s.ID, wavBytes(), "audio/wav")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp TurnResponse
	decode(t, w, &resp)
	if resp.State != pipeline.StateDone || resp.Turn == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Turn.SourceLang != "hi" || resp.Turn.TargetLang != "en" || resp.Turn.TargetText != "Hello" {
		t.Errorf("unexpected turn %+v", resp.Turn)
	}
	if resp.Turn.SourceName != "Hindi" || resp.Turn.TargetName != "English" {
		t.Errorf("unexpected display names %q / %q", resp.Turn.SourceName, resp.Turn.TargetName)
	}

	a := env.do(t, http.MethodGet, resp.Turn.AudioURL, nil)
	if a.Code != http.StatusOK || a.Header().Get("Content-Type") != synth.ContentTypeMP3 {
		t.Errorf("audio: unexpected %d %q", a.Code, a.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(a.Body.String(), "ID3") {
		t.Errorf("unexpected audio body %q", a.Body.String())
	}
}

func TestRunTurn_ContentTypeParameters(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")

	w := env.upload(t, s.ID, []byte("webm-bytes"), "audio/webm;codecs=opus")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if env.rec.contentType != "audio/webm" {
		t.Errorf("expected audio/webm, got %q", env.rec.contentType)
	}
}

func TestRunTurn_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*testEnv)
		wantCode int
		wantKind string
	}{
		{
			name:     "language not in pair",
			setup:    func(e *testEnv) { e.rec.text, e.rec.lang = "Bonjour", "fr" },
			wantCode: http.StatusUnprocessableEntity,
			wantKind: KindNotInPair,
		},
		{
			name:     "no speech",
			setup:    func(e *testEnv) { e.rec.text = "" },
			wantCode: http.StatusUnprocessableEntity,
			wantKind: KindNoSpeech,
		},
		{
			name:     "translation failure",
			setup:    func(e *testEnv) { e.tr.err = errors.New("quota") },
			wantCode: http.StatusBadGateway,
			wantKind: KindTranslation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.setup(env)
			s := env.createSession(t, "English ↔ Hindi")

			w := env.upload(t, s.ID, wavBytes(), "audio/wav")
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			var resp TurnResponse
			decode(t, w, &resp)
			if resp.Kind != tt.wantKind || resp.Error == "" {
				t.Errorf("expected kind %s with message, got %+v", tt.wantKind, resp)
			}

			h := env.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/history", nil)
			var hist HistoryResponse
			decode(t, h, &hist)
			if len(hist.Turns) != 0 {
				t.Errorf("expected empty history, got %d turns", len(hist.Turns))
			}
		})
	}
}

func TestRunTurn_RejectedReportsRecognition(t *testing.T) {
	env := newTestEnv(t)
	env.rec.text, env.rec.lang = "Bonjour", "fr"
	s := env.createSession(t, "English ↔ Arabic")

	w := env.upload(t, s.ID, wavBytes(), "audio/wav")
	var resp TurnResponse
	decode(t, w, &resp)
	if resp.State != pipeline.StateRejected || resp.Recognized != "Bonjour" || resp.RawTag != "fr" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRunTurn_SynthesisFailure(t *testing.T) {
	env := newTestEnv(t)
	env.syn.err = errors.New("tts down")
	s := env.createSession(t, "English ↔ Hindi")

	w := env.upload(t, s.ID, wavBytes(), "audio/wav")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp TurnResponse
	decode(t, w, &resp)
	if resp.SynthesisError == "" || resp.Turn == nil || resp.Turn.AudioURL != "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRunTurn_Busy(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")

	sess, _ := env.sessions.Get(s.ID)
	sess.TryBegin()
	defer sess.End()

	w := env.upload(t, s.ID, wavBytes(), "audio/wav")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRunTurn_BadUpload(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")

	if w := env.upload(t, s.ID, nil, "audio/wav"); w.Code != http.StatusBadRequest {
		t.Errorf("empty clip: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+s.ID+"/turns", strings.NewReader("x"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing upload: expected 400, got %d", w.Code)
	}

	if w := env.upload(t, "missing", wavBytes(), "audio/wav"); w.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", w.Code)
	}
}

func TestHistory_NewestFirstAndClear(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, "English ↔ Hindi")

	for _, text := range []string{"first", "second"} {
		env.rec.text, env.rec.lang = text, "en"
		if w := env.upload(t, s.ID, wavBytes(), "audio/wav"); w.Code != http.StatusCreated {
			t.Fatalf("turn %q: expected 201, got %d", text, w.Code)
		}
		time.Sleep(time.Millisecond)
	}

	w := env.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/history", nil)
	var hist HistoryResponse
	decode(t, w, &hist)
	if len(hist.Turns) != 2 || hist.Turns[0].SourceText != "second" {
		t.Fatalf("expected newest first, got %+v", hist.Turns)
	}
	if hist.Turns[0].DetectedRaw != "en" || hist.Turns[0].Clock == "" {
		t.Errorf("unexpected turn view %+v", hist.Turns[0])
	}

	w = env.do(t, http.MethodDelete, "/api/sessions/"+s.ID+"/history", nil)
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	decode(t, w, &cleared)
	if cleared.Cleared != 2 {
		t.Errorf("expected 2 cleared, got %d", cleared.Cleared)
	}

	audioURL := hist.Turns[0].AudioURL
	if w := env.do(t, http.MethodGet, audioURL, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected audio gone after clear, got %d", w.Code)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{pipeline.ErrNoSpeech, http.StatusUnprocessableEntity, KindNoSpeech},
		{&pipeline.TranslationError{Err: errors.New("x")}, http.StatusBadGateway, KindTranslation},
		{pipeline.ErrTurnInProgress, http.StatusConflict, KindTurnInProgress},
		{session.ErrBusy, http.StatusConflict, KindTurnInProgress},
		{session.ErrInvalidDuration, http.StatusBadRequest, KindBadRequest},
		{pipeline.ErrUnexpected, http.StatusInternalServerError, KindUnexpected},
	}
	for _, tt := range tests {
		code, kind := classify(tt.err)
		if code != tt.code || kind != tt.kind {
			t.Errorf("classify(%v) = %d %s, want %d %s", tt.err, code, kind, tt.code, tt.kind)
		}
	}
}
