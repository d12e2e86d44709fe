package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/voxpair/internal/history"
	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/pipeline"
	"github.com/valpere/voxpair/internal/router"
	"github.com/valpere/voxpair/internal/session"
)

// Error kinds reported to the UI.
const (
	KindBadRequest     = "bad_request"
	KindNotFound       = "not_found"
	KindNoSpeech       = "no_speech"
	KindNotInPair      = "language_not_in_pair"
	KindTranslation    = "translation_failed"
	KindTurnInProgress = "turn_in_progress"
	KindUnexpected     = "unexpected"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type PairResponse struct {
	Label string `json:"label"`
	A     string `json:"a"`
	B     string `json:"b"`
	AName string `json:"a_name"`
	BName string `json:"b_name"`
}

type SessionResponse struct {
	ID              string       `json:"id"`
	Pair            PairResponse `json:"pair"`
	DurationSeconds int          `json:"duration_seconds"`
	CreatedAt       time.Time    `json:"created_at"`
	Turns           int          `json:"turns"`
}

type TurnView struct {
	history.Turn
	Clock      string `json:"clock"`
	SourceName string `json:"src_name"`
	TargetName string `json:"tgt_name"`
	AudioURL   string `json:"audio_url,omitempty"`
}

type TurnResponse struct {
	State          string    `json:"state"`
	Recognized     string    `json:"recognized,omitempty"`
	RawTag         string    `json:"raw_tag,omitempty"`
	Detected       string    `json:"detected,omitempty"`
	Service        string    `json:"service,omitempty"`
	Turn           *TurnView `json:"turn,omitempty"`
	SynthesisError string    `json:"synthesis_error,omitempty"`
	Error          string    `json:"error,omitempty"`
	Kind           string    `json:"kind,omitempty"`
}

type HistoryResponse struct {
	Turns []TurnView `json:"turns"`
}

// classify maps an error onto an HTTP status and UI kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrNoSpeech):
		return http.StatusUnprocessableEntity, KindNoSpeech
	case errors.Is(err, router.ErrLanguageNotInPair):
		return http.StatusUnprocessableEntity, KindNotInPair
	case errors.Is(err, pipeline.ErrTranslation):
		return http.StatusBadGateway, KindTranslation
	case errors.Is(err, pipeline.ErrTurnInProgress), errors.Is(err, session.ErrBusy):
		return http.StatusConflict, KindTurnInProgress
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, session.ErrInvalidDuration), errors.Is(err, session.ErrUnknownPair):
		return http.StatusBadRequest, KindBadRequest
	}
	return http.StatusInternalServerError, KindUnexpected
}

func (s *Server) pairResponse(p language.Pair) PairResponse {
	reg := s.deps.Registry
	return PairResponse{
		Label: p.Label,
		A:     string(p.A),
		B:     string(p.B),
		AName: reg.DisplayName(p.A),
		BName: reg.DisplayName(p.B),
	}
}

func (s *Server) sessionResponse(sess *session.Session) SessionResponse {
	pair, d := sess.Settings()
	return SessionResponse{
		ID:              sess.ID,
		Pair:            s.pairResponse(pair),
		DurationSeconds: int(d / time.Second),
		CreatedAt:       sess.CreatedAt,
		Turns:           sess.Log.Len(),
	}
}

func (s *Server) turnView(sess *session.Session, t history.Turn) TurnView {
	v := TurnView{
		Turn:       t,
		Clock:      t.Clock(),
		SourceName: s.deps.Registry.DisplayName(t.SourceLang),
		TargetName: s.deps.Registry.DisplayName(t.TargetLang),
	}
	if _, ok := sess.Voice(t.ID); ok {
		v.AudioURL = fmt.Sprintf("/api/sessions/%s/turns/%s/audio", sess.ID, t.ID)
	}
	return v
}

func (s *Server) turnResponse(sess *session.Session, out *pipeline.Outcome) TurnResponse {
	resp := TurnResponse{
		State:      out.State,
		Recognized: out.Recognized,
		RawTag:     out.RawTag,
		Detected:   string(out.Detected),
		Service:    out.Service,
	}
	if out.Turn != nil {
		v := s.turnView(sess, *out.Turn)
		resp.Turn = &v
	}
	if out.SynthesisErr != nil {
		resp.SynthesisError = out.SynthesisErr.Error()
	}
	return resp
}
