package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/audio"
	"github.com/valpere/voxpair/internal/session"
)

type createSessionRequest struct {
	Pair            string `json:"pair" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
}

type updateSessionRequest struct {
	Pair            string `json:"pair"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (s *Server) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: KindBadRequest})
}

func (s *Server) lookupSession(c *gin.Context) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) listPairs(c *gin.Context) {
	pairs := s.deps.Registry.Pairs()
	out := make([]PairResponse, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, s.pairResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listSessions(c *gin.Context) {
	list := s.deps.Sessions.List()
	out := make([]SessionResponse, 0, len(list))
	for _, sess := range list {
		out = append(out, s.sessionResponse(sess))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request: "+err.Error())
		return
	}

	sess, err := s.deps.Sessions.Create(req.Pair, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		s.fail(c, err)
		return
	}

	pair, _ := sess.Settings()
	s.deps.Logger.WithFields(logrus.Fields{
		"session": sess.ID,
		"pair":    pair.String(),
	}).Info("Session created")
	c.JSON(http.StatusCreated, s.sessionResponse(sess))
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) updateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request: "+err.Error())
		return
	}

	sess, err := s.deps.Sessions.Update(c.Param("id"), req.Pair, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.deps.Sessions.Close(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) runTurn(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		s.badRequest(c, "missing audio upload")
		return
	}
	if fh.Size > maxUploadBytes {
		s.badRequest(c, fmt.Sprintf("audio upload exceeds %d bytes", maxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.badRequest(c, "unreadable audio upload")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		s.badRequest(c, "unreadable audio upload")
		return
	}
	if len(data) == 0 {
		s.badRequest(c, audio.ErrEmptyClip.Error())
		return
	}

	// The pipeline caps the clip at the duration it reads when the turn starts.
	clip := audio.Clip{
		Data:        data,
		ContentType: uploadContentType(fh.Header.Get("Content-Type"), data),
	}

	out, err := s.deps.Pipeline.Run(c.Request.Context(), sess, clip)
	if err != nil {
		status, kind := classify(err)
		resp := TurnResponse{Error: err.Error(), Kind: kind}
		if out != nil {
			resp = s.turnResponse(sess, out)
			resp.Error = err.Error()
			resp.Kind = kind
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusCreated, s.turnResponse(sess, out))
}

// uploadContentType drops codec parameters ("audio/webm;codecs=opus") and
// sniffs WAV when the browser sent nothing useful.
func uploadContentType(header string, data []byte) string {
	ct := strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	if ct == "" || ct == "application/octet-stream" {
		if audio.IsWAV(data) {
			return audio.ContentTypeWAV
		}
		return http.DetectContentType(data)
	}
	return ct
}

func (s *Server) turnAudio(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	voice, ok := sess.Voice(c.Param("turn"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no audio for turn", Kind: KindNotFound})
		return
	}
	c.Data(http.StatusOK, voice.ContentType, voice.Data)
}

func (s *Server) getHistory(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	turns := sess.Log.RenderOrder()
	out := HistoryResponse{Turns: make([]TurnView, 0, len(turns))}
	for _, t := range turns {
		out.Turns = append(out.Turns, s.turnView(sess, t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) clearHistory(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	n := sess.ClearHistory()
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}
