package pipeline

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// Turn states. Rejected, NoSpeech, Done, SynthesisFailed and Failed are
// terminal.
const (
	StateIdle            = "idle"
	StateRecording       = "recording"
	StateRecognizing     = "recognizing"
	StateRouting         = "routing"
	StateRejected        = "rejected"
	StateNoSpeech        = "no_speech"
	StateTranslating     = "translating"
	StateLogged          = "logged"
	StateSynthesizing    = "synthesizing"
	StateDone            = "done"
	StateSynthesisFailed = "synthesis_failed"
	StateFailed          = "failed"
)

const (
	eventRecord        = "record"
	eventRecognize     = "recognize"
	eventNoSpeech      = "no_speech"
	eventRoute         = "route"
	eventReject        = "reject"
	eventTranslate     = "translate"
	eventLog           = "log"
	eventSynthesize    = "synthesize"
	eventFinish        = "finish"
	eventSynthesisFail = "synthesis_fail"
	eventFail          = "fail"
)

func newMachine(logger *logrus.Entry) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventRecord, Src: []string{StateIdle}, Dst: StateRecording},
			{Name: eventRecognize, Src: []string{StateRecording}, Dst: StateRecognizing},
			{Name: eventNoSpeech, Src: []string{StateRecognizing}, Dst: StateNoSpeech},
			{Name: eventRoute, Src: []string{StateRecognizing}, Dst: StateRouting},
			{Name: eventReject, Src: []string{StateRouting}, Dst: StateRejected},
			{Name: eventTranslate, Src: []string{StateRouting}, Dst: StateTranslating},
			{Name: eventLog, Src: []string{StateTranslating}, Dst: StateLogged},
			{Name: eventSynthesize, Src: []string{StateLogged}, Dst: StateSynthesizing},
			{Name: eventFinish, Src: []string{StateSynthesizing}, Dst: StateDone},
			{Name: eventSynthesisFail, Src: []string{StateSynthesizing}, Dst: StateSynthesisFailed},
			{
				Name: eventFail,
				Src:  []string{StateIdle, StateRecording, StateRecognizing, StateRouting, StateTranslating},
				Dst:  StateFailed,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.WithFields(logrus.Fields{
					"event": e.Event,
					"from":  e.Src,
					"to":    e.Dst,
				}).Debug("Turn state changed")
			},
		},
	)
}

// isTerminal reports whether a turn in state s has finished.
func isTerminal(s string) bool {
	switch s {
	case StateRejected, StateNoSpeech, StateDone, StateSynthesisFailed, StateFailed:
		return true
	}
	return false
}
