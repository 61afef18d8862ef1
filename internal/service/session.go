package service

import (
	"math"
	"time"
)

// Phase is where a session is in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingAnswer
	PhaseScoring
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseScoring:
		return "scoring"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SessionState is the value threaded through every session transition.
// Methods return updated copies and never mutate the receiver.
type SessionState struct {
	ID           string
	Questions    []Question
	CurrentIndex int
	CorrectCount int
	StartedAt    time.Time
}

// NewSession starts a session over questions at now.
func NewSession(id string, questions []Question, now time.Time) SessionState {
	return SessionState{
		ID:        id,
		Questions: questions,
		StartedAt: now,
	}
}

// Total is the number of questions in the session.
func (s SessionState) Total() int {
	return len(s.Questions)
}

// Finished reports whether every question has been answered.
func (s SessionState) Finished() bool {
	return s.CurrentIndex >= len(s.Questions)
}

// Current returns the question being asked.
func (s SessionState) Current() (Question, bool) {
	if s.Finished() {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Perfect reports whether every question was answered correctly.
func (s SessionState) Perfect() bool {
	return s.Total() > 0 && s.CorrectCount == s.Total()
}

// Score checks raw against the current question without advancing.
func (s SessionState) Score(raw string) (SessionState, bool) {
	q, ok := s.Current()
	if !ok {
		return s, false
	}
	value, ok := ParseAnswer(raw)
	if !ok || value != q.Answer {
		return s, false
	}
	s.CorrectCount++
	return s, true
}

// Advance moves to the next question. It never passes Total.
func (s SessionState) Advance() SessionState {
	if !s.Finished() {
		s.CurrentIndex++
	}
	return s
}

// Elapsed returns seconds since the session started, rounded to hundredths.
func (s SessionState) Elapsed(now time.Time) float64 {
	return RoundSeconds(now.Sub(s.StartedAt))
}

// RoundSeconds converts d to seconds rounded to two decimals.
func RoundSeconds(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return math.Round(d.Seconds()*100) / 100
}
