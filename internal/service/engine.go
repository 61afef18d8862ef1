package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/PoluyanbIch/TimesTableBot/internal/eventloop"
	"github.com/PoluyanbIch/TimesTableBot/internal/i18n"
)

// Session timing.
const (
	// FeedbackDelay lets the correct/wrong cue play before the question changes.
	FeedbackDelay = 400 * time.Millisecond
	// CelebrationWindow is how long the perfect-score animation runs.
	CelebrationWindow = 4000 * time.Millisecond
	// PersistTimeout bounds leaderboard I/O at session end.
	PersistTimeout = 5 * time.Second
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrAnswerPending   = errors.New("answer is still being scored")
	ErrNotFinished     = errors.New("session has unanswered questions")
)

// QuestionPrompt is what the view shows for one question.
type QuestionPrompt struct {
	SessionID string
	Index     int
	Total     int
	Question  Question
	Text      string
	Progress  string
}

// SubmitResult is the immediate outcome of an answer.
type SubmitResult struct {
	Correct bool
	Answer  int
	State   SessionState
}

// SummaryReport describes a finished session.
type SummaryReport struct {
	SessionID      string
	Correct        int
	Total          int
	ElapsedSeconds float64
	Text           string
	Leaderboard    []LeaderboardEntry
	// Rank is the 1-based leaderboard position of this session, 0 if it did
	// not make the board.
	Rank    int
	Perfect bool
}

// View renders engine output. It must be fully initialized before it is
// handed to an Engine.
type View interface {
	ShowQuestion(prompt QuestionPrompt)
	ShowFeedback(correct bool, answer int)
	ShowResult(report SummaryReport)
	Viewport() (width, height float64)
}

// Animation is the celebratory effect played on a perfect score.
type Animation interface {
	Start(width, height float64)
	Stop()
}

type noAnimation struct{}

func (noAnimation) Start(float64, float64) {}
func (noAnimation) Stop()                  {}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Scheduler    eventloop.Scheduler
	View         View
	Leaderboard  *Leaderboard
	Animation    Animation
	Translations i18n.Translations
	Rand         *rand.Rand
	// NewID names sessions; defaults to random UUIDs.
	NewID func() string
}

// Engine drives one view's quiz sessions. All methods, and every
// continuation it schedules, must run on the scheduler's goroutine.
type Engine struct {
	sched       eventloop.Scheduler
	view        View
	board       *Leaderboard
	animation   Animation
	texts       i18n.Translations
	rng         *rand.Rand
	newID       func() string
	state       SessionState
	phase       Phase
	pending     eventloop.Timer
	celebration eventloop.Timer
}

// NewEngine validates cfg and returns an idle engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if cfg.View == nil {
		return nil, fmt.Errorf("view is required")
	}
	e := &Engine{
		sched:     cfg.Scheduler,
		view:      cfg.View,
		board:     cfg.Leaderboard,
		animation: cfg.Animation,
		texts:     cfg.Translations,
		rng:       cfg.Rand,
		newID:     cfg.NewID,
		phase:     PhaseIdle,
	}
	if e.board == nil {
		e.board = NewLeaderboard(nil)
	}
	if e.animation == nil {
		e.animation = noAnimation{}
	}
	if e.texts == nil {
		e.texts = i18n.Defaults()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// SetTranslations swaps the strings used for prompts and summaries.
func (e *Engine) SetTranslations(texts i18n.Translations) {
	if texts != nil {
		e.texts = texts
	}
}

// Phase reports the current lifecycle phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// State returns the current session value.
func (e *Engine) State() SessionState {
	return e.state
}

// Start begins a fresh session and shows its first question. Any scoring
// continuation or celebration left over from a previous session is
// cancelled first.
func (e *Engine) Start() SessionState {
	e.cancelPending()
	e.stopCelebration()

	questions := GenerateQuestions(e.rng, QuestionCount)
	e.state = NewSession(e.newID(), questions, e.sched.Now())
	e.phase = PhaseAwaitingAnswer
	e.view.ShowQuestion(e.prompt())
	return e.state
}

// Submit scores raw against the current question. The view advances to the
// next question, or the session ends, FeedbackDelay later.
func (e *Engine) Submit(raw string) (SubmitResult, error) {
	switch e.phase {
	case PhaseAwaitingAnswer:
	case PhaseScoring:
		return SubmitResult{}, ErrAnswerPending
	default:
		return SubmitResult{}, ErrNoActiveSession
	}

	q, _ := e.state.Current()
	next, correct := e.state.Score(raw)
	e.state = next
	e.phase = PhaseScoring
	e.view.ShowFeedback(correct, q.Answer)

	sessionID := next.ID
	e.pending = e.sched.After(FeedbackDelay, func() { e.advance(sessionID) })
	return SubmitResult{Correct: correct, Answer: q.Answer, State: next}, nil
}

func (e *Engine) advance(sessionID string) {
	if e.state.ID != sessionID || e.phase != PhaseScoring {
		return
	}
	e.pending = nil
	e.state = e.state.Advance()
	if !e.state.Finished() {
		e.phase = PhaseAwaitingAnswer
		e.view.ShowQuestion(e.prompt())
		return
	}
	e.finish()
}

// finish ends the session like End, but records the result off the
// scheduler's goroutine so slow storage never stalls other sessions.
func (e *Engine) finish() {
	e.phase = PhaseEnded
	s := e.state
	elapsed := s.Elapsed(e.sched.Now())
	entry := LeaderboardEntry{Correct: s.CorrectCount, Time: elapsed}

	var (
		board []LeaderboardEntry
		rank  int
		err   error
	)
	e.sched.Offload(func() {
		ctx, cancel := context.WithTimeout(context.Background(), PersistTimeout)
		defer cancel()
		board, rank, err = e.board.Record(ctx, entry)
	}, func() {
		if err != nil {
			log.Printf("Error saving result of session %s: %v", s.ID, err)
		}
		if e.state.ID != s.ID {
			return
		}
		e.report(s, elapsed, board, rank)
	})
}

// End finalizes a session whose questions are all answered: it records the
// result, shows the summary, and celebrates a perfect score. It runs at most
// once per session.
func (e *Engine) End(ctx context.Context) (SummaryReport, error) {
	if e.phase == PhaseIdle || e.phase == PhaseEnded {
		return SummaryReport{}, ErrNoActiveSession
	}
	if !e.state.Finished() {
		return SummaryReport{}, ErrNotFinished
	}
	e.cancelPending()
	e.phase = PhaseEnded

	s := e.state
	elapsed := s.Elapsed(e.sched.Now())
	board, rank, err := e.board.Record(ctx, LeaderboardEntry{Correct: s.CorrectCount, Time: elapsed})
	if err != nil {
		log.Printf("Error saving result of session %s: %v", s.ID, err)
	}
	return e.report(s, elapsed, board, rank), nil
}

func (e *Engine) report(s SessionState, elapsed float64, board []LeaderboardEntry, rank int) SummaryReport {
	report := SummaryReport{
		SessionID:      s.ID,
		Correct:        s.CorrectCount,
		Total:          s.Total(),
		ElapsedSeconds: elapsed,
		Text:           e.texts.Summary(s.CorrectCount, s.Total(), elapsed),
		Leaderboard:    board,
		Rank:           rank,
		Perfect:        s.Perfect(),
	}
	e.view.ShowResult(report)

	if report.Perfect {
		e.celebrate()
	}
	return report
}

// Leaderboard returns the persisted leaderboard.
func (e *Engine) Leaderboard(ctx context.Context) []LeaderboardEntry {
	return e.board.Entries(ctx)
}

func (e *Engine) celebrate() {
	width, height := e.view.Viewport()
	e.animation.Start(width, height)
	e.celebration = e.sched.After(CelebrationWindow, func() {
		e.celebration = nil
		e.animation.Stop()
	})
}

func (e *Engine) stopCelebration() {
	if e.celebration == nil {
		return
	}
	if e.celebration.Stop() {
		e.animation.Stop()
	}
	e.celebration = nil
}

func (e *Engine) cancelPending() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

func (e *Engine) prompt() QuestionPrompt {
	q, _ := e.state.Current()
	return QuestionPrompt{
		SessionID: e.state.ID,
		Index:     e.state.CurrentIndex,
		Total:     e.state.Total(),
		Question:  q,
		Text:      q.Text(),
		Progress:  e.texts.Progress(e.state.CurrentIndex, e.state.Total()),
	}
}

