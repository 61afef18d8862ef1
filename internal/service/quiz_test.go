package service

import (
	"math/rand"
	"testing"
	"time"
)

func TestGenerateQuestionsBounds(t *testing.T) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	seen := map[int]bool{}
	for round := 0; round < 200; round++ {
		questions := GenerateQuestions(r, QuestionCount)
		if len(questions) != QuestionCount {
			t.Fatalf("expected %d questions, got %d", QuestionCount, len(questions))
		}
		for _, q := range questions {
			if q.A < MinFactor || q.A > MaxFactor || q.B < MinFactor || q.B > MaxFactor {
				t.Fatalf("factor out of range: %+v", q)
			}
			if q.Answer != q.A*q.B {
				t.Fatalf("wrong answer: %+v", q)
			}
			seen[q.A] = true
		}
	}
	for f := MinFactor; f <= MaxFactor; f++ {
		if !seen[f] {
			t.Errorf("factor %d never drawn in 2000 questions", f)
		}
	}
}

func TestGenerateQuestionsNonPositive(t *testing.T) {
	if got := GenerateQuestions(rand.New(rand.NewSource(1)), 0); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestQuestionText(t *testing.T) {
	if got := NewQuestion(3, 7).Text(); got != "3 × 7 = ?" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{raw: "42", want: 42, ok: true},
		{raw: " 6\n", want: 6, ok: true},
		{raw: "-3", want: -3, ok: true},
		{raw: "", ok: false},
		{raw: "   ", ok: false},
		{raw: "abc", ok: false},
		{raw: "6abc", ok: false},
		{raw: "6.0", ok: false},
		{raw: "0x10", ok: false},
	}
	for _, tc := range tests {
		got, ok := ParseAnswer(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseAnswer(%q) = %d, %v; want %d, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSessionScoreOnlyMatchesAnswer(t *testing.T) {
	s := NewSession("s", []Question{NewQuestion(2, 3)}, time.Unix(0, 0))

	for _, raw := range []string{"3", "", "six", "7", "6 6"} {
		next, correct := s.Score(raw)
		if correct || next.CorrectCount != 0 {
			t.Errorf("Score(%q) counted as correct", raw)
		}
	}

	next, correct := s.Score("6")
	if !correct || next.CorrectCount != 1 {
		t.Fatalf("expected correct answer, got %+v", next)
	}
	if s.CorrectCount != 0 {
		t.Fatal("Score mutated the receiver")
	}
}

func TestSessionAdvanceStopsAtTotal(t *testing.T) {
	s := NewSession("s", []Question{NewQuestion(1, 1), NewQuestion(2, 2)}, time.Unix(0, 0))
	s = s.Advance().Advance().Advance()
	if s.CurrentIndex != 2 || !s.Finished() {
		t.Fatalf("unexpected index %d", s.CurrentIndex)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("expected no current question")
	}
	if _, correct := s.Score("1"); correct {
		t.Fatal("scored a finished session")
	}
}

func TestRoundSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want float64
	}{
		{d: 12340 * time.Millisecond, want: 12.34},
		{d: 12349 * time.Millisecond, want: 12.35},
		{d: 999 * time.Microsecond, want: 0},
		{d: -time.Second, want: 0},
	}
	for _, tc := range tests {
		if got := RoundSeconds(tc.d); got != tc.want {
			t.Errorf("RoundSeconds(%v) = %v, want %v", tc.d, got, tc.want)
		}
	}
}
