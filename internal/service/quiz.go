package service

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Quiz shape.
const (
	QuestionCount = 10
	MinFactor     = 1
	MaxFactor     = 10
)

// Question is one multiplication item. Answer is always A*B.
type Question struct {
	A      int `json:"a"`
	B      int `json:"b"`
	Answer int `json:"answer"`
}

// NewQuestion builds the question a × b.
func NewQuestion(a, b int) Question {
	return Question{A: a, B: b, Answer: a * b}
}

// Text renders the question for display.
func (q Question) Text() string {
	return fmt.Sprintf("%d × %d = ?", q.A, q.B)
}

// RandomQuestion draws both factors uniformly from MinFactor..MaxFactor.
func RandomQuestion(r *rand.Rand) Question {
	span := MaxFactor - MinFactor + 1
	return NewQuestion(MinFactor+r.Intn(span), MinFactor+r.Intn(span))
}

// GenerateQuestions draws n independent questions; duplicates are allowed.
func GenerateQuestions(r *rand.Rand, n int) []Question {
	if n <= 0 {
		return nil
	}
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = RandomQuestion(r)
	}
	return questions
}

// ParseAnswer reads raw as a base-10 integer, ignoring surrounding
// whitespace. ok is false for anything else.
func ParseAnswer(raw string) (value int, ok bool) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}
