// Package i18n resolves the user-facing strings of the drill with English
// fallbacks for anything a locale table does not provide.
package i18n

import (
	"strconv"
	"strings"
)

// Message keys understood by the bot.
const (
	KeyIntro            = "intro"
	KeyStart            = "start"
	KeyRestart          = "restart"
	KeyMenu             = "menu"
	KeyQuestion         = "question"
	KeyCorrect          = "correct"
	KeyWrong            = "wrong"
	KeySummary          = "summary"
	KeyLeaderboard      = "leaderboard"
	KeyEmptyLeaderboard = "empty_leaderboard"
	KeyRank             = "rank"
	KeyPerfect          = "perfect"
	KeyColumnCorrect    = "column_correct"
	KeyColumnTime       = "column_time"
	KeyUnknownCommand   = "unknown_command"
	KeyNotRunning       = "not_running"
	KeyAnswerPending    = "answer_pending"
)

// DefaultSummary is used when no summary template is available.
const DefaultSummary = "{correct}/{total} in {time}s"

var defaults = map[string]string{
	KeyIntro:            "Ten multiplication questions against the clock. Ready?",
	KeyStart:            "Start",
	KeyRestart:          "Play again",
	KeyMenu:             "Menu",
	KeyQuestion:         "Question",
	KeyCorrect:          "Correct!",
	KeyWrong:            "Wrong, it was {answer}",
	KeySummary:          DefaultSummary,
	KeyLeaderboard:      "Leaderboard",
	KeyEmptyLeaderboard: "No results yet. Be the first!",
	KeyRank:             "You placed #{rank} on the leaderboard!",
	KeyPerfect:          "Perfect score!",
	KeyColumnCorrect:    "Correct",
	KeyColumnTime:       "Time (s)",
	KeyUnknownCommand:   "Unknown command",
	KeyNotRunning:       "Press Start to begin a new round.",
	KeyAnswerPending:    "Hold on, checking your answer...",
}

// Translations maps message keys to localized strings.
type Translations map[string]string

// Defaults returns a copy of the built-in English table.
func Defaults() Translations {
	out := make(Translations, len(defaults))
	for key, value := range defaults {
		out[key] = value
	}
	return out
}

// Merge returns the defaults overlaid with t.
func (t Translations) Merge() Translations {
	out := Defaults()
	for key, value := range t {
		if strings.TrimSpace(value) == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Text returns the string for key, falling back to English and then to the
// key itself.
func (t Translations) Text(key string) string {
	if value, ok := t[key]; ok && value != "" {
		return value
	}
	if value, ok := defaults[key]; ok {
		return value
	}
	return key
}

// Format substitutes {name} markers in the string for key.
func (t Translations) Format(key string, args map[string]string) string {
	text := t.Text(key)
	for name, value := range args {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// Progress renders the progress label, e.g. "Question 3/10".
func (t Translations) Progress(index, total int) string {
	return t.Text(KeyQuestion) + " " + strconv.Itoa(index+1) + "/" + strconv.Itoa(total)
}

// Summary renders the end-of-session summary template.
func (t Translations) Summary(correct, total int, seconds float64) string {
	return t.Format(KeySummary, map[string]string{
		"correct": strconv.Itoa(correct),
		"total":   strconv.Itoa(total),
		"time":    FormatSeconds(seconds),
	})
}

// FormatSeconds renders seconds with two decimals.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 2, 64)
}
