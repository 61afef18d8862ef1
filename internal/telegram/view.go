package telegram

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/olekukonko/tablewriter"

	"github.com/PoluyanbIch/TimesTableBot/internal/confetti"
	"github.com/PoluyanbIch/TimesTableBot/internal/i18n"
	"github.com/PoluyanbIch/TimesTableBot/internal/service"
)

// Callback payloads of inline buttons.
const (
	callbackStartQuiz   = "start_quiz"
	callbackLeaderboard = "leaderboard"
	callbackBackToMenu  = "back_to_menu"
)

// sender is the subset of *tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// chatView renders one chat's quiz as Telegram messages.
type chatView struct {
	client   sender
	chatID   int64
	texts    i18n.Translations
	width    int
	height   int
	recorder *confetti.Recorder
}

func (v *chatView) ShowQuestion(p service.QuestionPrompt) {
	text := fmt.Sprintf("❓ <b>%s</b>\n\n%s", html.EscapeString(p.Progress), html.EscapeString(p.Text))
	v.send(v.htmlMessage(text))
}

func (v *chatView) ShowFeedback(correct bool, answer int) {
	if correct {
		v.sendText("✅ " + v.texts.Text(i18n.KeyCorrect))
		return
	}
	v.sendText("❌ " + v.texts.Format(i18n.KeyWrong, map[string]string{"answer": strconv.Itoa(answer)}))
}

func (v *chatView) ShowResult(r service.SummaryReport) {
	text := "🏁 <b>" + html.EscapeString(r.Text) + "</b>\n\n"
	if r.Rank > 0 {
		text += "🎉 " + html.EscapeString(v.texts.Format(i18n.KeyRank, map[string]string{"rank": strconv.Itoa(r.Rank)})) + "\n\n"
	}
	text += "🏆 <b>" + html.EscapeString(v.texts.Text(i18n.KeyLeaderboard)) + "</b>\n"
	text += renderLeaderboard(r.Leaderboard, v.texts)

	if v.recorder != nil {
		v.recorder.SetCaption(fmt.Sprintf("%d/%d  %ss", r.Correct, r.Total, i18n.FormatSeconds(r.ElapsedSeconds)))
	}

	msg := v.htmlMessage(text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 "+v.texts.Text(i18n.KeyRestart), callbackStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("🔙 "+v.texts.Text(i18n.KeyMenu), callbackBackToMenu),
		),
	)
	v.send(msg)
}

func (v *chatView) Viewport() (float64, float64) {
	return float64(v.width), float64(v.height)
}

func (v *chatView) sendMainMenu() {
	msg := v.htmlMessage("📋 " + html.EscapeString(v.texts.Text(i18n.KeyIntro)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ "+v.texts.Text(i18n.KeyStart), callbackStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("🏆 "+v.texts.Text(i18n.KeyLeaderboard), callbackLeaderboard),
		),
	)
	v.send(msg)
}

func (v *chatView) sendLeaderboard(entries []service.LeaderboardEntry) {
	text := "🏆 <b>" + html.EscapeString(v.texts.Text(i18n.KeyLeaderboard)) + "</b>\n\n"
	if len(entries) == 0 {
		text += html.EscapeString(v.texts.Text(i18n.KeyEmptyLeaderboard))
	} else {
		text += renderLeaderboard(entries, v.texts)
	}

	msg := v.htmlMessage(text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 "+v.texts.Text(i18n.KeyStart), callbackStartQuiz),
			tgbotapi.NewInlineKeyboardButtonData("📋 "+v.texts.Text(i18n.KeyMenu), callbackBackToMenu),
		),
	)
	v.send(msg)
}

func (v *chatView) sendAnimation(data []byte) {
	anim := tgbotapi.NewAnimation(v.chatID, tgbotapi.FileBytes{Name: "confetti.gif", Bytes: data})
	anim.Caption = "🎉 " + v.texts.Text(i18n.KeyPerfect)
	v.send(anim)
}

func (v *chatView) sendText(text string) {
	v.send(tgbotapi.NewMessage(v.chatID, text))
}

func (v *chatView) htmlMessage(text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(v.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

func (v *chatView) send(c tgbotapi.Chattable) {
	if _, err := v.client.Send(c); err != nil {
		log.Printf("Error sending to chat %d: %v", v.chatID, err)
	}
}

// renderLeaderboard lays entries out as a monospace table.
func renderLeaderboard(entries []service.LeaderboardEntry, texts i18n.Translations) string {
	if len(entries) == 0 {
		return html.EscapeString(texts.Text(i18n.KeyEmptyLeaderboard))
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"#", texts.Text(i18n.KeyColumnCorrect), texts.Text(i18n.KeyColumnTime)})
	for i, entry := range entries {
		table.Append([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(entry.Correct),
			i18n.FormatSeconds(entry.Time),
		})
	}
	table.Render()

	return "<pre>" + html.EscapeString(buf.String()) + "</pre>"
}

// celebration plays confetti into a recorder and posts the result as a GIF
// once stopped.
type celebration struct {
	loop     *confetti.Loop
	recorder *confetti.Recorder
	deliver  func([]byte)
}

func (c *celebration) Start(width, height float64) {
	if c.loop.Active() {
		return
	}
	c.recorder.Reset()
	c.loop.Start(width, height)
}

func (c *celebration) Stop() {
	if !c.loop.Active() {
		return
	}
	c.loop.Stop()

	var buf bytes.Buffer
	if err := c.recorder.Encode(&buf); err != nil {
		if !errors.Is(err, confetti.ErrNoFrames) {
			log.Printf("Error encoding confetti: %v", err)
		}
		return
	}
	c.recorder.Reset()
	c.deliver(buf.Bytes())
}
