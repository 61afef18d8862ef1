package telegram

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PoluyanbIch/TimesTableBot/internal/eventloop"
	"github.com/PoluyanbIch/TimesTableBot/internal/i18n"
	"github.com/PoluyanbIch/TimesTableBot/internal/service"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (s *fakeSender) animations() []tgbotapi.AnimationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tgbotapi.AnimationConfig
	for _, c := range s.sent {
		if anim, ok := c.(tgbotapi.AnimationConfig); ok {
			out = append(out, anim)
		}
	}
	return out
}

func (s *fakeSender) last() string {
	texts := s.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

const testChatID = 42

func newTestBot(t *testing.T) (*Bot, *fakeSender, *eventloop.Manual) {
	t.Helper()
	client := &fakeSender{}
	sched := eventloop.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	sched.SetFrameInterval(40 * time.Millisecond)
	bot := newBot(
		client,
		sched,
		service.NewLeaderboard(service.NewMemoryStore()),
		i18n.NewCache(i18n.Embedded()),
		Options{ViewportWidth: 64, ViewportHeight: 48, FrameInterval: 40 * time.Millisecond},
		rand.New(rand.NewSource(1)),
	)
	return bot, client, sched
}

func command(text, lang string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: testChatID},
		From:     &tgbotapi.User{LanguageCode: lang},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func textMessage(text string) tgbotapi.Update {
	return messageIn(testChatID, text, "en")
}

func messageIn(chatID int64, text, lang string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{LanguageCode: lang},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		From:    &tgbotapi.User{LanguageCode: "en"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
	}}
}

func currentAnswer(t *testing.T, bot *Bot) int {
	t.Helper()
	q, ok := bot.chats[testChatID].engine.State().Current()
	if !ok {
		t.Fatal("no current question")
	}
	return q.Answer
}

func TestStartCommandSendsMenu(t *testing.T) {
	bot, client, _ := newTestBot(t)
	bot.handleUpdate(context.Background(), command("/start", "en"))

	if len(client.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(client.sent))
	}
	msg := client.sent[0].(tgbotapi.MessageConfig)
	if _, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Fatalf("expected inline keyboard, got %T", msg.ReplyMarkup)
	}
	if !strings.Contains(msg.Text, "multiplication") {
		t.Fatalf("unexpected menu text %q", msg.Text)
	}
}

func TestQuizFlowOverChat(t *testing.T) {
	bot, client, sched := newTestBot(t)
	ctx := context.Background()

	bot.handleUpdate(ctx, command("/quiz", "en"))
	if !strings.Contains(client.last(), "Question 1/10") {
		t.Fatalf("expected first question, got %q", client.last())
	}

	bot.handleUpdate(ctx, textMessage(strconv.Itoa(currentAnswer(t, bot)+1)))
	if !strings.HasPrefix(client.last(), "❌") {
		t.Fatalf("expected wrong feedback, got %q", client.last())
	}

	bot.handleUpdate(ctx, textMessage("1"))
	if !strings.Contains(client.last(), "checking your answer") {
		t.Fatalf("expected pending notice, got %q", client.last())
	}

	sched.Advance(service.FeedbackDelay)
	if !strings.Contains(client.last(), "Question 2/10") {
		t.Fatalf("expected second question, got %q", client.last())
	}

	for i := 1; i < service.QuestionCount; i++ {
		bot.handleUpdate(ctx, textMessage(strconv.Itoa(currentAnswer(t, bot))))
		sched.Advance(service.FeedbackDelay)
	}

	result := client.last()
	if !strings.Contains(result, "9/10") || !strings.Contains(result, "<pre>") {
		t.Fatalf("expected summary with leaderboard table, got %q", result)
	}
	if len(client.animations()) != 0 {
		t.Fatal("imperfect score sent an animation")
	}

	bot.handleUpdate(ctx, textMessage("5"))
	if !strings.Contains(strings.Join(client.texts(), "\n"), "Press Start") {
		t.Fatal("expected not-running notice after the session ended")
	}
}

func TestPerfectScoreSendsConfetti(t *testing.T) {
	bot, client, sched := newTestBot(t)
	ctx := context.Background()

	bot.handleUpdate(ctx, callback(callbackStartQuiz))
	if len(client.requests) != 1 {
		t.Fatalf("expected callback to be answered, got %d requests", len(client.requests))
	}

	for i := 0; i < service.QuestionCount; i++ {
		bot.handleUpdate(ctx, textMessage(" "+strconv.Itoa(currentAnswer(t, bot))+" "))
		sched.Advance(service.FeedbackDelay)
	}
	if !strings.Contains(client.last(), "10/10") {
		t.Fatalf("expected perfect summary, got %q", client.last())
	}
	if len(client.animations()) != 0 {
		t.Fatal("animation sent before the celebration window closed")
	}

	sched.Advance(service.CelebrationWindow)
	anims := client.animations()
	if len(anims) != 1 {
		t.Fatalf("expected one animation, got %d", len(anims))
	}
	file, ok := anims[0].File.(tgbotapi.FileBytes)
	if !ok || len(file.Bytes) == 0 || !strings.HasPrefix(string(file.Bytes), "GIF89a") {
		t.Fatalf("expected gif bytes, got %T", anims[0].File)
	}
	if !strings.Contains(anims[0].Caption, "Perfect") {
		t.Fatalf("unexpected caption %q", anims[0].Caption)
	}

	sched.Advance(time.Second)
	if len(client.animations()) != 1 {
		t.Fatal("confetti kept running after stop")
	}
}

func TestLeaderboardCallback(t *testing.T) {
	bot, client, _ := newTestBot(t)
	bot.handleUpdate(context.Background(), callback(callbackLeaderboard))
	if !strings.Contains(client.last(), "No results yet") {
		t.Fatalf("expected empty leaderboard, got %q", client.last())
	}

	_, _, err := bot.board.Record(context.Background(), service.LeaderboardEntry{Correct: 8, Time: 21.5})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	bot.handleUpdate(context.Background(), command("/leaderboard", "en"))
	if !strings.Contains(client.last(), "21.50") {
		t.Fatalf("expected table row, got %q", client.last())
	}
}

func TestLanguageFollowsClient(t *testing.T) {
	bot, client, _ := newTestBot(t)
	bot.handleUpdate(context.Background(), command("/quiz", "sv-SE"))
	if !strings.Contains(client.last(), "Fråga 1/10") {
		t.Fatalf("expected swedish progress label, got %q", client.last())
	}

	bot.handleUpdate(context.Background(), command("/help", "ru"))
	if !strings.Contains(client.last(), "Десять") {
		t.Fatalf("expected russian menu, got %q", client.last())
	}
}

func TestUnknownCommand(t *testing.T) {
	bot, client, _ := newTestBot(t)
	bot.handleUpdate(context.Background(), command("/dance", "en"))
	if client.last() != "Unknown command" {
		t.Fatalf("unexpected reply %q", client.last())
	}
}

func TestRenderLeaderboard(t *testing.T) {
	out := renderLeaderboard([]service.LeaderboardEntry{
		{Correct: 10, Time: 12.34},
		{Correct: 9, Time: 8},
	}, i18n.Defaults())

	if !strings.HasPrefix(out, "<pre>") || !strings.HasSuffix(out, "</pre>") {
		t.Fatalf("expected preformatted table, got %q", out)
	}
	for _, want := range []string{"Correct", "12.34", "8.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "12.34") > strings.Index(out, "8.00") {
		t.Fatal("rows out of order")
	}
}

func TestNonTextMessagesAreNotAnswers(t *testing.T) {
	bot, client, _ := newTestBot(t)
	ctx := context.Background()
	bot.handleUpdate(ctx, command("/quiz", "en"))
	sent := len(client.texts())

	sticker := textMessage("")
	sticker.Message.Sticker = &tgbotapi.Sticker{FileID: "sticker"}
	bot.handleUpdate(ctx, sticker)

	if got := len(client.texts()); got != sent {
		t.Fatalf("sticker produced %d replies", got-sent)
	}
	state := bot.chats[testChatID].engine.State()
	if state.CurrentIndex != 0 || bot.chats[testChatID].engine.Phase() != service.PhaseAwaitingAnswer {
		t.Fatalf("sticker consumed the question: %+v", state)
	}
}

func TestChatSetupFailureDropsUpdate(t *testing.T) {
	client := &fakeSender{}
	bot := newBot(client, nil, nil, nil, Options{}, rand.New(rand.NewSource(1)))

	bot.handleUpdate(context.Background(), command("/quiz", "en"))
	bot.handleUpdate(context.Background(), callback(callbackLeaderboard))

	if len(client.texts()) != 0 {
		t.Fatalf("expected no replies, got %v", client.texts())
	}
	if len(bot.chats) != 0 {
		t.Fatal("broken chat was registered")
	}
}

type slowLocaleLoader struct {
	base    i18n.Loader
	slow    string
	release chan struct{}
}

func (l slowLocaleLoader) Load(ctx context.Context, locale string) (i18n.Translations, error) {
	if locale == l.slow {
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.base.Load(ctx, locale)
}

func TestSlowTranslationsDoNotStallOtherChats(t *testing.T) {
	loader := slowLocaleLoader{base: i18n.Embedded(), slow: "sv", release: make(chan struct{})}
	defer close(loader.release)

	client := &fakeSender{}
	loop := eventloop.New(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	bot := newBot(client, loop, service.NewLeaderboard(nil), i18n.NewCache(loader),
		Options{ViewportWidth: 64, ViewportHeight: 48}, rand.New(rand.NewSource(3)))
	onLoop := func(fn func()) {
		t.Helper()
		done := make(chan struct{})
		loop.Post(func() {
			fn()
			close(done)
		})
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("event loop is stalled")
		}
	}

	onLoop(func() { bot.handleUpdate(ctx, command("/quiz", "en")) })
	var answer int
	onLoop(func() {
		q, _ := bot.chats[testChatID].engine.State().Current()
		answer = q.Answer
	})
	onLoop(func() { bot.handleUpdate(ctx, textMessage(strconv.Itoa(answer))) })
	onLoop(func() { bot.handleUpdate(ctx, messageIn(7, "hi", "sv")) })

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(strings.Join(client.texts(), "\n"), "Question 2/10") {
		if time.Now().After(deadline) {
			t.Fatal("second question never arrived while another chat's language was loading")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
