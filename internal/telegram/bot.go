// Package telegram serves the times-table drill over a Telegram bot. Every
// chat gets its own quiz engine; all of them run on one event loop.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PoluyanbIch/TimesTableBot/internal/confetti"
	"github.com/PoluyanbIch/TimesTableBot/internal/eventloop"
	"github.com/PoluyanbIch/TimesTableBot/internal/i18n"
	"github.com/PoluyanbIch/TimesTableBot/internal/random"
	"github.com/PoluyanbIch/TimesTableBot/internal/service"
)

const updateTimeout = 60

// Options tunes rendering of a bot.
type Options struct {
	ViewportWidth  int
	ViewportHeight int
	FrameInterval  time.Duration
	Debug          bool
}

func (o Options) withDefaults() Options {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = 320
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = 240
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = 40 * time.Millisecond
	}
	return o
}

type chat struct {
	id     int64
	locale string
	view   *chatView
	engine *service.Engine
}

type Bot struct {
	api    *tgbotapi.BotAPI
	loop   *eventloop.Loop
	client sender
	sched  eventloop.Scheduler
	board  *service.Leaderboard
	texts  *i18n.Cache
	rng    *rand.Rand
	opts   Options
	chats  map[int64]*chat
}

func NewBot(token string, board *service.Leaderboard, texts *i18n.Cache, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug

	opts = opts.withDefaults()
	loop := eventloop.New(opts.FrameInterval)
	b := newBot(api, loop, board, texts, opts, random.NewRand())
	b.api = api
	b.loop = loop
	return b, nil
}

func newBot(client sender, sched eventloop.Scheduler, board *service.Leaderboard, texts *i18n.Cache, opts Options, rng *rand.Rand) *Bot {
	if board == nil {
		board = service.NewLeaderboard(nil)
	}
	if texts == nil {
		texts = i18n.NewCache(nil)
	}
	return &Bot{
		client: client,
		sched:  sched,
		board:  board,
		texts:  texts,
		rng:    rng,
		opts:   opts.withDefaults(),
		chats:  make(map[int64]*chat),
	}
}

// Run receives updates until ctx is done, dispatching each one on the
// event loop.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil || b.loop == nil {
		return fmt.Errorf("bot is not connected")
	}
	log.Printf("Authorised on account: %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()
	go func() {
		for update := range updates {
			update := update
			b.loop.Post(func() { b.handleUpdate(ctx, update) })
		}
	}()

	if err := b.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == "" {
		// Stickers, photos and the like are not answers.
		return
	}
	c := b.chatFor(ctx, msg.Chat.ID, languageCode(msg.From))
	if c == nil {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			c.view.sendMainMenu()
		case "quiz":
			c.engine.Start()
		case "leaderboard":
			b.showLeaderboard(ctx, c)
		default:
			c.view.sendText(c.view.texts.Text(i18n.KeyUnknownCommand))
		}
		return
	}

	b.submitAnswer(c, msg.Text)
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if _, err := b.client.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error Answering Callback: %v", err)
	}
	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	c := b.chatFor(ctx, callback.Message.Chat.ID, languageCode(callback.From))
	if c == nil {
		return
	}

	switch callback.Data {
	case callbackStartQuiz:
		c.engine.Start()
	case callbackLeaderboard:
		b.showLeaderboard(ctx, c)
	case callbackBackToMenu:
		c.view.sendMainMenu()
	default:
		c.view.sendText(c.view.texts.Text(i18n.KeyUnknownCommand))
	}
}

// showLeaderboard reads the board off the event loop.
func (b *Bot) showLeaderboard(ctx context.Context, c *chat) {
	var entries []service.LeaderboardEntry
	b.sched.Offload(func() {
		entries = c.engine.Leaderboard(ctx)
	}, func() {
		c.view.sendLeaderboard(entries)
	})
}

func (b *Bot) submitAnswer(c *chat, text string) {
	_, err := c.engine.Submit(text)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrAnswerPending):
		c.view.sendText(c.view.texts.Text(i18n.KeyAnswerPending))
	case errors.Is(err, service.ErrNoActiveSession):
		c.view.sendText(c.view.texts.Text(i18n.KeyNotRunning))
		c.view.sendMainMenu()
	default:
		log.Printf("Error submitting answer in chat %d: %v", c.id, err)
	}
}

// chatFor returns the chat's engine, creating it on first contact and
// switching its language when the client's language changes. It returns
// nil when the chat cannot be set up.
func (b *Bot) chatFor(ctx context.Context, chatID int64, langCode string) *chat {
	locale := i18n.Negotiate(langCode)
	if c, ok := b.chats[chatID]; ok {
		if c.locale != locale {
			c.locale = locale
			b.applyTexts(ctx, c)
		}
		return c
	}

	recorder := confetti.NewRecorder(b.opts.ViewportWidth, b.opts.ViewportHeight, b.opts.FrameInterval)
	view := &chatView{
		client:   b.client,
		chatID:   chatID,
		texts:    i18n.Defaults(),
		width:    b.opts.ViewportWidth,
		height:   b.opts.ViewportHeight,
		recorder: recorder,
	}
	anim := &celebration{
		loop:     confetti.New(b.sched, recorder, rand.New(rand.NewSource(b.rng.Int63()))),
		recorder: recorder,
		deliver:  view.sendAnimation,
	}
	engine, err := service.NewEngine(service.EngineConfig{
		Scheduler:   b.sched,
		View:        view,
		Leaderboard: b.board,
		Animation:   anim,
		Rand:        rand.New(rand.NewSource(b.rng.Int63())),
	})
	if err != nil {
		log.Printf("Error creating quiz for chat %d: %v", chatID, err)
		return nil
	}

	c := &chat{id: chatID, locale: locale, view: view, engine: engine}
	b.chats[chatID] = c
	b.applyTexts(ctx, c)
	return c
}

// applyTexts switches c to its locale's strings. A locale that is not
// cached yet is loaded off the event loop; the chat keeps its current
// strings until the load finishes.
func (b *Bot) applyTexts(ctx context.Context, c *chat) {
	locale := c.locale
	if texts, ok := b.texts.Lookup(locale); ok {
		c.setTexts(texts)
		return
	}

	var texts i18n.Translations
	b.sched.Offload(func() {
		texts = b.texts.Get(ctx, locale)
	}, func() {
		if c.locale == locale {
			c.setTexts(texts)
		}
	})
}

func (c *chat) setTexts(texts i18n.Translations) {
	c.view.texts = texts
	c.engine.SetTranslations(texts)
}

func languageCode(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	return user.LanguageCode
}
