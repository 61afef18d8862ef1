// Package bot parses bot command configuration and wires the quiz bot.
package bot

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PoluyanbIch/TimesTableBot/internal/config"
	"github.com/PoluyanbIch/TimesTableBot/internal/i18n"
	"github.com/PoluyanbIch/TimesTableBot/internal/service"
	"github.com/PoluyanbIch/TimesTableBot/internal/telegram"
)

const translationsTimeout = 10 * time.Second

// Config holds the bot command configuration.
type Config struct {
	Token           string        `env:"TELEGRAM_BOT_TOKEN"`
	GistID          string        `env:"GITHUB_GIST_ID"`
	GithubToken     string        `env:"GITHUB_TOKEN"`
	DBPath          string        `env:"TIMESTABLE_DB_PATH"`
	TranslationsURL string        `env:"TIMESTABLE_TRANSLATIONS_URL"`
	FrameInterval   time.Duration `env:"TIMESTABLE_FRAME_INTERVAL"   envDefault:"40ms"`
	ViewportWidth   int           `env:"TIMESTABLE_VIEWPORT_WIDTH"   envDefault:"320"`
	ViewportHeight  int           `env:"TIMESTABLE_VIEWPORT_HEIGHT"  envDefault:"240"`
	Debug           bool          `env:"TIMESTABLE_DEBUG"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite leaderboard database")
	fs.StringVar(&cfg.TranslationsURL, "translations-url", cfg.TranslationsURL, "base URL serving <locale>.json translation files")
	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "confetti frame interval")
	fs.IntVar(&cfg.ViewportWidth, "width", cfg.ViewportWidth, "confetti viewport width in pixels")
	fs.IntVar(&cfg.ViewportHeight, "height", cfg.ViewportHeight, "confetti viewport height in pixels")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log Telegram API traffic")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run connects the bot and serves updates until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.Token) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required")
	}

	store, err := service.NewStore(service.StoreConfig{
		SQLitePath:  cfg.DBPath,
		GistID:      cfg.GistID,
		GithubToken: cfg.GithubToken,
	})
	if err != nil {
		return fmt.Errorf("open leaderboard store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Printf("close leaderboard store: %v", err)
			}
		}()
	}

	texts := i18n.NewCache(translationsLoader(cfg))
	texts.Preload(ctx)

	bot, err := telegram.NewBot(cfg.Token, service.NewLeaderboard(store), texts, telegram.Options{
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		FrameInterval:  cfg.FrameInterval,
		Debug:          cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}

	log.Println("🤖 Bot is starting...")
	if err := bot.Run(ctx); err != nil {
		return fmt.Errorf("serve telegram: %w", err)
	}
	return nil
}

func translationsLoader(cfg Config) i18n.Loader {
	if url := strings.TrimSpace(cfg.TranslationsURL); url != "" {
		return i18n.HTTPLoader{BaseURL: url, Client: &http.Client{Timeout: translationsTimeout}}
	}
	return i18n.Embedded()
}
