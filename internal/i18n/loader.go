package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// BaseLocale is the locale every lookup falls back to.
const BaseLocale = "en"

const fetchTimeout = 5 * time.Second

// ErrLocaleNotFound reports that a loader has no table for a locale.
var ErrLocaleNotFound = errors.New("locale not found")

//go:embed locales/*.json
var embeddedLocales embed.FS

var supported = []language.Tag{
	language.English,
	language.Swedish,
	language.Russian,
}

var matcher = language.NewMatcher(supported)

// Negotiate maps a client language code such as "sv-SE" to a supported
// locale, defaulting to BaseLocale.
func Negotiate(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return BaseLocale
	}
	tag, _ := language.MatchStrings(matcher, code)
	base, _ := tag.Base()
	if base.String() == "" || base.String() == "und" {
		return BaseLocale
	}
	return base.String()
}

// Loader fetches the translation table for a locale.
type Loader interface {
	Load(ctx context.Context, locale string) (Translations, error)
}

// FSLoader reads "<Dir>/<locale>.json" from FS.
type FSLoader struct {
	FS  fs.FS
	Dir string
}

// Embedded returns a loader over the locales shipped with the binary.
func Embedded() FSLoader {
	return FSLoader{FS: embeddedLocales, Dir: "locales"}
}

// Load implements Loader.
func (l FSLoader) Load(ctx context.Context, locale string) (Translations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.FS == nil {
		return nil, fmt.Errorf("locale filesystem is required")
	}
	data, err := fs.ReadFile(l.FS, path.Join(l.Dir, locale+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", locale, ErrLocaleNotFound)
		}
		return nil, fmt.Errorf("read locale %s: %w", locale, err)
	}
	return decode(locale, data)
}

// HTTPLoader fetches "<BaseURL>/<locale>.json".
type HTTPLoader struct {
	BaseURL string
	Client  *http.Client
}

// Load implements Loader.
func (l HTTPLoader) Load(ctx context.Context, locale string) (Translations, error) {
	base := strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("translations base url is required")
	}
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+locale+".json", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch locale %s: %w", locale, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", locale, ErrLocaleNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch locale %s: HTTP %d", locale, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read locale %s: %w", locale, err)
	}
	return decode(locale, data)
}

func decode(locale string, data []byte) (Translations, error) {
	var table Translations
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode locale %s: %w", locale, err)
	}
	return table, nil
}

// Cache memoizes merged tables per locale. A failed load is cached as the
// English defaults so gameplay is never blocked on it. Loads run without
// holding the cache lock, so Lookup never waits on I/O.
type Cache struct {
	loader Loader
	mu     sync.Mutex
	tables map[string]Translations
}

// NewCache wraps loader. A nil loader serves defaults only.
func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader, tables: map[string]Translations{}}
}

// Lookup returns the table for locale if it has already been loaded.
func (c *Cache) Lookup(locale string) (Translations, bool) {
	locale = normalize(locale)
	c.mu.Lock()
	defer c.mu.Unlock()
	table, ok := c.tables[locale]
	return table, ok
}

// Get returns the merged table for locale, loading it on first use.
func (c *Cache) Get(ctx context.Context, locale string) Translations {
	locale = normalize(locale)
	if table, ok := c.Lookup(locale); ok {
		return table
	}

	table := Defaults()
	if c.loader != nil {
		loaded, err := c.loader.Load(ctx, locale)
		if err != nil {
			log.Printf("translations %s: %v, using defaults", locale, err)
			if ctx.Err() != nil {
				return table
			}
		} else {
			table = loaded.Merge()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.tables[locale]; ok {
		return existing
	}
	c.tables[locale] = table
	return table
}

// Preload loads every supported locale concurrently.
func (c *Cache) Preload(ctx context.Context) {
	var wg sync.WaitGroup
	for _, locale := range Locales() {
		wg.Add(1)
		go func(locale string) {
			defer wg.Done()
			c.Get(ctx, locale)
		}(locale)
	}
	wg.Wait()
}

// Locales lists the locales Negotiate can return.
func Locales() []string {
	out := make([]string, 0, len(supported))
	for _, tag := range supported {
		base, _ := tag.Base()
		out = append(out, base.String())
	}
	return out
}

func normalize(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return BaseLocale
	}
	return locale
}
