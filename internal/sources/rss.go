package sources

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"trender/internal/types"
)

const (
	defaultMaxItems   = 50
	defaultRSSTimeout = 30 * time.Second
	maxSummaryRunes   = 500
	maxIDLength       = 200
)

// RSSSource reads one RSS or Atom feed.
type RSSSource struct {
	name     string
	feedURL  string
	lang     string
	maxItems int
	parser   *gofeed.Parser
	now      func() time.Time
	logger   *slog.Logger
}

type RSSConfig struct {
	Name    string
	FeedURL string
	// Lang overrides the language the feed declares.
	Lang     string
	MaxItems int
	// Timeout bounds one fetch. Zero means 30s.
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewRSSSource(cfg RSSConfig) *RSSSource {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaultMaxItems
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRSSTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	parser := gofeed.NewParser()
	parser.UserAgent = "trender/1.0"
	parser.Client = &http.Client{Timeout: cfg.Timeout}

	return &RSSSource{
		name:     cfg.Name,
		feedURL:  cfg.FeedURL,
		lang:     strings.ToLower(strings.TrimSpace(cfg.Lang)),
		maxItems: cfg.MaxItems,
		parser:   parser,
		now:      time.Now,
		logger:   cfg.Logger.With("source", cfg.Name),
	}
}

func (r *RSSSource) Name() string {
	return r.name
}

// Fetch streams up to maxItems items in feed order. The error channel carries at most one
// error and is closed after the item channel.
func (r *RSSSource) Fetch(ctx context.Context) (<-chan types.Item, <-chan error) {
	itemChan := make(chan types.Item)
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer close(itemChan)

		feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
		if err != nil {
			errChan <- fmt.Errorf("rss %s: failed to parse feed: %w", r.name, err)
			return
		}

		entries := feed.Items
		if len(entries) > r.maxItems {
			entries = entries[:r.maxItems]
		}
		lang := r.lang
		if lang == "" {
			lang = normalizeLang(feed.Language)
		}
		r.logger.Debug("Fetched feed", "entries", len(feed.Items), "kept", len(entries), "lang", lang)

		for _, entry := range entries {
			select {
			case itemChan <- r.toItem(entry, lang):
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return itemChan, errChan
}

func (r *RSSSource) toItem(entry *gofeed.Item, lang string) types.Item {
	published := r.publishedAt(entry)

	summary := entry.Description
	if summary == "" {
		summary = entry.Content
	}

	item := types.Item{
		ID:          "rss_" + sanitizeID(r.entryID(entry, published)),
		Title:       cleanText(entry.Title),
		Summary:     truncateRunes(cleanText(summary), maxSummaryRunes),
		URL:         strings.TrimSpace(entry.Link),
		Lang:        lang,
		Source:      r.name,
		PublishedAt: published,
	}
	item.Domain = item.DomainName()
	return item
}

func (r *RSSSource) publishedAt(entry *gofeed.Item) time.Time {
	switch {
	case entry.PublishedParsed != nil:
		return entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		return entry.UpdatedParsed.UTC()
	}
	return r.now().UTC()
}

func (r *RSSSource) entryID(entry *gofeed.Item, published time.Time) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	if entry.Link != "" {
		return entry.Link
	}
	return fmt.Sprintf("%s_%d", r.name, published.Unix())
}

// normalizeLang reduces tags like "en-US" to "en".
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

var idReplacer = strings.NewReplacer(
	"://", "_", "/", "_", "?", "_", "&", "_", "=", "_", "#", "_", " ", "_",
)

func sanitizeID(id string) string {
	id = idReplacer.Replace(id)
	if len(id) > maxIDLength {
		id = id[:maxIDLength]
	}
	return id
}

var htmlStripper = bluemonday.StrictPolicy()

// cleanText strips markup, decodes entities and collapses runs of whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(htmlStripper.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
