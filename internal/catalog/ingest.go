package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// SSRFValidator はフィード取り込み時のSSRF検証インターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer はフィード由来のHTML断片のサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// IngesterConfig はカタログ取り込みの設定。
type IngesterConfig struct {
	FeedURL     string
	Timeout     time.Duration
	MaxBodySize int64
}

// Ingester はMRSSフィードからカタログを取り込む。
// フィード由来の作品でシードの無料セクションを差し替え、
// プレミアム作品は常にシードのまま維持する。
type Ingester struct {
	config    IngesterConfig
	store     *Store
	ssrfGuard SSRFValidator
	sanitizer Sanitizer
	logger    *slog.Logger

	// 条件付きGET用のキャッシュ検証子
	etag         string
	lastModified string
}

// NewIngester はIngesterの新しいインスタンスを生成する。
func NewIngester(config IngesterConfig, store *Store, ssrfGuard SSRFValidator, sanitizer Sanitizer, logger *slog.Logger) *Ingester {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 5 * 1024 * 1024
	}
	return &Ingester{
		config:    config,
		store:     store,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Refresh はフィードをフェッチしてカタログを更新する。
// 304の場合は何もしない。パース失敗や空フィードでは現在のカタログを維持する。
func (g *Ingester) Refresh(ctx context.Context) error {
	start := time.Now()

	if err := g.ssrfGuard.ValidateURL(g.config.FeedURL); err != nil {
		return fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	client := g.ssrfGuard.NewSafeClient(g.config.Timeout, g.config.MaxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Starstream/1.0 Catalog Ingest")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")
	if g.etag != "" {
		req.Header.Set("If-None-Match", g.etag)
	}
	if g.lastModified != "" {
		req.Header.Set("If-Modified-Since", g.lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("フィードのフェッチに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		g.logger.Info("カタログフィードは未変更です",
			slog.String("feed_url", g.config.FeedURL),
		)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("フィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxBodySize))
	if err != nil {
		return fmt.Errorf("フィードボディの読み取りに失敗しました: %w", err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		g.etag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		g.lastModified = lastMod
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	ingested := g.convertItems(parsed.Items)
	if len(ingested) == 0 {
		g.logger.Warn("フィードに作品がありません。現在のカタログを維持します",
			slog.String("feed_url", g.config.FeedURL),
		)
		return nil
	}

	// プレミアム作品はフィードで上書きしない
	merged := ingested
	for _, item := range SeedItems() {
		if item.Premium() {
			merged = append(merged, item)
		}
	}
	g.store.Replace(merged)

	g.logger.Info("カタログを更新しました",
		slog.String("feed_url", g.config.FeedURL),
		slog.Int("ingested_items", len(ingested)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// convertItems はgofeedの記事をカタログの作品に変換する。
// GUIDまたはリンクのない記事はスキップする。
func (g *Ingester) convertItems(feedItems []*gofeed.Item) []Item {
	items := make([]Item, 0, len(feedItems))
	for _, fi := range feedItems {
		if fi == nil {
			continue
		}
		id := fi.GUID
		if id == "" {
			id = fi.Link
		}
		if id == "" || fi.Title == "" {
			continue
		}

		item := Item{
			ID:          id,
			Title:       g.sanitizer.Sanitize(fi.Title),
			Description: g.sanitizer.Sanitize(fi.Description),
			Section:     SectionTrending,
		}
		if fi.Image != nil {
			item.PosterURL = fi.Image.URL
		}
		for _, enc := range fi.Enclosures {
			if enc != nil && enc.URL != "" {
				item.VideoID = enc.URL
				break
			}
		}
		items = append(items, item)
	}
	return items
}
