package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// plainValidator はテスト用のSSRFValidator。
// httptestのループバックアドレスを通すため、検証なしの素のクライアントを返す。
type plainValidator struct{}

func (plainValidator) ValidateURL(rawURL string) error { return nil }

func (plainValidator) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// passthroughSanitizer はテスト用のSanitizer。scriptタグのみ除去する簡易実装。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(rawHTML string) string {
	out := rawHTML
	for {
		start := strings.Index(out, "<script>")
		if start < 0 {
			return out
		}
		end := strings.Index(out, "</script>")
		if end < 0 {
			return out[:start]
		}
		out = out[:start] + out[end+len("</script>"):]
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Starstream Catalog</title>
    <item>
      <title>NEW RELEASE</title>
      <guid>new-release</guid>
      <description>A brand new film<script>alert(1)</script></description>
      <enclosure url="https://cdn.example.com/new-release.m3u8" type="application/x-mpegURL" length="0"/>
    </item>
    <item>
      <title>SECOND FEATURE</title>
      <guid>second-feature</guid>
      <description>Another film</description>
    </item>
    <item>
      <title></title>
      <guid>untitled</guid>
    </item>
  </channel>
</rss>`

func newTestIngester(feedURL string, store *Store) *Ingester {
	return NewIngester(IngesterConfig{
		FeedURL: feedURL,
		Timeout: 2 * time.Second,
	}, store, plainValidator{}, passthroughSanitizer{}, testLogger())
}

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	store := NewStore()
	ingester := newTestIngester(server.URL, store)

	if err := ingester.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	items := store.Items()
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	got, ok := byID["new-release"]
	if !ok {
		t.Fatal("ingested item new-release not found")
	}
	if got.VideoID != "https://cdn.example.com/new-release.m3u8" {
		t.Errorf("VideoID = %q", got.VideoID)
	}
	if strings.Contains(got.Description, "<script>") {
		t.Errorf("Description was not sanitized: %q", got.Description)
	}
	if _, ok := byID["second-feature"]; !ok {
		t.Error("ingested item second-feature not found")
	}
	if _, ok := byID["untitled"]; ok {
		t.Error("untitled item was ingested")
	}

	// プレミアム作品はフィードに含まれなくても維持される
	for _, id := range []string{"madness", "tfp", "mental", "paradox", "wtss", "continuum", "moire", "hh3"} {
		item, ok := byID[id]
		if !ok {
			t.Errorf("premium item %q was dropped by ingest", id)
			continue
		}
		if !item.Premium() {
			t.Errorf("premium item %q lost its collection", id)
		}
	}

	// 無料シードは差し替えられる
	if _, ok := byID["dt"]; ok {
		t.Error("free seed item survived the replacement")
	}
}

func TestRefresh_NotModified(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	store := NewStore()
	ingester := newTestIngester(server.URL, store)

	if err := ingester.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	before := len(store.Items())

	if err := ingester.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if len(store.Items()) != before {
		t.Error("304 response changed the catalog")
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestRefresh_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewStore()
	ingester := newTestIngester(server.URL, store)

	if err := ingester.Refresh(context.Background()); err == nil {
		t.Error("Refresh() error = nil, want error")
	}
	if len(store.Items()) != len(SeedItems()) {
		t.Error("failed refresh changed the catalog")
	}
}

func TestRefresh_EmptyFeedKeepsCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`))
	}))
	defer server.Close()

	store := NewStore()
	ingester := newTestIngester(server.URL, store)

	if err := ingester.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(store.Items()) != len(SeedItems()) {
		t.Error("empty feed changed the catalog")
	}
}

func TestRefresh_ParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not a feed`))
	}))
	defer server.Close()

	store := NewStore()
	ingester := newTestIngester(server.URL, store)

	if err := ingester.Refresh(context.Background()); err == nil {
		t.Error("Refresh() error = nil, want error")
	}
}
