package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/starstream/internal/catalog"
	"github.com/hitoshi/starstream/internal/model"
)

// mockCatalogSource はCatalogSourceのモック実装。
type mockCatalogSource struct {
	items []catalog.Item
}

func (m *mockCatalogSource) Items() []catalog.Item {
	return m.items
}

func testCatalogItems() []catalog.Item {
	return []catalog.Item{
		{ID: "dt", Title: "DEMON TIME", Section: catalog.SectionTrending},
		{ID: "madness", Title: "MADNESS", Section: catalog.SectionDirectorsCut, CollectionID: catalog.PremiumCollectionID},
	}
}

func decodeCatalog(t *testing.T, rec *httptest.ResponseRecorder) map[string]bool {
	t.Helper()
	var resp struct {
		Items []struct {
			ID     string `json:"id"`
			Locked bool   `json:"locked"`
		} `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	locked := make(map[string]bool, len(resp.Items))
	for _, item := range resp.Items {
		locked[item.ID] = item.Locked
	}
	return locked
}

func TestListCatalog_Anonymous(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogSource{items: testCatalogItems()}, &mockProfileGetter{})

	rec := httptest.NewRecorder()
	h.ListCatalog(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	locked := decodeCatalog(t, rec)
	if locked["dt"] {
		t.Error("free item is locked for anonymous user")
	}
	if !locked["madness"] {
		t.Error("premium item is unlocked for anonymous user")
	}
}

func TestListCatalog_UnlockedUser(t *testing.T) {
	profiles := &mockProfileGetter{
		getFunc: func(ctx context.Context, userID string) (*model.UserProfile, error) {
			return &model.UserProfile{
				UserID:              userID,
				UnlockedCollections: []string{catalog.PremiumCollectionID},
			}, nil
		},
	}
	h := NewCatalogHandler(&mockCatalogSource{items: testCatalogItems()}, profiles)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/catalog", nil), "user-1")
	rec := httptest.NewRecorder()
	h.ListCatalog(rec, req)

	locked := decodeCatalog(t, rec)
	if locked["madness"] {
		t.Error("premium item is locked for unlocked user")
	}
}

func TestListCatalog_LockedUser(t *testing.T) {
	profiles := &mockProfileGetter{
		getFunc: func(ctx context.Context, userID string) (*model.UserProfile, error) {
			return &model.UserProfile{UserID: userID}, nil
		},
	}
	h := NewCatalogHandler(&mockCatalogSource{items: testCatalogItems()}, profiles)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/catalog", nil), "user-2")
	rec := httptest.NewRecorder()
	h.ListCatalog(rec, req)

	locked := decodeCatalog(t, rec)
	if !locked["madness"] {
		t.Error("premium item is unlocked for user without entitlement")
	}
	if locked["dt"] {
		t.Error("free item is locked")
	}
}

// プロファイルストア障害時もカタログ配信は継続する（ロック扱い）。
func TestListCatalog_ProfileStoreDown(t *testing.T) {
	profiles := &mockProfileGetter{
		getFunc: func(ctx context.Context, userID string) (*model.UserProfile, error) {
			return nil, errors.New("store down")
		},
	}
	h := NewCatalogHandler(&mockCatalogSource{items: testCatalogItems()}, profiles)

	req := authedContext(httptest.NewRequest(http.MethodGet, "/api/catalog", nil), "user-1")
	rec := httptest.NewRecorder()
	h.ListCatalog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	locked := decodeCatalog(t, rec)
	if !locked["madness"] {
		t.Error("premium item should stay locked when profile store is down")
	}
}
