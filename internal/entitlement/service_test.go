package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/hitoshi/starstream/internal/model"
)

// mockProfileStore はProfileStoreのモック実装。
// ユーザーごとの集合をメモリに保持し、書き込み回数を数える。
type mockProfileStore struct {
	mu         sync.Mutex
	profiles   map[string]*model.UserProfile
	setCalls   int
	getErr     error
	setErr     error
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]*model.UserProfile)}
}

func (m *mockProfileStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	copied := *p
	copied.UnlockedCollections = append([]string(nil), p.UnlockedCollections...)
	return &copied, nil
}

func (m *mockProfileStore) SetUnlockedCollections(ctx context.Context, userID string, collections []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.setCalls++
	p, ok := m.profiles[userID]
	if !ok {
		p = &model.UserProfile{UserID: userID}
		m.profiles[userID] = p
	}
	p.UnlockedCollections = append([]string(nil), collections...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGrant(t *testing.T) {
	store := newMockProfileStore()
	store.profiles["user-1"] = &model.UserProfile{UserID: "user-1"}
	service := NewService(store, testLogger())
	defer service.Stop()

	changed, err := service.Grant(context.Background(), "user-1", "jaron-ikner-collection")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if !changed {
		t.Error("changed = false, want true")
	}
	if got := store.profiles["user-1"].UnlockedCollections; !reflect.DeepEqual(got, []string{"jaron-ikner-collection"}) {
		t.Errorf("collections = %v", got)
	}
}

func TestGrant_AlreadyUnlocked(t *testing.T) {
	store := newMockProfileStore()
	store.profiles["user-1"] = &model.UserProfile{
		UserID:              "user-1",
		UnlockedCollections: []string{"jaron-ikner-collection"},
	}
	service := NewService(store, testLogger())
	defer service.Stop()

	changed, err := service.Grant(context.Background(), "user-1", "jaron-ikner-collection")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if changed {
		t.Error("changed = true, want false")
	}
	if store.setCalls != 0 {
		t.Errorf("setCalls = %d, want 0", store.setCalls)
	}
}

func TestGrant_PreservesExisting(t *testing.T) {
	store := newMockProfileStore()
	store.profiles["user-1"] = &model.UserProfile{
		UserID:              "user-1",
		UnlockedCollections: []string{"other-collection"},
	}
	service := NewService(store, testLogger())
	defer service.Stop()

	changed, err := service.Grant(context.Background(), "user-1", "jaron-ikner-collection")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if !changed {
		t.Error("changed = false, want true")
	}
	want := []string{"jaron-ikner-collection", "other-collection"}
	if got := store.profiles["user-1"].UnlockedCollections; !reflect.DeepEqual(got, want) {
		t.Errorf("collections = %v, want %v", got, want)
	}
}

func TestGrant_ProfileNotFound(t *testing.T) {
	store := newMockProfileStore()
	service := NewService(store, testLogger())
	defer service.Stop()

	_, err := service.Grant(context.Background(), "missing", "jaron-ikner-collection")
	if err == nil {
		t.Fatal("Grant() error = nil, want error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeProfileNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeProfileNotFound)
	}
}

func TestGrant_StoreWriteError(t *testing.T) {
	store := newMockProfileStore()
	store.profiles["user-1"] = &model.UserProfile{UserID: "user-1"}
	store.setErr = errors.New("upstream down")
	service := NewService(store, testLogger())
	defer service.Stop()

	changed, err := service.Grant(context.Background(), "user-1", "jaron-ikner-collection")
	if err == nil {
		t.Fatal("Grant() error = nil, want error")
	}
	if changed {
		t.Error("changed = true on write failure, want false")
	}
}

func TestGrant_EmptyArgs(t *testing.T) {
	service := NewService(newMockProfileStore(), testLogger())
	defer service.Stop()

	if _, err := service.Grant(context.Background(), "", "c"); err == nil {
		t.Error("Grant() with empty userID: error = nil, want error")
	}
	if _, err := service.Grant(context.Background(), "u", ""); err == nil {
		t.Error("Grant() with empty collectionID: error = nil, want error")
	}
}

// 同一ユーザーへの異なるコレクションの並行付与が直列化され、
// どちらの付与も失われないことを確認する。
func TestGrant_ConcurrentDifferentCollections(t *testing.T) {
	store := newMockProfileStore()
	store.profiles["user-1"] = &model.UserProfile{UserID: "user-1"}
	service := NewService(store, testLogger())
	defer service.Stop()

	collections := []string{"col-a", "col-b", "col-c", "col-d"}
	var wg sync.WaitGroup
	for _, c := range collections {
		wg.Add(1)
		go func(collectionID string) {
			defer wg.Done()
			if _, err := service.Grant(context.Background(), "user-1", collectionID); err != nil {
				t.Errorf("Grant(%q) error = %v", collectionID, err)
			}
		}(c)
	}
	wg.Wait()

	got := store.profiles["user-1"].UnlockedCollections
	if len(got) != len(collections) {
		t.Fatalf("collections = %v, want all of %v", got, collections)
	}
	for _, c := range collections {
		found := false
		for _, g := range got {
			if g == c {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("collection %q was lost", c)
		}
	}
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name        string
		existing    []string
		add         string
		want        []string
		wantChanged bool
	}{
		{"空集合への追加", nil, "a", []string{"a"}, true},
		{"新規追加はソートされる", []string{"b"}, "a", []string{"a", "b"}, true},
		{"既存は変化なし", []string{"a", "b"}, "a", []string{"a", "b"}, false},
		{"既存の重複は維持追加時に除去", []string{"b", "b"}, "a", []string{"a", "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := union(tt.existing, tt.add)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("union() = %v, want %v", got, tt.want)
			}
		})
	}
}
