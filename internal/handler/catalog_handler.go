package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/starstream/internal/catalog"
	"github.com/hitoshi/starstream/internal/middleware"
	"github.com/hitoshi/starstream/internal/model"
)

// CatalogSource はカタログスナップショットの取得インターフェース。
type CatalogSource interface {
	Items() []catalog.Item
}

// CatalogHandler はカタログ配信のHTTPハンドラー。
// ロック判定はサーバー側で行い、クライアントはlockedフラグのみを受け取る。
type CatalogHandler struct {
	source   CatalogSource
	profiles ProfileGetter
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(source CatalogSource, profiles ProfileGetter) *CatalogHandler {
	return &CatalogHandler{
		source:   source,
		profiles: profiles,
	}
}

// catalogItemResponse はカタログ作品のAPIレスポンス。
type catalogItemResponse struct {
	catalog.Item
	Locked bool `json:"locked"`
}

// ListCatalog はカタログ全体を作品ごとのロック判定付きで返す。
// GET /api/catalog
// 匿名アクセスを許可する。匿名の場合、プレミアム作品はすべてロックされる。
// プロファイルストア障害時は匿名と同じ判定で配信を継続する。
func (h *CatalogHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	var profile *model.UserProfile
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		p, err := h.profiles.GetProfile(r.Context(), session.UserID)
		if err != nil {
			slog.Warn("failed to get profile for catalog; serving locked view",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		} else {
			profile = p
		}
	}

	items := h.source.Items()
	response := make([]catalogItemResponse, len(items))
	for i, item := range items {
		response[i] = catalogItemResponse{
			Item:   item,
			Locked: catalog.IsLocked(item, profile),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"items": response,
	})
}
