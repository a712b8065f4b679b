package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/starstream/internal/middleware"
	"github.com/hitoshi/starstream/internal/model"
)

// ProfileGetter はプロファイル取得のインターフェース。
// profile.Clientの部分集合として定義する。
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
}

// ProfileHandler はユーザープロファイルのHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileGetter
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileGetter) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profileResponse はプロファイルのAPIレスポンス。
type profileResponse struct {
	ID                  string   `json:"id"`
	Email               string   `json:"email"`
	UnlockedCollections []string `json:"unlocked_collections"`
}

// Me は現在のユーザーのプロファイルを返す。
// GET /api/me
// 解放直後のクライアントはこのエンドポイントをポーリングして
// unlocked_collectionsの反映を確認する。
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError("profile_store"))
		return
	}
	if profile == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError(userID))
		return
	}

	collections := profile.UnlockedCollections
	if collections == nil {
		collections = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		ID:                  profile.UserID,
		Email:               profile.Email,
		UnlockedCollections: collections,
	})
}
