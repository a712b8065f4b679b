// Package auth はIDプロバイダー連携のログインとセッション管理を提供する。
// ユーザーの台帳はIDプロバイダー側にあり、ローカルにはセッションのみを保持する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/starstream/internal/model"
	"github.com/hitoshi/starstream/internal/repository"
)

// TokenVerifier はIDプロバイダーのトークン検証インターフェース。
type TokenVerifier interface {
	// VerifyIdentityToken はエンドユーザーのトークンを検証し、本人のプロファイルを返す。
	VerifyIdentityToken(ctx context.Context, token string) (*model.UserProfile, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier    TokenVerifier
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(verifier TokenVerifier, sessionRepo repository.SessionRepository, config ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		verifier:    verifier,
		sessionRepo: sessionRepo,
		config:      config,
		logger:      logger,
	}
}

// Login はIDプロバイダーのトークンを検証し、セッションを発行する。
// トークンが無効な場合はmodel.ErrCodeSessionInvalidのAPIErrorを返す。
func (s *Service) Login(ctx context.Context, identityToken string) (*model.Session, error) {
	if identityToken == "" {
		return nil, model.NewSessionInvalidError()
	}

	profile, err := s.verifier.VerifyIdentityToken(ctx, identityToken)
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗しました: %w", err)
	}

	session, err := s.createSession(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーがログインしました",
		slog.String("user_id", profile.UserID),
	)

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("セッションIDが空です")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーがログアウトしました",
		slog.String("session_id", sessionID),
	)
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, profile *model.UserProfile) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    profile.UserID,
		Email:     profile.Email,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
