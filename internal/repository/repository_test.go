package repository

import (
	"testing"
)

// PostgresWebhookEventRepoはWebhookEventRepositoryインターフェースを満たすことを検証
func TestPostgresWebhookEventRepo_ImplementsInterface(t *testing.T) {
	var _ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresWebhookEventRepoが正しく初期化されることを検証
func TestNewPostgresWebhookEventRepo_Initializes(t *testing.T) {
	repo := NewPostgresWebhookEventRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresSessionRepoが正しく初期化されることを検証
func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
