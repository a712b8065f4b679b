package model

import "time"

// UserProfile はIDプロバイダーが保持するユーザープロファイルを表す。
// UnlockedCollectionsはユーザーが解放済みのコレクションIDの集合。
// 集合は単調増加であり、このパイプラインが要素を削除することはない。
type UserProfile struct {
	UserID              string
	Email               string
	UnlockedCollections []string
}

// HasUnlocked は指定コレクションが解放済みかどうかを返す。
func (p *UserProfile) HasUnlocked(collectionID string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.UnlockedCollections {
		if c == collectionID {
			return true
		}
	}
	return false
}

// Session はストアフロントAPIのログインセッションを表す。
// IDプロバイダーのトークン検証に成功した時点で発行される。
type Session struct {
	ID        string
	UserID    string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
