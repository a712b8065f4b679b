// Package catalog は動画カタログとロック判定を提供する。
// カタログは組み込みのシードデータを起点とし、MRSSフィードからの
// 取り込みで差し替えられる。ロック判定はサーバー側で行い、
// クライアントは判定結果のみを受け取る。
package catalog

import (
	"sort"
	"sync"

	"github.com/hitoshi/starstream/internal/model"
)

// PremiumCollectionID はプレミアム作品が属するコレクションのID。
const PremiumCollectionID = "jaron-ikner-collection"

// カタログのセクション名。
const (
	SectionTrending     = "trending"
	SectionDirectorsCut = "directors_cut"
	SectionOriginals    = "originals"
	SectionAction       = "action"
)

// Item はカタログの1作品を表す。
// CollectionIDが空でない作品はそのコレクションの解放が必要なプレミアム作品。
type Item struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	PosterURL    string `json:"poster_url"`
	VideoID      string `json:"video_id"`
	Section      string `json:"section"`
	CollectionID string `json:"collection_id,omitempty"`
	ComingSoon   bool   `json:"coming_soon,omitempty"`
}

// Premium はこの作品が解放を必要とするかを返す。
func (i Item) Premium() bool {
	return i.CollectionID != ""
}

// IsLocked は作品がユーザーに対してロックされているかを判定する。
// プレミアム作品かつコレクション未解放の場合のみロックされる。
// プロファイルがnil（匿名）の場合、プレミアム作品は常にロックされる。
func IsLocked(item Item, profile *model.UserProfile) bool {
	if !item.Premium() {
		return false
	}
	return !profile.HasUnlocked(item.CollectionID)
}

// SeedItems は組み込みのカタログを返す。
// フィード取り込みが設定されていない場合はこれがそのまま配信される。
func SeedItems() []Item {
	return []Item{
		{ID: "wanp-trending", Title: "WISHES ARE NEVER PERFECT", PosterURL: "/assets/images/official/Wishes Are Never Perfect Banner.png", VideoID: "V93olU015zEi028o9vtjAc5dhQJ1DinyBpydmCrUFvEVY", Section: SectionTrending},
		{ID: "view360", Title: "THE 360 VIEW", PosterURL: "/assets/images/official/The 360 View Thumbnail.jpg", VideoID: "sKEAvV66KslcYAaLhohd2v00cZ01KvsruB8O0100L4K5bdI", Section: SectionTrending},
		{ID: "dt", Title: "DEMON TIME", PosterURL: "/assets/images/official/Demon time thumbnial.jpg", VideoID: "YZA02rdikzZ60001aiF39bP88es4mUNqlnIm8Cj7IyDkdQ", Section: SectionTrending},
		{ID: "ic", Title: "IMPOSSIBLE COLORS", PosterURL: "/assets/images/official/Impossible Colors Thumbnail.jpg", VideoID: "Y4eTqJ4NoekYw00ZNHBnnT4zUCnO00WTulowAWzj00WjZg", Section: SectionTrending},
		{ID: "tll", Title: "THE LAST LAUGH", PosterURL: "/assets/images/official/The Last Laugh Thumbnail.jpg", VideoID: "nvCffYy1kLkqIV1q006Esdds8yefqEm7KQNBNA8GXHDc", Section: SectionTrending},
		{ID: "bl", Title: "BUCKETLISTING", PosterURL: "/assets/images/official/bucketlisting thubnail.jpg", VideoID: "7M00lmEu00pRdCN9FPJajYinvDR9F02l2ZjsSuwkRGjomQ", Section: SectionTrending},

		{ID: "wtss", Title: "WHEN THE SUN SETS", PosterURL: "/assets/images/official/When The Sun Sets Thumbnail.jpg", VideoID: "ZkiqfuLAaZgjqd02hZZPNXF02Hrmuxbuy3O1fsRu02d7lw", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "hh3", Title: "HIGH HARD 3: HIGH THE HARD WAY", PosterURL: "/assets/images/official/High Hard 3 Thumbnail.jpg", VideoID: "co9uRH6ZJ01LslfDaOkP4i01xDOZ202IbXnpsAv7bh8ATc", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "continuum", Title: "CONTINUUM", PosterURL: "/assets/images/official/Continuum Thumbnail.jpg", VideoID: "rd61V01009h7V01eWVrWSET2jrpYr6dCUcBM61KOiDo8t8", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "moire", Title: "MOIREE", PosterURL: "/assets/images/official/Moire Thumbnail.jpg", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "madness", Title: "MADNESS", PosterURL: "/assets/images/official/Madness Thumbnail.jpg", VideoID: "1ehcQBew1Ohr9VPPp1wahZoxMnK00BuGv29EoCqh9eyk", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "tfp", Title: "THANKS FOR PLAYING", PosterURL: "/assets/images/official/Thanks For Playing Thumbnail.webp", VideoID: "UibDf00WSMbuYcR92iX9sEJ9uvHStZJZw2Urkg53Rfvw", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "mental", Title: "MENTAL", PosterURL: "/assets/images/official/Mental thumbnail.jpg", VideoID: "D1edzBJ4YNqydGwFPO00oizQ023sQW9DROFK9N02p2ECoE", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},
		{ID: "paradox", Title: "PARADOX HOTEL", PosterURL: "/assets/images/official/Paradox Hotel Thumbnail.jpeg", VideoID: "2I5USjY02GmhGXNTfzm89sAdSlNG4prlp9w8ZUtY9ecA", Section: SectionDirectorsCut, CollectionID: PremiumCollectionID},

		{ID: "cosmic-creatives", Title: "COSMIC CREATIVES", PosterURL: "/assets/images/official/Cosmic Creatives Thumbnail.png", Section: SectionOriginals},

		{ID: "action1", Title: "DIMENSION STRIKE", PosterURL: "/assets/images/official/dimension strike thumbnail.png", VideoID: "bcLmzD4lboqsL93OB1BqrlNbEVtMEXtHHAOMqxY02Jnc", Section: SectionAction},
		{ID: "action2", Title: "VOID COMBAT", PosterURL: "/assets/images/official/Void Combat Thumbnail.png", Section: SectionAction, ComingSoon: true},
	}
}

// Store はカタログのスナップショットをメモリに保持する。
// 読み取りはハンドラーから、差し替えは取り込みワーカーから行われる。
type Store struct {
	mu    sync.RWMutex
	items []Item
}

// NewStore はシードカタログで初期化されたStoreを生成する。
func NewStore() *Store {
	return &Store{items: SeedItems()}
}

// Items は現在のカタログのコピーを返す。
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Replace はカタログを新しいスナップショットで差し替える。
// 空のスナップショットは取り込み失敗とみなし、現在のカタログを維持する。
func (s *Store) Replace(items []Item) {
	if len(items) == 0 {
		return
	}
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Section < sorted[j].Section
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = sorted
}
