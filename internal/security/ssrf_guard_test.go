package security

import (
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		rawURL  string
		wantErr bool
	}{
		{"通常のHTTPS", "https://feeds.example.com/catalog.rss", false},
		{"通常のHTTP", "http://feeds.example.com/catalog.rss", false},
		{"空URL", "", true},
		{"不正なURL", "://bad", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"ftpスキーム", "ftp://example.com/feed", true},
		{"ホストなし", "https://", true},
		{"localhost", "http://localhost/feed", true},
		{"localhost大文字", "http://LOCALHOST/feed", true},
		{"ループバックIP", "http://127.0.0.1/feed", true},
		{"プライベートIP 10系", "http://10.0.0.5/feed", true},
		{"プライベートIP 172系", "http://172.16.0.1/feed", true},
		{"プライベートIP 192系", "http://192.168.1.1/feed", true},
		{"リンクローカル（メタデータIP）", "http://169.254.169.254/latest/meta-data/", true},
		{"カレントネットワーク", "http://0.0.0.0/feed", true},
		{"IPv6ループバック", "http://[::1]/feed", true},
		{"IPv6リンクローカル", "http://[fe80::1]/feed", true},
		{"パブリックIP", "http://93.184.216.34/feed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.rawURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.rawURL, err, tt.wantErr)
			}
		})
	}
}

func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 1024)
	if client == nil {
		t.Fatal("NewSafeClient() = nil")
	}
}

func TestSSRFGuardImplementsInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
