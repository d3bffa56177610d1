package hls

import "testing"

func TestMatchCDN(t *testing.T) {
	rule := MatchCDN("https://vod-akm.play.hotmart.com/video/abc/hls/master.m3u8?hdnts=exp~hmac")
	if rule == nil {
		t.Fatal("Expected a rule for the tokenized Akamai host")
	}
	if !rule.Delegate {
		t.Error("Expected Delegate on the Akamai rule")
	}
	if !rule.SubtitlesViaMaster {
		t.Error("Expected SubtitlesViaMaster on the Akamai rule")
	}
	if rule.Referer != "https://cf-embed.play.hotmart.com/" {
		t.Errorf("Expected embed-player referer, got %q", rule.Referer)
	}
}

func TestMatchCDNUnknownHost(t *testing.T) {
	if rule := MatchCDN("https://cdn.example.com/hls/master.m3u8"); rule != nil {
		t.Errorf("Expected nil for an unknown host, got rule %q", rule.Name)
	}
}
