package download

import (
	"testing"

	"hotmart-dl/internal/domain"
)

func TestSelect(t *testing.T) {
	testCases := []struct {
		name string
		url  string
		kind domain.ContentKind
		want Target
	}{
		{"native kind wins", "https://cf-embed.play.hotmart.com/embed/X", domain.KindNativeHLS, TargetHLS},
		{"embed kind wins", "https://cdn.example.com/whatever.m3u8", domain.KindExternalEmbed, TargetExternal},
		{"m3u8 url without kind", "https://cdn.example.com/master.m3u8?tok=1", "", TargetHLS},
		{"vimeo url without kind", "https://player.vimeo.com/video/123", "", TargetExternal},
		{"youtube url without kind", "https://youtu.be/abc", "", TargetExternal},
		{"unknown url falls through", "https://somewhere.example.com/video", "", TargetExternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Select(tc.url, tc.kind); got != tc.want {
				t.Errorf("Expected target %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNeedsResolution(t *testing.T) {
	if !needsResolution("https://cf-embed.play.hotmart.com/embed/X") {
		t.Error("Expected embed wrapper URL to need resolution")
	}
	if needsResolution("https://vod-akm.play.hotmart.com/video/X/hls/master.m3u8?hdnts=tok") {
		t.Error("Expected direct manifest URL to not need resolution")
	}
}
