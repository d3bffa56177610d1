package hls

import (
	"strings"
	"testing"
)

const masterPlaylist = `#EXTM3U
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="Português",LANGUAGE="pt-BR",URI="textstream_por=1000.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360
video_360.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=1280x720
video_720.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1920x1080
video_1080.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
seg_000.ts
#EXTINF:6.0,
seg_001.ts
#EXTINF:4.2,
https://other.cdn.example.com/seg_002.ts?hdnts=abc~def
#EXT-X-ENDLIST
`

func TestParseMaster(t *testing.T) {
	p, err := Parse(masterPlaylist, "https://cdn.example.com/hls/master.m3u8")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !p.IsMaster() {
		t.Fatal("Expected playlist to be a master")
	}
	if len(p.Variants) != 3 {
		t.Fatalf("Expected 3 variants, got %d", len(p.Variants))
	}

	v := p.Variants[1]
	if v.Bandwidth != 1400000 {
		t.Errorf("Expected bandwidth 1400000, got %d", v.Bandwidth)
	}
	if v.Width != 1280 || v.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", v.Width, v.Height)
	}
	if v.URI != "https://cdn.example.com/hls/video_720.m3u8" {
		t.Errorf("Expected relative URI to be absolutized, got %q", v.URI)
	}

	subs := p.SubtitleRenditions()
	if len(subs) != 1 {
		t.Fatalf("Expected 1 subtitle rendition, got %d", len(subs))
	}
	if subs[0].Language != "pt-BR" {
		t.Errorf("Expected language pt-BR, got %q", subs[0].Language)
	}
	if subs[0].Name != "Português" {
		t.Errorf("Expected name Português, got %q", subs[0].Name)
	}
}

func TestParseMediaPlaylist(t *testing.T) {
	p, err := Parse(mediaPlaylist, "https://cdn.example.com/hls/video_720.m3u8")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if p.IsMaster() {
		t.Fatal("Expected a media playlist, not a master")
	}
	if len(p.Segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(p.Segments))
	}
	if p.Segments[0] != "https://cdn.example.com/hls/seg_000.ts" {
		t.Errorf("Expected relative segment to be absolutized, got %q", p.Segments[0])
	}
	// Already-absolute URLs must pass through byte-identical; the CDN
	// token would break otherwise.
	if p.Segments[2] != "https://other.cdn.example.com/seg_002.ts?hdnts=abc~def" {
		t.Errorf("Expected absolute segment untouched, got %q", p.Segments[2])
	}
}

func TestParseEncrypted(t *testing.T) {
	body := "#EXTM3U\n" +
		`#EXT-X-KEY:METHOD=AES-128,URI="key.bin",IV=0x1234` + "\n" +
		"#EXTINF:6.0,\nseg_000.ts\n"
	p, err := Parse(body, "https://cdn.example.com/hls/v.m3u8")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !p.Encrypted() {
		t.Fatal("Expected playlist to be encrypted")
	}
	if p.Key.URI != "https://cdn.example.com/hls/key.bin" {
		t.Errorf("Expected key URI to be absolutized, got %q", p.Key.URI)
	}
}

func TestParseKeyMethodNone(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-KEY:METHOD=NONE\n#EXTINF:6.0,\nseg_000.ts\n"
	p, err := Parse(body, "https://cdn.example.com/v.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	if p.Encrypted() {
		t.Error("Expected METHOD=NONE to not count as encrypted")
	}
}

func TestParseRejectsNonPlaylist(t *testing.T) {
	if _, err := Parse("<html>forbidden</html>", "https://cdn.example.com/v.m3u8"); err == nil {
		t.Error("Expected error for non-m3u8 body")
	}
}

func TestSelectVariant(t *testing.T) {
	variants := []Variant{
		{URI: "1080", Bandwidth: 2000000, Height: 1080},
		{URI: "480", Bandwidth: 300000, Height: 480},
		{URI: "720", Bandwidth: 1400000, Height: 720},
	}

	testCases := []struct {
		name    string
		quality string
		wantURI string
	}{
		{"best picks highest bandwidth", "best", "1080"},
		{"empty means best", "", "1080"},
		{"exact height match", "720p", "720"},
		{"height cap selects below", "600p", "480"},
		{"unreachable height falls back to best", "240p", "1080"},
		{"garbage quality falls back to best", "potato", "1080"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := SelectVariant(variants, tc.quality)
			if err != nil {
				t.Fatalf("SelectVariant returned error: %v", err)
			}
			if v.URI != tc.wantURI {
				t.Errorf("Expected variant %q, got %q", tc.wantURI, v.URI)
			}
		})
	}
}

func TestSelectVariantBestIgnoresOrder(t *testing.T) {
	// Highest bandwidth listed first, last, and middle.
	orders := [][]Variant{
		{{URI: "hi", Bandwidth: 2000000}, {URI: "lo", Bandwidth: 500000}},
		{{URI: "lo", Bandwidth: 500000}, {URI: "hi", Bandwidth: 2000000}},
		{{URI: "lo", Bandwidth: 500000}, {URI: "hi", Bandwidth: 2000000}, {URI: "mid", Bandwidth: 900000}},
	}
	for i, variants := range orders {
		v, err := SelectVariant(variants, "best")
		if err != nil {
			t.Fatal(err)
		}
		if v.URI != "hi" {
			t.Errorf("order %d: Expected highest-bandwidth variant, got %q", i, v.URI)
		}
	}
}

func TestSelectVariantEmpty(t *testing.T) {
	if _, err := SelectVariant(nil, "best"); err == nil {
		t.Error("Expected error for empty variant list")
	}
}

func TestParseAttributes(t *testing.T) {
	attrs := parseAttributes(`BANDWIDTH=1400000,CODECS="avc1.4d401f,mp4a.40.2",RESOLUTION=1280x720,NAME="A, B"`)

	if attrs["BANDWIDTH"] != "1400000" {
		t.Errorf("Expected BANDWIDTH 1400000, got %q", attrs["BANDWIDTH"])
	}
	// Commas inside quotes must not split.
	if attrs["CODECS"] != "avc1.4d401f,mp4a.40.2" {
		t.Errorf("Expected quoted CODECS intact, got %q", attrs["CODECS"])
	}
	if attrs["NAME"] != "A, B" {
		t.Errorf("Expected quoted NAME intact, got %q", attrs["NAME"])
	}
	if attrs["RESOLUTION"] != "1280x720" {
		t.Errorf("Expected RESOLUTION 1280x720, got %q", attrs["RESOLUTION"])
	}
}

func TestAbsolutize(t *testing.T) {
	base := "https://cdn.example.com/hls/720/index.m3u8?token=x"

	testCases := []struct {
		ref  string
		want string
	}{
		{"seg.ts", "https://cdn.example.com/hls/720/seg.ts"},
		{"../key.bin", "https://cdn.example.com/hls/key.bin"},
		{"/root.m3u8", "https://cdn.example.com/root.m3u8"},
		{"https://x.example.com/a.ts?hdnts=a~b=c", "https://x.example.com/a.ts?hdnts=a~b=c"},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := absolutize(base, tc.ref); got != tc.want {
			t.Errorf("absolutize(%q): Expected %q, got %q", tc.ref, tc.want, got)
		}
	}
}

func TestParseHandlesCRLF(t *testing.T) {
	body := strings.ReplaceAll(mediaPlaylist, "\n", "\r\n")
	p, err := Parse(body, "https://cdn.example.com/v.m3u8")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(p.Segments) != 3 {
		t.Errorf("Expected 3 segments with CRLF input, got %d", len(p.Segments))
	}
}
