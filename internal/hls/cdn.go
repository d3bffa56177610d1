package hls

import "strings"

// CDNRule describes how one CDN deployment has to be handled. The rules
// live in an ordered table so the heuristics stay testable in one place
// instead of scattered inline checks.
type CDNRule struct {
	Name string
	// Match is tested against the full manifest URL.
	Match func(url string) bool
	// Delegate means the whole fetch+mux job goes straight to ffmpeg.
	// The Akamai deployment signs URLs with hdnts/hdntl query tokens
	// that generic HTTP clients corrupt when re-encoding the URL; manual
	// segment fetching then silently 403s. Handing the untouched URL to
	// ffmpeg is the only reliable path, not an optimization.
	Delegate bool
	// Referer is required on every request ffmpeg makes to this CDN.
	Referer string
	// SubtitlesViaMaster means direct subtitle playlist URLs 403 on this
	// CDN and tracks must be extracted from the master playlist instead.
	SubtitlesViaMaster bool
}

var cdnRules = []CDNRule{
	{
		Name:               "akamai-tokenized",
		Match:              func(u string) bool { return strings.Contains(u, "vod-akm.play.hotmart.com") },
		Delegate:           true,
		Referer:            "https://cf-embed.play.hotmart.com/",
		SubtitlesViaMaster: true,
	},
}

// MatchCDN returns the first rule matching url, or nil when the manifest
// can be fetched with a plain HTTP client.
func MatchCDN(url string) *CDNRule {
	for i := range cdnRules {
		if cdnRules[i].Match(url) {
			return &cdnRules[i]
		}
	}
	return nil
}
