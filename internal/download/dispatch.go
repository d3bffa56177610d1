// Package download routes lesson content to the right downloader and
// drives whole-course batch runs.
package download

import (
	"strings"

	"hotmart-dl/internal/domain"
)

// Target identifies which downloader handles a video reference.
type Target int

const (
	// TargetHLS is the native HLS engine.
	TargetHLS Target = iota
	// TargetExternal is the generic platform downloader (yt-dlp).
	TargetExternal
)

// routeRule matches a URL substring to a target. Checked only after the
// content kind has had its say.
type routeRule struct {
	substr string
	target Target
}

var routeRules = []routeRule{
	{".m3u8", TargetHLS},
	{"vimeo.com", TargetExternal},
	{"youtube.com", TargetExternal},
	{"youtu.be", TargetExternal},
	{"wistia.", TargetExternal},
}

// Select routes a video reference. Kind wins over URL shape; an
// unroutable URL falls through to the generic downloader so dispatch
// itself never fails. Unroutable content fails later, when attempted.
func Select(url string, kind domain.ContentKind) Target {
	switch kind {
	case domain.KindNativeHLS:
		return TargetHLS
	case domain.KindExternalEmbed:
		return TargetExternal
	}

	lower := strings.ToLower(url)
	for _, rule := range routeRules {
		if strings.Contains(lower, rule.substr) {
			return rule.target
		}
	}
	return TargetExternal
}
