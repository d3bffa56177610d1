package resolver

import (
	"strings"

	"hotmart-dl/internal/domain"
)

// Categorize sorts captured manifest URLs into a ResolvedMedia using
// substring heuristics, in capture order. Rules, first match wins:
// caption-stream marker means subtitle; "master" means master; both
// audio and video bitrate markers mean variant; anything else becomes
// the master if none is set yet, otherwise a variant.
func Categorize(urls []string, mediaCode string) domain.ResolvedMedia {
	media := domain.ResolvedMedia{MediaCode: mediaCode}
	for _, url := range urls {
		lower := strings.ToLower(url)
		switch {
		case strings.Contains(lower, "textstream"):
			media.SubtitleURLs = append(media.SubtitleURLs, url)
		case strings.Contains(lower, "master"):
			if media.MasterURL == "" {
				media.MasterURL = url
			}
		case strings.Contains(lower, "audio=") && strings.Contains(lower, "video="):
			media.VariantURLs = append(media.VariantURLs, url)
		default:
			if media.MasterURL == "" {
				media.MasterURL = url
			} else {
				media.VariantURLs = append(media.VariantURLs, url)
			}
		}
	}
	return media
}

// GuessLanguageFromURL extracts a language tag from subtitle stream
// names like "textstream_por_pt_br" or "textstream_eng=1000".
func GuessLanguageFromURL(url string) string {
	lower := strings.ToLower(url)
	idx := strings.Index(lower, "textstream")
	if idx < 0 {
		return ""
	}
	rest := lower[idx+len("textstream"):]
	rest = strings.TrimLeft(rest, "_-")
	for i, r := range rest {
		if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			rest = rest[:i]
			break
		}
	}
	rest = strings.Trim(rest, "_-")
	if rest == "" {
		return ""
	}
	// "pt_br" style pairs become BCP-47-ish "pt-BR".
	parts := strings.Split(rest, "_")
	if len(parts) >= 2 && len(parts[len(parts)-2]) == 2 && len(parts[len(parts)-1]) == 2 {
		return parts[len(parts)-2] + "-" + strings.ToUpper(parts[len(parts)-1])
	}
	return parts[len(parts)-1]
}
