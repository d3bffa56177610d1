// Package hls parses HLS playlists and downloads streams into single
// playable files, delegating container work to ffmpeg.
package hls

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Variant is one rendition referenced from a master playlist.
type Variant struct {
	URI       string
	Bandwidth int
	Width     int
	Height    int
}

// Rendition is one #EXT-X-MEDIA entry (we only care about subtitles).
type Rendition struct {
	Type     string
	URI      string
	Language string
	Name     string
}

// Key is an #EXT-X-KEY encryption reference.
type Key struct {
	Method string
	URI    string
}

// Playlist is a parsed master or media playlist. Relative URIs are
// resolved against the playlist's own URL at parse time.
type Playlist struct {
	Variants   []Variant
	Renditions []Rendition
	Segments   []string
	Key        *Key
}

// IsMaster reports whether the playlist references variants rather than
// media segments.
func (p *Playlist) IsMaster() bool { return len(p.Variants) > 0 }

// Encrypted reports whether segments require AES-128 decryption.
func (p *Playlist) Encrypted() bool {
	return p.Key != nil && strings.EqualFold(p.Key.Method, "AES-128")
}

// SubtitleRenditions returns the TYPE=SUBTITLES media entries.
func (p *Playlist) SubtitleRenditions() []Rendition {
	var out []Rendition
	for _, r := range p.Renditions {
		if strings.EqualFold(r.Type, "SUBTITLES") && r.URI != "" {
			out = append(out, r)
		}
	}
	return out
}

// Parse reads an m3u8 body. baseURL is the playlist's own URL, used to
// absolutize relative segment/variant URIs.
func Parse(body, baseURL string) (*Playlist, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "#EXTM3U") {
		return nil, fmt.Errorf("hls: not an m3u8 playlist (url=%s)", baseURL)
	}

	p := &Playlist{}
	var pendingVariant *Variant

	for _, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{}
			v.Bandwidth, _ = strconv.Atoi(attrs["BANDWIDTH"])
			if res := attrs["RESOLUTION"]; res != "" {
				if w, h, ok := parseResolution(res); ok {
					v.Width, v.Height = w, h
				}
			}
			pendingVariant = &v

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			p.Renditions = append(p.Renditions, Rendition{
				Type:     attrs["TYPE"],
				URI:      absolutize(baseURL, attrs["URI"]),
				Language: attrs["LANGUAGE"],
				Name:     attrs["NAME"],
			})

		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if !strings.EqualFold(attrs["METHOD"], "NONE") {
				p.Key = &Key{
					Method: attrs["METHOD"],
					URI:    absolutize(baseURL, attrs["URI"]),
				}
			}

		case strings.HasPrefix(line, "#"):
			// tags we don't act on (EXTINF, TARGETDURATION, ...)

		default:
			if pendingVariant != nil {
				pendingVariant.URI = absolutize(baseURL, line)
				p.Variants = append(p.Variants, *pendingVariant)
				pendingVariant = nil
			} else {
				p.Segments = append(p.Segments, absolutize(baseURL, line))
			}
		}
	}

	return p, nil
}

// SelectVariant picks a variant by quality preference. "best" means
// highest bandwidth. "720p" style values select the highest variant whose
// vertical resolution does not exceed the target, falling back to best
// when none qualifies.
func SelectVariant(variants []Variant, quality string) (Variant, error) {
	if len(variants) == 0 {
		return Variant{}, fmt.Errorf("hls: playlist has no variants")
	}

	best := variants[0]
	for _, v := range variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}

	if quality == "" || quality == "best" {
		return best, nil
	}

	target, err := strconv.Atoi(strings.TrimSuffix(quality, "p"))
	if err != nil {
		return best, nil
	}

	var selected *Variant
	for i := range variants {
		v := &variants[i]
		if v.Height == 0 || v.Height > target {
			continue
		}
		if selected == nil || v.Height > selected.Height ||
			(v.Height == selected.Height && v.Bandwidth > selected.Bandwidth) {
			selected = v
		}
	}
	if selected == nil {
		return best, nil
	}
	return *selected, nil
}

// parseAttributes splits an m3u8 attribute list, honoring quoted values
// (commas inside quotes do not split).
func parseAttributes(s string) map[string]string {
	attrs := map[string]string{}
	var key strings.Builder
	var val strings.Builder
	inKey := true
	inQuotes := false

	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[k] = val.String()
		}
		key.Reset()
		val.Reset()
		inKey = true
	}

	for _, r := range s {
		switch {
		case inKey && r == '=':
			inKey = false
		case !inKey && r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			flush()
		case inKey:
			key.WriteRune(r)
		default:
			val.WriteRune(r)
		}
	}
	flush()
	return attrs
}

func parseResolution(s string) (w, h int, ok bool) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}

// absolutize resolves ref against base. Already-absolute refs pass
// through untouched so CDN auth query parameters stay byte-identical.
func absolutize(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return u.ResolveReference(r).String()
}
