// Package parser extracts downloadable content from lesson payloads.
// Parsing is pure and never fails: malformed or missing fields degrade to
// empty lists, mirroring how tolerant the platform's own frontend is
// about its payload shapes.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/fsutil"
)

var (
	vimeoPattern   = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)
	youtubePattern = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/)|youtu\.be/)([\w-]+)`)
	wistiaPattern  = regexp.MustCompile(`wistia\.(?:com|net)/(?:medias|embed/iframe)/(\w+)`)
)

// embedRule maps an iframe src pattern to the filename stem used for the
// downloaded video. Ordered; first match wins.
type embedRule struct {
	name    string
	pattern *regexp.Regexp
}

var embedRules = []embedRule{
	{"vimeo_video", vimeoPattern},
	{"youtube_video", youtubePattern},
	{"wistia_video", wistiaPattern},
}

// lessonPayload is the subset of the lesson endpoint response we read.
// Fields the gateway sometimes serves as a single object instead of an
// array unmarshal through tolerant list types.
type lessonPayload struct {
	MediasSrc         mediaList   `json:"mediasSrc"`
	FileMembershipSrc fileList    `json:"fileMembershipSrc"`
	Captions          captionList `json:"captions"`
	Subtitles         captionList `json:"subtitles"`
	Content           string      `json:"content"`
	Description       string      `json:"description"`
}

type mediaEntry struct {
	MediaSrcURL string      `json:"mediaSrcUrl"`
	MediaName   string      `json:"mediaName"`
	MediaCode   string      `json:"mediaCode"`
	Captions    captionList `json:"captions"`
	Subtitles   captionList `json:"subtitles"`
}

type fileEntry struct {
	FileMembershipURL  string `json:"fileMembershipUrl"`
	FileMembershipName string `json:"fileMembershipName"`
	URL                string `json:"url"`
	Name               string `json:"name"`
}

type captionEntry struct {
	URL      string `json:"url"`
	Src      string `json:"src"`
	Language string `json:"language"`
	Lang     string `json:"lang"`
	Label    string `json:"label"`
}

// Parse extracts all downloadable content from a raw lesson payload.
func Parse(payload []byte) domain.LessonContent {
	var content domain.LessonContent

	var page lessonPayload
	if err := json.Unmarshal(payload, &page); err != nil {
		return content
	}

	for _, media := range page.MediasSrc {
		if media.MediaSrcURL != "" {
			name := media.MediaName
			if name == "" {
				name = "video"
			}
			content.Videos = append(content.Videos, domain.VideoReference{
				URL:       media.MediaSrcURL,
				Kind:      domain.KindNativeHLS,
				Filename:  name,
				MediaCode: media.MediaCode,
			})
		}
		appendCaptions(&content, media.Captions)
		appendCaptions(&content, media.Subtitles)
	}

	appendCaptions(&content, page.Captions)
	appendCaptions(&content, page.Subtitles)

	for _, file := range page.FileMembershipSrc {
		url := file.FileMembershipURL
		if url == "" {
			url = file.URL
		}
		if url == "" {
			continue
		}
		name := file.FileMembershipName
		if name == "" {
			name = file.Name
		}
		if name == "" {
			name = "attachment"
		}
		content.Attachments = append(content.Attachments, domain.Attachment{
			URL:      url,
			Filename: name,
		})
	}

	if page.Content != "" {
		parseHTML(page.Content, &content)
	}

	if page.Description != "" {
		content.Description = StripHTML(page.Description)
	}

	return content
}

func appendCaptions(content *domain.LessonContent, caps captionList) {
	for _, cap := range caps {
		url := cap.URL
		if url == "" {
			url = cap.Src
		}
		if url == "" {
			continue
		}
		lang := cap.Language
		if lang == "" {
			lang = cap.Lang
		}
		content.Captions = append(content.Captions, domain.CaptionTrack{
			URL:      url,
			Language: lang,
			Label:    cap.Label,
			Format:   DetectCaptionFormat(url),
		})
	}
}

// parseHTML pulls embeds, subtitle tracks, and links out of the lesson's
// HTML body.
func parseHTML(html string, content *domain.LessonContent) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" {
			return
		}
		for _, rule := range embedRules {
			if rule.pattern.MatchString(src) {
				content.Videos = append(content.Videos, domain.VideoReference{
					URL:      src,
					Kind:     domain.KindExternalEmbed,
					Filename: rule.name,
				})
				return
			}
		}
	})

	doc.Find("track").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" {
			return
		}
		lang, _ := sel.Attr("srclang")
		label, _ := sel.Attr("label")
		content.Captions = append(content.Captions, domain.CaptionTrack{
			URL:      src,
			Language: lang,
			Label:    label,
			Format:   DetectCaptionFormat(src),
		})
	})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if fsutil.SafeExtension(href, "") != "" {
			name := strings.TrimSpace(sel.Text())
			if name == "" {
				name = "attachment"
			}
			content.Attachments = append(content.Attachments, domain.Attachment{
				URL:      href,
				Filename: name,
			})
		} else {
			content.Links = append(content.Links, href)
		}
	})

	if content.Description == "" {
		if text := StripHTML(html); text != "" {
			content.Description = text
		}
	}
}

// StripHTML reduces an HTML fragment to plain text, preserving paragraph
// breaks as newlines.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	// Block-level elements become line breaks so paragraphs survive.
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	text := doc.Text()
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// DetectCaptionFormat infers the caption format from the URL suffix.
// Unknown suffixes are kept as unknown rather than dropped.
func DetectCaptionFormat(url string) domain.CaptionFormat {
	lower := strings.ToLower(url)
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".srt"):
		return domain.CaptionSRT
	case strings.HasSuffix(lower, ".vtt"), strings.HasSuffix(lower, ".webvtt"):
		return domain.CaptionVTT
	default:
		return domain.CaptionUnknown
	}
}
