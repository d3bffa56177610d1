package domain

// ContentKind tags how a video reference has to be downloaded.
type ContentKind string

const (
	// KindNativeHLS is a Hotmart-hosted video served as an HLS stream
	// (directly, or behind an embed wrapper that resolves to one).
	KindNativeHLS ContentKind = "native_hls"
	// KindExternalEmbed is a video hosted on an external platform
	// (Vimeo, YouTube, Wistia) embedded via iframe.
	KindExternalEmbed ContentKind = "external_embed"
)

// DownloadStatus tracks a lesson through the download phase.
// Transitions go pending -> downloading -> exactly one terminal state,
// never backward.
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusSkipped     DownloadStatus = "skipped"
	StatusFailed      DownloadStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s DownloadStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// VideoReference points at one downloadable video inside a lesson.
type VideoReference struct {
	URL      string
	Kind     ContentKind
	Filename string
	// MediaCode is the platform's identifier for the underlying media,
	// handed to the stream resolver when the URL is an embed wrapper.
	MediaCode string
	// KeyURL is set when the lesson payload already exposes the AES-128
	// key location. Usually empty; the HLS engine detects keys from the
	// variant playlist itself.
	KeyURL string
}

// Attachment is a downloadable file (PDF, worksheet, archive).
type Attachment struct {
	URL      string
	Filename string
}

// CaptionTrack is one subtitle/caption track for a video.
type CaptionTrack struct {
	URL      string
	Language string
	Label    string
	Format   CaptionFormat
}

// CaptionFormat is inferred from the track URL suffix. Unknown suffixes
// are kept, not dropped.
type CaptionFormat string

const (
	CaptionSRT     CaptionFormat = "srt"
	CaptionVTT     CaptionFormat = "vtt"
	CaptionUnknown CaptionFormat = "unknown"
)

// Ext returns the file extension to use when writing the track to disk.
func (f CaptionFormat) Ext() string {
	if f == CaptionUnknown || f == "" {
		return "srt"
	}
	return string(f)
}

// LessonContent is everything extractable from one lesson payload.
// All slices keep the order they appeared in the payload.
type LessonContent struct {
	Videos      []VideoReference
	Attachments []Attachment
	Captions    []CaptionTrack
	Links       []string
	Description string
}

// Empty reports whether the lesson carries nothing downloadable.
func (c *LessonContent) Empty() bool {
	return len(c.Videos) == 0 && len(c.Attachments) == 0 &&
		len(c.Captions) == 0 && len(c.Links) == 0 && c.Description == ""
}

// ResolvedMedia holds the manifest URLs captured from the embed player
// for one video reference. All fields empty (except MediaCode) means the
// capture window elapsed without seeing a manifest; callers must treat
// the reference as unresolved rather than retrying forever.
type ResolvedMedia struct {
	MasterURL    string
	VariantURLs  []string
	SubtitleURLs []string
	MediaCode    string
}

// Resolved reports whether any manifest was captured.
func (m ResolvedMedia) Resolved() bool {
	return m.MasterURL != "" || len(m.VariantURLs) > 0 || len(m.SubtitleURLs) > 0
}
