// Package delivery turns the engine's final reply into a humanized
// outbound sequence: media references are extracted from the text,
// residual markdown is stripped, and the remaining text is split into
// chunks sent with synthetic typing delays.
package delivery

import (
	"regexp"
	"strings"

	"github.com/efficore/agentcore/pkg/models"
)

var (
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)
	markdownLinkPattern  = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	bareURLPattern       = regexp.MustCompile(`https?://[^\s<>")]+`)

	// contentCodePattern matches short alphanumeric content codes that
	// resolve against the media base location. A code is uppercase,
	// mixes letters and digits, and stands alone as a word.
	contentCodePattern = regexp.MustCompile(`\b[A-Z0-9]{6,12}\b`)
)

// mediaExtensions classifies recognized media URLs by extension.
var mediaExtensions = map[string]struct {
	kind models.MediaType
	mime string
}{
	".jpg":  {models.MediaImage, "image/jpeg"},
	".jpeg": {models.MediaImage, "image/jpeg"},
	".png":  {models.MediaImage, "image/png"},
	".gif":  {models.MediaImage, "image/gif"},
	".webp": {models.MediaImage, "image/webp"},
	".mp4":  {models.MediaVideo, "video/mp4"},
	".mov":  {models.MediaVideo, "video/quicktime"},
	".webm": {models.MediaVideo, "video/webm"},
	".pdf":  {models.MediaFile, "application/pdf"},
	".doc":  {models.MediaFile, "application/msword"},
	".docx": {models.MediaFile, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xls":  {models.MediaFile, "application/vnd.ms-excel"},
	".xlsx": {models.MediaFile, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".mp3":  {models.MediaFile, "audio/mpeg"},
	".ogg":  {models.MediaFile, "audio/ogg"},
}

// Extractor pulls embedded media references out of reply text. It is
// idempotent: running it over its own cleaned output extracts nothing.
type Extractor struct {
	// baseURL resolves short content codes. Empty disables code
	// extraction.
	baseURL string
}

// NewExtractor creates a media extractor. baseURL may be empty.
func NewExtractor(baseURL string) *Extractor {
	return &Extractor{baseURL: strings.TrimRight(baseURL, "/")}
}

// Extract removes every media reference from text and returns the
// cleaned text plus the de-duplicated items in order of appearance.
func (e *Extractor) Extract(text string) (string, []models.MediaItem) {
	var items []models.MediaItem
	seen := make(map[string]struct{})

	take := func(item models.MediaItem) {
		if _, dup := seen[item.URL]; dup {
			return
		}
		seen[item.URL] = struct{}{}
		items = append(items, item)
	}

	// Markdown image syntax always denotes media regardless of
	// extension.
	text = markdownImagePattern.ReplaceAllStringFunc(text, func(match string) string {
		url := markdownImagePattern.FindStringSubmatch(match)[1]
		item, ok := classifyURL(url)
		if !ok {
			item = models.MediaItem{Type: models.MediaImage, URL: url, MimeType: "image/jpeg"}
		}
		take(item)
		return ""
	})

	// Markdown links and bare URLs count only when the target has a
	// recognized media extension; other links stay for the markdown
	// stripper.
	text = markdownLinkPattern.ReplaceAllStringFunc(text, func(match string) string {
		url := markdownLinkPattern.FindStringSubmatch(match)[1]
		item, ok := classifyURL(url)
		if !ok {
			return match
		}
		take(item)
		return ""
	})
	text = bareURLPattern.ReplaceAllStringFunc(text, func(url string) string {
		item, ok := classifyURL(url)
		if !ok {
			return url
		}
		take(item)
		return ""
	})

	if e.baseURL != "" {
		text = e.extractContentCodes(text, take)
	}

	return tidyWhitespace(text), items
}

// extractContentCodes removes standalone content codes and resolves
// them against the base location. Codes embedded in a URL (payment
// short codes, path segments) belong to that link and are left alone.
func (e *Extractor) extractContentCodes(text string, take func(models.MediaItem)) string {
	urlSpans := bareURLPattern.FindAllStringIndex(text, -1)
	insideURL := func(start, end int) bool {
		for _, span := range urlSpans {
			if start >= span[0] && end <= span[1] {
				return true
			}
		}
		return false
	}

	var out strings.Builder
	last := 0
	for _, m := range contentCodePattern.FindAllStringIndex(text, -1) {
		code := text[m[0]:m[1]]
		if insideURL(m[0], m[1]) ||
			!strings.ContainsAny(code, "0123456789") ||
			!strings.ContainsAny(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			continue
		}
		take(models.MediaItem{
			Type:     models.MediaFile,
			URL:      e.baseURL + "/" + code,
			FileName: code,
		})
		out.WriteString(text[last:m[0]])
		last = m[1]
	}
	out.WriteString(text[last:])
	return out.String()
}

// classifyURL maps a URL to a typed media item by its extension.
func classifyURL(url string) (models.MediaItem, bool) {
	trimmed := strings.TrimRight(url, ".,;:!?")
	lower := strings.ToLower(trimmed)
	if q := strings.IndexAny(lower, "?#"); q >= 0 {
		lower = lower[:q]
	}
	dot := strings.LastIndex(lower, ".")
	if dot < 0 {
		return models.MediaItem{}, false
	}
	meta, ok := mediaExtensions[lower[dot:]]
	if !ok {
		return models.MediaItem{}, false
	}
	slash := strings.LastIndex(trimmed, "/")
	return models.MediaItem{
		Type:     meta.kind,
		URL:      trimmed,
		FileName: trimmed[slash+1:],
		MimeType: meta.mime,
	}, true
}

var (
	multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
	multiBlankPattern = regexp.MustCompile(`\n{3,}`)
)

// tidyWhitespace collapses the gaps extraction leaves behind.
func tidyWhitespace(text string) string {
	text = multiSpacePattern.ReplaceAllString(text, " ")
	text = multiBlankPattern.ReplaceAllString(text, "\n\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
