package markdown

import (
	"bytes"
	"html/template"
	"math"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// WordsPerMinute is the reading speed used by ReadingTime.
const WordsPerMinute = 200

// Articles are authored in-house and may carry raw HTML blocks.
var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(),
	),
)

var (
	headingLine      = regexp.MustCompile(`^##\s+`)
	editorialHeading = regexp.MustCompile(`(?i)^##\s+image (placement instructions|guidance)\b`)
	blankRuns        = regexp.MustCompile(`\n{3,}`)
)

// encodingArtifacts maps UTF-8 text that was decoded as Windows-1252 back to
// the intended punctuation. Order matters: longer sequences first.
var encodingArtifacts = strings.NewReplacer(
	"â€œ", "“",
	"â€˜", "‘",
	"â€™", "’",
	"â€”", "—",
	"â€“", "–",
	"â€¦", "…",
	"â€¢", "•",
	"â†’", "→",
	"â€", "”",
	"€œ", "“",
	"€\u009d", "”",
	"€\u009c", "“",
	"€˜", "‘",
	"€™", "’",
	"€”", "—",
	"€“", "–",
	"€", "”",
	"†’", "→",
	"Â", "",
)

// RenderMarkdownContent converts markdown to HTML. On a render failure the
// escaped source is returned so a broken article never breaks a listing.
func RenderMarkdownContent(markdownText string) string {
	text := strings.TrimSpace(markdownText)
	if text == "" {
		return ""
	}

	var out bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &out); err != nil {
		return template.HTMLEscapeString(text)
	}
	return out.String()
}

// NormalizeEncoding repairs common mojibake sequences.
func NormalizeEncoding(text string) string {
	return encodingArtifacts.Replace(text)
}

// StripEditorialBlocks removes "## Image placement instructions" and
// "## Image guidance" sections up to the next level-two heading.
func StripEditorialBlocks(text string) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	b.Grow(len(text))

	skipping := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if editorialHeading.MatchString(trimmed) {
			skipping = true
			continue
		}
		if skipping && headingLine.MatchString(trimmed) {
			skipping = false
		}
		if !skipping {
			b.WriteString(line)
		}
	}
	return blankRuns.ReplaceAllString(b.String(), "\n\n")
}

// ReadingTime estimates minutes to read text, never less than one.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
