package markup

import (
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/patrickmn/go-cache"
	"github.com/russross/blackfriday/v2"
)

var (
	textileHeading = regexp.MustCompile(`^h([1-6])\.\s+(.*)$`)
	textileStrong  = regexp.MustCompile(`\*([^*\n]+)\*`)
	textileEm      = regexp.MustCompile(`\b_([^_\n]+)_\b`)
	textileCode    = regexp.MustCompile(`@([^@\n]+)@`)

	restStrong = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	restEm     = regexp.MustCompile(`\*([^*\n]+)\*`)
	restCode   = regexp.MustCompile("``([^`\n]+)``")

	blankLines = regexp.MustCompile(`\n\s*\n`)
)

var markdownRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
	Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink,
})

// Render converts a body written in kind into HTML. Raw HTML in the input is
// never passed through.
func Render(kind Kind, body string) template.HTML {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	switch kind {
	case Markdown:
		out := blackfriday.Run([]byte(body),
			blackfriday.WithRenderer(markdownRenderer),
			blackfriday.WithExtensions(blackfriday.CommonExtensions),
		)
		return template.HTML(out)
	case Textile:
		return paragraphs(body, renderTextileBlock)
	case ReST:
		return paragraphs(body, renderReSTBlock)
	default:
		return paragraphs(strip.StripTags(body), func(block string) string {
			return "<p>" + lineBreaks(html.EscapeString(block)) + "</p>"
		})
	}
}

// PlainText renders the body and strips every tag, for email and previews
func PlainText(kind Kind, body string) string {
	text := strip.StripTags(string(Render(kind, body)))
	return strings.TrimSpace(html.UnescapeString(text))
}

func paragraphs(body string, block func(string) string) template.HTML {
	var b strings.Builder
	for _, p := range blankLines.Split(strings.TrimSpace(body), -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString(block(p))
		b.WriteByte('\n')
	}
	return template.HTML(b.String())
}

func renderTextileBlock(block string) string {
	if m := textileHeading.FindStringSubmatch(block); m != nil {
		return "<h" + m[1] + ">" + textileInline(m[2]) + "</h" + m[1] + ">"
	}
	if strings.HasPrefix(block, "bq. ") {
		return "<blockquote><p>" + lineBreaks(textileInline(block[4:])) + "</p></blockquote>"
	}
	return "<p>" + lineBreaks(textileInline(block)) + "</p>"
}

func textileInline(s string) string {
	s = html.EscapeString(s)
	s = textileCode.ReplaceAllString(s, "<code>$1</code>")
	s = textileStrong.ReplaceAllString(s, "<strong>$1</strong>")
	s = textileEm.ReplaceAllString(s, "<em>$1</em>")
	return s
}

func renderReSTBlock(block string) string {
	lines := strings.Split(block, "\n")
	// Section title: a line underlined with a repeated punctuation character
	if len(lines) == 2 && isUnderline(lines[1], len(lines[0])) {
		return "<h2>" + restInline(lines[0]) + "</h2>"
	}
	if strings.HasPrefix(block, "::") || strings.HasPrefix(block, "    ") {
		return "<pre>" + html.EscapeString(strings.TrimPrefix(block, "::")) + "</pre>"
	}
	return "<p>" + lineBreaks(restInline(block)) + "</p>"
}

func restInline(s string) string {
	s = html.EscapeString(s)
	s = restCode.ReplaceAllString(s, "<code>$1</code>")
	s = restStrong.ReplaceAllString(s, "<strong>$1</strong>")
	s = restEm.ReplaceAllString(s, "<em>$1</em>")
	return s
}

func isUnderline(line string, titleLen int) bool {
	line = strings.TrimSpace(line)
	if len(line) < 3 || len(line) < titleLen {
		return false
	}
	c := line[0]
	if !strings.ContainsRune("=-~^*#+", rune(c)) {
		return false
	}
	return strings.Count(line, string(c)) == len(line)
}

func lineBreaks(s string) string {
	return strings.ReplaceAll(s, "\n", "<br />\n")
}

// Renderer caches rendered bodies by key. Keys should change whenever the
// body changes, e.g. comment id plus modification time.
type Renderer struct {
	cache *cache.Cache
}

// NewRenderer creates a renderer whose entries expire after ttl
func NewRenderer(ttl time.Duration) *Renderer {
	return &Renderer{cache: cache.New(ttl, 2*ttl)}
}

// Render returns the cached HTML for key, rendering on a miss
func (r *Renderer) Render(key string, kind Kind, body string) template.HTML {
	if v, ok := r.cache.Get(key); ok {
		return v.(template.HTML)
	}
	out := Render(kind, body)
	r.cache.SetDefault(key, out)
	return out
}

// Forget drops a cached entry
func (r *Renderer) Forget(key string) {
	r.cache.Delete(key)
}

// Len returns the number of cached entries
func (r *Renderer) Len() int {
	return r.cache.ItemCount()
}
