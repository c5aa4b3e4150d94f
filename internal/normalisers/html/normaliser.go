package html

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Parser = (*Normaliser)(nil)

// pageBreak separates pages in the intermediate text.
const pageBreak = "\f"

// Normaliser handles HTML filings and press releases.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Name returns the parser name.
func (n *Normaliser) Name() string {
	return "html"
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".htm", ".html", ".xhtml"}
}

// Parse converts an HTML document into pages of lines. Pages are split at
// CSS page breaks and <hr> rules; table rows become single lines with
// cells joined by " | ".
func (n *Normaliser) Parse(_ context.Context, r io.ReaderAt, size int64, meta domain.DocumentMeta) (*domain.Document, error) {
	raw, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	content := string(raw)

	title := meta.Title
	if title == "" {
		title = extractHTMLTitle(content)
	}

	return &domain.Document{
		ID:         meta.ID,
		Ticker:     meta.Ticker,
		Period:     meta.Period,
		FilingType: meta.FilingType,
		Title:      title,
		SourceURL:  meta.SourceURL,
		Pages:      splitPages(stripHTML(content)),
	}, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	rawWhitespace     = regexp.MustCompile(`[\r\n\t\f]+`)
	pageBreakStyle    = regexp.MustCompile(`(?i)<[a-z][^>]*style\s*=\s*["'][^"']*page-break-(?:before|after)\s*:\s*always[^"']*["'][^>]*>`)
	hrTags            = regexp.MustCompile(`(?i)<hr[^>]*>`)
	tableRow          = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	tableCell         = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// extractHTMLTitle returns the decoded <title> text, or "".
func extractHTMLTitle(content string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) > 1 {
		return collapse(html.UnescapeString(allTags.ReplaceAllString(matches[1], "")))
	}
	return ""
}

// stripHTML removes markup and returns text with one logical line per
// block element and form feeds at page breaks.
func stripHTML(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = rawWhitespace.ReplaceAllString(content, " ")

	content = pageBreakStyle.ReplaceAllString(content, "\n"+pageBreak+"\n")
	content = hrTags.ReplaceAllString(content, "\n"+pageBreak+"\n")

	content = tableRow.ReplaceAllStringFunc(content, func(row string) string {
		cells := tableCell.FindAllStringSubmatch(row, -1)
		texts := make([]string, 0, len(cells))
		for _, c := range cells {
			texts = append(texts, collapse(allTags.ReplaceAllString(c[1], " ")))
		}
		if len(texts) == 0 {
			return "\n"
		}
		return "\n" + strings.Join(texts, " | ") + "\n"
	})

	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	return html.UnescapeString(content)
}

// splitPages cuts text at form feeds. Each page keeps its non-blank lines
// with whitespace collapsed. Blank pages are dropped but still count
// towards page numbering.
func splitPages(text string) []domain.Page {
	var pages []domain.Page
	for i, raw := range strings.Split(text, pageBreak) {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if line = collapse(line); line != "" && !isEmptyRow(line) {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, domain.NewPage(i+1, lines))
		}
	}
	return pages
}

// isEmptyRow reports whether a line is only cell separators.
func isEmptyRow(line string) bool {
	return strings.Trim(line, "| ") == ""
}

func collapse(s string) string {
	return strings.TrimSpace(multiSpaces.ReplaceAllString(s, " "))
}
