package collectors

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mainContentSelectors applies a best-effort article-body heuristic: try
// semantic containers first, fall back to the whole body.
var mainContentSelectors = []string{
	"article", "main", ".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
}

var noiseSelector = "script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner"

// ExtractArticleText extracts best-effort full-text from an HTML document,
// stripping chrome/ads/nav before walking the first matching content
// container. Falls back to "" (never panics) so the caller can fall back
// to the feed's own summary field (RSS collector).
func ExtractArticleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()

	var text strings.Builder
	for _, selector := range mainContentSelectors {
		found := false
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
				chunk := strings.TrimSpace(item.Text())
				if chunk != "" {
					text.WriteString(chunk)
					text.WriteString("\n\n")
				}
			})
		})
		if text.Len() > 0 {
			found = true
		}
		if found {
			break
		}
	}

	if text.Len() == 0 {
		doc.Find("body").Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
			chunk := strings.TrimSpace(item.Text())
			if chunk != "" {
				text.WriteString(chunk)
				text.WriteString("\n\n")
			}
		})
	}

	return strings.TrimSpace(text.String())
}

// ExtractTitle pulls the page <title>, falling back to the og:title meta
// tag when no title element is present.
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}
