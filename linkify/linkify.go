// Package linkify turns plain-text URLs and e-mail addresses in chatbot
// replies into HTML anchors so the frontend can render them as clickable
// links.
package linkify

import (
	"fmt"
	"regexp"
	"strings"
)

const anchorStyle = "color: #0066cc; text-decoration: underline; font-weight: 500;"

// linkRE matches either an e-mail address or a URL-looking token. The e-mail
// alternative is listed first so an address is always consumed whole;
// otherwise the URL alternative would claim the domain half and leave a
// split address behind.
var linkRE = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}|(?:https?://)?(?:www\.)?[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}(?:/[^\s]*)?`)

// Rewrite converts every URL and e-mail address in text into an HTML anchor.
// Text without links comes back unchanged.
func Rewrite(text string) string {
	return linkRE.ReplaceAllStringFunc(text, func(match string) string {
		if strings.Contains(match, "@") {
			return emailAnchor(match)
		}
		return urlAnchor(match)
	})
}

func emailAnchor(email string) string {
	return fmt.Sprintf(`<a href="mailto:%s" style="%s">%s</a>`, email, anchorStyle, email)
}

func urlAnchor(url string) string {
	href := url
	if !strings.HasPrefix(url, "http") {
		switch {
		case strings.Contains(url, "www.vreg.gov.ng"):
			href = strings.ReplaceAll(url, "www.vreg.gov.ng", "https://vreg.gov.ng")
		case strings.Contains(url, "www.trade.gov.ng"):
			href = strings.ReplaceAll(url, "www.trade.gov.ng", "https://trade.gov.ng")
		case strings.HasPrefix(url, "www."):
			href = "https://" + url[4:]
		default:
			href = "https://" + url
		}
	}
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer" style="%s">%s</a>`, href, anchorStyle, url)
}
