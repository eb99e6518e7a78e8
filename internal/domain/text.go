package domain

import "golang.org/x/net/html"

// DisplayText decodes HTML entities for presentation. Never use it for scoring.
func DisplayText(raw string) string {
	return html.UnescapeString(raw)
}

// DisplayTexts decodes every entry of raw into a new slice.
func DisplayTexts(raw []string) []string {
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = DisplayText(s)
	}
	return out
}
