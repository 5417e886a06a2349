// Package goods implements price retrieval for product identifiers:
// identifier normalization, the rate-limited batch fetcher with its two
// retrieval strategies, and normalization of API price items into flat
// per-size records.
package goods

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// catalogPathRe matches the numeric id embedded in a product page URL,
	// e.g. https://www.wildberries.ru/catalog/115224606/detail.aspx
	catalogPathRe = regexp.MustCompile(`/catalog/(\d+)/detail\.aspx`)

	// digitRunRe matches the first run of six or more digits.
	digitRunRe = regexp.MustCompile(`\d{6,}`)
)

// NormalizeArticle reduces a raw identifier to a bare vendor code or
// marketplace id. URL-form identifiers yield the embedded numeric id;
// anything else is returned trimmed.
func NormalizeArticle(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "http") {
		if m := catalogPathRe.FindStringSubmatch(trimmed); m != nil {
			return m[1]
		}
		if m := digitRunRe.FindString(trimmed); m != "" {
			return m
		}
	}

	return trimmed
}

// NormalizeArticles normalizes a list of raw identifiers, preserving order.
func NormalizeArticles(raw []string) []string {
	cleaned := make([]string, 0, len(raw))
	for _, r := range raw {
		cleaned = append(cleaned, NormalizeArticle(r))
	}
	return cleaned
}

// SplitNumeric partitions normalized identifiers into marketplace id
// candidates (purely numeric) and the rest.
func SplitNumeric(articles []string) (numeric []int64, other []string) {
	for _, a := range articles {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil && a != "" {
			numeric = append(numeric, n)
		} else {
			other = append(other, a)
		}
	}
	return numeric, other
}
