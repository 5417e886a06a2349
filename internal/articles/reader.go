// Package articles reads product identifiers from the Articles.xlsx
// spreadsheet.
package articles

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// DefaultFileName is the conventional identifier spreadsheet name.
const DefaultFileName = "Articles.xlsx"

// searchDirs are the conventional locations checked when no explicit
// path is configured.
var searchDirs = []string{".", "data", "input"}

// Reader reads vendor codes from a spreadsheet. A missing file yields an
// empty list, not an error: the caller treats it as nothing to fetch.
type Reader struct {
	path   string
	logger zerolog.Logger
}

// NewReader creates a reader. path may be empty to use file discovery.
func NewReader(path string) *Reader {
	return &Reader{
		path:   path,
		logger: log.With().Str("component", "articles").Logger(),
	}
}

// Find locates the articles file in conventional locations. Returns ""
// when none exists.
func Find() string {
	for _, dir := range searchDirs {
		path := filepath.Join(dir, DefaultFileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Articles returns the ordered identifiers from the first column of the
// first sheet, skipping the header row and blanks.
func (r *Reader) Articles() ([]string, error) {
	path := r.path
	if path == "" {
		path = Find()
	} else if _, err := os.Stat(path); err != nil {
		path = ""
	}
	if path == "" {
		r.logger.Error().Str("file", DefaultFileName).Msg("Articles file not found")
		return nil, nil
	}

	r.logger.Info().Str("file", path).Msg("Reading articles")

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	var articles []string
	first := true
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		value := strings.TrimSpace(row[0])
		if value == "" {
			continue
		}
		if first {
			first = false
			if isHeader(value) {
				continue
			}
		}
		articles = append(articles, value)
	}

	r.logger.Info().Int("articles", len(articles)).Msg("Articles loaded")
	return articles, nil
}

// isHeader recognizes the column label on the first non-blank row.
func isHeader(value string) bool {
	switch strings.ToLower(value) {
	case "article", "articles", "vendor_code", "vendorcode", "артикул", "артикулы":
		return true
	}
	return false
}
