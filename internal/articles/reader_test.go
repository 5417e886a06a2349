package articles

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeArticlesFile(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	for i, row := range rows {
		for j, value := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := f.SetCellValue("Sheet1", cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save articles file: %v", err)
	}
	return path
}

func TestArticles_SkipsHeaderAndBlanks(t *testing.T) {
	path := writeArticlesFile(t, [][]any{
		{"Артикул"},
		{"ABC-001"},
		{""},
		{"115224606"},
	})

	got, err := NewReader(path).Articles()
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}

	want := []string{"ABC-001", "115224606"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Articles() = %v, want %v", got, want)
	}
}

// A leading blank row must not shield the header label from detection.
func TestArticles_HeaderAfterBlankRow(t *testing.T) {
	path := writeArticlesFile(t, [][]any{
		{""},
		{"Артикул"},
		{"ABC-001"},
	})

	got, err := NewReader(path).Articles()
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}

	want := []string{"ABC-001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Articles() = %v, want %v", got, want)
	}
}

func TestArticles_NoHeaderRow(t *testing.T) {
	path := writeArticlesFile(t, [][]any{
		{"ABC-001"},
		{"ABC-002"},
	})

	got, err := NewReader(path).Articles()
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}

	if len(got) != 2 {
		t.Errorf("Articles() = %v, want both data rows", got)
	}
}

func TestArticles_NumericCellsReadAsStrings(t *testing.T) {
	path := writeArticlesFile(t, [][]any{
		{"article"},
		{115224606},
	})

	got, err := NewReader(path).Articles()
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}

	want := []string{"115224606"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Articles() = %v, want %v", got, want)
	}
}

// A missing file is "nothing to fetch", not an error.
func TestArticles_MissingFile(t *testing.T) {
	got, err := NewReader(filepath.Join(t.TempDir(), "absent.xlsx")).Articles()
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Articles() = %v, want empty", got)
	}
}
