package export

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/scanreader/internal/core/domain"
)

func TestExtractionReportXLSX(t *testing.T) {
	svc := NewService(slog.New(slog.DiscardHandler))

	records := []domain.PageTextRecord{
		{PageNumber: 1, RawText: "النص الأول", Origin: domain.OriginFromStore},
		{PageNumber: 3, RawText: "fresh text", Origin: domain.OriginFresh},
	}

	raw, err := svc.ExtractionReportXLSX("doc-1", 3, records)
	if err != nil {
		t.Fatalf("ExtractionReportXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Extraction")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// Header plus one row per page.
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "Page" || rows[0][1] != "Extracted" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][1] != "yes" || rows[1][2] != "from_store" {
		t.Fatalf("page 1 row = %v", rows[1])
	}
	if rows[2][1] != "no" {
		t.Fatalf("page 2 row = %v", rows[2])
	}
	if rows[3][1] != "yes" || rows[3][2] != "fresh" {
		t.Fatalf("page 3 row = %v", rows[3])
	}
}

func TestExtractionReportEmptyDocument(t *testing.T) {
	svc := NewService(nil)

	raw, err := svc.ExtractionReportXLSX("doc-1", 0, nil)
	if err != nil {
		t.Fatalf("ExtractionReportXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Extraction")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
