package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dangbaokhoa/identity-card/internal/store"
)

// Service produces XLSX bytes for batch results: one row per processed
// card, canonical fields as columns.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RecordsXLSX returns an XLSX workbook (as bytes) for the given rows.
func (s *Service) RecordsXLSX(rows []store.RecordRow) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Records"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet excelize creates
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Source Image",
		"Full Name",
		"ID Number",
		"Date of Birth",
		"Sex",
		"Nationality",
		"Place of Origin",
		"Residence",
		"Expiry Date",
		"Old ID",
		"Issue Date",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for rowIdx, row := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
		rec := row.Record
		write(1, row.SourcePath)
		write(2, rec.FullName)
		write(3, rec.Number)
		write(4, rec.DateOfBirth)
		write(5, rec.Sex)
		write(6, rec.Nationality)
		write(7, rec.PlaceOfOrigin)
		write(8, rec.Residence)
		write(9, rec.ExpiryDate)
		write(10, rec.OldID)
		write(11, rec.IssueDate)
	}

	_ = f.SetColWidth(sheet, "A", "A", 40) // source path
	_ = f.SetColWidth(sheet, "B", "B", 28) // name
	_ = f.SetColWidth(sheet, "C", "C", 16) // id
	_ = f.SetColWidth(sheet, "G", "H", 44) // addresses

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
