package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"waitline/internal/models"

	"github.com/xuri/excelize/v2"
)

// handleExport streams an xlsx workbook with every entry of a shop, done
// ones included.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	shopID, err := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	if err != nil || shopID <= 0 {
		writeError(w, http.StatusBadRequest, "shop_id is required")
		return
	}

	entries, err := s.engine.ListEntries(r.Context(), shopID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	f, err := buildWorkbook(entries)
	if err != nil {
		s.logger.Error().Err(err).Msg("export workbook build failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("export_shop_%d_%s.xlsx", shopID, time.Now().Format("2006-01-02"))
	if s.exportsPath != "" {
		s.saveExportCopy(f, fileName)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("export write failed")
	}
}

func buildWorkbook(entries []*models.Entry) (*excelize.File, error) {
	f := excelize.NewFile()

	sheetName := "Queue"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Name", "Phone", "Status", "Position", "Created At", "Updated At"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, style)

	for i, entry := range entries {
		row := i + 2
		values := []any{
			entry.ID,
			entry.Name,
			entry.Phone,
			entry.Status,
			"",
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			entry.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		if entry.Position != nil {
			values[4] = *entry.Position
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "G", 20)
	_ = f.DeleteSheet("Sheet1")

	return f, nil
}

// saveExportCopy keeps a copy of the workbook on disk, best effort.
func (s *HTTPServer) saveExportCopy(f *excelize.File, fileName string) {
	if err := os.MkdirAll(s.exportsPath, 0o755); err != nil {
		s.logger.Warn().Err(err).Msg("export directory create failed")
		return
	}
	path := filepath.Join(s.exportsPath, fileName)
	if err := f.SaveAs(path); err != nil {
		s.logger.Warn().Err(err).Str("file_path", path).Msg("export copy save failed")
		return
	}
	s.logger.Info().Str("file_path", path).Msg("export file created")
}
