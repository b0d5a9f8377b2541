package api

import (
	"fmt"
	"net/http"
	"time"

	"wearlog/internal/metrics"
	"wearlog/internal/models"

	"github.com/xuri/excelize/v2"
)

// handleExport streams the wear/wash history as an XLSX workbook: one
// sheet per event kind, items down the rows, days across the columns.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("/api/v1/export")

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.db.GetActiveItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load items")
		return
	}
	wearEvents, err := s.db.GetWearEvents(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	washEvents, err := s.db.GetWashEvents(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	wearCounts := countByItemAndDate(wearEvents)
	washGrid := make([]models.WearEvent, len(washEvents))
	for i, e := range washEvents {
		washGrid[i] = models.WearEvent(e)
	}
	washCounts := countByItemAndDate(washGrid)

	f := excelize.NewFile()
	defer f.Close()

	dates, err := dateRange(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := writeGridSheet(f, "Wear", items, dates, wearCounts); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	if err := writeGridSheet(f, "Wash", items, dates, washCounts); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	// Drop the default sheet excelize creates.
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("Wear"); err == nil {
		f.SetActiveSheet(idx)
	}

	filename := fmt.Sprintf("wearlog_%s_%s.xlsx", from, to)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Msg("write export")
	}
}

func countByItemAndDate(events []models.WearEvent) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for _, e := range events {
		if counts[e.ItemID] == nil {
			counts[e.ItemID] = make(map[string]int)
		}
		counts[e.ItemID][e.Date]++
	}
	return counts
}

func dateRange(from, to string) ([]string, error) {
	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %s", from)
	}
	end, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %s", to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s before start %s", to, from)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(models.DateLayout))
	}
	return dates, nil
}

func writeGridSheet(f *excelize.File, name string, items []models.Item, dates []string, counts map[string]map[string]int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	if err := f.SetCellValue(name, "A1", "Item"); err != nil {
		return err
	}
	if err := f.SetCellValue(name, "B1", "Total"); err != nil {
		return err
	}
	for i, date := range dates {
		col, err := excelize.ColumnNumberToName(i + 3)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, col+"1", date); err != nil {
			return err
		}
	}

	for row, item := range items {
		rowNum := row + 2
		if err := f.SetCellValue(name, fmt.Sprintf("A%d", rowNum), item.Name); err != nil {
			return err
		}
		total := 0
		for col, date := range dates {
			n := counts[item.ID][date]
			if n == 0 {
				continue
			}
			total += n
			colName, err := excelize.ColumnNumberToName(col + 3)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, fmt.Sprintf("%s%d", colName, rowNum), n); err != nil {
				return err
			}
		}
		if err := f.SetCellValue(name, fmt.Sprintf("B%d", rowNum), total); err != nil {
			return err
		}
	}
	return nil
}
