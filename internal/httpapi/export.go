package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"maintscan/internal/models"
	"maintscan/internal/store"

	"github.com/xuri/excelize/v2"
)

// handleExport downloads the maintenance list as CSV or Excel, honoring the
// same status and search filters as the list endpoint.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	filter := store.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Page:   1,
		Limit:  500,
	}

	var all []models.MaintenanceRecord
	for {
		recs, _, err := h.Store.ListRecords(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		all = append(all, recs...)
		if len(recs) < filter.Limit {
			break
		}
		filter.Page++
	}

	headers := []string{"Maintenance No", "Item", "Customer", "Status", "Created At", "Updated At"}
	data := make([][]string, 0, len(all))
	for _, rec := range all {
		data = append(data, []string{
			rec.MaintenanceNo, rec.ItemName, rec.CustomerName,
			rec.Status, rec.CreatedAt, rec.UpdatedAt,
		})
	}

	if format == "xlsx" {
		exportExcel(w, "Maintenance", headers, data)
	} else {
		exportCSV(w, "maintenance.csv", headers, data)
	}
}

// exportCSV writes data to CSV format.
func exportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// exportExcel writes data to Excel format.
func exportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 20)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}
