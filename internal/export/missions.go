package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"campusrun/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Missions"

var headers = []string{
	"ID", "Status", "Type", "Student", "Runner", "Pickup", "Dropoff",
	"Item Cost", "Service Fee", "Additional Cost", "Price Estimate",
	"Payment Method", "Payment Ref", "Student Rating", "Runner Rating",
	"Created At", "Updated At",
}

// WriteMissions renders missions as an XLSX workbook. Amounts are converted
// from minor units to currency units.
func WriteMissions(w io.Writer, missions []*models.Mission, currency string) error {
	f, err := build(missions, currency)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveMissions writes the report under dir and returns the file path.
func SaveMissions(dir string, missions []*models.Mission, currency string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(missions, currency)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(dir, fmt.Sprintf("missions_%s.xlsx", now.Format("20060102_150405")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func build(missions []*models.Mission, currency string) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for r, m := range missions {
		row := r + 2
		values := []interface{}{
			m.ID, m.Status, m.Type, m.StudentID, m.Runner(), m.PickupAddress, m.DropoffAddress,
			toUnits(m.ItemCost), toUnits(m.ServiceFee), toUnits(m.AdditionalCost), toUnits(m.PriceEstimate),
			m.PaymentMethod, deref(m.PaymentRef), ratingValue(m.StudentRating), ratingValue(m.RunnerRating),
			m.CreatedAt.Format("2006-01-02 15:04"), m.UpdatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}

		from, _ := excelize.CoordinatesToCellName(8, row)
		to, _ := excelize.CoordinatesToCellName(11, row)
		_ = f.SetCellStyle(sheetName, from, to, moneyStyle)
	}

	totalRow := len(missions) + 3
	labelCell, _ := excelize.CoordinatesToCellName(10, totalRow)
	_ = f.SetCellValue(sheetName, labelCell, "Total ("+currency+")")
	if len(missions) > 0 {
		totalCell, _ := excelize.CoordinatesToCellName(11, totalRow)
		_ = f.SetCellFormula(sheetName, totalCell, fmt.Sprintf("SUM(K2:K%d)", len(missions)+1))
		_ = f.SetCellStyle(sheetName, totalCell, totalCell, moneyStyle)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "G", 22)
	_ = f.SetColWidth(sheetName, "H", "Q", 16)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, Split: false, XSplit: 0, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

func toUnits(minor int64) float64 {
	return float64(minor) / 100
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ratingValue(r *int) interface{} {
	if r == nil {
		return ""
	}
	return *r
}
