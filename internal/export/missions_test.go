package export

import (
	"bytes"
	"testing"
	"time"

	"campusrun/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleMissions() []*models.Mission {
	runner := "runner-1"
	rating := 4
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []*models.Mission{
		{
			ID: "m1", Status: models.StatusCompleted, Type: "grocery", StudentID: "student-1", RunnerID: &runner,
			ItemCost: 10000, ServiceFee: 2000, PriceEstimate: 12000, PaymentMethod: "gcash",
			RunnerRating: &rating, CreatedAt: created, UpdatedAt: created.Add(time.Hour),
		},
		{
			ID: "m2", Status: models.StatusRequested, Type: "printing", StudentID: "student-2",
			ItemCost: 550, ServiceFee: 2000, AdditionalCost: 300, PriceEstimate: 2850,
			CreatedAt: created, UpdatedAt: created,
		},
	}
}

func TestWriteMissions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMissions(&buf, sampleMissions(), "PHP"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "m1", rows[1][0])
	assert.Equal(t, "runner-1", rows[1][4])
	assert.Equal(t, "4", rows[1][14])
	assert.Equal(t, "m2", rows[2][0])
	assert.Equal(t, "", rows[2][4])

	price, err := f.GetCellValue(sheetName, "K3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "28.5", price)

	formula, err := f.GetCellFormula(sheetName, "K5")
	require.NoError(t, err)
	assert.Equal(t, "SUM(K2:K3)", formula)
}

func TestSaveMissions(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveMissions(dir, nil, "PHP", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, path, "missions_20260302_100000.xlsx")
}
