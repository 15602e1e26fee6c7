package export

import (
	"bytes"
	"testing"

	"worksafe-insights/internal/insights"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateLearningsWorkbook(t *testing.T) {
	hazards := []insights.GroupCount{
		{Group: insights.GroupValue{ID: "haz-1", Name: "Fall from height"}, Count: 5},
		{Group: insights.GroupValue{ID: "haz-2", Name: "Struck by object"}, Count: 3},
	}
	controls := []insights.GroupPercent{
		{Group: insights.GroupValue{ID: "ctl-1", Name: "Hard barricade"}, Percent: 0.67, Denominator: 3},
	}
	reasons := []insights.ReasonCount{
		{Reason: "no materials", Count: 4},
	}

	data, err := GenerateLearningsWorkbook(hazards, controls, reasons)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"Applicable Hazards", "Controls Not Implemented", "Reasons"}, f.GetSheetList())

	rows, err := f.GetRows("Applicable Hazards")
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Hazard", "Count"},
		{"Fall from height", "5"},
		{"Struck by object", "3"},
	}, rows)

	rows, err = f.GetRows("Controls Not Implemented")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Hard barricade", rows[1][0])
	require.Equal(t, "0.67", rows[1][1])

	rows, err = f.GetRows("Reasons")
	require.NoError(t, err)
	require.Equal(t, []string{"no materials", "4"}, rows[1])
}

func TestGenerateLearningsWorkbook_Empty(t *testing.T) {
	data, err := GenerateLearningsWorkbook(nil, nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Applicable Hazards")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Hazard", "Count"}}, rows)
}
