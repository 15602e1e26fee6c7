package export

import (
	"bytes"
	"fmt"

	"worksafe-insights/internal/insights"

	"github.com/xuri/excelize/v2"
)

// LearningsHazardHeader 适用危害表头
var LearningsHazardHeader = []string{"Hazard", "Count"}

// LearningsControlHeader 未落实管控表头
var LearningsControlHeader = []string{"Control", "Not Implemented %"}

// LearningsReasonHeader 未落实原因表头
var LearningsReasonHeader = []string{"Reason", "Count"}

// GenerateLearningsWorkbook 生成 learnings 导出 Excel 文件
// 三个 sheet：适用危害、未落实管控、未落实原因；纯内存生成，不做 I/O
func GenerateLearningsWorkbook(
	hazards []insights.GroupCount,
	controls []insights.GroupPercent,
	reasons []insights.ReasonCount,
) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	if err := writeCountSheet(f, "Applicable Hazards", LearningsHazardHeader, hazards); err != nil {
		f.Close()
		return nil, err
	}
	if err := writePercentSheet(f, "Controls Not Implemented", controls); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeReasonSheet(f, "Reasons", reasons); err != nil {
		f.Close()
		return nil, err
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("Applicable Hazards"); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func newSheet(f *excelize.File, name string, headers []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, h); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
	}
	return nil
}

func writeCountSheet(f *excelize.File, name string, headers []string, rows []insights.GroupCount) error {
	if err := newSheet(f, name, headers); err != nil {
		return err
	}
	for i, row := range rows {
		rowN := i + 2
		if err := f.SetCellValue(name, fmt.Sprintf("A%d", rowN), row.Group.Name); err != nil {
			return err
		}
		if err := f.SetCellValue(name, fmt.Sprintf("B%d", rowN), row.Count); err != nil {
			return err
		}
	}
	return nil
}

func writePercentSheet(f *excelize.File, name string, rows []insights.GroupPercent) error {
	if err := newSheet(f, name, LearningsControlHeader); err != nil {
		return err
	}
	for i, row := range rows {
		rowN := i + 2
		if err := f.SetCellValue(name, fmt.Sprintf("A%d", rowN), row.Group.Name); err != nil {
			return err
		}
		if err := f.SetCellValue(name, fmt.Sprintf("B%d", rowN), row.Percent); err != nil {
			return err
		}
	}
	return nil
}

func writeReasonSheet(f *excelize.File, name string, rows []insights.ReasonCount) error {
	if err := newSheet(f, name, LearningsReasonHeader); err != nil {
		return err
	}
	for i, row := range rows {
		rowN := i + 2
		if err := f.SetCellValue(name, fmt.Sprintf("A%d", rowN), row.Reason); err != nil {
			return err
		}
		if err := f.SetCellValue(name, fmt.Sprintf("B%d", rowN), row.Count); err != nil {
			return err
		}
	}
	return nil
}
