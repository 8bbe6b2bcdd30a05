// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package leaderboard

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Leaderboard"

// ExportHeaders 导出表头
var ExportHeaders = []string{"Rank", "Name", "College", "Score", "Submission Time", "Submitted Weight (kg)"}

// WriteXLSX 将排行榜写为 xlsx
func WriteXLSX(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for i, h := range ExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"EEEEEE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	f.SetCellStyle(exportSheet, "A1", "F1", headerStyle)

	for i, e := range entries {
		submitted := "-"
		if e.SubmittedAt != nil {
			submitted = e.SubmittedAt.Format("2006-01-02 15:04:05")
		}
		var weight interface{} = "-"
		if e.WeightSubmitted != nil {
			weight = *e.WeightSubmitted
		}

		row := []interface{}{e.Rank, e.Name, e.College, e.Score, submitted, weight}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	f.SetColWidth(exportSheet, "A", "A", 8)
	f.SetColWidth(exportSheet, "B", "C", 25)
	f.SetColWidth(exportSheet, "D", "D", 10)
	f.SetColWidth(exportSheet, "E", "E", 22)
	f.SetColWidth(exportSheet, "F", "F", 22)

	return f.Write(w)
}
