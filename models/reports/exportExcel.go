package reports

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter is one spreadsheet row.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

func buildWorkbook(sheetName string, headings []string, data []ExcelExporter) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, err
	}
	if len(headings) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, err
		}
		lastCell, err := excelize.CoordinatesToCellName(len(headings), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, "A1", lastCell, bold); err != nil {
			return nil, err
		}
	}

	// Add data
	for i, d := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := d.GetCellValues()
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteExcel streams an xlsx with one header row followed by data.
func WriteExcel(w io.Writer, sheetName string, headings []string, data []ExcelExporter) error {
	f, err := buildWorkbook(sheetName, headings, data)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func SaveExcel(filename string, sheetName string, headings []string, data []ExcelExporter) error {
	f, err := buildWorkbook(sheetName, headings, data)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
