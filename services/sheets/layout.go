package sheetsvc

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"

	"github.com/studenttracker/tracker/core/attendance"
)

const (
	fontFamily  = "Tahoma"
	fontSize    = 18
	columnWidth = 100

	headerCorner = "Неделя/Студент"
	headerRatio  = "%"
	headerCount  = "кол-во"
	totalLabel   = "Итого на паре:"

	// value counted as attendance in lesson cells
	presentMark = "1"
)

// all channels zero
var black = &sheets.Color{}

// sheetLayout computes cell positions of one group sheet.
// Row 0 is the header, students fill rows 1..n and row n+1 holds the totals.
type sheetLayout struct {
	sheetID  int64
	students int
	lessons  int
}

func (l sheetLayout) rowCount() int64    { return int64(l.students) + 2 }
func (l sheetLayout) columnCount() int64 { return int64(l.lessons) + 3 }

func (l sheetLayout) gridRange(startRow, endRow, startCol, endCol int64) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          l.sheetID,
		StartRowIndex:    startRow,
		EndRowIndex:      endRow,
		StartColumnIndex: startCol,
		EndColumnIndex:   endCol,
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

// columnName turns a 0-based column index into its A1 letters.
func columnName(idx int) (string, error) {
	name, err := excelize.ColumnNumberToName(idx + 1)
	return name, errors.Wrapf(err, "naming column %d", idx)
}

// lessonRange returns "B{row}:{last}{row}" for a 1-based sheet row.
func (l sheetLayout) lessonRange(row int) (string, error) {
	first, err := columnName(1)
	if err != nil {
		return "", err
	}
	last, err := columnName(l.lessons)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s%d", first, row, last, row), nil
}

// ratioFormula is the attendance percentage of the student on 1-based sheet row.
func (l sheetLayout) ratioFormula(row int) (string, error) {
	rng, err := l.lessonRange(row)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`=ROUND(100*(COUNTIF(%s,%s)/%d), 1) & "%%"`, rng, presentMark, l.lessons), nil
}

// countFormula is the number of attended lessons of the student on 1-based sheet row.
func (l sheetLayout) countFormula(row int) (string, error) {
	rng, err := l.lessonRange(row)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("=COUNTIF(%s,%s)", rng, presentMark), nil
}

// totalFormula counts the students present at the lesson in column col (0-based).
func (l sheetLayout) totalFormula(col int) (string, error) {
	name, err := columnName(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("=COUNTIF(%s2:%s%d,%s)", name, name, l.students+1, presentMark), nil
}

func stringCell(s string, bold bool) *sheets.CellData {
	return &sheets.CellData{
		UserEnteredValue:  &sheets.ExtendedValue{StringValue: &s},
		UserEnteredFormat: boldFormat(bold),
	}
}

func numberCell(n float64, bold bool) *sheets.CellData {
	return &sheets.CellData{
		UserEnteredValue:  &sheets.ExtendedValue{NumberValue: &n},
		UserEnteredFormat: boldFormat(bold),
	}
}

func formulaCell(f string, bold bool) *sheets.CellData {
	return &sheets.CellData{
		UserEnteredValue:  &sheets.ExtendedValue{FormulaValue: &f},
		UserEnteredFormat: boldFormat(bold),
	}
}

func boldFormat(bold bool) *sheets.CellFormat {
	return &sheets.CellFormat{
		TextFormat: &sheets.TextFormat{Bold: bold, ForceSendFields: []string{"Bold"}},
	}
}

// buildRequests returns the batch that names and fills one sheet per group.
// The first group reuses the spreadsheet's default sheet (id 0); sheet i gets id i.
func buildRequests(groups []attendance.GroupSheet, lessons int) ([]*sheets.Request, error) {
	var reqs []*sheets.Request
	for i, group := range groups {
		l := sheetLayout{sheetID: int64(i), students: len(group.Students), lessons: lessons}
		if i == 0 {
			reqs = append(reqs, &sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{SheetId: 0, Title: group.Title, ForceSendFields: []string{"SheetId"}},
				Fields:     "title",
			}})
		} else {
			reqs = append(reqs, &sheets.Request{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{SheetId: l.sheetID, Title: group.Title, Index: l.sheetID},
			}})
		}

		sheetReqs, err := l.requests(group)
		if err != nil {
			return nil, errors.Wrapf(err, "laying out sheet %q", group.Title)
		}
		reqs = append(reqs, sheetReqs...)
	}
	return reqs, nil
}

func (l sheetLayout) requests(group attendance.GroupSheet) ([]*sheets.Request, error) {
	rows, err := l.rows(group)
	if err != nil {
		return nil, err
	}

	all := l.gridRange(0, l.rowCount(), 0, l.columnCount())
	border := &sheets.Border{Style: "SOLID", Color: black}
	return []*sheets.Request{
		// default format of the whole table
		{RepeatCell: &sheets.RepeatCellRequest{
			Range: all,
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				TextFormat:          &sheets.TextFormat{FontFamily: fontFamily, FontSize: fontSize},
				HorizontalAlignment: "CENTER",
			}},
			Fields: "userEnteredFormat(textFormat,horizontalAlignment)",
		}},
		{UpdateCells: &sheets.UpdateCellsRequest{
			Rows:   rows,
			Start:  &sheets.GridCoordinate{SheetId: l.sheetID, ForceSendFields: []string{"SheetId", "RowIndex", "ColumnIndex"}},
			Fields: "userEnteredValue,userEnteredFormat.textFormat.bold",
		}},
		// names are left aligned
		{RepeatCell: &sheets.RepeatCellRequest{
			Range:  l.gridRange(0, l.rowCount(), 0, 1),
			Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{HorizontalAlignment: "LEFT"}},
			Fields: "userEnteredFormat.horizontalAlignment",
		}},
		{UpdateBorders: &sheets.UpdateBordersRequest{
			Range:           all,
			Top:             border,
			Bottom:          border,
			Left:            border,
			Right:           border,
			InnerHorizontal: border,
			InnerVertical:   border,
		}},
		{UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range: &sheets.DimensionRange{
				SheetId:         l.sheetID,
				Dimension:       "COLUMNS",
				StartIndex:      1,
				EndIndex:        l.columnCount(),
				ForceSendFields: []string{"SheetId"},
			},
			Properties: &sheets.DimensionProperties{PixelSize: columnWidth},
			Fields:     "pixelSize",
		}},
		{AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:         l.sheetID,
				Dimension:       "COLUMNS",
				StartIndex:      0,
				EndIndex:        1,
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
		}},
	}, nil
}

// rows renders the header, one row per student and the totals row.
func (l sheetLayout) rows(group attendance.GroupSheet) ([]*sheets.RowData, error) {
	rows := make([]*sheets.RowData, 0, l.rowCount())

	header := make([]*sheets.CellData, 0, l.columnCount())
	header = append(header, stringCell(headerCorner, true))
	for lesson := 1; lesson <= l.lessons; lesson++ {
		header = append(header, numberCell(float64(lesson), true))
	}
	header = append(header, stringCell(headerRatio, true), stringCell(headerCount, true))
	rows = append(rows, &sheets.RowData{Values: header})

	for i, std := range group.Students {
		sheetRow := i + 2
		ratio, err := l.ratioFormula(sheetRow)
		if err != nil {
			return nil, err
		}
		count, err := l.countFormula(sheetRow)
		if err != nil {
			return nil, err
		}

		cells := make([]*sheets.CellData, 0, l.columnCount())
		cells = append(cells, stringCell(strconv.Itoa(i+1)+". "+std.Name, std.Headman))
		for lesson := 1; lesson <= l.lessons; lesson++ {
			cells = append(cells, &sheets.CellData{})
		}
		cells = append(cells, formulaCell(ratio, std.Headman), formulaCell(count, std.Headman))
		rows = append(rows, &sheets.RowData{Values: cells})
	}

	total := make([]*sheets.CellData, 0, l.lessons+1)
	total = append(total, stringCell(totalLabel, true))
	for col := 1; col <= l.lessons; col++ {
		f, err := l.totalFormula(col)
		if err != nil {
			return nil, err
		}
		total = append(total, formulaCell(f, true))
	}
	rows = append(rows, &sheets.RowData{Values: total})
	return rows, nil
}
