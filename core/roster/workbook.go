package roster

import (
	"bytes"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/studenttracker/tracker/core"
)

const (
	colSurname = iota
	colName
	colPatronymic
	colStream
	colGroup
	colEmail
	colHeadman
	colCount
)

const (
	headerScanDepth = 10
	maxXLSRows      = 100000
)

var (
	// OLE2 compound document signature of legacy .xls files
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

	headerTitles = map[string]int{
		"фамилия":             colSurname,
		"surname":             colSurname,
		"last name":           colSurname,
		"lastname":            colSurname,
		"имя":                 colName,
		"name":                colName,
		"first name":          colName,
		"firstname":           colName,
		"отчество":            colPatronymic,
		"patronymic":          colPatronymic,
		"middle name":         colPatronymic,
		"поток":               colStream,
		"stream":              colStream,
		"группа":              colGroup,
		"group":               colGroup,
		"email":               colEmail,
		"e-mail":              colEmail,
		"почта":               colEmail,
		"электронная почта":   colEmail,
		"ст":                  colHeadman,
		"староста":            colHeadman,
		"headman":             colHeadman,
		"representative":      colHeadman,
		"is representative":   colHeadman,
		"представитель":       colHeadman,
		"староста группы":     colHeadman,
		"ст.":                 colHeadman,
		"email (опционально)": colEmail,
	}

	headmanMarkers = map[string]bool{
		"+": true, "да": true, "yes": true, "y": true, "true": true, "1": true, "x": true, "х": true,
	}
)

type sheetRows struct {
	name string
	rows [][]string
}

// ParseWorkbook reads every sheet of an .xlsx or .xls roster and returns its student rows.
// Rows are not validated here.
func ParseWorkbook(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, core.NewParseError("roster workbook", errors.Wrap(err, "reading upload"))
	}

	var sheets []sheetRows
	if bytes.HasPrefix(data, oleSignature) {
		sheets, err = readXLS(data)
	} else {
		sheets, err = readXLSX(data)
	}
	if err != nil {
		return nil, core.NewParseError("roster workbook", err)
	}

	var rows []Row
	for _, sheet := range sheets {
		rows = append(rows, sheetToRows(sheet)...)
	}
	return rows, nil
}

func readXLSX(data []byte) ([]sheetRows, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "opening xlsx")
	}
	defer func() { _ = file.Close() }()

	names := file.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("no worksheet found")
	}
	sheets := make([]sheetRows, 0, len(names))
	for _, name := range names {
		rows, err := file.GetRows(name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading sheet %q", name)
		}
		sheets = append(sheets, sheetRows{name: name, rows: rows})
	}
	return sheets, nil
}

func readXLS(data []byte) ([]sheetRows, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "opening xls")
	}
	if workbook.NumSheets() == 0 {
		return nil, errors.New("no worksheet found")
	}
	sheets := make([]sheetRows, 0, workbook.NumSheets())
	for i := 0; i < workbook.NumSheets(); i++ {
		sheet := workbook.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(sheet.MaxRow) && r < maxXLSRows; r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, sheetRows{name: sheet.Name, rows: rows})
	}
	return sheets, nil
}

// sheetToRows locates the header row and maps the cells below it.
// Without a recognizable header, the first row is skipped and the positional layout
// surname, name, patronymic, stream, group, email, marker is assumed.
func sheetToRows(sheet sheetRows) []Row {
	headerIdx, columns := findHeader(sheet.rows)
	if headerIdx < 0 {
		headerIdx = firstNonEmpty(sheet.rows)
		columns = positionalColumns()
	}
	if headerIdx < 0 {
		return nil
	}

	var rows []Row
	for i := headerIdx + 1; i < len(sheet.rows); i++ {
		cells := sheet.rows[i]
		if isBlank(cells) {
			continue
		}
		cell := func(col int) string {
			idx := columns[col]
			if idx < 0 || idx >= len(cells) {
				return ""
			}
			return core.CollapseSpaces(cells[idx])
		}
		row := Row{
			Sheet:      sheet.name,
			Index:      i + 1,
			Surname:    cell(colSurname),
			Name:       cell(colName),
			Patronymic: cell(colPatronymic),
			Stream:     cell(colStream),
			Group:      cell(colGroup),
			Email:      cell(colEmail),
			Headman:    headmanMarkers[strings.ToLower(cell(colHeadman))],
		}
		if row.Surname == "" && row.Name == "" && row.Stream == "" && row.Group == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func findHeader(rows [][]string) (int, []int) {
	for i := 0; i < len(rows) && i < headerScanDepth; i++ {
		columns := make([]int, colCount)
		for c := range columns {
			columns[c] = -1
		}
		matched := 0
		for idx, value := range rows[i] {
			col, ok := headerTitles[core.CleanString(value, true /* lower */)]
			if ok && columns[col] < 0 {
				columns[col] = idx
				matched++
			}
		}
		if matched >= 2 && columns[colSurname] >= 0 {
			return i, columns
		}
	}
	return -1, nil
}

func positionalColumns() []int {
	columns := make([]int, colCount)
	for c := range columns {
		columns[c] = c
	}
	return columns
}

func firstNonEmpty(rows [][]string) int {
	for i, cells := range rows {
		if !isBlank(cells) {
			return i
		}
	}
	return -1
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
