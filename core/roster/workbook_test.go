package roster_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/roster"
	testutil "github.com/studenttracker/tracker/tests"
)

func TestParseWorkbook(t *testing.T) {
	tests := []struct {
		name   string
		sheets map[string][][]interface{}
		want   []roster.Row
	}{
		{
			name: "numbered header",
			sheets: map[string][][]interface{}{"Лист1": {
				testutil.RosterHeader,
				{1, "Иванов", "Иван", "Иванович", "ИУ7-1", "ИУ7-11Б", "ivanov@test.ru", "+"},
				{2, "Петров", "  Пётр ", "", "ИУ7-1", "ИУ7-11Б"},
			}},
			want: []roster.Row{
				{Sheet: "Лист1", Index: 2, Surname: "Иванов", Name: "Иван", Patronymic: "Иванович", Stream: "ИУ7-1", Group: "ИУ7-11Б", Email: "ivanov@test.ru", Headman: true},
				{Sheet: "Лист1", Index: 3, Surname: "Петров", Name: "Пётр", Stream: "ИУ7-1", Group: "ИУ7-11Б"},
			},
		},
		{
			name: "english header below a title, reordered columns",
			sheets: map[string][][]interface{}{"Sheet1": {
				{"Group roster"},
				{},
				{"Group", "Stream", "Surname", "Name", "Representative"},
				{"ИУ7-12Б", "ИУ7-1", "Сидоров", "Сидор", "да"},
				{"ИУ7-12Б", "ИУ7-1", "Смирнова", "Анна", "нет"},
			}},
			want: []roster.Row{
				{Sheet: "Sheet1", Index: 4, Surname: "Сидоров", Name: "Сидор", Stream: "ИУ7-1", Group: "ИУ7-12Б", Headman: true},
				{Sheet: "Sheet1", Index: 5, Surname: "Смирнова", Name: "Анна", Stream: "ИУ7-1", Group: "ИУ7-12Б"},
			},
		},
		{
			name: "positional layout",
			sheets: map[string][][]interface{}{"Лист1": {
				{"Студенты"},
				{"Кузнецов", "Кирилл", "", "ИУ7-2", "ИУ7-21Б", "", "X"},
				{},
				{"Козлов", "Олег", "Олегович", "ИУ7-2", "ИУ7-21Б"},
			}},
			want: []roster.Row{
				{Sheet: "Лист1", Index: 2, Surname: "Кузнецов", Name: "Кирилл", Stream: "ИУ7-2", Group: "ИУ7-21Б", Headman: true},
				{Sheet: "Лист1", Index: 4, Surname: "Козлов", Name: "Олег", Patronymic: "Олегович", Stream: "ИУ7-2", Group: "ИУ7-21Б"},
			},
		},
		{
			name: "numbered rows without names are skipped",
			sheets: map[string][][]interface{}{"Лист1": {
				testutil.RosterHeader,
				{1, "Иванов", "Иван", "", "ИУ7-1", "ИУ7-11Б"},
				{2},
				{3},
			}},
			want: []roster.Row{
				{Sheet: "Лист1", Index: 2, Surname: "Иванов", Name: "Иван", Stream: "ИУ7-1", Group: "ИУ7-11Б"},
			},
		},
		{
			name:   "empty sheet",
			sheets: map[string][][]interface{}{"Лист1": {}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := roster.ParseWorkbook(bytes.NewReader(testutil.Workbook(t, tt.sheets)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestParseWorkbookSheets(t *testing.T) {
	data := testutil.Workbook(t, map[string][][]interface{}{
		"ИУ7-11Б": {testutil.RosterHeader, {1, "Иванов", "Иван", "", "ИУ7-1", "ИУ7-11Б"}},
		"ИУ7-12Б": {testutil.RosterHeader, {1, "Петров", "Пётр", "", "ИУ7-1", "ИУ7-12Б"}},
	})

	rows, err := roster.ParseWorkbook(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.ElementsMatch(t, []string{"ИУ7-11Б", "ИУ7-12Б"}, []string{rows[0].Sheet, rows[1].Sheet})
}

func TestParseWorkbookInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not a workbook", data: []byte("surname,name\nИванов,Иван")},
		{name: "empty", data: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := roster.ParseWorkbook(bytes.NewReader(tt.data))
			var pErr *core.ParseError
			assert.ErrorAs(t, err, &pErr)
		})
	}
}
