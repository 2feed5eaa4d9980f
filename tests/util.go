package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/attendance"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

// RosterHeader is the header row produced by the roster generator.
var RosterHeader = []interface{}{"№", "Фамилия", "Имя", "Отчество", "Поток", "Группа", "Email", "СТ"}

// NewConfig returns the configuration used by tests without reading the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "StudentTracker",
		Sheets: core.SheetsConfig{
			LessonsCount: 17,
			PublicRole:   "writer",
		},
		Cache: core.CacheConfig{
			TTL:  10 * time.Minute,
			Size: 500,
		},
		Import: core.ImportConfig{
			TeacherIdentity:         core.TeacherIdentityName,
			PlaceholderTeacherEmail: "studenttrackerteachertest@gmail.com",
		},
	}
}

// Workbook builds an .xlsx file with one sheet per entry of sheets; each row is written as is.
func Workbook(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				t.Fatalf("Workbook() failed: %v", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("Workbook() failed: %v", err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("Workbook() failed: %v", err)
			}
			if err = f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("Workbook() failed: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Workbook() failed: %v", err)
	}
	return buf.Bytes()
}

// RosterWorkbook builds a single-sheet roster with the generator's header and numbered rows.
// Each row is surname, name, patronymic, stream, group, email, marker.
func RosterWorkbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	data := [][]interface{}{RosterHeader}
	for i, r := range rows {
		row := []interface{}{i + 1}
		for _, v := range r {
			row = append(row, v)
		}
		data = append(data, row)
	}
	return Workbook(t, map[string][][]interface{}{"Лист1": data})
}

// ScheduleEntry renders one schedule JSON object.
func ScheduleEntry(start, day, group, teacherName, subject string) map[string]string {
	return map[string]string{
		"ВремяНачала":    start,
		"ДеньНедели":     day,
		"Группа":         group,
		"ФизическоеЛицо": teacherName,
		"Дисциплина":     subject,
	}
}

func JSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("JSON() failed: %v", err)
	}
	return data
}

func CreateGroupStream(t *testing.T, repo roster.Repository, group, stream string) roster.GroupStream {
	t.Helper()
	gs, err := repo.CreateGroupStream(context.Background(), roster.GroupStream{GroupName: group, StreamName: stream})
	if err != nil {
		t.Fatalf("CreateGroupStream() failed: %v", err)
	}
	return gs
}

func CreateStudent(t *testing.T, repo roster.Repository, gs roster.GroupStream, surname, name string, headman bool) roster.Student {
	t.Helper()
	ctx := context.Background()
	std, err := repo.CreateStudent(ctx, roster.Student{Surname: surname, Name: name, GroupStreamID: gs.ID})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	if headman {
		if err = repo.SetHeadman(ctx, gs.ID, std.ID); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	return std
}

func CreateTeacher(t *testing.T, repo teacher.Repository, fullName, email string) teacher.Teacher {
	t.Helper()
	created, err := repo.CreateTeachers(context.Background(), []teacher.Teacher{{FullName: fullName, Email: email}})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return created[0]
}

func CreateSchedule(t *testing.T, repo schedule.Repository, tchr teacher.Teacher, group, subject string) schedule.Schedule {
	t.Helper()
	created, err := repo.CreateSchedules(context.Background(), []schedule.Schedule{{
		StartTime: "09:00:00",
		DayOfWeek: schedule.Monday,
		GroupName: group,
		Subject:   subject,
		TeacherID: tchr.ID,
	}})
	if err != nil {
		t.Fatalf("CreateSchedule() failed: %v", err)
	}
	return created[0]
}

type (
	// FakeProvider records spreadsheet calls in memory.
	FakeProvider struct {
		mu           sync.Mutex
		seq          int
		Created      []string // titles, in creation order
		Spreadsheets map[string]FakeSpreadsheet
		Deleted      []string
		// FailOn makes the named method fail: "create", "share", "populate" or "delete".
		FailOn map[string]error
	}

	FakeSpreadsheet struct {
		Title       string
		URL         string
		Permissions []attendance.Permission
		Sheets      []attendance.GroupSheet
		Lessons     int
	}
)

var _ attendance.Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Spreadsheets: make(map[string]FakeSpreadsheet),
		FailOn:       make(map[string]error),
	}
}

func (p *FakeProvider) CreateSpreadsheet(_ context.Context, title string) (attendance.Spreadsheet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailOn["create"]; err != nil {
		return attendance.Spreadsheet{}, core.NewExternalAPIError("creating spreadsheet", err)
	}
	p.seq++
	id := fmt.Sprintf("sheet-%d", p.seq)
	ss := FakeSpreadsheet{Title: title, URL: "https://docs.google.com/spreadsheets/d/" + id}
	p.Spreadsheets[id] = ss
	p.Created = append(p.Created, title)
	return attendance.Spreadsheet{ID: id, URL: ss.URL}, nil
}

func (p *FakeProvider) Share(_ context.Context, spreadsheetID string, perms ...attendance.Permission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailOn["share"]; err != nil {
		return err
	}
	ss := p.Spreadsheets[spreadsheetID]
	ss.Permissions = append(ss.Permissions, perms...)
	p.Spreadsheets[spreadsheetID] = ss
	return nil
}

func (p *FakeProvider) PopulateSheets(_ context.Context, spreadsheetID string, sheets []attendance.GroupSheet, lessons int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailOn["populate"]; err != nil {
		return err
	}
	ss := p.Spreadsheets[spreadsheetID]
	ss.Sheets = sheets
	ss.Lessons = lessons
	p.Spreadsheets[spreadsheetID] = ss
	return nil
}

func (p *FakeProvider) DeleteSpreadsheet(_ context.Context, spreadsheetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailOn["delete"]; err != nil {
		return err
	}
	delete(p.Spreadsheets, spreadsheetID)
	p.Deleted = append(p.Deleted, spreadsheetID)
	return nil
}

// Live returns the number of spreadsheets not deleted.
func (p *FakeProvider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Spreadsheets)
}

// Reader wraps data for upload-style APIs.
func Reader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}
