package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studenttracker/tracker/core/attendance"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/teacher"
	testutil "github.com/studenttracker/tracker/tests"
)

const (
	sheetURL1 = "https://docs.google.com/spreadsheets/d/sheet-1"
	sheetURL2 = "https://docs.google.com/spreadsheets/d/sheet-2"
)

type fixtures struct {
	roster    []byte
	schedule  []byte
	teachers  []byte
	badRoster []byte
}

func newFixtures(t *testing.T) fixtures {
	return fixtures{
		roster: testutil.RosterWorkbook(t,
			[]string{"Иванов", "Иван", "Иванович", "ИУ7-1", "ИУ7-11Б", "", "+"},
			[]string{"Петров", "Пётр", "", "ИУ7-1", "ИУ7-12Б", "petrov@test.ru", ""},
			[]string{"Сидоров", "Сидор", "", "ИУ7-2", "ИУ7-21Б", "", ""},
		),
		schedule: testutil.JSON(t, []map[string]string{
			testutil.ScheduleEntry("01.09.2023 9:00:00", "Понедельник", "ИУ7-11Б", "Смирнов Сергей Петрович", "Математика"),
			testutil.ScheduleEntry("01.09.2023 9:00:00", "Понедельник", "ИУ7-11Б", "Смирнов Сергей Петрович", "Математика"),
			testutil.ScheduleEntry("01.09.2023 10:45:00", "Вторник", "ИУ7-12Б", "Смирнов Сергей Петрович", "Математика"),
			testutil.ScheduleEntry("02.09.2023 12:30:00", "Среда", "ИУ7-21Б", "Кузнецов Кирилл", "Физика"),
		}),
		teachers: testutil.JSON(t, []teacher.Entry{
			{FullName: "Смирнов Сергей Петрович", Email: "smirnov@test.ru"},
		}),
		badRoster: testutil.RosterWorkbook(t,
			[]string{"Иванов", "Иван", "", "ИУ7-1", "ИУ7-11Б", "", ""},
			[]string{"Петров", "", "", "ИУ7-1", "ИУ7-12Б", "", ""},
		),
	}
}

func TestHome(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "health", method: http.MethodGet, path: "/health", wantCode: http.StatusOK, wantData: []byte(`{"status":"ok"}`)},
		{name: "hello", method: http.MethodGet, path: "/api/hello", wantCode: http.StatusOK, wantData: []byte(`{"message":"Hello from StudentTracker!"}`)},
		{name: "trailing slash", method: http.MethodGet, path: "/api/hello/", wantCode: http.StatusOK, wantData: []byte(`{"message":"Hello from StudentTracker!"}`)},
		{name: "not found", method: http.MethodGet, path: "/api/lol", wantCode: http.StatusNotFound, wantData: []byte(`{"error":"Not Found"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tt.request(t)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestGenerateTables(t *testing.T) {
	app := setup(t)
	fx := newFixtures(t)

	wantResult := marchallObj(t, attendance.Result{
		"МатематикаИУ7-1": {sheetURL1},
		"ФизикаИУ7-2":     {sheetURL2},
	})
	missingStudents := marchallObj(t, map[string]string{
		"studentFile": `file "studentFile" is required`,
		"xlsxFile":    `file "xlsxFile" is required`,
	})
	missingSchedule := marchallObj(t, map[string]string{
		"scheduleFile": `file "scheduleFile" is required`,
		"jsonFile":     `file "jsonFile" is required`,
	})

	tests := []httpTest{
		{
			name:     "no multipart body",
			method:   http.MethodPost,
			path:     "/api/generateTables",
			wantCode: http.StatusBadRequest,
			wantData: missingStudents,
		},
		{
			name:     "schedule missing",
			path:     "/api/generateTables",
			files:    map[string][]byte{"studentFile": fx.roster},
			wantCode: http.StatusBadRequest,
			wantData: missingSchedule,
		},
		{
			name:     "invalid roster row",
			path:     "/api/generateTables",
			files:    map[string][]byte{"studentFile": fx.badRoster, "scheduleFile": fx.schedule},
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `row 3: sheet "Лист1": invalid roster row: name must not be blank`}),
		},
		{
			name:     "broken schedule",
			path:     "/api/generateTables",
			files:    map[string][]byte{"studentFile": fx.roster, "scheduleFile": []byte("[{")},
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "parsing schedule json: unexpected EOF"}),
		},
		{
			name:     "generate",
			path:     "/api/generateTables",
			files:    map[string][]byte{"studentFile": fx.roster, "scheduleFile": fx.schedule, "teachersFile": fx.teachers},
			wantCode: http.StatusOK,
			wantData: wantResult,
		},
		{
			name:     "generate again with legacy field names",
			path:     "/api/generateTables",
			files:    map[string][]byte{"xlsxFile": fx.roster, "jsonFile": fx.schedule},
			wantCode: http.StatusOK,
			wantData: wantResult,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tt.request(t)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the second run reused both stored links
	assert.Equal(t, []string{"МатематикаИУ7-1", "ФизикаИУ7-2"}, app.provider.Created)
	assert.Empty(t, app.provider.Deleted)

	math := app.provider.Spreadsheets["sheet-1"]
	assert.Equal(t, 17, math.Lessons)
	assert.ElementsMatch(t, []attendance.Permission{
		{Type: attendance.GranteeUser, Role: attendance.RoleWriter, Email: "smirnov@test.ru"},
		{Type: attendance.GranteeAnyone, Role: attendance.RoleWriter},
	}, math.Permissions)
	require.Len(t, math.Sheets, 2)
	assert.Equal(t, attendance.GroupSheet{
		Title:    "ИУ7-11Б",
		Students: []attendance.SheetStudent{{Name: "Иванов Иван Иванович", Headman: true}},
	}, math.Sheets[0])
	assert.Equal(t, "ИУ7-12Б", math.Sheets[1].Title)

	// the physics teacher is a placeholder: anyone with the link may edit
	physics := app.provider.Spreadsheets["sheet-2"]
	assert.Equal(t, []attendance.Permission{{Type: attendance.GranteeAnyone, Role: attendance.RoleWriter}}, physics.Permissions)

	schedules, err := app.scheduleRepo.QueryAllSchedules(context.Background())
	require.NoError(t, err)
	assert.Len(t, schedules, 3)
}

func TestGenerateTablesProviderFailure(t *testing.T) {
	fx := newFixtures(t)
	files := map[string][]byte{"studentFile": fx.roster, "scheduleFile": fx.schedule}

	tests := []httpTest{
		{
			name:     "create fails",
			path:     "/api/generateTables",
			files:    files,
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{
				Error: `generating attendance sheet (stream "ИУ7-1", subject "Математика"): external api creating spreadsheet: quota exceeded`,
			}),
			extra: "create",
		},
		{
			name:     "populate fails",
			path:     "/api/generateTables",
			files:    files,
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{
				Error: `generating attendance sheet (stream "ИУ7-1", subject "Математика"): external api populating sheets: quota exceeded`,
			}),
			extra: "populate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setup(t)
			app.provider.FailOn[tt.extra.(string)] = errors.New("quota exceeded")

			req, rec := tt.request(t)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			assert.Zero(t, app.provider.Live())
			links, err := app.linkRepo.FilterLinks(context.Background(), link.Filter{})
			require.NoError(t, err)
			assert.Empty(t, links)

			// imports committed before generation started
			students, err := app.rosterRepo.QueryAllStudents(context.Background())
			require.NoError(t, err)
			assert.Len(t, students, 3)
		})
	}
}

func TestGetFilteredLinks(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	math := link.TableLink{StreamName: "ИУ7-1", Subject: "Математика", TeacherName: "Смирнов Сергей Петрович", Link: sheetURL1}
	physics := link.TableLink{StreamName: "ИУ7-2", Subject: "Физика", TeacherName: "Кузнецов Кирилл", Link: sheetURL2}
	for _, l := range []link.TableLink{math, physics} {
		_, err := app.linkRepo.CreateLink(ctx, l)
		require.NoError(t, err)
	}

	query := func(params url.Values) string {
		return "/api/getFilteredLinks?" + params.Encode()
	}

	tests := []httpTest{
		{name: "no filter", path: "/api/getFilteredLinks", wantData: marchallObj(t, []link.TableLink{math, physics})},
		{name: "by stream", path: query(url.Values{"stream": {"иу7-1"}}), wantData: marchallObj(t, []link.TableLink{math})},
		{name: "by subject", path: query(url.Values{"subject": {"физ"}}), wantData: marchallObj(t, []link.TableLink{physics})},
		{name: "by teacher", path: query(url.Values{"teacher": {"СМИРНОВ"}}), wantData: marchallObj(t, []link.TableLink{math})},
		{name: "all fields", path: query(url.Values{"stream": {"ИУ7"}, "subject": {"мат"}, "teacher": {"сергей"}}), wantData: marchallObj(t, []link.TableLink{math})},
		{name: "no match", path: query(url.Values{"stream": {"ИУ7-1"}, "subject": {"Физика"}}), wantData: []byte(`[]`)},
		{name: "padded value", path: query(url.Values{"subject": {" Физика"}}), wantData: []byte(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			tt.wantCode = http.StatusOK
			req, rec := tt.request(t)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		app.db.FailOn("FilterLinks", errors.New("connection reset"))
		defer app.db.FailOn("FilterLinks", nil)

		tt := httpTest{
			method:   http.MethodGet,
			path:     query(url.Values{"subject": {"история"}}),
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}),
		}
		req, rec := tt.request(t)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func TestClearAllData(t *testing.T) {
	tests := []struct {
		name     string
		fault    string
		wantCode int
		wantBody string
		wantLeft int
	}{
		{name: "cleared", wantCode: http.StatusOK, wantBody: "All data has been cleared successfully"},
		{name: "rolled back", fault: "DeleteAllSchedules", wantCode: http.StatusInternalServerError, wantLeft: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setup(t)
			ctx := context.Background()

			gs := testutil.CreateGroupStream(t, app.rosterRepo, "ИУ7-11Б", "ИУ7-1")
			testutil.CreateStudent(t, app.rosterRepo, gs, "Иванов", "Иван", true)
			tchr := testutil.CreateTeacher(t, app.teacherRepo, "Смирнов Сергей Петрович", "smirnov@test.ru")
			testutil.CreateSchedule(t, app.scheduleRepo, tchr, "ИУ7-11Б", "Математика")
			_, err := app.linkRepo.CreateLink(ctx, link.TableLink{StreamName: "ИУ7-1", Subject: "Математика", Link: sheetURL1})
			require.NoError(t, err)

			if tt.fault != "" {
				app.db.FailOn(tt.fault, errors.New("disk full"))
			}

			req, rec := newRequest(http.MethodPost, "/api/clearAllData")
			app.server.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), "Failed to clear data")
			}

			app.db.FailOn(tt.fault, nil)
			students, err := app.rosterRepo.QueryAllStudents(ctx)
			require.NoError(t, err)
			assert.Len(t, students, tt.wantLeft)
			groupStreams, err := app.rosterRepo.QueryAllGroupStreams(ctx)
			require.NoError(t, err)
			assert.Len(t, groupStreams, tt.wantLeft)
			teachers, err := app.teacherRepo.QueryAllTeachers(ctx)
			require.NoError(t, err)
			assert.Len(t, teachers, tt.wantLeft)
			links, err := app.linkRepo.FilterLinks(ctx, link.Filter{})
			require.NoError(t, err)
			assert.Len(t, links, tt.wantLeft)
		})
	}
}

func TestImportEndpoints(t *testing.T) {
	app := setup(t)
	fx := newFixtures(t)

	tests := []httpTest{
		{
			name:     "students: no file",
			path:     "/api/importStudents",
			files:    map[string][]byte{"lol": fx.roster},
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"studentFile": `file "studentFile" is required`,
				"xlsxFile":    `file "xlsxFile" is required`,
			}),
		},
		{
			name:     "students: not a workbook",
			path:     "/api/importStudents",
			files:    map[string][]byte{"studentFile": []byte("lol")},
			wantCode: http.StatusBadRequest,
		},
		{name: "students", path: "/api/importStudents", files: map[string][]byte{"xlsxFile": fx.roster}, wantCode: http.StatusOK, wantData: []byte(`{"imported":3}`)},
		{name: "students again", path: "/api/importStudents", files: map[string][]byte{"studentFile": fx.roster}, wantCode: http.StatusOK, wantData: []byte(`{"imported":0}`)},
		{name: "teachers", path: "/api/importTeachers", files: map[string][]byte{"teachersFile": fx.teachers}, wantCode: http.StatusOK, wantData: []byte(`{"imported":1}`)},
		{name: "teachers again", path: "/api/importTeachers", files: map[string][]byte{"teachersFile": fx.teachers}, wantCode: http.StatusOK, wantData: []byte(`{"imported":0}`)},
		{
			name:     "schedule: unknown day",
			path:     "/api/importSchedule",
			files:    map[string][]byte{"scheduleFile": testutil.JSON(t, []map[string]string{testutil.ScheduleEntry("9:00", "Funday", "ИУ7-11Б", "Смирнов Сергей Петрович", "Математика")})},
			wantCode: http.StatusBadRequest,
		},
		{name: "schedule", path: "/api/importSchedule", files: map[string][]byte{"jsonFile": fx.schedule}, wantCode: http.StatusOK, wantData: []byte(`{"imported":3}`)},
		{name: "schedule again", path: "/api/importSchedule", files: map[string][]byte{"scheduleFile": fx.schedule}, wantCode: http.StatusOK, wantData: []byte(`{"imported":0}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tt.request(t)
			app.server.ServeHTTP(rec, req)
			if tt.wantData == nil {
				assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// the physics teacher was created as a placeholder
	teachers, err := app.teacherRepo.QueryAllTeachers(context.Background())
	require.NoError(t, err)
	assert.Len(t, teachers, 2)
}
