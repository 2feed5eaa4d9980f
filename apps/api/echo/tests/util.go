package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/studenttracker/tracker/apps/api/echo"
	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/attendance"
	"github.com/studenttracker/tracker/core/cleanup"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
	cachesvc "github.com/studenttracker/tracker/services/cache"
	dummydb "github.com/studenttracker/tracker/storage/database/dummy"
	testutil "github.com/studenttracker/tracker/tests"
)

type testApp struct {
	server       *echoapi.Server
	db           *dummydb.DB
	provider     *testutil.FakeProvider
	rosterRepo   roster.Repository
	teacherRepo  teacher.Repository
	scheduleRepo schedule.Repository
	linkRepo     link.Repository
}

func setup(t *testing.T) testApp {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Server.DisableReqLogs = true
	logger := core.NopLogger{}
	translator := core.NewTranslator()
	validate := core.NewValidate(translator)

	// set up DB & repos
	db := dummydb.Open()
	app := testApp{
		db:           db,
		provider:     testutil.NewFakeProvider(),
		rosterRepo:   dummydb.NewRosterRepository(db),
		teacherRepo:  dummydb.NewTeacherRepository(db),
		scheduleRepo: dummydb.NewScheduleRepository(db),
		linkRepo:     dummydb.NewLinkRepository(db),
	}

	// set up services
	lock := new(sync.Mutex)
	teacherSvc := teacher.NewService(db, app.teacherRepo, validate, translator, logger, conf)
	linkSvc := link.NewService(app.linkRepo, cachesvc.NewMemoryCache(conf.Cache.Size, conf.Cache.TTL), logger)

	// set up server
	app.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		RosterSvc:   roster.NewService(db, app.rosterRepo, validate, translator, logger),
		ScheduleSvc: schedule.NewService(db, app.scheduleRepo, teacherSvc, validate, translator, logger),
		TeacherSvc:  teacherSvc,
		LinkSvc:     linkSvc,
		SheetSvc: attendance.NewService(
			db, app.rosterRepo, app.scheduleRepo, app.linkRepo, linkSvc, app.provider, lock, logger, conf,
		),
		CleanupSvc: cleanup.NewService(
			db, app.linkRepo, app.rosterRepo, app.scheduleRepo, app.teacherRepo, linkSvc, lock, logger,
		),
	})
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	files    map[string][]byte
	wantCode int
	wantData []byte
	extra    interface{}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

// newUploadRequest sends files as a multipart form, one part per field.
func newUploadRequest(t *testing.T, path string, files map[string][]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".upload")
		if err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
		if _, err = part.Write(data); err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	return req, rec
}

func (tt httpTest) request(t *testing.T) (*http.Request, *httptest.ResponseRecorder) {
	if tt.files != nil {
		return newUploadRequest(t, tt.path, tt.files)
	}
	return newRequest(tt.method, tt.path, tt.body)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
