package echoapi

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/attendance"
	"github.com/studenttracker/tracker/core/cleanup"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

// accepted multipart field names, preferred first
var (
	studentFileFields  = []string{"studentFile", "xlsxFile"}
	scheduleFileFields = []string{"scheduleFile", "jsonFile"}
	teacherFileFields  = []string{"teachersFile"}
)

const clearedMessage = "All data has been cleared successfully"

type trackerApi struct {
	logger      core.Logger
	rosterSvc   *roster.Service
	scheduleSvc *schedule.Service
	teacherSvc  *teacher.Service
	linkSvc     *link.Service
	sheetSvc    *attendance.Service
	cleanupSvc  *cleanup.Service
}

func registerTrackerAPI(g *echo.Group, deps ServerDeps) {
	api := trackerApi{
		logger:      deps.Logger,
		rosterSvc:   deps.RosterSvc,
		scheduleSvc: deps.ScheduleSvc,
		teacherSvc:  deps.TeacherSvc,
		linkSvc:     deps.LinkSvc,
		sheetSvc:    deps.SheetSvc,
		cleanupSvc:  deps.CleanupSvc,
	}

	g.GET("/hello", api.hello)
	g.POST("/generateTables", api.generateTables)
	g.GET("/getFilteredLinks", api.filterLinks)
	g.POST("/clearAllData", api.clearAllData)
	g.POST("/importStudents", api.importStudents)
	g.POST("/importSchedule", api.importSchedule)
	g.POST("/importTeachers", api.importTeachers)
}

type (
	ImportResponse struct {
		Imported int `json:"imported"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

// Handlers

func (api *trackerApi) hello(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Hello from StudentTracker!"})
}

func (api *trackerApi) generateTables(ctx echo.Context) error {
	students, err := formFile(ctx, studentFileFields...)
	if err != nil {
		return err
	}
	if students == nil {
		return newMissingFileError(studentFileFields...)
	}
	schedules, err := formFile(ctx, scheduleFileFields...)
	if err != nil {
		return err
	}
	if schedules == nil {
		return newMissingFileError(scheduleFileFields...)
	}
	teachers, err := formFile(ctx, teacherFileFields...)
	if err != nil {
		return err
	}

	// teachers first so schedule entries resolve to real emails
	result, err := api.sheetSvc.Run(ctx.Request().Context(), func(c context.Context) error {
		if teachers != nil {
			if _, err := importFile(c, teachers, api.teacherSvc.Import); err != nil {
				return err
			}
		}
		if _, err := importFile(c, students, api.importRoster); err != nil {
			return err
		}
		_, err := importFile(c, schedules, api.importSchedules)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "generating tables")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *trackerApi) filterLinks(ctx echo.Context) error {
	var filter link.Filter
	if err := ctx.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filter").SetInternal(err)
	}
	links, err := api.linkSvc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering links")
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *trackerApi) clearAllData(ctx echo.Context) error {
	if err := api.cleanupSvc.ClearAll(ctx.Request().Context()); err != nil {
		api.logger.Error("clearing data failed", err, requestInfo(ctx))
		return ctx.String(http.StatusInternalServerError, "Failed to clear data: "+err.Error())
	}
	return ctx.String(http.StatusOK, clearedMessage)
}

func (api *trackerApi) importStudents(ctx echo.Context) error {
	return api.importUpload(ctx, studentFileFields, api.importRoster)
}

func (api *trackerApi) importSchedule(ctx echo.Context) error {
	return api.importUpload(ctx, scheduleFileFields, api.importSchedules)
}

func (api *trackerApi) importTeachers(ctx echo.Context) error {
	return api.importUpload(ctx, teacherFileFields, api.teacherSvc.Import)
}

// Helpers

type importFunc func(ctx context.Context, r io.Reader) (int, error)

func (api *trackerApi) importUpload(ctx echo.Context, fields []string, fn importFunc) error {
	fh, err := formFile(ctx, fields...)
	if err != nil {
		return err
	}
	if fh == nil {
		return newMissingFileError(fields...)
	}
	n, err := importFile(ctx.Request().Context(), fh, fn)
	if err != nil {
		return errors.Wrapf(err, "importing %s", fh.Filename)
	}
	return ctx.JSON(http.StatusOK, ImportResponse{Imported: n})
}

func (api *trackerApi) importRoster(ctx context.Context, r io.Reader) (int, error) {
	students, err := api.rosterSvc.Import(ctx, r)
	return len(students), err
}

func (api *trackerApi) importSchedules(ctx context.Context, r io.Reader) (int, error) {
	schedules, err := api.scheduleSvc.Import(ctx, r)
	return len(schedules), err
}

func importFile(ctx context.Context, fh *multipart.FileHeader, fn importFunc) (int, error) {
	f, err := fh.Open()
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", fh.Filename)
	}
	defer func() { _ = f.Close() }()
	return fn(ctx, f)
}

// formFile returns the first uploaded file among fields, or nil when none was sent.
func formFile(ctx echo.Context, fields ...string) (*multipart.FileHeader, error) {
	for _, field := range fields {
		fh, err := ctx.FormFile(field)
		if err == nil {
			return fh, nil
		}
		if !(errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart)) {
			return nil, errors.Wrapf(err, "reading form file %q", field)
		}
	}
	return nil, nil
}
