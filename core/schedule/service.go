package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/teacher"
)

type (
	Repository interface {
		QueryAllSchedules(ctx context.Context, exec ...core.DBExecutor) ([]Schedule, error)
		CreateSchedules(ctx context.Context, schedules []Schedule, exec ...core.DBExecutor) ([]Schedule, error)
		// QuerySubjectsByGroups returns the distinct subjects taught to any of groups, sorted.
		QuerySubjectsByGroups(ctx context.Context, groups []string, exec ...core.DBExecutor) ([]string, error)
		// QueryTeachersBySubject returns the distinct teachers of subject for any of groups, sorted by name.
		QueryTeachersBySubject(ctx context.Context, groups []string, subject string, exec ...core.DBExecutor) ([]teacher.Teacher, error)
		DeleteAllSchedules(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}

	// TeacherResolver finds a teacher by full name, creating it when absent.
	TeacherResolver interface {
		Resolve(ctx context.Context, fullName string, exec ...core.DBExecutor) (teacher.Teacher, error)
	}

	Service struct {
		db         core.DB
		repo       Repository
		teachers   TeacherResolver
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	teachers TeacherResolver,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		teachers:   teachers,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

var errInvalidEntry = errors.New("invalid schedule entry")

type parsedEntry struct {
	Entry
	day       DayOfWeek
	startTime string
}

// Import parses a schedule JSON array and inserts the lesson slots not stored yet.
// Teachers missing from the store are created as placeholders. Returns the inserted schedules.
func (svc *Service) Import(ctx context.Context, r io.Reader) ([]Schedule, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, core.NewParseError("schedule json", err)
	}

	parsed := make([]parsedEntry, 0, len(entries))
	for i, e := range entries {
		pe, err := svc.parseEntry(i+1, e)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, pe)
	}

	var inserted []Schedule
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		stored, err := svc.repo.QueryAllSchedules(ctx, tx)
		if err != nil {
			return core.NewDatabaseError("querying schedules", err)
		}
		keys := make(map[string]bool, len(stored)+len(parsed))
		for _, s := range stored {
			keys[s.Key()] = true
		}

		resolved := make(map[string]teacher.Teacher)
		var fresh []Schedule
		for i, pe := range parsed {
			t, ok := resolved[pe.Teacher]
			if !ok {
				if t, err = svc.teachers.Resolve(ctx, pe.Teacher, tx); err != nil {
					return core.NewDatabaseError(fmt.Sprintf("resolving teacher of entry %d", i+1), err)
				}
				resolved[pe.Teacher] = t
			}

			s := Schedule{
				StartTime:   pe.startTime,
				DayOfWeek:   pe.day,
				GroupName:   pe.Group,
				Subject:     pe.Subject,
				TeacherID:   t.ID,
				TeacherName: t.FullName,
			}
			if keys[s.Key()] {
				continue
			}
			keys[s.Key()] = true
			fresh = append(fresh, s)
		}
		if len(fresh) == 0 {
			return nil
		}

		if inserted, err = svc.repo.CreateSchedules(ctx, fresh, tx); err != nil {
			return core.NewDatabaseError("creating schedules", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info(fmt.Sprintf("schedule imported: %d entries, %d new", len(entries), len(inserted)))
	return inserted, nil
}

func (svc *Service) parseEntry(idx int, e Entry) (parsedEntry, error) {
	e.StartTime = core.CleanString(e.StartTime)
	e.Group = core.CollapseSpaces(e.Group)
	e.Teacher = core.CollapseSpaces(e.Teacher)
	e.Subject = core.CollapseSpaces(e.Subject)

	if err := svc.validate.Struct(e); err != nil {
		flds := core.FieldErrors(err, svc.translator)
		if flds == nil {
			return parsedEntry{}, errors.Wrap(err, "validating schedule entry")
		}
		return parsedEntry{}, core.NewRowValidationError(idx, errInvalidEntry, flds...)
	}

	day, err := ParseDayOfWeek(e.DayOfWeek)
	if err != nil {
		return parsedEntry{}, core.NewRowValidationError(idx, errInvalidEntry,
			core.FieldError{Field: "ДеньНедели", Error: err.Error()})
	}
	startTime, err := ParseStartTime(e.StartTime)
	if err != nil {
		return parsedEntry{}, core.NewRowValidationError(idx, errInvalidEntry,
			core.FieldError{Field: "ВремяНачала", Error: err.Error()})
	}
	return parsedEntry{Entry: e, day: day, startTime: startTime}, nil
}
