package roster

import (
	"context"
	"fmt"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
)

type (
	Repository interface {
		QueryAllGroupStreams(ctx context.Context, exec ...core.DBExecutor) ([]GroupStream, error)
		GetGroupStreamByGroup(ctx context.Context, groupName string, exec ...core.DBExecutor) (GroupStream, error)
		CreateGroupStream(ctx context.Context, gs GroupStream, exec ...core.DBExecutor) (GroupStream, error)
		SetHeadman(ctx context.Context, groupStreamID, studentID int, exec ...core.DBExecutor) error
		// FindStudent looks a student up by natural key (surname, name, patronymic, email, group).
		FindStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudentsByGroupStream returns the students of a group ordered by surname, name and patronymic.
		QueryStudentsByGroupStream(ctx context.Context, groupStreamID int, exec ...core.DBExecutor) ([]Student, error)
		QueryAllStudents(ctx context.Context, exec ...core.DBExecutor) ([]Student, error)
		DeleteAllStudents(ctx context.Context, exec ...core.DBExecutor) (int64, error)
		DeleteAllGroupStreams(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}

	Service struct {
		db         core.DB
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewService(db core.DB, repo Repository, validate *validator.Validate, translator ut.Translator, logger core.Logger) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

// Import parses a roster workbook and stores its students.
// The first invalid row aborts the whole import. Returns only the students created by this call.
func (svc *Service) Import(ctx context.Context, r io.Reader) ([]Student, error) {
	rows, err := ParseWorkbook(r)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := svc.validateRow(row); err != nil {
			return nil, err
		}
	}

	var created []Student
	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		groupStreams := make(map[string]GroupStream)
		for _, row := range rows {
			std, isNew, err := svc.importRow(ctx, tx, groupStreams, row)
			if err != nil {
				return core.NewDatabaseError(fmt.Sprintf("importing sheet %q row %d", row.Sheet, row.Index), err)
			}
			if isNew {
				created = append(created, std)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info(fmt.Sprintf("roster imported: %d rows, %d new students", len(rows), len(created)))
	return created, nil
}

func (svc *Service) validateRow(row Row) error {
	if err := svc.validate.Struct(row); err != nil {
		flds := core.FieldErrors(err, svc.translator)
		if flds == nil {
			return errors.Wrap(err, "validating roster row")
		}
		return core.NewRowValidationError(row.Index, errors.Errorf("sheet %q: invalid roster row", row.Sheet), flds...)
	}
	return nil
}

// importRow resolves the row's group stream, inserts the student unless it already exists
// and records the headman. groupStreams is scoped to a single Import call.
func (svc *Service) importRow(ctx context.Context, tx core.DBExecutor, groupStreams map[string]GroupStream, row Row) (Student, bool, error) {
	gs, err := svc.resolveGroupStream(ctx, tx, groupStreams, row)
	if err != nil {
		return Student{}, false, err
	}

	var isNew bool
	std := row.student(gs.ID)
	existing, err := svc.repo.FindStudent(ctx, std, tx)
	switch {
	case err == nil:
		std = existing
	case errors.Is(err, ErrStudentNotFound):
		if std, err = svc.repo.CreateStudent(ctx, std, tx); err != nil {
			return Student{}, false, errors.Wrap(err, "creating student")
		}
		isNew = true
	default:
		return Student{}, false, errors.Wrap(err, "finding student")
	}

	if row.Headman && !gs.IsHeadman(std.ID) {
		if err = svc.repo.SetHeadman(ctx, gs.ID, std.ID, tx); err != nil {
			return Student{}, false, errors.Wrap(err, "setting headman")
		}
		id := std.ID
		gs.HeadmanID = &id
		groupStreams[row.groupStreamKey()] = gs
	}
	return std, isNew, nil
}

func (svc *Service) resolveGroupStream(ctx context.Context, tx core.DBExecutor, groupStreams map[string]GroupStream, row Row) (GroupStream, error) {
	key := row.groupStreamKey()
	if gs, ok := groupStreams[key]; ok {
		return gs, nil
	}

	gs, err := svc.repo.GetGroupStreamByGroup(ctx, row.Group, tx)
	switch {
	case err == nil:
		if gs.StreamName != row.Stream {
			svc.logger.Warn(fmt.Sprintf("group %q already belongs to stream %q; ignoring stream %q", gs.GroupName, gs.StreamName, row.Stream))
		}
	case errors.Is(err, ErrGroupStreamNotFound):
		gs, err = svc.repo.CreateGroupStream(ctx, GroupStream{GroupName: row.Group, StreamName: row.Stream}, tx)
		if err != nil {
			return GroupStream{}, errors.Wrap(err, "creating group stream")
		}
	default:
		return GroupStream{}, errors.Wrap(err, "getting group stream")
	}

	groupStreams[key] = gs
	return gs, nil
}
