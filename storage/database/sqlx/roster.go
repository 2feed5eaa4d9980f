package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/storage/database"
)

type (
	groupStreamRow struct {
		ID         int      `db:"id"`
		GroupName  string   `db:"group_name"`
		StreamName string   `db:"stream_name"`
		HeadmanID  null.Int `db:"headman_id"`
	}

	studentRow struct {
		ID            int         `db:"id"`
		Surname       string      `db:"surname"`
		Name          string      `db:"name"`
		Patronymic    null.String `db:"patronymic"`
		Email         null.String `db:"email"`
		GroupStreamID int         `db:"group_stream_id"`
	}
)

var (
	groupStreamColumns = []string{"id", "group_name", "stream_name", "headman_id"}
	studentColumns     = []string{"id", "surname", "name", "patronymic", "email", "group_stream_id"}
)

func (r groupStreamRow) toGroupStream() roster.GroupStream {
	gs := roster.GroupStream{ID: r.ID, GroupName: r.GroupName, StreamName: r.StreamName}
	if r.HeadmanID.Valid {
		id := r.HeadmanID.Int
		gs.HeadmanID = &id
	}
	return gs
}

func (r studentRow) toStudent() roster.Student {
	return roster.Student{
		ID:            r.ID,
		Surname:       r.Surname,
		Name:          r.Name,
		Patronymic:    r.Patronymic.String,
		Email:         r.Email.String,
		GroupStreamID: r.GroupStreamID,
	}
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type rosterRepository struct {
	repository
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *database.DB) *rosterRepository {
	return &rosterRepository{repository{db: db}}
}

func (repo *rosterRepository) QueryAllGroupStreams(ctx context.Context, exec ...core.DBExecutor) ([]roster.GroupStream, error) {
	var rows []groupStreamRow
	query := psql.Select(groupStreamColumns...).From("group_streams").OrderBy("stream_name", "group_name")
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting group streams")
	}
	groupStreams := make([]roster.GroupStream, 0, len(rows))
	for _, r := range rows {
		groupStreams = append(groupStreams, r.toGroupStream())
	}
	return groupStreams, nil
}

func (repo *rosterRepository) GetGroupStreamByGroup(ctx context.Context, groupName string, exec ...core.DBExecutor) (roster.GroupStream, error) {
	var row groupStreamRow
	query := psql.Select(groupStreamColumns...).From("group_streams").Where(sq.Eq{"group_name": groupName})
	if err := repo.get(ctx, &row, query, exec); err != nil {
		return roster.GroupStream{}, trapNoRowsErr(err, roster.ErrGroupStreamNotFound)
	}
	return row.toGroupStream(), nil
}

func (repo *rosterRepository) CreateGroupStream(ctx context.Context, gs roster.GroupStream, exec ...core.DBExecutor) (roster.GroupStream, error) {
	query := psql.Insert("group_streams").
		Columns("group_name", "stream_name").
		Values(gs.GroupName, gs.StreamName).
		Suffix("RETURNING id")
	if err := repo.get(ctx, &gs.ID, query, exec); err != nil {
		return roster.GroupStream{}, errors.Wrap(err, "inserting group stream")
	}
	return gs, nil
}

func (repo *rosterRepository) SetHeadman(ctx context.Context, groupStreamID, studentID int, exec ...core.DBExecutor) error {
	query := psql.Update("group_streams").Set("headman_id", studentID).Where(sq.Eq{"id": groupStreamID})
	n, err := repo.exec(ctx, query, exec)
	if err != nil {
		return errors.Wrap(err, "updating group stream headman")
	}
	if n == 0 {
		return roster.ErrGroupStreamNotFound
	}
	return nil
}

func (repo *rosterRepository) FindStudent(ctx context.Context, s roster.Student, exec ...core.DBExecutor) (roster.Student, error) {
	var row studentRow
	query := psql.Select(studentColumns...).From("students").
		Where(sq.Eq{"surname": s.Surname, "name": s.Name, "group_stream_id": s.GroupStreamID}).
		Where("COALESCE(patronymic, '') = ?", s.Patronymic).
		Where("LOWER(COALESCE(email, '')) = LOWER(?)", s.Email).
		Limit(1)
	if err := repo.get(ctx, &row, query, exec); err != nil {
		return roster.Student{}, trapNoRowsErr(err, roster.ErrStudentNotFound)
	}
	return row.toStudent(), nil
}

func (repo *rosterRepository) CreateStudent(ctx context.Context, s roster.Student, exec ...core.DBExecutor) (roster.Student, error) {
	query := psql.Insert("students").
		Columns("surname", "name", "patronymic", "email", "group_stream_id").
		Values(s.Surname, s.Name, nullString(s.Patronymic), nullString(s.Email), s.GroupStreamID).
		Suffix("RETURNING id")
	if err := repo.get(ctx, &s.ID, query, exec); err != nil {
		if database.IsUniqueViolation(err) {
			return roster.Student{}, roster.ErrStudentExists
		}
		return roster.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo *rosterRepository) QueryStudentsByGroupStream(ctx context.Context, groupStreamID int, exec ...core.DBExecutor) ([]roster.Student, error) {
	return repo.queryStudents(ctx, sq.Eq{"group_stream_id": groupStreamID}, exec)
}

func (repo *rosterRepository) QueryAllStudents(ctx context.Context, exec ...core.DBExecutor) ([]roster.Student, error) {
	return repo.queryStudents(ctx, nil, exec)
}

func (repo *rosterRepository) queryStudents(ctx context.Context, where sq.Sqlizer, exec []core.DBExecutor) ([]roster.Student, error) {
	var rows []studentRow
	query := psql.Select(studentColumns...).From("students")
	if where != nil {
		query = query.Where(where)
	}
	query = query.OrderBy("surname", "name", "COALESCE(patronymic, '')", "id")
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]roster.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

func (repo *rosterRepository) DeleteAllStudents(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	n, err := repo.exec(ctx, psql.Delete("students"), exec)
	return n, errors.Wrap(err, "deleting students")
}

func (repo *rosterRepository) DeleteAllGroupStreams(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	n, err := repo.exec(ctx, psql.Delete("group_streams"), exec)
	return n, errors.Wrap(err, "deleting group streams")
}
