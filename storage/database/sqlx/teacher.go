package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/teacher"
	"github.com/studenttracker/tracker/storage/database"
)

type teacherRow struct {
	ID       int         `db:"id"`
	FullName string      `db:"full_name"`
	Email    null.String `db:"email"`
}

var teacherColumns = []string{"id", "full_name", "email"}

func (r teacherRow) toTeacher() teacher.Teacher {
	return teacher.Teacher{ID: r.ID, FullName: r.FullName, Email: r.Email.String}
}

type teacherRepository struct {
	repository
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *database.DB) *teacherRepository {
	return &teacherRepository{repository{db: db}}
}

func (repo *teacherRepository) QueryAllTeachers(ctx context.Context, exec ...core.DBExecutor) ([]teacher.Teacher, error) {
	var rows []teacherRow
	query := psql.Select(teacherColumns...).From("teachers").OrderBy("full_name")
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting teachers")
	}
	return toTeachers(rows), nil
}

func (repo *teacherRepository) GetTeacherByName(ctx context.Context, fullName string, exec ...core.DBExecutor) (teacher.Teacher, error) {
	var row teacherRow
	query := psql.Select(teacherColumns...).From("teachers").Where(sq.Eq{"full_name": fullName})
	if err := repo.get(ctx, &row, query, exec); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound)
	}
	return row.toTeacher(), nil
}

// CreateTeachers inserts teachers in a single statement.
func (repo *teacherRepository) CreateTeachers(ctx context.Context, teachers []teacher.Teacher, exec ...core.DBExecutor) ([]teacher.Teacher, error) {
	if len(teachers) == 0 {
		return nil, nil
	}
	query := psql.Insert("teachers").Columns("full_name", "email")
	for _, t := range teachers {
		query = query.Values(t.FullName, nullString(t.Email))
	}
	query = query.Suffix("RETURNING " + joinColumns(teacherColumns))

	var rows []teacherRow
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "inserting teachers")
	}
	return toTeachers(rows), nil
}

func (repo *teacherRepository) DeleteAllTeachers(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	n, err := repo.exec(ctx, psql.Delete("teachers"), exec)
	return n, errors.Wrap(err, "deleting teachers")
}

func toTeachers(rows []teacherRow) []teacher.Teacher {
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.toTeacher())
	}
	return teachers
}
