package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
	"github.com/studenttracker/tracker/storage/database"
)

type scheduleRow struct {
	ID          int         `db:"id"`
	StartTime   string      `db:"start_time"`
	DayOfWeek   string      `db:"day_of_week"`
	GroupName   string      `db:"group_name"`
	Subject     string      `db:"subject"`
	TeacherID   int         `db:"teacher_id"`
	TeacherName null.String `db:"teacher_name"`
}

// TIME is rendered as text so both drivers scan it into a string.
var scheduleColumns = []string{
	"s.id",
	"to_char(s.start_time, 'HH24:MI:SS') AS start_time",
	"s.day_of_week",
	"s.group_name",
	"s.subject",
	"s.teacher_id",
}

func (r scheduleRow) toSchedule() schedule.Schedule {
	return schedule.Schedule{
		ID:          r.ID,
		StartTime:   r.StartTime,
		DayOfWeek:   schedule.DayOfWeek(r.DayOfWeek),
		GroupName:   r.GroupName,
		Subject:     r.Subject,
		TeacherID:   r.TeacherID,
		TeacherName: r.TeacherName.String,
	}
}

type scheduleRepository struct {
	repository
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *database.DB) *scheduleRepository {
	return &scheduleRepository{repository{db: db}}
}

func (repo *scheduleRepository) QueryAllSchedules(ctx context.Context, exec ...core.DBExecutor) ([]schedule.Schedule, error) {
	var rows []scheduleRow
	query := psql.Select(append(scheduleColumns, "t.full_name AS teacher_name")...).
		From("schedule s").
		LeftJoin("teachers t ON t.id = s.teacher_id").
		OrderBy("s.id")
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting schedules")
	}
	schedules := make([]schedule.Schedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, r.toSchedule())
	}
	return schedules, nil
}

// CreateSchedules inserts schedules in a single statement.
func (repo *scheduleRepository) CreateSchedules(ctx context.Context, schedules []schedule.Schedule, exec ...core.DBExecutor) ([]schedule.Schedule, error) {
	if len(schedules) == 0 {
		return nil, nil
	}
	teacherNames := make(map[int]string, len(schedules))
	query := psql.Insert("schedule AS s").Columns("start_time", "day_of_week", "group_name", "subject", "teacher_id")
	for _, s := range schedules {
		query = query.Values(s.StartTime, string(s.DayOfWeek), s.GroupName, s.Subject, s.TeacherID)
		teacherNames[s.TeacherID] = s.TeacherName
	}
	query = query.Suffix("RETURNING " + joinColumns(scheduleColumns))

	var rows []scheduleRow
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "inserting schedules")
	}
	created := make([]schedule.Schedule, 0, len(rows))
	for _, r := range rows {
		s := r.toSchedule()
		s.TeacherName = teacherNames[s.TeacherID]
		created = append(created, s)
	}
	return created, nil
}

func (repo *scheduleRepository) QuerySubjectsByGroups(ctx context.Context, groups []string, exec ...core.DBExecutor) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	var subjects []string
	query := psql.Select("DISTINCT subject").From("schedule").
		Where(sq.Eq{"group_name": groups}).
		OrderBy("subject")
	if err := repo.selectAll(ctx, &subjects, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	return subjects, nil
}

func (repo *scheduleRepository) QueryTeachersBySubject(ctx context.Context, groups []string, subject string, exec ...core.DBExecutor) ([]teacher.Teacher, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	var rows []teacherRow
	query := psql.Select("DISTINCT t.id", "t.full_name", "t.email").
		From("teachers t").
		Join("schedule s ON s.teacher_id = t.id").
		Where(sq.Eq{"s.group_name": groups, "s.subject": subject}).
		OrderBy("t.full_name")
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting teachers of subject")
	}
	return toTeachers(rows), nil
}

func (repo *scheduleRepository) DeleteAllSchedules(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	n, err := repo.exec(ctx, psql.Delete("schedule"), exec)
	return n, errors.Wrap(err, "deleting schedules")
}
