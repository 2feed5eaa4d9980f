package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) QueryAllSchedules(_ context.Context, _ ...core.DBExecutor) ([]schedule.Schedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QueryAllSchedules"); err != nil {
		return nil, err
	}

	schedules := make([]schedule.Schedule, 0, len(repo.db.data.schedules))
	for _, id := range sortedKeys(repo.db.data.schedules) {
		s := repo.db.data.schedules[id]
		s.TeacherName = repo.db.data.teachers[s.TeacherID].FullName
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func (repo *scheduleRepository) CreateSchedules(_ context.Context, schedules []schedule.Schedule, _ ...core.DBExecutor) ([]schedule.Schedule, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("CreateSchedules"); err != nil {
		return nil, err
	}

	for _, s := range schedules {
		if _, ok := repo.db.data.teachers[s.TeacherID]; !ok {
			return nil, errors.Errorf("dummydb: teacher %d does not exist", s.TeacherID)
		}
	}
	created := make([]schedule.Schedule, 0, len(schedules))
	for _, s := range schedules {
		s.ID = repo.db.data.nextID()
		repo.db.data.schedules[s.ID] = s
		created = append(created, s)
	}
	return created, nil
}

func (repo *scheduleRepository) QuerySubjectsByGroups(_ context.Context, groups []string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QuerySubjectsByGroups"); err != nil {
		return nil, err
	}

	wanted := toSet(groups)
	seen := make(map[string]bool)
	var subjects []string
	for _, s := range repo.db.data.schedules {
		if wanted[s.GroupName] && !seen[s.Subject] {
			seen[s.Subject] = true
			subjects = append(subjects, s.Subject)
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (repo *scheduleRepository) QueryTeachersBySubject(_ context.Context, groups []string, subject string, _ ...core.DBExecutor) ([]teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QueryTeachersBySubject"); err != nil {
		return nil, err
	}

	wanted := toSet(groups)
	seen := make(map[int]bool)
	var teachers []teacher.Teacher
	for _, s := range repo.db.data.schedules {
		if !wanted[s.GroupName] || s.Subject != subject || seen[s.TeacherID] {
			continue
		}
		seen[s.TeacherID] = true
		if t, ok := repo.db.data.teachers[s.TeacherID]; ok {
			teachers = append(teachers, t)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].FullName < teachers[j].FullName })
	return teachers, nil
}

func (repo *scheduleRepository) DeleteAllSchedules(_ context.Context, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("DeleteAllSchedules"); err != nil {
		return 0, err
	}

	n := int64(len(repo.db.data.schedules))
	repo.db.data.schedules = make(map[int]schedule.Schedule)
	return n, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
