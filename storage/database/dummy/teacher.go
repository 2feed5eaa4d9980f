package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) QueryAllTeachers(_ context.Context, _ ...core.DBExecutor) ([]teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QueryAllTeachers"); err != nil {
		return nil, err
	}

	teachers := make([]teacher.Teacher, 0, len(repo.db.data.teachers))
	for _, t := range repo.db.data.teachers {
		teachers = append(teachers, t)
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].FullName < teachers[j].FullName })
	return teachers, nil
}

func (repo *teacherRepository) GetTeacherByName(_ context.Context, fullName string, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("GetTeacherByName"); err != nil {
		return teacher.Teacher{}, err
	}

	for _, t := range repo.db.data.teachers {
		if t.FullName == fullName {
			return t, nil
		}
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) CreateTeachers(_ context.Context, teachers []teacher.Teacher, _ ...core.DBExecutor) ([]teacher.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("CreateTeachers"); err != nil {
		return nil, err
	}

	// full_name is unique
	names := make(map[string]bool, len(repo.db.data.teachers)+len(teachers))
	for _, t := range repo.db.data.teachers {
		names[t.FullName] = true
	}
	for _, t := range teachers {
		if names[t.FullName] {
			return nil, errors.Errorf("dummydb: duplicate teacher %q", t.FullName)
		}
		names[t.FullName] = true
	}

	created := make([]teacher.Teacher, 0, len(teachers))
	for _, t := range teachers {
		t.ID = repo.db.data.nextID()
		repo.db.data.teachers[t.ID] = t
		created = append(created, t)
	}
	return created, nil
}

func (repo *teacherRepository) DeleteAllTeachers(_ context.Context, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("DeleteAllTeachers"); err != nil {
		return 0, err
	}

	for _, s := range repo.db.data.schedules {
		if _, ok := repo.db.data.teachers[s.TeacherID]; ok {
			return 0, errors.New("dummydb: teachers are still referenced by schedules")
		}
	}
	n := int64(len(repo.db.data.teachers))
	repo.db.data.teachers = make(map[int]teacher.Teacher)
	return n, nil
}
