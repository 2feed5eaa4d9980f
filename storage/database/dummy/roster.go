package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) QueryAllGroupStreams(_ context.Context, _ ...core.DBExecutor) ([]roster.GroupStream, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QueryAllGroupStreams"); err != nil {
		return nil, err
	}

	groupStreams := make([]roster.GroupStream, 0, len(repo.db.data.groupStreams))
	for _, id := range sortedKeys(repo.db.data.groupStreams) {
		groupStreams = append(groupStreams, repo.db.data.groupStreams[id])
	}
	sort.SliceStable(groupStreams, func(i, j int) bool {
		if groupStreams[i].StreamName != groupStreams[j].StreamName {
			return groupStreams[i].StreamName < groupStreams[j].StreamName
		}
		return groupStreams[i].GroupName < groupStreams[j].GroupName
	})
	return groupStreams, nil
}

func (repo *rosterRepository) GetGroupStreamByGroup(_ context.Context, groupName string, _ ...core.DBExecutor) (roster.GroupStream, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("GetGroupStreamByGroup"); err != nil {
		return roster.GroupStream{}, err
	}

	for _, gs := range repo.db.data.groupStreams {
		if gs.GroupName == groupName {
			return gs, nil
		}
	}
	return roster.GroupStream{}, roster.ErrGroupStreamNotFound
}

func (repo *rosterRepository) CreateGroupStream(_ context.Context, gs roster.GroupStream, _ ...core.DBExecutor) (roster.GroupStream, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("CreateGroupStream"); err != nil {
		return roster.GroupStream{}, err
	}

	gs.ID = repo.db.data.nextID()
	gs.HeadmanID = nil
	repo.db.data.groupStreams[gs.ID] = gs
	return gs, nil
}

func (repo *rosterRepository) SetHeadman(_ context.Context, groupStreamID, studentID int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("SetHeadman"); err != nil {
		return err
	}

	gs, ok := repo.db.data.groupStreams[groupStreamID]
	if !ok {
		return roster.ErrGroupStreamNotFound
	}
	id := studentID
	gs.HeadmanID = &id
	repo.db.data.groupStreams[groupStreamID] = gs
	return nil
}

func (repo *rosterRepository) FindStudent(_ context.Context, s roster.Student, _ ...core.DBExecutor) (roster.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("FindStudent"); err != nil {
		return roster.Student{}, err
	}

	for _, id := range sortedKeys(repo.db.data.students) {
		if std := repo.db.data.students[id]; std.SameAs(s) {
			return std, nil
		}
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) CreateStudent(_ context.Context, s roster.Student, _ ...core.DBExecutor) (roster.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("CreateStudent"); err != nil {
		return roster.Student{}, err
	}

	if _, ok := repo.db.data.groupStreams[s.GroupStreamID]; !ok {
		return roster.Student{}, roster.ErrGroupStreamNotFound
	}
	for _, std := range repo.db.data.students {
		if std.SameAs(s) {
			return roster.Student{}, roster.ErrStudentExists
		}
	}
	s.ID = repo.db.data.nextID()
	repo.db.data.students[s.ID] = s
	return s, nil
}

func (repo *rosterRepository) QueryStudentsByGroupStream(_ context.Context, groupStreamID int, _ ...core.DBExecutor) ([]roster.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QueryStudentsByGroupStream"); err != nil {
		return nil, err
	}

	var students []roster.Student
	for _, id := range sortedKeys(repo.db.data.students) {
		if std := repo.db.data.students[id]; std.GroupStreamID == groupStreamID {
			students = append(students, std)
		}
	}
	sort.SliceStable(students, func(i, j int) bool {
		return strings.Join([]string{students[i].Surname, students[i].Name, students[i].Patronymic}, " ") <
			strings.Join([]string{students[j].Surname, students[j].Name, students[j].Patronymic}, " ")
	})
	return students, nil
}

func (repo *rosterRepository) QueryAllStudents(_ context.Context, _ ...core.DBExecutor) ([]roster.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("QueryAllStudents"); err != nil {
		return nil, err
	}

	students := make([]roster.Student, 0, len(repo.db.data.students))
	for _, id := range sortedKeys(repo.db.data.students) {
		students = append(students, repo.db.data.students[id])
	}
	return students, nil
}

func (repo *rosterRepository) DeleteAllStudents(_ context.Context, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("DeleteAllStudents"); err != nil {
		return 0, err
	}

	n := int64(len(repo.db.data.students))
	repo.db.data.students = make(map[int]roster.Student)
	// ON DELETE SET NULL
	for id, gs := range repo.db.data.groupStreams {
		gs.HeadmanID = nil
		repo.db.data.groupStreams[id] = gs
	}
	return n, nil
}

func (repo *rosterRepository) DeleteAllGroupStreams(_ context.Context, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("DeleteAllGroupStreams"); err != nil {
		return 0, err
	}

	if len(repo.db.data.students) > 0 {
		return 0, errors.New("dummydb: group streams are still referenced by students")
	}
	n := int64(len(repo.db.data.groupStreams))
	repo.db.data.groupStreams = make(map[int]roster.GroupStream)
	return n, nil
}
