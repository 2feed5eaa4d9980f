package cleanup

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

type (
	// LinkCache is invalidated once the tables are cleared.
	LinkCache interface {
		InvalidateCache(ctx context.Context)
	}

	Service struct {
		db        core.DB
		links     link.Repository
		roster    roster.Repository
		schedules schedule.Repository
		teachers  teacher.Repository
		linkCache LinkCache
		lock      sync.Locker
		logger    core.Logger
	}

	step struct {
		table string
		run   func(ctx context.Context, exec ...core.DBExecutor) (int64, error)
	}
)

func NewService(
	db core.DB,
	linkRepo link.Repository,
	rosterRepo roster.Repository,
	scheduleRepo schedule.Repository,
	teacherRepo teacher.Repository,
	linkCache LinkCache,
	lock sync.Locker,
	logger core.Logger,
) *Service {
	return &Service{
		db:        db,
		links:     linkRepo,
		roster:    rosterRepo,
		schedules: scheduleRepo,
		teachers:  teacherRepo,
		linkCache: linkCache,
		lock:      lock,
		logger:    logger,
	}
}

// ClearAll deletes every row of table_links, students, schedule, teachers and group_streams,
// in that order, within one transaction.
func (svc *Service) ClearAll(ctx context.Context) error {
	svc.lock.Lock()
	defer svc.lock.Unlock()

	steps := []step{
		{table: "table_links", run: svc.links.DeleteAllLinks},
		{table: "students", run: svc.roster.DeleteAllStudents},
		{table: "schedule", run: svc.schedules.DeleteAllSchedules},
		{table: "teachers", run: svc.teachers.DeleteAllTeachers},
		{table: "group_streams", run: svc.roster.DeleteAllGroupStreams},
	}

	svc.logger.Info("clearing all data")
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, s := range steps {
			n, err := s.run(ctx, tx)
			if err != nil {
				return core.NewDatabaseError("clearing "+s.table, err)
			}
			svc.logger.Info(fmt.Sprintf("cleared %s (%d rows)", s.table, n))
		}
		return nil
	})
	if err != nil {
		var dbErr *core.DatabaseError
		if !errors.As(err, &dbErr) {
			err = core.NewDatabaseError("clearing all data", err)
		}
		svc.logger.Error("clearing all data failed; rolled back", err)
		return err
	}

	svc.linkCache.InvalidateCache(ctx)
	svc.logger.Info("all data cleared")
	return nil
}
