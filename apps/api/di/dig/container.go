package dig_container

import (
	"context"
	"fmt"
	"log"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/studenttracker/tracker/apps/api/echo"
	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/attendance"
	"github.com/studenttracker/tracker/core/cleanup"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
	cachesvc "github.com/studenttracker/tracker/services/cache"
	logsvc "github.com/studenttracker/tracker/services/logger"
	sheetsvc "github.com/studenttracker/tracker/services/sheets"
	"github.com/studenttracker/tracker/storage/database"
	sqlxrepos "github.com/studenttracker/tracker/storage/database/sqlx"
)

const linkCachePrefix = "tracker:"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServiceParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	RosterSvc   *roster.Service
	ScheduleSvc *schedule.Service
	TeacherSvc  *teacher.Service
	LinkSvc     *link.Service
	SheetSvc    *attendance.Service
	CleanupSvc  *cleanup.Service
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap("API", conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap("DB", conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*database.DB, core.DB) {
	setUp := func() (*database.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

// newCache prefers Redis so every API instance sees the same invalidations.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	rdb := cachesvc.ConnectRedis(context.Background(), conf.Cache.RedisAddr, conf.Cache.RedisDB, logger)
	if rdb != nil {
		return cachesvc.NewRedisCache(rdb, linkCachePrefix, conf.Cache.TTL)
	}
	return cachesvc.NewMemoryCache(conf.Cache.Size, conf.Cache.TTL)
}

func newSheetsProvider(conf *core.Config, logger core.Logger) attendance.Provider {
	client, err := sheetsvc.NewClient(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up sheets client: %v", err), err)
	}
	return client
}

// newLock returns the lock shared by generation and data reset.
func newLock() sync.Locker {
	return new(sync.Mutex)
}

func newValidate(translator ut.Translator) *validator.Validate {
	return core.NewValidate(translator)
}

func newServer(p ServiceParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		RosterSvc:   p.RosterSvc,
		ScheduleSvc: p.ScheduleSvc,
		TeacherSvc:  p.TeacherSvc,
		LinkSvc:     p.LinkSvc,
		SheetSvc:    p.SheetSvc,
		CleanupSvc:  p.CleanupSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newSheetsProvider))
	must(c.Provide(newLock))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))

	// repositories
	must(c.Provide(sqlxrepos.NewRosterRepository, dig.As(new(roster.Repository))))
	must(c.Provide(sqlxrepos.NewTeacherRepository, dig.As(new(teacher.Repository))))
	must(c.Provide(sqlxrepos.NewScheduleRepository, dig.As(new(schedule.Repository))))
	must(c.Provide(sqlxrepos.NewLinkRepository, dig.As(new(link.Repository))))

	// services
	must(c.Provide(roster.NewService))
	must(c.Provide(teacher.NewService))
	must(c.Provide(func(svc *teacher.Service) schedule.TeacherResolver { return svc }))
	must(c.Provide(schedule.NewService))
	must(c.Provide(link.NewService))
	must(c.Provide(func(svc *link.Service) attendance.LinkCache { return svc }))
	must(c.Provide(func(svc *link.Service) cleanup.LinkCache { return svc }))
	must(c.Provide(attendance.NewService))
	must(c.Provide(cleanup.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
