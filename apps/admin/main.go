package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"

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

func main() {
	conf := core.NewConfig()

	zl := logsvc.NewZap("ADMIN", conf)
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidate(translator)
	rosterRepo := sqlxrepos.NewRosterRepository(db)
	teacherRepo := sqlxrepos.NewTeacherRepository(db)
	scheduleRepo := sqlxrepos.NewScheduleRepository(db)
	linkRepo := sqlxrepos.NewLinkRepository(db)

	var cache core.Cache = cachesvc.NewMemoryCache(conf.Cache.Size, conf.Cache.TTL)
	if rdb := cachesvc.ConnectRedis(context.Background(), conf.Cache.RedisAddr, conf.Cache.RedisDB, logger); rdb != nil {
		cache = cachesvc.NewRedisCache(rdb, "tracker:", conf.Cache.TTL)
	}
	lock := new(sync.Mutex)

	teacherSvc := teacher.NewService(db, teacherRepo, validate, translator, logger, conf)
	linkSvc := link.NewService(linkRepo, cache, logger)

	cli := commandLine{
		db:          db.DB.DB,
		out:         os.Stdout,
		rosterSvc:   roster.NewService(db, rosterRepo, validate, translator, logger),
		scheduleSvc: schedule.NewService(db, scheduleRepo, teacherSvc, validate, translator, logger),
		teacherSvc:  teacherSvc,
		linkSvc:     linkSvc,
		cleanupSvc:  cleanup.NewService(db, linkRepo, rosterRepo, scheduleRepo, teacherRepo, linkSvc, lock, logger),
		sheetSvc: func() (*attendance.Service, error) {
			client, err := sheetsvc.NewClient(context.Background(), conf, logger)
			if err != nil {
				return nil, errors.Wrap(err, "setting up sheets client")
			}
			return attendance.NewService(db, rosterRepo, scheduleRepo, linkRepo, linkSvc, client, lock, logger, conf), nil
		},
	}

	err = cli.run(os.Args)
	if cErr := db.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
