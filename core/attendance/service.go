package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

type (
	// LinkCache is invalidated once new links are committed.
	LinkCache interface {
		InvalidateCache(ctx context.Context)
	}

	Service struct {
		db               core.DB
		roster           roster.Repository
		schedules        schedule.Repository
		links            link.Repository
		linkCache        LinkCache
		provider         Provider
		lock             sync.Locker
		logger           core.Logger
		lessons          int
		publicRole       Role
		placeholderEmail string
	}

	streamGroups struct {
		stream string
		groups []roster.GroupStream
	}
)

func NewService(
	db core.DB,
	rosterRepo roster.Repository,
	scheduleRepo schedule.Repository,
	linkRepo link.Repository,
	linkCache LinkCache,
	provider Provider,
	lock sync.Locker,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:               db,
		roster:           rosterRepo,
		schedules:        scheduleRepo,
		links:            linkRepo,
		linkCache:        linkCache,
		provider:         provider,
		lock:             lock,
		logger:           logger,
		lessons:          conf.Sheets.LessonsCount,
		publicRole:       Role(conf.Sheets.PublicRole),
		placeholderEmail: conf.Import.PlaceholderTeacherEmail,
	}
}

// GenerateAll creates the attendance spreadsheet of every (stream, subject) pair that has none yet
// and returns the URL of every pair, new or stored.
func (svc *Service) GenerateAll(ctx context.Context) (Result, error) {
	svc.lock.Lock()
	defer svc.lock.Unlock()
	return svc.generate(ctx)
}

// Run holds the generation lock while prepare (typically imports) runs, then generates.
func (svc *Service) Run(ctx context.Context, prepare func(ctx context.Context) error) (Result, error) {
	svc.lock.Lock()
	defer svc.lock.Unlock()
	if err := prepare(ctx); err != nil {
		return nil, err
	}
	return svc.generate(ctx)
}

func (svc *Service) generate(ctx context.Context) (Result, error) {
	result := make(Result)
	var created []string

	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		groupStreams, err := svc.roster.QueryAllGroupStreams(ctx, tx)
		if err != nil {
			return core.NewGenerationError("", "", core.NewDatabaseError("querying group streams", err))
		}
		for _, sg := range groupByStream(groupStreams) {
			if err = svc.generateStream(ctx, tx, sg, result, &created); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// links of these spreadsheets were rolled back
		svc.discard(ctx, created)

		var genErr *core.GenerationError
		if !errors.As(err, &genErr) {
			err = core.NewGenerationError("", "", core.NewDatabaseError("storing links", err))
		}
		svc.logger.Error("attendance sheet generation failed", err)
		return nil, err
	}

	if len(created) > 0 {
		svc.linkCache.InvalidateCache(ctx)
	}
	svc.logger.Info(fmt.Sprintf("attendance sheets: %d pairs, %d created", len(result), len(created)))
	return result, nil
}

func (svc *Service) generateStream(ctx context.Context, tx core.DBExecutor, sg streamGroups, result Result, created *[]string) error {
	groupNames := make([]string, 0, len(sg.groups))
	for _, gs := range sg.groups {
		groupNames = append(groupNames, gs.GroupName)
	}
	if len(groupNames) == 0 {
		svc.logger.Warn(fmt.Sprintf("stream %q has no groups; skipping", sg.stream))
		return nil
	}

	subjects, err := svc.schedules.QuerySubjectsByGroups(ctx, groupNames, tx)
	if err != nil {
		return core.NewGenerationError(sg.stream, "", core.NewDatabaseError("querying subjects", err))
	}
	if len(subjects) == 0 {
		svc.logger.Warn(fmt.Sprintf("stream %q has no scheduled subjects; skipping", sg.stream))
		return nil
	}

	for _, subject := range subjects {
		url, err := svc.generatePair(ctx, tx, sg, groupNames, subject, created)
		if err != nil {
			return core.NewGenerationError(sg.stream, subject, err)
		}
		result[Title(sg.stream, subject)] = []string{url}
	}
	return nil
}

// generatePair returns the stored link of (stream, subject) or creates, shares and fills a new spreadsheet.
func (svc *Service) generatePair(
	ctx context.Context,
	tx core.DBExecutor,
	sg streamGroups,
	groupNames []string,
	subject string,
	created *[]string,
) (string, error) {
	existing, err := svc.links.GetLink(ctx, sg.stream, subject, tx)
	switch {
	case err == nil:
		svc.logger.Debug(fmt.Sprintf("reusing stored link for %q", Title(sg.stream, subject)))
		return existing.Link, nil
	case !errors.Is(err, link.ErrNotFound):
		return "", core.NewDatabaseError("getting link", err)
	}

	teachers, err := svc.schedules.QueryTeachersBySubject(ctx, groupNames, subject, tx)
	if err != nil {
		return "", core.NewDatabaseError("querying teachers", err)
	}
	sheets, err := svc.groupSheets(ctx, tx, sg.groups)
	if err != nil {
		return "", err
	}

	title := Title(sg.stream, subject)
	ss, err := svc.provider.CreateSpreadsheet(ctx, title)
	if err != nil {
		return "", externalError("creating spreadsheet", err)
	}
	if err = svc.setUp(ctx, ss.ID, sheets, teachers); err != nil {
		svc.deleteSpreadsheet(ctx, ss.ID)
		return "", err
	}
	*created = append(*created, ss.ID)

	l := link.TableLink{
		StreamName:  sg.stream,
		Subject:     subject,
		TeacherName: teacherNames(teachers),
		Link:        ss.URL,
	}
	if _, err = svc.links.CreateLink(ctx, l, tx); err != nil {
		return "", core.NewDatabaseError("creating link", err)
	}
	svc.logger.Info(fmt.Sprintf("attendance sheet %q created: %s", title, ss.URL))
	return ss.URL, nil
}

func (svc *Service) setUp(ctx context.Context, spreadsheetID string, sheets []GroupSheet, teachers []teacher.Teacher) error {
	if err := svc.provider.Share(ctx, spreadsheetID, svc.permissions(teachers)...); err != nil {
		return externalError("sharing spreadsheet", err)
	}
	if err := svc.provider.PopulateSheets(ctx, spreadsheetID, sheets, svc.lessons); err != nil {
		return externalError("populating sheets", err)
	}
	return nil
}

// permissions grants writer access to every teacher with a real email and the configured
// role to anyone with the link, raised to writer when no teacher could be granted.
func (svc *Service) permissions(teachers []teacher.Teacher) []Permission {
	var perms []Permission
	for _, t := range teachers {
		if t.Email == "" || strings.EqualFold(t.Email, svc.placeholderEmail) {
			continue
		}
		perms = append(perms, Permission{Type: GranteeUser, Role: RoleWriter, Email: t.Email})
	}
	public := svc.publicRole
	if len(perms) == 0 {
		public = RoleWriter
	}
	return append(perms, Permission{Type: GranteeAnyone, Role: public})
}

func (svc *Service) groupSheets(ctx context.Context, tx core.DBExecutor, groups []roster.GroupStream) ([]GroupSheet, error) {
	sheets := make([]GroupSheet, 0, len(groups))
	for _, gs := range groups {
		students, err := svc.roster.QueryStudentsByGroupStream(ctx, gs.ID, tx)
		if err != nil {
			return nil, core.NewDatabaseError(fmt.Sprintf("querying students of %q", gs.GroupName), err)
		}
		sheet := GroupSheet{Title: gs.GroupName, Students: make([]SheetStudent, 0, len(students))}
		for _, std := range students {
			sheet.Students = append(sheet.Students, SheetStudent{Name: std.FullName(), Headman: gs.IsHeadman(std.ID)})
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// discard deletes spreadsheets created by a failed run. Failures are logged only.
func (svc *Service) discard(ctx context.Context, spreadsheetIDs []string) {
	for _, id := range spreadsheetIDs {
		svc.deleteSpreadsheet(ctx, id)
	}
}

func (svc *Service) deleteSpreadsheet(ctx context.Context, spreadsheetID string) {
	if err := svc.provider.DeleteSpreadsheet(context.WithoutCancel(ctx), spreadsheetID); err != nil {
		svc.logger.Error(fmt.Sprintf("deleting spreadsheet %s", spreadsheetID), err)
	}
}

func groupByStream(groupStreams []roster.GroupStream) []streamGroups {
	byStream := make(map[string][]roster.GroupStream)
	for _, gs := range groupStreams {
		byStream[gs.StreamName] = append(byStream[gs.StreamName], gs)
	}
	streams := make([]streamGroups, 0, len(byStream))
	for stream, groups := range byStream {
		sort.Slice(groups, func(i, j int) bool { return groups[i].GroupName < groups[j].GroupName })
		streams = append(streams, streamGroups{stream: stream, groups: groups})
	}
	sort.Slice(streams, func(i, j int) bool { return streams[i].stream < streams[j].stream })
	return streams
}

func teacherNames(teachers []teacher.Teacher) string {
	names := make([]string, 0, len(teachers))
	for _, t := range teachers {
		names = append(names, t.FullName)
	}
	return strings.Join(names, ", ")
}

func externalError(op string, err error) error {
	var apiErr *core.ExternalAPIError
	if errors.As(err, &apiErr) {
		return err
	}
	return core.NewExternalAPIError(op, err)
}
