package link_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/link"
	cachesvc "github.com/studenttracker/tracker/services/cache"
	dummydb "github.com/studenttracker/tracker/storage/database/dummy"
)

var seed = []link.TableLink{
	{StreamName: "ИУ7-1", Subject: "Математика", TeacherName: "Смирнов С.П.", Link: "https://docs.google.com/spreadsheets/d/a"},
	{StreamName: "ИУ7-1", Subject: "Физика", TeacherName: "Кузнецов К.К., Смирнов С.П.", Link: "https://docs.google.com/spreadsheets/d/b"},
	{StreamName: "ИУ7-2", Subject: "Физика", TeacherName: "Кузнецов К.К.", Link: "https://docs.google.com/spreadsheets/d/c"},
}

func setup(t *testing.T, cache core.Cache) (*dummydb.DB, link.Repository, *link.Service) {
	db := dummydb.Open()
	repo := dummydb.NewLinkRepository(db)
	for _, l := range seed {
		_, err := repo.CreateLink(context.Background(), l)
		require.NoError(t, err)
	}
	return db, repo, link.NewService(repo, cache, core.NopLogger{})
}

func urls(links []link.TableLink) []string {
	res := make([]string, 0, len(links))
	for _, l := range links {
		res = append(res, l.Link)
	}
	return res
}

func TestService_Filter(t *testing.T) {
	_, _, svc := setup(t, cachesvc.NewMemoryCache(10, time.Minute))

	tests := []struct {
		name   string
		filter link.Filter
		want   []string
	}{
		{name: "no filter", want: []string{"https://docs.google.com/spreadsheets/d/a", "https://docs.google.com/spreadsheets/d/b", "https://docs.google.com/spreadsheets/d/c"}},
		{name: "stream", filter: link.Filter{Stream: "иу7-2"}, want: []string{"https://docs.google.com/spreadsheets/d/c"}},
		{name: "subject and stream", filter: link.Filter{Stream: "ИУ7-1", Subject: "физ"}, want: []string{"https://docs.google.com/spreadsheets/d/b"}},
		{name: "teacher substring", filter: link.Filter{Teacher: "смирнов"}, want: []string{"https://docs.google.com/spreadsheets/d/a", "https://docs.google.com/spreadsheets/d/b"}},
		{name: "no match", filter: link.Filter{Subject: "Химия"}, want: []string{}},
		{name: "trailing space is part of the substring", filter: link.Filter{Subject: "Физика "}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links, err := svc.Filter(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.NotNil(t, links)
			assert.Equal(t, tt.want, urls(links))
		})
	}
}

func TestService_FilterCache(t *testing.T) {
	ctx := context.Background()
	db, repo, svc := setup(t, cachesvc.NewMemoryCache(10, time.Minute))

	links, err := svc.Filter(ctx, link.Filter{Subject: "Физика"})
	require.NoError(t, err)
	require.Len(t, links, 2)

	_, err = repo.CreateLink(ctx, link.TableLink{StreamName: "ИУ7-3", Subject: "Физика", TeacherName: "Кузнецов К.К.", Link: "https://docs.google.com/spreadsheets/d/d"})
	require.NoError(t, err)

	// served from the cache, so the new link is not visible yet; keys ignore case
	db.FailOn("FilterLinks", errors.New("boom"))
	links, err = svc.Filter(ctx, link.Filter{Subject: "физика"})
	require.NoError(t, err)
	assert.Len(t, links, 2)
	db.FailOn("FilterLinks", nil)

	svc.InvalidateCache(ctx)
	links, err = svc.Filter(ctx, link.Filter{Subject: "Физика"})
	require.NoError(t, err)
	assert.Len(t, links, 3)

	t.Run("store failure", func(t *testing.T) {
		svc.InvalidateCache(ctx)
		db.FailOn("FilterLinks", errors.New("boom"))
		defer db.FailOn("FilterLinks", nil)

		links, err := svc.Filter(ctx, link.Filter{})
		assert.Nil(t, links)
		var dbErr *core.DatabaseError
		assert.ErrorAs(t, err, &dbErr)
	})
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenCache) Set(context.Context, string, []byte) error   { return errors.New("down") }
func (brokenCache) Purge(context.Context) error                 { return errors.New("down") }

func TestService_FilterWithoutCache(t *testing.T) {
	_, _, svc := setup(t, brokenCache{})

	links, err := svc.Filter(context.Background(), link.Filter{Stream: "ИУ7-1"})
	require.NoError(t, err)
	assert.Len(t, links, 2)
	svc.InvalidateCache(context.Background())
}

// racingRepository creates a link and invalidates the cache while the first read is in flight.
type racingRepository struct {
	link.Repository
	svc   *link.Service
	raced bool
}

func (r *racingRepository) FilterLinks(ctx context.Context, filter link.Filter, exec ...core.DBExecutor) ([]link.TableLink, error) {
	links, err := r.Repository.FilterLinks(ctx, filter, exec...)
	if err != nil || r.raced {
		return links, err
	}
	r.raced = true
	if _, err = r.Repository.CreateLink(ctx, link.TableLink{StreamName: "ИУ7-3", Subject: "Химия", Link: "https://docs.google.com/spreadsheets/d/d"}); err != nil {
		return nil, err
	}
	r.svc.InvalidateCache(ctx)
	return links, nil
}

func TestService_FilterInvalidatedDuringRead(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepository{Repository: dummydb.NewLinkRepository(dummydb.Open())}
	svc := link.NewService(repo, cachesvc.NewMemoryCache(10, time.Minute), core.NopLogger{})
	repo.svc = svc

	links, err := svc.Filter(ctx, link.Filter{Subject: "химия"})
	require.NoError(t, err)
	assert.Empty(t, links)

	// the read that overlapped the purge must not be cached
	links, err = svc.Filter(ctx, link.Filter{Subject: "химия"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs.google.com/spreadsheets/d/d"}, urls(links))
}
