package dummydb

import (
	"context"
	"time"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/link"
)

type linkRepository struct {
	db *DB
}

var _ link.Repository = (*linkRepository)(nil) // interface compliance check

func NewLinkRepository(db *DB) link.Repository {
	return &linkRepository{db: db}
}

func (repo *linkRepository) FilterLinks(_ context.Context, filter link.Filter, _ ...core.DBExecutor) ([]link.TableLink, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("FilterLinks"); err != nil {
		return nil, err
	}

	var links []link.TableLink
	for _, id := range sortedKeys(repo.db.data.links) {
		if l := repo.db.data.links[id]; filter.Match(l) {
			links = append(links, l)
		}
	}
	return links, nil
}

func (repo *linkRepository) GetLink(_ context.Context, stream, subject string, _ ...core.DBExecutor) (link.TableLink, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if err := repo.db.fault("GetLink"); err != nil {
		return link.TableLink{}, err
	}

	for _, l := range repo.db.data.links {
		if l.StreamName == stream && l.Subject == subject {
			return l, nil
		}
	}
	return link.TableLink{}, link.ErrNotFound
}

func (repo *linkRepository) CreateLink(_ context.Context, l link.TableLink, _ ...core.DBExecutor) (link.TableLink, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("CreateLink"); err != nil {
		return link.TableLink{}, err
	}

	for _, existing := range repo.db.data.links {
		if existing.StreamName == l.StreamName && existing.Subject == l.Subject {
			return link.TableLink{}, link.ErrExists
		}
	}
	l.ID = repo.db.data.nextID()
	l.CreatedAt = time.Now().UTC()
	repo.db.data.links[l.ID] = l
	return l, nil
}

func (repo *linkRepository) DeleteAllLinks(_ context.Context, _ ...core.DBExecutor) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if err := repo.db.fault("DeleteAllLinks"); err != nil {
		return 0, err
	}

	n := int64(len(repo.db.data.links))
	repo.db.data.links = make(map[int]link.TableLink)
	return n, nil
}
