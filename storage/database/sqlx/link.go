package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/storage/database"
)

type linkRow struct {
	ID          int         `db:"id"`
	StreamName  string      `db:"stream_name"`
	Subject     string      `db:"subject"`
	TeacherName null.String `db:"teacher_name"`
	Link        string      `db:"link"`
	CreatedAt   time.Time   `db:"created_at"`
}

var linkColumns = []string{"id", "stream_name", "subject", "teacher_name", "link", "created_at"}

func (r linkRow) toLink() link.TableLink {
	return link.TableLink{
		ID:          r.ID,
		StreamName:  r.StreamName,
		Subject:     r.Subject,
		TeacherName: r.TeacherName.String,
		Link:        r.Link,
		CreatedAt:   r.CreatedAt,
	}
}

type linkRepository struct {
	repository
}

var _ link.Repository = (*linkRepository)(nil)

func NewLinkRepository(db *database.DB) *linkRepository {
	return &linkRepository{repository{db: db}}
}

func (repo *linkRepository) FilterLinks(ctx context.Context, filter link.Filter, exec ...core.DBExecutor) ([]link.TableLink, error) {
	query := psql.Select(linkColumns...).From("table_links").OrderBy("id")
	if filter.Stream != "" {
		query = query.Where(sq.ILike{"stream_name": containsPattern(filter.Stream)})
	}
	if filter.Subject != "" {
		query = query.Where(sq.ILike{"subject": containsPattern(filter.Subject)})
	}
	if filter.Teacher != "" {
		query = query.Where(sq.ILike{"teacher_name": containsPattern(filter.Teacher)})
	}

	var rows []linkRow
	if err := repo.selectAll(ctx, &rows, query, exec); err != nil {
		return nil, errors.Wrap(err, "selecting links")
	}
	links := make([]link.TableLink, 0, len(rows))
	for _, r := range rows {
		links = append(links, r.toLink())
	}
	return links, nil
}

func (repo *linkRepository) GetLink(ctx context.Context, stream, subject string, exec ...core.DBExecutor) (link.TableLink, error) {
	var row linkRow
	query := psql.Select(linkColumns...).From("table_links").
		Where(sq.Eq{"stream_name": stream, "subject": subject})
	if err := repo.get(ctx, &row, query, exec); err != nil {
		return link.TableLink{}, trapNoRowsErr(err, link.ErrNotFound)
	}
	return row.toLink(), nil
}

func (repo *linkRepository) CreateLink(ctx context.Context, l link.TableLink, exec ...core.DBExecutor) (link.TableLink, error) {
	var row linkRow
	query := psql.Insert("table_links").
		Columns("stream_name", "subject", "teacher_name", "link").
		Values(l.StreamName, l.Subject, nullString(l.TeacherName), l.Link).
		Suffix("RETURNING " + joinColumns(linkColumns))
	if err := repo.get(ctx, &row, query, exec); err != nil {
		if database.IsUniqueViolation(err) {
			return link.TableLink{}, link.ErrExists
		}
		return link.TableLink{}, errors.Wrap(err, "inserting link")
	}
	return row.toLink(), nil
}

func (repo *linkRepository) DeleteAllLinks(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	n, err := repo.exec(ctx, psql.Delete("table_links"), exec)
	return n, errors.Wrap(err, "deleting links")
}
