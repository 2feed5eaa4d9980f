package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// repository holds the default executor used when no transaction is passed.
type repository struct {
	db sqlx.ExtContext
}

func (repo repository) getExec(exec []core.DBExecutor) (sqlx.ExtContext, error) {
	if len(exec) > 0 && exec[0] != nil {
		ext, ok := exec[0].(sqlx.ExtContext)
		if !ok {
			return nil, errors.Errorf("unsupported executor %T", exec[0])
		}
		return ext, nil
	}
	return repo.db, nil
}

func (repo repository) selectAll(ctx context.Context, dest interface{}, query sq.Sqlizer, exec []core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, ext, dest, q, args...)
}

func (repo repository) get(ctx context.Context, dest interface{}, query sq.Sqlizer, exec []core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	q, args, err := query.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, ext, dest, q, args...)
}

func (repo repository) exec(ctx context.Context, query sq.Sqlizer, exec []core.DBExecutor) (int64, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return 0, err
	}
	q, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := ext.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// trapNoRowsErr swaps sql.ErrNoRows for the domain's not found error.
func trapNoRowsErr(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
