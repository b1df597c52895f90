package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Merge is a COPY-staged upsert into one table. Rows are copied into a
// transaction-scoped staging table and merged with a single
// INSERT ... ON CONFLICT statement, so a batch lands entirely or not at all.
type Merge struct {
	// Table may be schema-qualified.
	Table string
	// Key is the unique constraint rows conflict on.
	Key []string
	// Columns is the column order of every row.
	Columns []string
	// Stamp, when set, is written as now() on insert and on update. It must
	// not appear in Columns.
	Stamp string
}

func (m Merge) validate() error {
	switch {
	case m.Table == "":
		return eris.New("db: merge: no table")
	case len(m.Columns) == 0:
		return eris.New("db: merge: no columns")
	case len(m.Key) == 0:
		return eris.New("db: merge: no conflict key")
	}
	cols := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		cols[c] = true
	}
	for _, k := range m.Key {
		if !cols[k] {
			return eris.Errorf("db: merge: key column %q not in columns", k)
		}
	}
	if cols[m.Stamp] {
		return eris.Errorf("db: merge: stamp column %q listed in columns", m.Stamp)
	}
	return nil
}

func (m Merge) staging() string {
	name := m.Table
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return "staging_" + name
}

func (m Merge) createSQL() string {
	return "CREATE TEMP TABLE " + pgx.Identifier{m.staging()}.Sanitize() +
		" (LIKE " + tableIdent(m.Table) + " INCLUDING DEFAULTS) ON COMMIT DROP"
}

func (m Merge) mergeSQL() string {
	key := make(map[string]bool, len(m.Key))
	for _, k := range m.Key {
		key[k] = true
	}

	insertCols := idents(m.Columns)
	selectCols := idents(m.Columns)
	var sets []string
	for _, c := range m.Columns {
		if !key[c] {
			q := pgx.Identifier{c}.Sanitize()
			sets = append(sets, q+" = EXCLUDED."+q)
		}
	}
	if m.Stamp != "" {
		q := pgx.Identifier{m.Stamp}.Sanitize()
		insertCols = append(insertCols, q)
		selectCols = append(selectCols, "now()")
		sets = append(sets, q+" = now()")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO " + tableIdent(m.Table))
	b.WriteString(" (" + strings.Join(insertCols, ", ") + ")")
	b.WriteString(" SELECT " + strings.Join(selectCols, ", "))
	b.WriteString(" FROM " + pgx.Identifier{m.staging()}.Sanitize())
	b.WriteString(" ON CONFLICT (" + strings.Join(idents(m.Key), ", ") + ")")
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	}
	return b.String()
}

// Run merges rows and returns the number of rows inserted or updated. Rows
// must not repeat a key within one call.
func (m Merge) Run(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := m.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, m.createSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: merge: stage %s", m.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{m.staging()}, m.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: copy %d rows for %s", len(rows), m.Table)
	}
	tag, err := tx.Exec(ctx, m.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: insert into %s", m.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: merge: commit tx")
	}
	return tag.RowsAffected(), nil
}

// tableIdent quotes a possibly schema-qualified table name.
func tableIdent(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func idents(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgx.Identifier{c}.Sanitize()
	}
	return out
}
