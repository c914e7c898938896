// Package sqlstore is a self-hosted remote store over database/sql. It
// serves the same table/filter surface as a hosted backend, so the rest of
// the application cannot tell the two apart.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/remote"
)

// columns lists every table and column the store will touch. Names are
// interpolated into SQL, so nothing outside this set is accepted.
var columns = map[string][]string{
	remote.TableTests:         {"id", "user_id", "title", "description", "created_at"},
	remote.TableQuestions:     {"id", "test_id", "text", "created_at"},
	remote.TableAnswerChoices: {"id", "question_id", "text"},
	remote.TableAnswers:       {"id", "question_id", "answer_choice_id"},
}

// stamped tables get created_at filled on insert.
var stamped = map[string]bool{remote.TableTests: true, remote.TableQuestions: true}

type Store struct {
	db         *sql.DB
	tokens     *authmw.AuthService
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ remote.Backend = (*Store)(nil)

func New(db *sql.DB, tokens *authmw.AuthService, accessTTL, refreshTTL time.Duration) *Store {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Store{db: db, tokens: tokens, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

func (s *Store) QueryOwnedRow(ctx context.Context, table string, filters ...remote.Filter) (remote.Row, error) {
	rows, err := s.selectRows(ctx, table, remote.Query{Filters: filters, Range: &remote.Range{From: 0, To: 0}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Store) QueryRows(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	return s.selectRows(ctx, table, q)
}

func (s *Store) selectRows(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	where, args, err := whereClause(table, q.Filters, 1)
	if err != nil {
		return nil, err
	}
	order := "id"
	if q.Order.Column != "" {
		if !hasColumn(table, q.Order.Column) {
			return nil, fmt.Errorf("%w: %s.%s", remote.ErrUnknownTable, table, q.Order.Column)
		}
		order = q.Order.Column
	}
	dir := "DESC"
	if q.Order.Ascending || q.Order.Column == "" {
		dir = "ASC"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ","), table)
	b.WriteString(where)
	fmt.Fprintf(&b, " ORDER BY %s %s", order, dir)
	if order != "id" {
		b.WriteString(", id ASC")
	}
	if q.Range != nil {
		n := q.Range.To - q.Range.From + 1
		if n < 0 {
			n = 0
		}
		args = append(args, n, q.Range.From)
		fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, remote.OpError("select", table, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, remote.OpError("select", table, err)
	}
	return out, nil
}

func (s *Store) InsertRow(ctx context.Context, table string, fields remote.Fields) (remote.Row, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	if stamped[table] {
		if _, ok := fields["created_at"]; !ok {
			fields = withField(fields, "created_at", s.now().Unix())
		}
	}
	names, args, err := fieldList(table, fields)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("insert %s: no fields", table)
	}
	ph := make([]string, len(names))
	for i := range names {
		ph[i] = "$" + strconv.Itoa(i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(names, ","), strings.Join(ph, ","), strings.Join(cols, ","))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, remote.OpError("insert", table, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, remote.OpError("insert", table, err)
	}
	if len(out) == 0 {
		return nil, remote.OpError("insert", table, remote.ErrNoRows)
	}
	return out[0], nil
}

func (s *Store) UpdateRow(ctx context.Context, table string, id int64, fields remote.Fields) (remote.Row, error) {
	cols, err := tableColumns(table)
	if err != nil {
		return nil, err
	}
	upd := make(remote.Fields, len(fields))
	for k, v := range fields {
		if k != "id" {
			upd[k] = v
		}
	}
	names, args, err := fieldList(table, upd)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		row, err := s.QueryOwnedRow(ctx, table, remote.Eq("id", id))
		if err == nil && row == nil {
			err = remote.ErrNoRows
		}
		return row, err
	}
	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = fmt.Sprintf("%s=$%d", n, i+1)
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d RETURNING %s",
		table, strings.Join(sets, ","), len(args), strings.Join(cols, ","))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, remote.OpError("update", table, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, remote.OpError("update", table, err)
	}
	if len(out) == 0 {
		return nil, remote.ErrNoRows
	}
	return out[0], nil
}

func (s *Store) DeleteRow(ctx context.Context, table string, filters ...remote.Filter) error {
	if _, err := tableColumns(table); err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: refusing to delete without filters", table)
	}
	where, args, err := whereClause(table, filters, 1)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+where, args...); err != nil {
		return remote.OpError("delete", table, err)
	}
	return nil
}

// ---- SQL building ----

func tableColumns(table string) ([]string, error) {
	cols, ok := columns[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnknownTable, table)
	}
	return cols, nil
}

func hasColumn(table, col string) bool {
	for _, c := range columns[table] {
		if c == col {
			return true
		}
	}
	return false
}

func withField(f remote.Fields, k string, v any) remote.Fields {
	out := make(remote.Fields, len(f)+1)
	for kk, vv := range f {
		out[kk] = vv
	}
	out[k] = v
	return out
}

// fieldList returns column names in sorted order with matching args.
func fieldList(table string, f remote.Fields) ([]string, []any, error) {
	names := make([]string, 0, len(f))
	for k := range f {
		if !hasColumn(table, k) {
			return nil, nil, fmt.Errorf("%w: %s.%s", remote.ErrUnknownTable, table, k)
		}
		names = append(names, k)
	}
	sort.Strings(names)
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = f[n]
	}
	return names, args, nil
}

func whereClause(table string, filters []remote.Filter, next int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		if !hasColumn(table, f.Column) {
			return "", nil, fmt.Errorf("%w: %s.%s", remote.ErrUnknownTable, table, f.Column)
		}
		switch f.Op {
		case remote.OpEq:
			if f.Value == nil {
				parts = append(parts, f.Column+" IS NULL")
				continue
			}
			args = append(args, f.Value)
			parts = append(parts, fmt.Sprintf("%s = $%d", f.Column, next))
			next++
		case remote.OpIn:
			if len(f.Values) == 0 {
				parts = append(parts, "1=0")
				continue
			}
			ph := make([]string, len(f.Values))
			for i, v := range f.Values {
				args = append(args, v)
				ph[i] = "$" + strconv.Itoa(next)
				next++
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(ph, ",")))
		case remote.OpILike:
			s, _ := f.Value.(string)
			args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE $%d ESCAPE '\'`, f.Column, next))
			next++
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanRows(rows *sql.Rows) ([]remote.Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []remote.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(remote.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
