package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tq-random/tq-random/internal/remote"
)

/* ---------------- in-memory remote.Store ---------------- */

type memStore struct {
	tables map[string][]remote.Row
	nextID int64
	clock  int64

	// calls records "op table" for every mutation.
	calls []string
	// fail, when set, may veto a mutation before it is applied.
	fail func(op, table string, fields remote.Fields) error
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][]remote.Row{}, clock: 1_700_000_000}
}

func (m *memStore) CurrentSession(context.Context) (*remote.Session, error) { return nil, nil }

func (m *memStore) CurrentUser(context.Context) (remote.Profile, error) {
	return remote.Profile{}, remote.ErrNotAuthenticated
}

func (m *memStore) QueryOwnedRow(_ context.Context, table string, filters ...remote.Filter) (remote.Row, error) {
	for _, r := range m.tables[table] {
		if matches(r, filters) {
			return clone(r), nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertRow(ctx context.Context, table string, fields remote.Fields) (remote.Row, error) {
	if err := m.mutate(ctx, "insert", table, fields); err != nil {
		return nil, err
	}
	m.nextID++
	r := remote.Row{"id": m.nextID}
	for k, v := range fields {
		r[k] = v
	}
	if table == remote.TableTests || table == remote.TableQuestions {
		m.clock++
		r["created_at"] = m.clock
	}
	m.tables[table] = append(m.tables[table], r)
	return clone(r), nil
}

func (m *memStore) UpdateRow(ctx context.Context, table string, id int64, fields remote.Fields) (remote.Row, error) {
	if err := m.mutate(ctx, "update", table, fields); err != nil {
		return nil, err
	}
	for _, r := range m.tables[table] {
		if r.Int64("id") == id {
			for k, v := range fields {
				r[k] = v
			}
			return clone(r), nil
		}
	}
	return nil, remote.ErrNoRows
}

func (m *memStore) DeleteRow(ctx context.Context, table string, filters ...remote.Filter) error {
	if len(filters) == 0 {
		return errors.New("unfiltered delete")
	}
	if err := m.mutate(ctx, "delete", table, nil); err != nil {
		return err
	}
	kept := m.tables[table][:0]
	for _, r := range m.tables[table] {
		if !matches(r, filters) {
			kept = append(kept, r)
		}
	}
	m.tables[table] = kept
	return nil
}

func (m *memStore) QueryRows(_ context.Context, table string, q remote.Query) ([]remote.Row, error) {
	var out []remote.Row
	for _, r := range m.tables[table] {
		if matches(r, q.Filters) {
			out = append(out, clone(r))
		}
	}
	col := q.Order.Column
	if col == "" {
		col, q.Order.Ascending = "id", true
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := compare(a[col], b[col]); c != 0 {
			return (c < 0) == q.Order.Ascending
		}
		return a.Int64("id") < b.Int64("id")
	})
	if q.Range != nil {
		if q.Range.From >= len(out) {
			return []remote.Row{}, nil
		}
		to := q.Range.To + 1
		if to > len(out) {
			to = len(out)
		}
		out = out[q.Range.From:to]
	}
	return out, nil
}

func (m *memStore) mutate(ctx context.Context, op, table string, fields remote.Fields) error {
	m.calls = append(m.calls, op+" "+table)
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.fail != nil {
		if err := m.fail(op, table, fields); err != nil {
			return &remote.Error{Op: op, Table: table, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func (m *memStore) rows(table string, filters ...remote.Filter) []remote.Row {
	var out []remote.Row
	for _, r := range m.tables[table] {
		if matches(r, filters) {
			out = append(out, r)
		}
	}
	return out
}

// choiceTexts lists the question's choice texts in id order.
func (m *memStore) choiceTexts(questionID int64) []string {
	rows, _ := m.QueryRows(context.Background(), remote.TableAnswerChoices, remote.Query{
		Filters: []remote.Filter{remote.Eq("question_id", questionID)},
	})
	out := []string{}
	for _, r := range rows {
		out = append(out, r.String("text"))
	}
	return out
}

func (m *memStore) resetCalls() { m.calls = nil }

func matches(r remote.Row, filters []remote.Filter) bool {
	for _, f := range filters {
		v, ok := r[f.Column]
		switch f.Op {
		case remote.OpEq:
			if f.Value == nil {
				if ok && v != nil {
					return false
				}
				continue
			}
			if !ok || fmt.Sprint(v) != fmt.Sprint(f.Value) {
				return false
			}
		case remote.OpIn:
			hit := false
			for _, want := range f.Values {
				if ok && fmt.Sprint(v) == fmt.Sprint(want) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		case remote.OpILike:
			if !strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(f.Value))) {
				return false
			}
		}
	}
	return true
}

func compare(a, b any) int {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func clone(r remote.Row) remote.Row {
	out := make(remote.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
