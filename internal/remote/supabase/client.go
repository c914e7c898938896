// Package supabase is a remote store backed by a hosted Supabase project:
// GoTrue for accounts, PostgREST for rows.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/remote"
)

type Client struct {
	baseURL string
	anonKey string
	// tokens verifies access tokens locally when the project JWT secret is
	// known; otherwise every session check is a round trip to GoTrue.
	tokens *authmw.AuthService
	hc     *http.Client
}

var _ remote.Backend = (*Client)(nil)

func New(baseURL, anonKey, jwtSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		hc:      &http.Client{Timeout: timeout},
	}
	if jwtSecret != "" {
		c.tokens = authmw.NewAuthService(jwtSecret)
	}
	return c
}

// ---- rows (PostgREST) ----

func (c *Client) QueryOwnedRow(ctx context.Context, table string, filters ...remote.Filter) (remote.Row, error) {
	rows, err := c.QueryRows(ctx, table, remote.Query{Filters: filters, Range: &remote.Range{From: 0, To: 0}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *Client) QueryRows(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	v := filterValues(q.Filters)
	v.Set("select", "*")
	if q.Order.Column != "" {
		dir := "desc"
		if q.Order.Ascending {
			dir = "asc"
		}
		v.Set("order", q.Order.Column+"."+dir)
	} else {
		v.Set("order", "id.asc")
	}
	if q.Range != nil {
		n := q.Range.To - q.Range.From + 1
		if n < 0 {
			n = 0
		}
		v.Set("limit", strconv.Itoa(n))
		v.Set("offset", strconv.Itoa(q.Range.From))
	}
	var out []remote.Row
	if err := c.do(ctx, "select", table, http.MethodGet, restPath(table), v, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) InsertRow(ctx context.Context, table string, fields remote.Fields) (remote.Row, error) {
	var out []remote.Row
	err := c.do(ctx, "insert", table, http.MethodPost, restPath(table), nil, fields, &out,
		map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, remote.OpError("insert", table, remote.ErrNoRows)
	}
	return out[0], nil
}

func (c *Client) UpdateRow(ctx context.Context, table string, id int64, fields remote.Fields) (remote.Row, error) {
	v := filterValues([]remote.Filter{remote.Eq("id", id)})
	var out []remote.Row
	err := c.do(ctx, "update", table, http.MethodPatch, restPath(table), v, fields, &out,
		map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, remote.ErrNoRows
	}
	return out[0], nil
}

func (c *Client) DeleteRow(ctx context.Context, table string, filters ...remote.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: refusing to delete without filters", table)
	}
	return c.do(ctx, "delete", table, http.MethodDelete, restPath(table), filterValues(filters), nil, nil, nil)
}

func restPath(table string) string { return "/rest/v1/" + url.PathEscape(table) }

func filterValues(filters []remote.Filter) url.Values {
	v := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case remote.OpEq:
			if f.Value == nil {
				v.Add(f.Column, "is.null")
			} else {
				v.Add(f.Column, "eq."+fmt.Sprint(f.Value))
			}
		case remote.OpIn:
			parts := make([]string, len(f.Values))
			for i, x := range f.Values {
				parts[i] = quoteIn(fmt.Sprint(x))
			}
			v.Add(f.Column, "in.("+strings.Join(parts, ",")+")")
		case remote.OpILike:
			s, _ := f.Value.(string)
			v.Add(f.Column, "ilike.*"+likeLiteral(s)+"*")
		}
	}
	return v
}

// likeLiteral escapes LIKE wildcards in a search term. PostgREST turns
// every * into % before Postgres sees it, so a literal * can only be
// approximated by the single-character wildcard.
var likeLiteral = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `_`).Replace

// quoteIn double-quotes list members that PostgREST would otherwise split.
func quoteIn(s string) string {
	if strings.ContainsAny(s, `,()" `) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// ---- transport ----

// apiError covers both PostgREST and GoTrue error bodies.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Err              string `json:"error"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Err} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, op, table, method, path string, q url.Values, body, out any, hdr map[string]string) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	c.authorize(ctx, req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return remote.OpError(op, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errorFrom(op, table, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return remote.OpError(op, table, err)
	}
	return nil
}

// authorize sets the project key and the caller's token, falling back to
// the anon key for anonymous calls.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	bearer := remote.AccessTokenFromContext(ctx)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
}

// errorFrom turns a failed response into a *remote.Error carrying the
// backend's message as sent.
func errorFrom(op, table string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.text()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = resp.Status
	}
	return &remote.Error{Op: op, Table: table, Status: resp.StatusCode, Message: msg}
}
