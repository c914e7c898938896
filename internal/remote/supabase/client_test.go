package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/remote"
	"github.com/tq-random/tq-random/internal/storage"
)

// recorded is the last request the fake project saw.
type recorded struct {
	method, path, rawQuery, auth, prefer string
	body                                 map[string]any
}

func fakeProject(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon" {
			t.Errorf("missing apikey header")
		}
		rec.method, rec.path, rec.rawQuery = r.Method, r.URL.Path, r.URL.RawQuery
		rec.auth, rec.prefer = r.Header.Get("Authorization"), r.Header.Get("Prefer")
		rec.body = nil
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestQueryRows_EncodesFiltersOrderAndRange(t *testing.T) {
	srv, rec := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 7, "title": "Algebra", "created_at": "2024-05-01T10:00:00+00:00"}]`))
	})
	c := New(srv.URL, "anon", "", time.Second)
	ctx := remote.WithAccessToken(context.Background(), "user-token")

	rows, err := c.QueryRows(ctx, remote.TableTests, remote.Query{
		Filters: []remote.Filter{remote.Eq("user_id", "u1"), remote.In("id", int64(1), int64(2)), remote.ILike("title", "alg")},
		Order:   remote.Order{Column: "created_at"},
		Range:   &remote.Range{From: 10, To: 19},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rec.path != "/rest/v1/tests" || rec.auth != "Bearer user-token" {
		t.Fatalf("path=%q auth=%q", rec.path, rec.auth)
	}
	want := "id=in.%281%2C2%29&limit=10&offset=10&order=created_at.desc&select=%2A&title=ilike.%2Aalg%2A&user_id=eq.u1"
	if rec.rawQuery != want {
		t.Fatalf("query string\n got %s\nwant %s", rec.rawQuery, want)
	}
	if len(rows) != 1 || rows[0].Int64("id") != 7 || rows[0].Time("created_at").IsZero() {
		t.Fatalf("rows = %v", rows)
	}
}

func TestQueryRows_SearchWildcardsAreLiteral(t *testing.T) {
	srv, rec := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c := New(srv.URL, "anon", "", time.Second)

	_, err := c.QueryRows(context.Background(), remote.TableTests, remote.Query{
		Filters: []remote.Filter{remote.ILike("title", `50%_a\b`)},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	q, _ := url.ParseQuery(rec.rawQuery)
	if got, want := q.Get("title"), `ilike.*50\%\_a\\b*`; got != want {
		t.Fatalf("title filter = %s, want %s", got, want)
	}
}

func TestInsertAndUpdate_ReturnRepresentation(t *testing.T) {
	srv, rec := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id": 3, "text": "B", "question_id": 1}]`))
	})
	c := New(srv.URL, "anon", "", time.Second)
	ctx := context.Background()

	row, err := c.InsertRow(ctx, remote.TableAnswerChoices, remote.Fields{"question_id": 1, "text": "B"})
	if err != nil || row.Int64("id") != 3 {
		t.Fatalf("insert = %v, %v", row, err)
	}
	if rec.prefer != "return=representation" || rec.body["text"] != "B" || rec.auth != "Bearer anon" {
		t.Fatalf("insert request %+v", rec)
	}

	_, err = c.UpdateRow(ctx, remote.TableAnswerChoices, 99, remote.Fields{"text": "C"})
	if !errors.Is(err, remote.ErrNoRows) {
		t.Fatalf("want ErrNoRows, got %v", err)
	}
	if rec.rawQuery != "id=eq.99" {
		t.Fatalf("update filter %q", rec.rawQuery)
	}
}

func TestBackendErrorMessageIsVerbatim(t *testing.T) {
	srv, _ := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"answers_question_id_key\""}`))
	})
	c := New(srv.URL, "anon", "", time.Second)

	err := c.DeleteRow(context.Background(), remote.TableAnswers, remote.Eq("question_id", 1))
	var re *remote.Error
	if !errors.As(err, &re) {
		t.Fatalf("want *remote.Error, got %v", err)
	}
	if re.Status != http.StatusConflict || re.Message != `duplicate key value violates unique constraint "answers_question_id_key"` {
		t.Fatalf("error = %+v", re)
	}
	if err := c.DeleteRow(context.Background(), remote.TableAnswers); err == nil {
		t.Fatal("unfiltered delete accepted")
	}
}

func TestSignIn_MapsInvalidCredentials(t *testing.T) {
	srv, rec := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})
	c := New(srv.URL, "anon", "", time.Second)

	_, err := c.SignInWithPassword(context.Background(), "a@b.c", "nope")
	if !errors.Is(err, remote.ErrInvalidCredentials) {
		t.Fatalf("want invalid credentials, got %v", err)
	}
	if rec.rawQuery != "grant_type=password" || rec.body["email"] != "a@b.c" {
		t.Fatalf("token request %+v", rec)
	}
}

func TestCurrentSession_LocalVerification(t *testing.T) {
	c := New("http://unused.invalid", "anon", "project-secret", time.Second)
	tok, _, err := authmw.NewAuthService("project-secret").IssueJWT("u-1", "u@x.io", "sid-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := c.CurrentSession(remote.WithAccessToken(context.Background(), tok))
	if err != nil || sess == nil || sess.UserID != "u-1" || sess.ID != "sid-1" {
		t.Fatalf("session = %+v, %v", sess, err)
	}

	other, _, _ := authmw.NewAuthService("someone-else").IssueJWT("u-1", "", "", time.Minute)
	if sess, err := c.CurrentSession(remote.WithAccessToken(context.Background(), other)); sess != nil || err != nil {
		t.Fatalf("foreign token accepted: %+v, %v", sess, err)
	}
}

func TestCurrentSession_RemoteLookup(t *testing.T) {
	status := http.StatusOK
	srv, _ := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"id":"u-9","email":"n@x.io","app_metadata":{"is_admin":true}}`))
		} else {
			_, _ = w.Write([]byte(`{"msg":"boom"}`))
		}
	})
	c := New(srv.URL, "anon", "", time.Second)
	ctx := remote.WithAccessToken(context.Background(), "opaque")

	sess, err := c.CurrentSession(ctx)
	if err != nil || sess == nil || sess.UserID != "u-9" {
		t.Fatalf("session = %+v, %v", sess, err)
	}
	prof, err := c.CurrentUser(ctx)
	if err != nil || !prof.IsAdmin {
		t.Fatalf("profile = %+v, %v", prof, err)
	}

	status = http.StatusUnauthorized
	if sess, err := c.CurrentSession(ctx); sess != nil || err != nil {
		t.Fatalf("401 should be anonymous: %+v, %v", sess, err)
	}

	status = http.StatusInternalServerError
	if _, err := c.CurrentSession(ctx); !errors.Is(err, remote.ErrAuthResolution) {
		t.Fatalf("500 should be an auth resolution failure, got %v", err)
	}
	if _, err := c.CurrentUser(ctx); !errors.Is(err, remote.ErrAuthResolution) {
		t.Fatalf("want ErrAuthResolution, got %v", err)
	}
}

func TestCurrentUser_IgnoresSelfGrantedAdmin(t *testing.T) {
	srv, _ := fakeProject(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u-3","email":"m@x.io","app_metadata":{"provider":"email"},"user_metadata":{"is_admin":true}}`))
	})
	c := New(srv.URL, "anon", "", time.Second)

	prof, err := c.CurrentUser(remote.WithAccessToken(context.Background(), "opaque"))
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if prof.IsAdmin {
		t.Fatal("user_metadata.is_admin must not grant admin")
	}
}

func TestStorage_PutOpenAndURL(t *testing.T) {
	var uploaded []byte
	var ctype, upsert string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/avatars/u1-avatar.png" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		switch r.Method {
		case http.MethodPost:
			uploaded, _ = io.ReadAll(r.Body)
			ctype, upsert = r.Header.Get("Content-Type"), r.Header.Get("x-upsert")
			_, _ = w.Write([]byte(`{"Key":"avatars/u1-avatar.png"}`))
		case http.MethodGet:
			_, _ = w.Write(uploaded)
		}
	}))
	t.Cleanup(srv.Close)

	st := New(srv.URL, "anon", "", time.Second).Storage()
	ctx := remote.WithAccessToken(context.Background(), "user-token")

	if err := st.Put(ctx, "avatars/u1-avatar.png", "image/png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ctype != "image/png" || upsert != "true" {
		t.Fatalf("content-type=%q upsert=%q", ctype, upsert)
	}
	rc, err := st.Open(ctx, "avatars/u1-avatar.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "png-bytes" {
		t.Fatalf("read back %q", got)
	}
	if u := st.URL("avatars/u1-avatar.png"); u != srv.URL+"/storage/v1/object/public/avatars/u1-avatar.png" {
		t.Fatalf("url = %s", u)
	}
}

func TestStorage_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"new row violates row-level security policy"}`))
	}))
	t.Cleanup(srv.Close)
	st := New(srv.URL, "anon", "", time.Second).Storage()

	err := st.Put(context.Background(), "avatars/x.png", "image/png", strings.NewReader("x"))
	var re *remote.Error
	if !errors.As(err, &re) || re.Status != http.StatusForbidden || re.Message != "new row violates row-level security policy" {
		t.Fatalf("err = %v", err)
	}
	if err := st.Put(context.Background(), "nobucket.png", "", strings.NewReader("x")); !errors.Is(err, storage.ErrBadKey) {
		t.Fatalf("want ErrBadKey, got %v", err)
	}
}
