package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	api "github.com/tq-random/tq-random/internal/api/http"
)

func navRequest(remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/navigation?path=/", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestClientKey_AnonymousSessionsBehindOneAddress(t *testing.T) {
	a := navRequest("203.0.113.7")
	a.Header.Set(api.NavSessionHeader, "browser-a")
	b := navRequest("203.0.113.7")
	b.Header.Set(api.NavSessionHeader, "browser-b")

	ka := api.ClientKeyForTest(httptest.NewRecorder(), a)
	kb := api.ClientKeyForTest(httptest.NewRecorder(), b)
	if ka == kb {
		t.Fatalf("two browsers behind one address share key %q", ka)
	}
}

func TestClientKey_OneBrowserAcrossConnections(t *testing.T) {
	a := navRequest("198.51.100.2:50001")
	a.AddCookie(&http.Cookie{Name: "tq_nav", Value: "s-1"})
	b := navRequest("198.51.100.2:50002")
	b.AddCookie(&http.Cookie{Name: "tq_nav", Value: "s-1"})

	if ka, kb := api.ClientKeyForTest(httptest.NewRecorder(), a), api.ClientKeyForTest(httptest.NewRecorder(), b); ka != kb {
		t.Fatalf("same browser got keys %q and %q", ka, kb)
	}
}

func TestClientKey_FirstContactSetsCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	key := api.ClientKeyForTest(rec, navRequest("198.51.100.2:50001"))

	var issued *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tq_nav" {
			issued = c
		}
	}
	if issued == nil || issued.Value == "" {
		t.Fatal("no navigation session cookie issued")
	}

	again := navRequest("10.0.0.9:1234")
	again.AddCookie(issued)
	if got := api.ClientKeyForTest(httptest.NewRecorder(), again); got != key {
		t.Fatalf("cookie not honoured: %q vs %q", got, key)
	}

	other := api.ClientKeyForTest(httptest.NewRecorder(), navRequest("198.51.100.2:50001"))
	if other == key {
		t.Fatal("a second cookieless client reused the first session")
	}
}

func TestClientKey_TokenWins(t *testing.T) {
	a := navRequest("203.0.113.7")
	a.Header.Set("Authorization", "Bearer tok-1")
	a.Header.Set(api.NavSessionHeader, "browser-a")
	b := navRequest("203.0.113.8")
	b.Header.Set("Authorization", "Bearer tok-1")

	if ka, kb := api.ClientKeyForTest(httptest.NewRecorder(), a), api.ClientKeyForTest(httptest.NewRecorder(), b); ka != kb {
		t.Fatalf("one session token mapped to %q and %q", ka, kb)
	}
}
