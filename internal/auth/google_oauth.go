package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/remote"
)

const (
	stateCookie = "tq_oauth_state"

	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
)

// GoogleEndpoint is Google's OAuth 2.0 endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// PublicURL is where the browser lands after sign-in.
	PublicURL string

	Endpoint     oauth2.Endpoint // zero means GoogleEndpoint
	TokenInfoURL string
	HTTPClient   *http.Client
}

// Google signs users in with their Google account. The id token is
// checked with Google's tokeninfo endpoint and then handed to the backend.
type Google struct {
	oauth     *oauth2.Config
	tokenInfo string
	hc        *http.Client
	landing   string
	auth      remote.Auth
}

func NewGoogle(cfg GoogleConfig, auth remote.Auth) *Google {
	ep := cfg.Endpoint
	if ep.AuthURL == "" {
		ep = GoogleEndpoint
	}
	ti := cfg.TokenInfoURL
	if ti == "" {
		ti = googleTokenInfoURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{"openid", "email", "profile"},
		},
		tokenInfo: ti,
		hc:        hc,
		landing:   strings.TrimSuffix(cfg.PublicURL, "/") + "/dashboard",
		auth:      auth,
	}
}

// LoginHandler redirects to Google's consent page.
func (g *Google) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := randomState()
		if err != nil {
			http.Error(w, "state", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(10 * time.Minute),
		})
		http.Redirect(w, r, g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusFound)
	}
}

// CallbackHandler exchanges the code, verifies the id token, signs in with
// the backend and sets the access cookie.
func (g *Google) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		c, err := r.Cookie(stateCookie)
		if err != nil || c.Value == "" || q.Get("state") != c.Value {
			http.Error(w, "bad state", http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})

		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), oauth2.HTTPClient, g.hc)
		tok, err := g.oauth.Exchange(ctx, code)
		if err != nil {
			log.Printf("google: code exchange: %v", err)
			http.Error(w, "token exchange error", http.StatusBadGateway)
			return
		}
		idToken, _ := tok.Extra("id_token").(string)
		if idToken == "" {
			http.Error(w, "bad token response", http.StatusBadGateway)
			return
		}

		id, err := g.verify(r.Context(), idToken)
		if err != nil {
			log.Printf("google: %v", err)
			http.Error(w, "invalid id token", http.StatusUnauthorized)
			return
		}

		sess, err := g.auth.SignInWithIDToken(r.Context(), idToken, id)
		if err != nil {
			log.Printf("google: sign in %s: %v", id.Email, err)
			http.Error(w, "sign in failed", http.StatusBadGateway)
			return
		}
		authmw.SetAccessCookie(w, sess.AccessToken, sess.ExpiresAt)
		http.Redirect(w, r, g.landing, http.StatusFound)
	}
}

type tokenInfo struct {
	Iss           string `json:"iss"`
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) verify(ctx context.Context, idToken string) (remote.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.tokenInfo+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return remote.Identity{}, err
	}
	resp, err := g.hc.Do(req)
	if err != nil {
		return remote.Identity{}, fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return remote.Identity{}, fmt.Errorf("tokeninfo: %s", resp.Status)
	}
	var ti tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&ti); err != nil {
		return remote.Identity{}, fmt.Errorf("tokeninfo: %w", err)
	}
	switch {
	case ti.Aud != g.oauth.ClientID:
		return remote.Identity{}, fmt.Errorf("tokeninfo: audience %q", ti.Aud)
	case ti.Iss != "accounts.google.com" && ti.Iss != "https://accounts.google.com":
		return remote.Identity{}, fmt.Errorf("tokeninfo: issuer %q", ti.Iss)
	case ti.Email == "" || ti.EmailVerified != "true":
		return remote.Identity{}, fmt.Errorf("tokeninfo: email not verified")
	}
	return remote.Identity{Provider: "google", Subject: ti.Sub, Email: ti.Email, Name: ti.Name, Picture: ti.Picture}, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
