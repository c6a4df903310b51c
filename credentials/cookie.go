package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

const (
	DefaultAccessCookie  = "access_token"
	DefaultRefreshCookie = "refresh_token"
)

// CookieStore reads and writes the pair as cookies in an http.CookieJar.
//
// It serves deployments where a trusted intermediary sets httpOnly credential cookies on the
// login and refresh responses: sharing the jar with the http.Client means those cookies land
// in the store without the client parsing them.
type CookieStore struct {
	jar           http.CookieJar
	origin        *url.URL
	accessCookie  string
	refreshCookie string
}

// NewCookieStore returns a store over jar scoped to origin. Empty cookie names fall back to
// DefaultAccessCookie and DefaultRefreshCookie.
func NewCookieStore(jar http.CookieJar, origin string, accessCookie, refreshCookie string) (*CookieStore, error) {
	if jar == nil {
		return nil, errors.New("cookie jar required")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("cookie store origin must be an absolute URL")
	}
	if accessCookie == "" {
		accessCookie = DefaultAccessCookie
	}
	if refreshCookie == "" {
		refreshCookie = DefaultRefreshCookie
	}
	return &CookieStore{
		jar:           jar,
		origin:        &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
		accessCookie:  accessCookie,
		refreshCookie: refreshCookie,
	}, nil
}

// Jar returns the underlying jar so it can be shared with an http.Client.
func (s *CookieStore) Jar() http.CookieJar {
	return s.jar
}

func (s *CookieStore) Get(context.Context) (Pair, error) {
	var pair Pair
	for _, c := range s.jar.Cookies(s.origin) {
		switch c.Name {
		case s.accessCookie:
			pair.AccessToken = c.Value
		case s.refreshCookie:
			pair.RefreshToken = c.Value
		}
	}
	return pair, nil
}

func (s *CookieStore) Set(ctx context.Context, pair Pair) error {
	cookies := make([]*http.Cookie, 0, 2)
	cookies = append(cookies, s.cookie(s.accessCookie, pair.AccessToken))
	cookies = append(cookies, s.cookie(s.refreshCookie, pair.RefreshToken))
	s.jar.SetCookies(s.origin, cookies)
	return nil
}

func (s *CookieStore) Clear(context.Context) error {
	s.jar.SetCookies(s.origin, []*http.Cookie{
		s.cookie(s.accessCookie, ""),
		s.cookie(s.refreshCookie, ""),
	})
	return nil
}

func (s *CookieStore) cookie(name, value string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.origin.Scheme == "https",
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
