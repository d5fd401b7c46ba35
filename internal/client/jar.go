package client

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"pft/internal/log"
	"pft/internal/tokenstore"
)

// KeyCookies is the durable key holding server-set cookies.
const KeyCookies = "cookies"

type storedCookie struct {
	Scheme   string    `json:"scheme"`
	Host     string    `json:"host"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (s storedCookie) id() string { return s.Host + "|" + s.Path + "|" + s.Name }

// persistentJar mirrors cookies set by the server into durable storage and
// restores them on construction, the way a browser keeps its cookie store.
type persistentJar struct {
	inner   http.CookieJar
	mu      sync.Mutex
	durable tokenstore.Durable
	logger  *log.Logger
	stored  map[string]storedCookie
}

var _ http.CookieJar = (*persistentJar)(nil)

func newPersistentJar(inner http.CookieJar, durable tokenstore.Durable, logger *log.Logger) *persistentJar {
	j := &persistentJar{
		inner:   inner,
		durable: durable,
		logger:  logger,
		stored:  map[string]storedCookie{},
	}
	j.load()
	return j
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		sc := storedCookie{
			Scheme:   u.Scheme,
			Host:     u.Host,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if sc.Path == "" {
			sc.Path = defaultCookiePath(u.Path)
		}
		switch {
		case c.MaxAge < 0, !c.Expires.IsZero() && !c.Expires.After(now):
			delete(j.stored, sc.id())
			continue
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		default:
			sc.Expires = c.Expires
		}
		j.stored[sc.id()] = sc
	}
	j.save()
}

func (j *persistentJar) load() {
	raw, found, err := j.durable.Get(KeyCookies)
	if err != nil || !found {
		if err != nil {
			j.logger.Warn("Failed to load cookies", log.FieldError, err)
		}
		return
	}
	var cookies []storedCookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		j.logger.Warn("Discarding unreadable cookies", log.FieldError, err)
		return
	}
	now := time.Now()
	for _, sc := range cookies {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		j.stored[sc.id()] = sc
		u := &url.URL{Scheme: sc.Scheme, Host: sc.Host, Path: sc.Path}
		j.inner.SetCookies(u, []*http.Cookie{{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}})
	}
}

// save is called with j.mu held.
func (j *persistentJar) save() {
	if len(j.stored) == 0 {
		if err := j.durable.Delete(KeyCookies); err != nil {
			j.logger.Warn("Failed to clear cookies", log.FieldError, err)
		}
		return
	}
	list := make([]storedCookie, 0, len(j.stored))
	for _, sc := range j.stored {
		list = append(list, sc)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := j.durable.Set(KeyCookies, string(data)); err != nil {
		j.logger.Warn("Failed to persist cookies", log.FieldError, err)
	}
}

func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	dir := path.Dir(p)
	if dir == "." {
		return "/"
	}
	return dir
}
