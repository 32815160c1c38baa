package middleware

import (
	"net/http"

	"github.com/MrEthical07/authstate/session"
)

// StoreFactory returns the durable store backing one request's Manager.
type StoreFactory func(w http.ResponseWriter, r *http.Request) session.Store

// CookieStores keeps the record in the auth-data cookie itself.
func CookieStores(cfg session.CookieConfig) StoreFactory {
	return func(w http.ResponseWriter, r *http.Request) session.Store {
		return session.NewCookieStore(w, r, cfg)
	}
}

// RedisStores keeps the record in Redis under an opaque per-browser id cookie,
// so the token never leaves the server.
func RedisStores(rs *session.RedisStore, cfg session.CookieConfig) StoreFactory {
	return func(w http.ResponseWriter, r *http.Request) session.Store {
		return rs.Browser(session.BrowserID(w, r, cfg))
	}
}
