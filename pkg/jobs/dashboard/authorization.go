package dashboard

import (
	"crypto/subtle"
	"net"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AuthorizationFilter decides whether a request may use the dashboard.
type AuthorizationFilter interface {
	Authorize(r *http.Request) bool
}

// Challenger is implemented by filters that can ask the client for credentials.
type Challenger interface {
	Challenge(w http.ResponseWriter)
}

// AuthorizationFunc adapts a function to AuthorizationFilter.
type AuthorizationFunc func(r *http.Request) bool

// Authorize calls f.
func (f AuthorizationFunc) Authorize(r *http.Request) bool {
	return f(r)
}

// LocalRequestsOnly allows requests coming from a loopback address.
func LocalRequestsOnly() AuthorizationFilter {
	return AuthorizationFunc(func(r *http.Request) bool {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	})
}

type basicAuth struct {
	realm string
	users map[string][]byte
}

// BasicAuth allows requests carrying HTTP basic credentials that match a
// bcrypt hash in users (username to hash).
func BasicAuth(realm string, users map[string]string) AuthorizationFilter {
	b := &basicAuth{realm: realm, users: make(map[string][]byte, len(users))}
	for user, hash := range users {
		b.users[user] = []byte(hash)
	}
	return b
}

// dummyHash keeps the response time of unknown users close to known ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("jobkit"), bcrypt.MinCost)

func (b *basicAuth) Authorize(r *http.Request) bool {
	user, password, ok := r.BasicAuth()
	if !ok {
		return false
	}

	hash, known := b.users[user]
	if !known {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// Challenge asks the client for basic credentials.
func (b *basicAuth) Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+b.realm+`", charset="UTF-8"`)
}

// HashPassword returns a bcrypt hash usable with BasicAuth.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// HeaderToken allows requests whose header carries token.
func HeaderToken(header, token string) AuthorizationFilter {
	return AuthorizationFunc(func(r *http.Request) bool {
		got := r.Header.Get(header)
		return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
	})
}
