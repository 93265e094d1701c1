// Package transport exposes the tutor over HTTP: a websocket chat
// endpoint, session management routes, and a health check.
package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// User is an authenticated student.
type User struct {
	ID               string
	Name             string
	ProgrammingLevel int
	MathsLevel       int
}

// Authenticator resolves the user behind a request. The transport
// rejects requests it cannot resolve; everything past it has a user.
type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

// TokenAuthenticator maps static bearer tokens to users. Suitable for
// small deployments where the roster lives in configuration; anything
// bigger should implement Authenticator against its identity provider.
type TokenAuthenticator struct {
	users map[string]User
}

// NewTokenAuthenticator builds an authenticator from token -> user
// entries of the form "token=id:name:programmingLevel:mathsLevel".
func NewTokenAuthenticator(entries []string) (*TokenAuthenticator, error) {
	users := make(map[string]User, len(entries))
	for _, e := range entries {
		token, spec, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("auth entry %q: want token=id:name:prog:maths", e)
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("auth entry %q: want token=id:name:prog:maths", e)
		}
		prog, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("auth entry %q: bad programming level: %w", e, err)
		}
		maths, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("auth entry %q: bad maths level: %w", e, err)
		}
		users[token] = User{ID: parts[0], Name: parts[1], ProgrammingLevel: prog, MathsLevel: maths}
	}
	return &TokenAuthenticator{users: users}, nil
}

// Authenticate accepts the token as a Bearer header or, for websocket
// clients that cannot set headers, a "token" query parameter.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (*User, error) {
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		return nil, fmt.Errorf("missing credentials")
	}
	u, ok := a.users[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &u, nil
}
