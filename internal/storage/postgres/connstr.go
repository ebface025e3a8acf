package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	pq "github.com/lib/pq"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// connInfo is a connection string in either URL or key=value form.
type connInfo struct {
	raw string
	u   *url.URL // nil for key=value
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

func parseConnInfo(raw string) (connInfo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return connInfo{}, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if !isURL(raw) {
		return connInfo{raw: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return connInfo{}, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
	}
	return connInfo{raw: raw, u: u}, nil
}

// param looks key up case-insensitively in the URL query or among key=value pairs.
func (c connInfo) param(key string) (string, bool) {
	if c.u != nil {
		for k, v := range c.u.Query() {
			if strings.EqualFold(k, key) && len(v) > 0 {
				return v[0], true
			}
		}
		return "", false
	}
	for _, field := range strings.Fields(c.raw) {
		k, v, ok := strings.Cut(field, "=")
		if ok && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (c connInfo) withParam(key, value string) string {
	if c.u == nil {
		return c.raw + " " + key + "=" + value
	}
	u := *c.u
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c connInfo) hasPassword() bool {
	if c.u != nil {
		_, set := c.u.User.Password()
		return set
	}
	_, set := c.param("password")
	return set
}

// ValidateConnString accepts a PostgreSQL URL or key=value string that carries no
// password. Credentials belong in the OS keyring, .pgpass or PG* environment variables.
func ValidateConnString(connStr string) (bool, error) {
	ci, err := parseConnInfo(connStr)
	if err != nil {
		return false, err
	}
	if _, err := pq.NewConnector(ci.raw); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}
	if ci.hasPassword() {
		return false, ErrEmbeddedCredentials
	}
	if ci.u != nil && ci.u.Host == "" && ci.u.User == nil && strings.Trim(ci.u.Path, "/") == "" {
		return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
	}
	return true, nil
}
