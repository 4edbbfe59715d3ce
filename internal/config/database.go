package config

import (
	"fmt"
	"net/url"
)

// Use url.UserPassword so credentials with reserved characters survive.
func buildDSN(user, password, host string, port int, database, sslmode string) string {
	userInfo := url.UserPassword(user, password)
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo.String(),
		host,
		port,
		url.PathEscape(database),
		sslmode,
	)
}
