package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	portEnvVar    = "PORT"
	appNameEnvVar = "APP_NAME"
	dsnEnvVar     = "DATABASE_DSN"
	baseURLEnvVar = "BASE_URL"
)

// Config resolves service options from environment variables
type Config struct{}

func (Config) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (Config) GetAppName() string {
	return GetEnv(appNameEnvVar, "TalentHub Identity")
}

func (Config) GetDSN() string {
	return GetEnv(dsnEnvVar, "file:identity.db?cache=shared&_fk=1")
}

func (Config) GetBaseURL() string {
	return GetEnv(baseURLEnvVar, "http://localhost:8080")
}

func (Config) GetSigningKey() string {
	return GetEnv("JWT_SIGNING_KEY", "")
}

func (Config) GetSigningMethod() string {
	return GetEnv("JWT_SIGNING_METHOD", "HS256")
}

func (Config) GetContextKey() string {
	return GetEnv("JWT_CONTEXT_KEY", "session")
}

// GetTokenExpiration is the access token lifetime in minutes
func (Config) GetTokenExpiration() int {
	return GetEnvInt("JWT_TOKEN_EXPIRATION", 60)
}

// GetRefreshExpiration is the refresh token lifetime in hours
func (Config) GetRefreshExpiration() int {
	return GetEnvInt("JWT_REFRESH_EXPIRATION", 24)
}

func (Config) GetTokenLookup() string {
	return GetEnv("JWT_TOKEN_LOOKUP", "header:Authorization")
}

func (Config) GetAuthScheme() string {
	return GetEnv("JWT_AUTH_SCHEME", "Bearer")
}

func (Config) GetIssuer() string {
	return GetEnv("JWT_ISSUER", "talenthub-identity")
}

func (Config) GetAudience() []string {
	raw := GetEnv("JWT_AUDIENCE", "talenthub")
	var audience []string
	for _, aud := range strings.Split(raw, ",") {
		if aud = strings.TrimSpace(aud); aud != "" {
			audience = append(audience, aud)
		}
	}
	return audience
}

func (Config) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
