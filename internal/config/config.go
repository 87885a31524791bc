// Package config loads service configuration from the environment once
// at startup.
package config

import (
	"errors"
	"os"
	"strings"
)

// Config holds everything the service reads from the environment.
type Config struct {
	// PostgresDSN is the connection string for the durable store.
	PostgresDSN string
	// TokenSecret signs invitation and reset tokens (HS256).
	TokenSecret string
	// AMQPURL points at the notification broker; empty disables
	// dispatch.
	AMQPURL string
	// EmailQueue is the queue notification jobs are published to.
	EmailQueue string

	// FrontendURL plus the path fields build the links embedded in
	// notifications.
	FrontendURL           string
	RegistrationPath      string
	ResetConfirmPath      string
	EventLoginPath        string
	EventRegistrationPath string

	// DefaultOrganization names the tenant whose e-mail templates act
	// as the global fallback.
	DefaultOrganization string

	// ListenAddr is the operational HTTP listener (metrics, health).
	ListenAddr string
}

// FromEnv reads configuration from BUILDLY_* environment variables.
func FromEnv() *Config {
	return &Config{
		PostgresDSN:           os.Getenv("BUILDLY_PG_DSN"),
		TokenSecret:           os.Getenv("BUILDLY_TOKEN_SECRET"),
		AMQPURL:               os.Getenv("BUILDLY_AMQP_URL"),
		EmailQueue:            getenv("BUILDLY_EMAIL_QUEUE", "email_jobs"),
		FrontendURL:           getenv("BUILDLY_FRONTEND_URL", "http://localhost:3000"),
		RegistrationPath:      getenv("BUILDLY_REGISTRATION_PATH", "/register"),
		ResetConfirmPath:      getenv("BUILDLY_RESETPASS_CONFIRM_PATH", "/reset-password-confirm"),
		EventLoginPath:        getenv("BUILDLY_EVENT_LOGIN_PATH", "/event/login"),
		EventRegistrationPath: getenv("BUILDLY_EVENT_REGISTRATION_PATH", "/event/register"),
		DefaultOrganization:   getenv("BUILDLY_DEFAULT_ORG", "Default"),
		ListenAddr:            getenv("BUILDLY_LISTEN_ADDR", ":8080"),
	}
}

// Validate checks the fields without which the service cannot start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TokenSecret) == "" {
		return errors.New("config: BUILDLY_TOKEN_SECRET is required")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
