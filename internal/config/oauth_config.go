package config

import "time"

type OAuthConfig interface {
	GetSessionInactivityWindow() time.Duration
	GetDefaultTokenExpiry() time.Duration
	GetSweepInterval() time.Duration
	GetLoginSessionTTL() time.Duration
	GetDefaultScope() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetSessionInactivityWindow bounds how long an authorization attempt may
// sit idle between redirects before it times out.
func (OAuth) GetSessionInactivityWindow() time.Duration {
	return durationEnv("SESSION_INACTIVITY_WINDOW", 10*time.Minute)
}

func (OAuth) GetDefaultTokenExpiry() time.Duration {
	return durationEnv("TOKEN_EXPIRY", 1*time.Hour)
}

// GetSweepInterval is the period of the shared janitor that evicts expired
// sessions and tokens.
func (OAuth) GetSweepInterval() time.Duration {
	return durationEnv("SWEEP_INTERVAL", 1*time.Minute)
}

// GetLoginSessionTTL bounds the login/consent form round trip.
func (OAuth) GetLoginSessionTTL() time.Duration {
	return durationEnv("LOGIN_SESSION_TTL", 5*time.Minute)
}

// GetDefaultScope is applied when an authorization or token request omits
// the scope parameter. Empty means scopeless requests fail invalid_scope.
func (OAuth) GetDefaultScope() string {
	return GetEnv("DEFAULT_SCOPE", "")
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
