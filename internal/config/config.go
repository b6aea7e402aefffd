// Package config loads the server configuration from the environment into an
// explicit struct, constructed once in main and passed by reference into the
// components that need it. Endpoint URL templates and callback paths live
// here as named values, never as literals at call sites.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Callback paths registered with the OAuth app and the remote webhook
// installer. They are joined onto BaseURI to form the full URLs.
const (
	AuthCallbackPath    = "/auth/token"
	WebhookCallbackPath = "/webhook"
)

// Default Mailchimp endpoints. APIURLTemplate contains the <dc> placeholder
// substituted with a token's regional shard per request.
const (
	defaultAuthURL        = "https://login.mailchimp.com/oauth2/authorize"
	defaultTokenURL       = "https://login.mailchimp.com/oauth2/token"
	defaultMetadataURL    = "https://login.mailchimp.com/oauth2/metadata"
	defaultAPIURLTemplate = "https://<dc>.api.mailchimp.com/3.0/"
)

type Config struct {
	Port   int
	DBPath string

	// OAuth app credentials.
	ClientID     string
	ClientSecret string

	// Public base URI of this deployment; the OAuth redirect and the webhook
	// callback are derived from it.
	BaseURI     string
	RedirectURL string
	WebhookURL  string

	// Provider endpoints, overridable for tests.
	AuthURL        string
	TokenURL       string
	MetadataURL    string
	APIURLTemplate string
}

// Env abstracts os.Getenv so tests can inject a fixed environment.
type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// Load reads configuration from the process environment. A .env file in the
// working directory is loaded first if present; missing is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv(osEnv{})
}

func LoadFromEnv(env Env) (*Config, error) {
	cfg := &Config{
		Port:           8080,
		DBPath:         "data/listmirror.db",
		AuthURL:        defaultAuthURL,
		TokenURL:       defaultTokenURL,
		MetadataURL:    defaultMetadataURL,
		APIURLTemplate: defaultAPIURLTemplate,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("config: invalid PORT %q", raw)
		}
		cfg.Port = port
	}

	if raw := env.Getenv("DB_PATH"); raw != "" {
		cfg.DBPath = raw
	}

	cfg.ClientID = env.Getenv("MAILCHIMP_CLIENT_ID")
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("config: MAILCHIMP_CLIENT_ID is required")
	}
	cfg.ClientSecret = env.Getenv("MAILCHIMP_CLIENT_SECRET")
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("config: MAILCHIMP_CLIENT_SECRET is required")
	}

	cfg.BaseURI = env.Getenv("MAILCHIMP_BASE_URI")
	if cfg.BaseURI == "" {
		return nil, fmt.Errorf("config: MAILCHIMP_BASE_URI is required")
	}
	base, err := url.Parse(cfg.BaseURI)
	if err != nil {
		return nil, fmt.Errorf("config: MAILCHIMP_BASE_URI is not a valid URI: %w", err)
	}
	redirect, err := base.Parse(AuthCallbackPath)
	if err != nil {
		return nil, fmt.Errorf("config: building redirect URL: %w", err)
	}
	cfg.RedirectURL = redirect.String()
	webhook, err := base.Parse(WebhookCallbackPath)
	if err != nil {
		return nil, fmt.Errorf("config: building webhook URL: %w", err)
	}
	cfg.WebhookURL = webhook.String()

	if raw := env.Getenv("MAILCHIMP_AUTH_URL"); raw != "" {
		cfg.AuthURL = raw
	}
	if raw := env.Getenv("MAILCHIMP_TOKEN_URL"); raw != "" {
		cfg.TokenURL = raw
	}
	if raw := env.Getenv("MAILCHIMP_METADATA_URL"); raw != "" {
		cfg.MetadataURL = raw
	}
	if raw := env.Getenv("MAILCHIMP_API_URL_TEMPLATE"); raw != "" {
		cfg.APIURLTemplate = raw
	}

	return cfg, nil
}
