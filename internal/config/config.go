package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	AuthModeAccountCredentials = "account_credentials"
	AuthModeJWT                = "jwt"

	defaultTenantKey = "default"
	defaultAPIBase   = "https://api.zoom.us/v2"
	defaultTokenURL  = "https://zoom.us/oauth/token"
)

// App holds the runtime configuration loaded from the environment and an
// optional YAML file named by CONFIG_FILE.
type App struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"dev"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string `yaml:"http_port" env:"HTTP_PORT" env-default:"3000"`

	DownloadDir         string        `yaml:"download_dir" env:"DOWNLOAD_FOLDER" env-default:"downloads"`
	ArchiveTimeZone     string        `yaml:"archive_time_zone" env:"ARCHIVE_TZ" env-default:"UTC"`
	PageSize            int           `yaml:"page_size" env:"PAGE_SIZE" env-default:"100"`
	UserIDs             []string      `yaml:"user_ids" env:"USER_IDS"`
	DeleteAfterDownload bool          `yaml:"delete_after_download" env:"DELETE_AFTER_DOWNLOAD" env-default:"true"`
	HTTPTimeout         time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" env-default:"30s"`

	ActiveTenant string            `yaml:"active_tenant" env:"ZOOM_TENANT" env-default:"default"`
	Tenant       Tenant            `yaml:"tenant" env-prefix:"ZOOM_"`
	Tenants      map[string]Tenant `yaml:"tenants"`

	QueueBackend string `yaml:"queue_backend" env:"QUEUE_BACKEND" env-default:"memory"`
	QueueKey     string `yaml:"queue_key" env:"QUEUE_KEY" env-default:"zoomarchive:webhooks"`
	RedisAddr    string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL"`

	RateLimitMax    int           `yaml:"rate_limit_max" env:"RATE_LIMIT_MAX" env-default:"100"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW" env-default:"15m"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"http://localhost:3000"`

	WebhookSecret  string `yaml:"webhook_secret" env:"ZOOM_WEBHOOK_SECRET"`
	AdminJWTKey    string `yaml:"admin_jwt_key" env:"ADMIN_JWT_KEY"`
	AdminJWTIssuer string `yaml:"admin_jwt_issuer" env:"ADMIN_JWT_ISSUER" env-default:"zoomarchive"`

	Schedule Schedule `yaml:"schedule" env-prefix:"SCHEDULE_"`
}

// Tenant is one set of provider credentials.
type Tenant struct {
	Name         string   `yaml:"name" env:"TENANT_NAME" env-default:"Default tenant"`
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	AccountID    string   `yaml:"account_id" env:"ACCOUNT_ID"`
	APIBaseURL   string   `yaml:"api_base_url" env:"CLOUD_API" env-default:"https://api.zoom.us/v2"`
	TokenURL     string   `yaml:"token_url" env:"TOKEN_URL" env-default:"https://zoom.us/oauth/token"`
	AuthMode     string   `yaml:"auth_mode" env:"AUTH_MODE" env-default:"account_credentials"`
	AllowedHosts []string `yaml:"allowed_hosts" env:"ALLOWED_HOSTS" env-default:"iscacpd*@isca.org.sg"`
}

// Schedule configures the daily archive run. An empty TimeZone follows the
// archive zone.
type Schedule struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED" env-default:"true"`
	Cron     string `yaml:"cron" env:"CRON" env-default:"58 23 * * *"`
	TimeZone string `yaml:"time_zone" env:"TZ"`
}

// Load reads CONFIG_FILE when set, then applies environment overrides.
func Load() (*App, error) {
	var cfg App
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 300 {
		return nil, fmt.Errorf("PAGE_SIZE must be between 1 and 300, got %d", cfg.PageSize)
	}
	cfg.UserIDs = trimAll(cfg.UserIDs)
	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad() *App {
	cfg, err := Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	return cfg
}

// ResolveTenant returns the key and settings of the active tenant. It is
// called once at start-up; the result is passed down explicitly.
func (a *App) ResolveTenant() (string, Tenant, error) {
	key := strings.TrimSpace(a.ActiveTenant)
	if key == "" {
		key = defaultTenantKey
	}

	tenant, ok := a.Tenants[key]
	if !ok {
		if key != defaultTenantKey {
			return "", Tenant{}, fmt.Errorf("tenant %q not found, available: %s", key, strings.Join(a.TenantKeys(), ", "))
		}
		tenant = a.Tenant
	}

	tenant = tenant.withDefaults()
	if err := tenant.validate(); err != nil {
		return "", Tenant{}, fmt.Errorf("tenant %q: %w", key, err)
	}
	return key, tenant, nil
}

// TenantKeys lists every configured tenant key, sorted.
func (a *App) TenantKeys() []string {
	keys := []string{defaultTenantKey}
	for k := range a.Tenants {
		if k != defaultTenantKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[1:])
	return keys
}

// ArchiveLocation is the zone used to derive archive dates.
func (a *App) ArchiveLocation() (*time.Location, error) {
	return time.LoadLocation(a.ArchiveTimeZone)
}

// ScheduleLocation is the zone the daily run is pinned to, the archive zone
// unless SCHEDULE_TZ overrides it.
func (a *App) ScheduleLocation() (*time.Location, error) {
	if a.Schedule.TimeZone == "" {
		return a.ArchiveLocation()
	}
	return time.LoadLocation(a.Schedule.TimeZone)
}

// tenants read from YAML maps skip cleanenv defaults.
func (t Tenant) withDefaults() Tenant {
	if t.APIBaseURL == "" {
		t.APIBaseURL = defaultAPIBase
	}
	if t.TokenURL == "" {
		t.TokenURL = defaultTokenURL
	}
	if t.AuthMode == "" {
		t.AuthMode = AuthModeAccountCredentials
	}
	t.APIBaseURL = strings.TrimRight(t.APIBaseURL, "/")
	t.AllowedHosts = trimAll(t.AllowedHosts)
	return t
}

func (t Tenant) validate() error {
	if t.ClientID == "" || t.ClientSecret == "" {
		return fmt.Errorf("client id and secret are required")
	}
	switch t.AuthMode {
	case AuthModeAccountCredentials:
		if t.AccountID == "" {
			return fmt.Errorf("account id is required for %s", AuthModeAccountCredentials)
		}
	case AuthModeJWT:
	default:
		return fmt.Errorf("unknown auth mode %q", t.AuthMode)
	}
	return nil
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
