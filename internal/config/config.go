package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string
	Site           SiteConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Mail           MailConfig
	Subscribe      SubscribeConfig
	Admin          AdminConfig
	Content        ContentConfig
	Paths          RuntimePathsConfig
	Tracing        TracingConfig
	AllowedOrigins []string
}

type SiteConfig struct {
	URL  string
	Name string
}

type DatabaseConfig struct {
	Driver string
	Mongo  MongoConfig
	MySQL  MySQLConfig
}

type MongoConfig struct {
	URI  string
	Name string
}

type MySQLConfig struct {
	DSN       string
	Host      string
	Port      int
	User      string
	Password  string
	Name      string
	Charset   string
	ParseTime bool
	Loc       string
	Params    map[string]string
}

type RedisConfig struct {
	URL string
	// SubscribeRate is the number of subscribe requests one IP may send per minute.
	SubscribeRate int
}

type MailConfig struct {
	Provider    string
	From        string
	ReplyTo     string
	ResendKey   string
	SendGridKey string
	SMTP        SMTPConfig
}

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
}

type SubscribeConfig struct {
	TokenSecret   string
	ConfirmTTL    time.Duration
	Cooldown      time.Duration
	PurgeInterval time.Duration
	// PurgeAfter is how long an expired token is kept before the purge job
	// clears it. Until then the confirm link still answers "expired".
	PurgeAfter time.Duration
}

type AdminConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

type ContentConfig struct {
	Dir            string
	ReloadInterval time.Duration
}

type RuntimePathsConfig struct {
	Logs string
}

type TracingConfig struct {
	Enable bool
}

type rawAppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"`
	NodeEnv        string             `yaml:"node_env"`
	Site           rawSiteConfig      `yaml:"site"`
	SiteURL        string             `yaml:"site_url"`
	Database       rawDatabaseConfig  `yaml:"database"`
	Redis          rawRedisConfig     `yaml:"redis"`
	RedisURL       string             `yaml:"redis_url"`
	Mail           rawMailConfig      `yaml:"mail"`
	Subscribe      rawSubscribeConfig `yaml:"subscribe"`
	Admin          rawAdminConfig     `yaml:"admin"`
	Content        rawContentConfig   `yaml:"content"`
	Paths          rawPathsConfig     `yaml:"paths"`
	LogDir         string             `yaml:"log_dir"`
	Tracing        rawTracingConfig   `yaml:"tracing"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
}

type rawSiteConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type rawDatabaseConfig struct {
	Driver string         `yaml:"driver"`
	Mongo  rawMongoConfig `yaml:"mongo"`
	MySQL  rawMySQLConfig `yaml:"mysql"`
}

type rawMongoConfig struct {
	URI  string `yaml:"uri"`
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type rawMySQLConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL           string `yaml:"url"`
	SubscribeRate *int   `yaml:"subscribe_rate"`
}

type rawMailConfig struct {
	Provider    string        `yaml:"provider"`
	From        string        `yaml:"from"`
	ReplyTo     string        `yaml:"reply_to"`
	ResendKey   string        `yaml:"resend_key"`
	SendGridKey string        `yaml:"sendgrid_key"`
	SMTP        rawSMTPConfig `yaml:"smtp"`
}

type rawSMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type rawSubscribeConfig struct {
	TokenSecret   string `yaml:"token_secret"`
	ConfirmTTL    string `yaml:"confirm_ttl"`
	Cooldown      string `yaml:"cooldown"`
	PurgeInterval string `yaml:"purge_interval"`
	PurgeAfter    string `yaml:"purge_after"`
}

type rawAdminConfig struct {
	PasswordHash string `yaml:"password_hash"`
	JWTSecret    string `yaml:"jwt_secret"`
	TokenTTL     string `yaml:"token_ttl"`
}

type rawContentConfig struct {
	Dir            string `yaml:"dir"`
	ReloadInterval string `yaml:"reload_interval"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawTracingConfig struct {
	Enable bool `yaml:"enable"`
}

// Load reads the YAML file at configPath, applies environment overrides and
// validates the result. A missing file is not an error: defaults plus
// environment variables are used instead.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	raw := rawAppConfig{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := applyRawAppConfig(&cfg, raw); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	applyEnvOverrides(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Site: SiteConfig{Name: defaultSiteName},
		Database: DatabaseConfig{
			Driver: defaultDBDriver,
			Mongo: MongoConfig{
				URI:  defaultMongoURI,
				Name: defaultMongoName,
			},
			MySQL: normalizeMySQLConfig(MySQLConfig{ParseTime: true}),
		},
		Redis: RedisConfig{
			URL:           defaultRedisURL,
			SubscribeRate: defaultSubscribeRate,
		},
		Mail: MailConfig{Provider: defaultMailVendor},
		Subscribe: SubscribeConfig{
			ConfirmTTL:    defaultConfirmTTL,
			Cooldown:      defaultCooldown,
			PurgeInterval: defaultPurgeInterval,
			PurgeAfter:    defaultPurgeAfter,
		},
		Admin:   AdminConfig{TokenTTL: defaultAdminTokenTTL},
		Content: ContentConfig{Dir: defaultContentDir, ReloadInterval: defaultContentReload},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	cfg.Env = normalizeEnv(cfg.Env)

	if v := strings.TrimSpace(raw.Site.URL); v != "" {
		cfg.Site.URL = v
	}
	if v := strings.TrimSpace(raw.SiteURL); v != "" {
		cfg.Site.URL = v
	}
	if v := strings.TrimSpace(raw.Site.Name); v != "" {
		cfg.Site.Name = v
	}
	cfg.Site.URL = normalizeSiteURL(cfg.Site.URL)

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw.Database)

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.Redis.URL = v
	}
	if raw.Redis.SubscribeRate != nil {
		cfg.Redis.SubscribeRate = *raw.Redis.SubscribeRate
	}
	cfg.Redis.URL = normalizeRedisRawURL(cfg.Redis.URL)

	cfg.Mail = applyRawMailConfig(cfg.Mail, raw.Mail)

	if v := strings.TrimSpace(raw.Subscribe.TokenSecret); v != "" {
		cfg.Subscribe.TokenSecret = v
	}
	var err error
	if cfg.Subscribe.ConfirmTTL, err = parseDuration("subscribe.confirm_ttl", raw.Subscribe.ConfirmTTL, cfg.Subscribe.ConfirmTTL); err != nil {
		return err
	}
	if cfg.Subscribe.Cooldown, err = parseDuration("subscribe.cooldown", raw.Subscribe.Cooldown, cfg.Subscribe.Cooldown); err != nil {
		return err
	}
	if cfg.Subscribe.PurgeInterval, err = parseDuration("subscribe.purge_interval", raw.Subscribe.PurgeInterval, cfg.Subscribe.PurgeInterval); err != nil {
		return err
	}
	if cfg.Subscribe.PurgeAfter, err = parseDuration("subscribe.purge_after", raw.Subscribe.PurgeAfter, cfg.Subscribe.PurgeAfter); err != nil {
		return err
	}

	if v := strings.TrimSpace(raw.Admin.PasswordHash); v != "" {
		cfg.Admin.PasswordHash = v
	}
	if v := strings.TrimSpace(raw.Admin.JWTSecret); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if cfg.Admin.TokenTTL, err = parseDuration("admin.token_ttl", raw.Admin.TokenTTL, cfg.Admin.TokenTTL); err != nil {
		return err
	}

	if v := strings.TrimSpace(raw.Content.Dir); v != "" {
		cfg.Content.Dir = v
	}
	if cfg.Content.ReloadInterval, err = parseDuration("content.reload_interval", raw.Content.ReloadInterval, cfg.Content.ReloadInterval); err != nil {
		return err
	}

	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}

	cfg.Tracing.Enable = raw.Tracing.Enable
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	return nil
}

func applyRawDatabaseConfig(current DatabaseConfig, raw rawDatabaseConfig) DatabaseConfig {
	cfg := current
	if v := strings.ToLower(strings.TrimSpace(raw.Driver)); v != "" {
		cfg.Driver = v
	}

	if v := strings.TrimSpace(raw.Mongo.URI); v != "" {
		cfg.Mongo.URI = v
	}
	if v := strings.TrimSpace(raw.Mongo.URL); v != "" {
		cfg.Mongo.URI = v
	}
	if v := strings.TrimSpace(raw.Mongo.Name); v != "" {
		cfg.Mongo.Name = v
	}

	my := cfg.MySQL
	if v := strings.TrimSpace(raw.MySQL.DSN); v != "" {
		my.DSN = v
	}
	if v := strings.TrimSpace(raw.MySQL.Host); v != "" {
		my.Host = v
	}
	if raw.MySQL.Port != 0 {
		my.Port = raw.MySQL.Port
	}
	if v := strings.TrimSpace(raw.MySQL.User); v != "" {
		my.User = v
	}
	if v := strings.TrimSpace(raw.MySQL.Username); v != "" {
		my.User = v
	}
	if v := strings.TrimSpace(raw.MySQL.Password); v != "" {
		my.Password = v
	}
	if v := strings.TrimSpace(raw.MySQL.Name); v != "" {
		my.Name = v
	}
	if v := strings.TrimSpace(raw.MySQL.Charset); v != "" {
		my.Charset = v
	}
	if raw.MySQL.ParseTime != nil {
		my.ParseTime = *raw.MySQL.ParseTime
	}
	if v := strings.TrimSpace(raw.MySQL.Loc); v != "" {
		my.Loc = v
	}
	if raw.MySQL.Params != nil {
		my.Params = copyStringMap(raw.MySQL.Params)
	}
	cfg.MySQL = normalizeMySQLConfig(my)
	return cfg
}

func applyRawMailConfig(current MailConfig, raw rawMailConfig) MailConfig {
	cfg := current
	if v := strings.ToLower(strings.TrimSpace(raw.Provider)); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if v := strings.TrimSpace(raw.ReplyTo); v != "" {
		cfg.ReplyTo = v
	}
	if v := strings.TrimSpace(raw.ResendKey); v != "" {
		cfg.ResendKey = v
	}
	if v := strings.TrimSpace(raw.SendGridKey); v != "" {
		cfg.SendGridKey = v
	}
	if v := strings.TrimSpace(raw.SMTP.Host); v != "" {
		cfg.SMTP.Host = v
	}
	if raw.SMTP.Port != 0 {
		cfg.SMTP.Port = raw.SMTP.Port
	}
	if v := strings.TrimSpace(raw.SMTP.User); v != "" {
		cfg.SMTP.User = v
	}
	if v := strings.TrimSpace(raw.SMTP.Pass); v != "" {
		cfg.SMTP.Pass = v
	}
	return cfg
}

// applyEnvOverrides lets deployments keep secrets out of the YAML file.
func applyEnvOverrides(cfg *AppConfig, getenv func(string) string) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := env(EnvTokenSecret); v != "" {
		cfg.Subscribe.TokenSecret = v
	}
	if v := env(EnvResendKey); v != "" {
		cfg.Mail.ResendKey = v
	}
	if v := env(EnvResendFrom); v != "" {
		cfg.Mail.From = v
	}
	if v := env(EnvSendGridKey); v != "" {
		cfg.Mail.SendGridKey = v
	}
	if v := env(EnvMongoURI); v != "" {
		cfg.Database.Mongo.URI = v
	}
	if v := env(EnvRedisURL); v != "" {
		cfg.Redis.URL = normalizeRedisRawURL(v)
	}
	if v := env(EnvJWTSecret); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := env(EnvSiteURL); v != "" && cfg.Site.URL == "" {
		cfg.Site.URL = normalizeSiteURL(v)
	}
}

// Validate checks configuration eagerly so that missing secrets surface at
// startup rather than deep inside a request.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.Mongo.URI == "" {
			return fmt.Errorf("database.mongo.uri is required (or set %s)", EnvMongoURI)
		}
	case DriverMySQL:
		if c.Database.MySQL.Port < 1 || c.Database.MySQL.Port > 65535 {
			return fmt.Errorf("invalid database.mysql.port %d, expected 1-65535", c.Database.MySQL.Port)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Subscribe.TokenSecret == "" {
		return fmt.Errorf("subscribe.token_secret is not configured (set %s)", EnvTokenSecret)
	}
	if c.Subscribe.ConfirmTTL <= 0 {
		return errors.New("subscribe.confirm_ttl must be positive")
	}
	if c.Subscribe.Cooldown < 0 {
		return errors.New("subscribe.cooldown must not be negative")
	}
	switch c.Mail.Provider {
	case MailProviderResend:
		if c.Mail.ResendKey == "" {
			return fmt.Errorf("mail.resend_key is not configured (set %s)", EnvResendKey)
		}
	case MailProviderSendGrid:
		if c.Mail.SendGridKey == "" {
			return fmt.Errorf("mail.sendgrid_key is not configured (set %s)", EnvSendGridKey)
		}
	case MailProviderSMTP:
		if c.Mail.SMTP.Host == "" {
			return errors.New("mail.smtp.host is not configured")
		}
	case MailProviderLog:
	default:
		return fmt.Errorf("unknown mail.provider %q", c.Mail.Provider)
	}
	if c.Mail.Provider != MailProviderLog && c.Mail.From == "" {
		return fmt.Errorf("mail.from is not configured (set %s)", EnvResendFrom)
	}
	if c.Admin.PasswordHash != "" && c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required when admin.password_hash is set (set %s)", EnvJWTSecret)
	}
	return nil
}

func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return d, nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// AdminEnabled reports whether the admin dashboard API should be mounted.
func (c *AppConfig) AdminEnabled() bool {
	return c.Admin.PasswordHash != "" && c.Admin.JWTSecret != ""
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) ContentDir() string {
	if c == nil {
		return ResolveRuntimePath("", defaultContentDir)
	}
	return ResolveRuntimePath(c.Content.Dir, defaultContentDir)
}
