package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3000
	defaultEnv        = "development"
	defaultSiteName   = "Tech-Knowlogia"

	defaultDBDriver   = DriverMongo
	defaultMongoURI   = "mongodb://127.0.0.1:27017"
	defaultMongoName  = "techknowlogia"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBName     = "techknowlogia"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisURL   = "redis://localhost:6379/0"
	defaultMailVendor = MailProviderResend

	defaultConfirmTTL    = 48 * time.Hour
	defaultCooldown      = 60 * time.Second
	defaultPurgeInterval = 6 * time.Hour
	defaultPurgeAfter    = 30 * 24 * time.Hour
	defaultAdminTokenTTL = 12 * time.Hour
	defaultContentReload = 10 * time.Minute
	defaultContentDir    = "content"
	defaultSubscribeRate = 10
)

// Database drivers.
const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Mail providers.
const (
	MailProviderResend   = "resend"
	MailProviderSendGrid = "sendgrid"
	MailProviderSMTP     = "smtp"
	MailProviderLog      = "log"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvTokenSecret = "SUBSCRIBER_TOKEN_SECRET"
	EnvResendKey   = "RESEND_API_KEY"
	EnvResendFrom  = "RESEND_FROM_EMAIL"
	EnvSendGridKey = "SENDGRID_API_KEY"
	EnvMongoURI    = "MONGODB_URI"
	EnvRedisURL    = "REDIS_URL"
	EnvJWTSecret   = "JWT_SECRET"
	EnvSiteURL     = "NEXT_PUBLIC_APP_URL"
)
