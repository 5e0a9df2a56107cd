package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		AllowedOrigins            []string
		DefaultFromEmail          mail.Address
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		RabbitMQ RabbitMQConfig
		Google   GoogleConfig
		Storage  StorageConfig
		Presence PresenceConfig
	}

	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		PublicURL                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		URI            string
		Name           string
		ConnectTimeout time.Duration
	}

	RedisConfig struct {
		URL string // optional: in-memory token revocation when empty
	}

	RabbitMQConfig struct {
		URL      string // optional: events are dropped when empty
		Exchange string
	}

	GoogleConfig struct {
		CalendarCredentialsFile string
		CalendarID              string
		DriveCredentialsFile    string
		DriveFolderID           string
	}

	StorageConfig struct {
		Backend string // gdrive | disk
		Dir     string
	}

	PresenceConfig struct {
		WriteWait  time.Duration
		PongWait   time.Duration
		PingPeriod time.Duration
		SendBuffer int
	}
)

// NewConfig loads the configuration from the environment.
// ENV selects the environment (DEV by default, TEST, QA, PROD) and is used as the
// prefix of every variable, e.g. PROD_DATABASE_URI.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "ShowTime Portal")
	v.SetDefault("secretKey", "wq3-0f!x9%k2v*7m_b4dz&n1c$8hy#t6r+j5p=e^u@a)sg(l")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.publicURL", "http://localhost:8000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "portal")
	v.SetDefault("database.connectTimeout", 10*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "portal.events")

	v.SetDefault("google.calendarCredentialsFile", "")
	v.SetDefault("google.calendarID", "primary")
	v.SetDefault("google.driveCredentialsFile", "")
	v.SetDefault("google.driveFolderID", "")

	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.dir", filepath.Join(os.TempDir(), "portal-files"))

	v.SetDefault("presence.writeWait", 10*time.Second)
	v.SetDefault("presence.pongWait", 60*time.Second)
	v.SetDefault("presence.pingPeriod", 54*time.Second)
	v.SetDefault("presence.sendBuffer", 64)

	if env == "TEST" {
		v.SetDefault("testMode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		AllowedOrigins:            v.GetStringSlice("allowedOrigins"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			PublicURL:                 strings.TrimSuffix(v.GetString("server.publicURL"), "/"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			URI:            v.GetString("database.uri"),
			Name:           v.GetString("database.name"),
			ConnectTimeout: v.GetDuration("database.connectTimeout"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
		},
		Google: GoogleConfig{
			CalendarCredentialsFile: v.GetString("google.calendarCredentialsFile"),
			CalendarID:              v.GetString("google.calendarID"),
			DriveCredentialsFile:    v.GetString("google.driveCredentialsFile"),
			DriveFolderID:           v.GetString("google.driveFolderID"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
			Dir:     v.GetString("storage.dir"),
		},
		Presence: PresenceConfig{
			WriteWait:  v.GetDuration("presence.writeWait"),
			PongWait:   v.GetDuration("presence.pongWait"),
			PingPeriod: v.GetDuration("presence.pingPeriod"),
			SendBuffer: v.GetInt("presence.sendBuffer"),
		},
	}
}
