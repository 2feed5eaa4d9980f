package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Teacher identity keys.
const (
	TeacherIdentityName  = "name"
	TeacherIdentityEmail = "email"
)

type (
	Config struct {
		Env          string
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Sheets   SheetsConfig
		Cache    CacheConfig
		Import   ImportConfig
	}

	ServerConfig struct {
		Host            string
		Port            string
		DebugHost       string
		ShutdownTimeout time.Duration
		BodyLimit       string
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Driver          string // postgres (lib/pq) | pgx
		Host            string
		Port            string
		User            string
		Password        string
		Name            string
		AdminUser       string
		AdminPassword   string
		DisableTLS      bool
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	SheetsConfig struct {
		CredentialsPath string
		ApplicationName string
		LessonsCount    int
		CallInterval    time.Duration
		PublicRole      string // reader | writer
	}

	CacheConfig struct {
		TTL       time.Duration
		Size      int
		RedisAddr string
		RedisDB   int
	}

	ImportConfig struct {
		TeacherIdentity         string // name | email
		PlaceholderTeacherEmail string
	}
)

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

// Validate rejects values the application cannot run with.
func (c *Config) Validate() error {
	if c.Sheets.LessonsCount < 1 {
		return errors.Errorf("sheets.lessonsCount must be positive, got %d", c.Sheets.LessonsCount)
	}
	switch c.Sheets.PublicRole {
	case "reader", "writer":
	default:
		return errors.Errorf("sheets.publicRole must be reader or writer, got %q", c.Sheets.PublicRole)
	}
	switch c.Import.TeacherIdentity {
	case TeacherIdentityName, TeacherIdentityEmail:
	default:
		return errors.Errorf("import.teacherIdentity must be name or email, got %q", c.Import.TeacherIdentity)
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return errors.Errorf("database.driver must be postgres or pgx, got %q", c.Database.Driver)
	}
	return nil
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "StudentTracker")
	conf.SetDefault("build", "develop")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "")
	conf.SetDefault("server.port", "8080")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.bodyLimit", "32M")
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.driver", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.user", "tracker")
	conf.SetDefault("database.password", "tracker")
	conf.SetDefault("database.name", "tracker")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.maxOpenConns", 10)
	conf.SetDefault("database.maxIdleConns", 5)
	conf.SetDefault("database.connMaxLifetime", 30*time.Minute)

	conf.SetDefault("sheets.credentialsPath", "config/credentials.json")
	conf.SetDefault("sheets.applicationName", "Student Attendance Tracker")
	conf.SetDefault("sheets.lessonsCount", 17)
	conf.SetDefault("sheets.callInterval", time.Second)
	conf.SetDefault("sheets.publicRole", "writer")

	conf.SetDefault("cache.ttl", 10*time.Minute)
	conf.SetDefault("cache.size", 500)
	conf.SetDefault("cache.redisAddr", "")
	conf.SetDefault("cache.redisDB", 0)

	conf.SetDefault("import.teacherIdentity", TeacherIdentityName)
	conf.SetDefault("import.placeholderTeacherEmail", "studenttrackerteachertest@gmail.com")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	// DEV_SERVER_PORT overrides server.port
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	c := &Config{
		Env:          env,
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		Build:        conf.GetString("build"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Port:            conf.GetString("server.port"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			BodyLimit:       conf.GetString("server.bodyLimit"),
			DisableReqLogs:  conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Driver:          conf.GetString("database.driver"),
			Host:            conf.GetString("database.host"),
			Port:            conf.GetString("database.port"),
			User:            conf.GetString("database.user"),
			Password:        conf.GetString("database.password"),
			Name:            conf.GetString("database.name"),
			AdminUser:       conf.GetString("database.adminUser"),
			AdminPassword:   conf.GetString("database.adminPassword"),
			DisableTLS:      conf.GetBool("database.disableTLS"),
			MaxOpenConns:    conf.GetInt("database.maxOpenConns"),
			MaxIdleConns:    conf.GetInt("database.maxIdleConns"),
			ConnMaxLifetime: conf.GetDuration("database.connMaxLifetime"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: conf.GetString("sheets.credentialsPath"),
			ApplicationName: conf.GetString("sheets.applicationName"),
			LessonsCount:    conf.GetInt("sheets.lessonsCount"),
			CallInterval:    conf.GetDuration("sheets.callInterval"),
			PublicRole:      strings.ToLower(conf.GetString("sheets.publicRole")),
		},
		Cache: CacheConfig{
			TTL:       conf.GetDuration("cache.ttl"),
			Size:      conf.GetInt("cache.size"),
			RedisAddr: conf.GetString("cache.redisAddr"),
			RedisDB:   conf.GetInt("cache.redisDB"),
		},
		Import: ImportConfig{
			TeacherIdentity:         strings.ToLower(conf.GetString("import.teacherIdentity")),
			PlaceholderTeacherEmail: conf.GetString("import.placeholderTeacherEmail"),
		},
	}
	if err := c.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}
