package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // Single shared library owner, no login (default)
	AuthModeLocal AuthMode = "local" // Local user database with sessions and API tokens
)

type (
	Config struct {
		HTTP
		Global
		Database
		Imports
		ImportLog
		Library
		Audit
		Tasks
		Scheduler
		Auth
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Imports struct {
		Dir         string // Folder the import-books command resolves file names against
		MaxUploadKB int64  // Upload cap for the HTTP import endpoint
		Delimiter   string
	}
	ImportLog struct {
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Stderr     bool // Mirror the import channel to stderr
	}
	Library struct {
		LoanPeriod time.Duration
	}
	Audit struct {
		Dir           string // Archive of import results that contained failed rows
		RetentionDays int
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Scheduler struct {
		Enabled          bool
		OrphanTagCron    string
		AuditCleanupCron string
		OverdueScanCron  string
	}
	Auth struct {
		Mode            AuthMode
		DefaultUsername string // Owner of every request when Mode is none
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		LockoutDuration time.Duration

		// Login rate limiting
		MaxLoginAttempts       int           // Failed attempts per client and username (default: 5)
		MaxClientLoginAttempts int           // Failed attempts per client across usernames (default: 20)
		RateLimitWindow        time.Duration // Window for counting attempts (default: 15m)
	}
)

func NewConfig() *Config {
	// A missing .env is fine, real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("imports_dir", DefaultImportsDir)
	v.SetDefault("import_max_upload_kb", 5120)
	v.SetDefault("import_delimiter", ",")

	v.SetDefault("import_log_path", DefaultImportLogPath)
	v.SetDefault("import_log_max_size_mb", 10)
	v.SetDefault("import_log_max_backups", 5)
	v.SetDefault("import_log_max_age_days", 30)
	v.SetDefault("import_log_stderr", false)

	v.SetDefault("loan_period", "336h") // 2 weeks

	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 30)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("orphan_tag_cron", "30 3 * * *")   // Daily at 03:30
	v.SetDefault("audit_cleanup_cron", "0 4 * * 0") // Sundays at 04:00
	v.SetDefault("overdue_scan_cron", "0 8 * * *")  // Daily at 08:00

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_default_username", "librarian")
	v.SetDefault("auth_session_secret", "")      // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h") // 24 hours
	v.SetDefault("auth_token_expiry", "720h")    // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)         // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)    // HTTPS-only cookies
	v.SetDefault("auth_lockout_duration", "30m") // Lockout after repeated failures
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_max_client_login_attempts", 20)
	v.SetDefault("auth_rate_limit_window", "15m")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Imports: Imports{
			Dir:         v.GetString("IMPORTS_DIR"),
			MaxUploadKB: v.GetInt64("IMPORT_MAX_UPLOAD_KB"),
			Delimiter:   v.GetString("IMPORT_DELIMITER"),
		},
		ImportLog: ImportLog{
			Path:       v.GetString("IMPORT_LOG_PATH"),
			MaxSizeMB:  v.GetInt("IMPORT_LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("IMPORT_LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("IMPORT_LOG_MAX_AGE_DAYS"),
			Stderr:     v.GetBool("IMPORT_LOG_STDERR"),
		},
		Library: Library{
			LoanPeriod: v.GetDuration("LOAN_PERIOD"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Scheduler: Scheduler{
			Enabled:          v.GetBool("SCHEDULER_ENABLED"),
			OrphanTagCron:    v.GetString("ORPHAN_TAG_CRON"),
			AuditCleanupCron: v.GetString("AUDIT_CLEANUP_CRON"),
			OverdueScanCron:  v.GetString("OVERDUE_SCAN_CRON"),
		},
		Auth: Auth{
			Mode:            AuthMode(v.GetString("AUTH_MODE")),
			DefaultUsername: v.GetString("AUTH_DEFAULT_USERNAME"),
			SessionSecret:   v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:     v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
			LockoutDuration: v.GetDuration("AUTH_LOCKOUT_DURATION"),

			MaxLoginAttempts:       v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			MaxClientLoginAttempts: v.GetInt("AUTH_MAX_CLIENT_LOGIN_ATTEMPTS"),
			RateLimitWindow:        v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
		},
	}
}
