package constants

import (
	"net/http"
	"time"
)

// Crawler Constants
const (
	DefaultExecutable    = "crawlergo"
	DefaultLogFile       = "crawlergo_log.txt"
	DefaultOutputCharset = "utf-8"

	// crawlergo flags
	FlagChromePath    = "-c"
	FlagCustomHeaders = "--custom-headers"
	FlagPostData      = "-d"

	// Marker crawlergo prints before its JSON result line
	MissionCompleteMarker = "--[Mission Complete]--"

	EmptyHeaderJSON = "{}"
)

// Persisted setting keys
const (
	SettingExePath    = "exePath"
	SettingChromePath = "chromePath"
	SettingHeaders    = "headers"
	SettingPostData   = "postData"
	SettingExtraArgs  = "extraArgs"
	SettingAuthOnly   = "authOnly"
)

// SettingKeys lists every key accepted by the settings command.
var SettingKeys = []string{
	SettingExePath,
	SettingChromePath,
	SettingHeaders,
	SettingPostData,
	SettingExtraArgs,
	SettingAuthOnly,
}

// Database Constants
const (
	// PostgreSQL defaults
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// Connection pool settings
	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	DefaultSQLitePath = "crawlsend.db"

	// Default table names
	DefaultSettingsTable = "settings"
	DefaultRunsTable     = "runs"
)

// Time and Duration Constants
const (
	// Connection pool lifetimes
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute

	// Supervisor
	DefaultGracePeriod = 1 * time.Second
	DefaultCloseWait   = 5 * time.Second

	// Doctor
	DefaultChromeProbeTimeout = 15 * time.Second
)

// Wait Configuration Constants
const (
	DefaultWaitTimeout  = 60 * time.Second
	DefaultWaitInterval = 2 * time.Second
	DefaultWaitStatus   = http.StatusOK
	DefaultWaitMethod   = "GET"
)

// Server Constants
const (
	DefaultServerAddr   = "127.0.0.1:7070"
	DefaultHistoryLimit = 20
)
