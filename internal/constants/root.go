package constants

import "time"

const (
	AppName            = "nextup"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/nextup/nextup.db"
	DefaultDaemonFile  = "~/.config/nextup/config.yaml"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time-of-day format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "nextup-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "nextup-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.nextup"
	NotifierSecretHeader   = "X-Nextup-Secret"

	// Shuffle coordinator constants
	NoCandidateRetryDelay = 5 * time.Minute
	SubscriberBufferSize  = 16

	// Peer sync constants
	PeerTokenTTL       = 5 * time.Minute
	PeerRequestTimeout = 10 * time.Second
	PeerTokenIssuer    = "nextup"
)
