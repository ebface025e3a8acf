package constants

import "time"

const (
	AppName             = "tickup"
	DefaultKeyringUser  = "database-connection"
	APITokenKeyringUser = "api-token"
	DefaultConfigDir    = "~/.config/tickup"
	DefaultConfigPath   = "~/.config/tickup/tickup.db"
	DefaultConfigFile   = "~/.config/tickup/config.yaml"
	Version             = "v0.3.0"

	// TimeFormat is the 24-hour time-of-day format used for storage (HH:MM)
	TimeFormat = "15:04"

	// Time12hFormat is the 12-hour format the preference editor accepts (H:MM AM)
	Time12hFormat = "3:04 PM"

	// Scheduler constants
	DefaultItemTimeout       = 5 * time.Second
	DefaultConcurrency       = 4
	DefaultReconcileInterval = 1 * time.Minute
	DefaultGracePeriod       = 10 * time.Minute
	DefaultRetryDelay        = 30 * time.Second
	DefaultTimezone          = "Local"

	// Notify constants
	NotifierLockfileName   = "tickup-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.tickup"
	TrayExecutablePrefix   = "tickup-tray"
	TraySecretHeader       = "X-Tickup-Secret"

	// Alert line names
	LineTask   = "task"
	LineDaily  = "daily"
	LineWeekly = "weekly"

	// Payload data types
	AlertTypeTaskReminder  = "task_reminder"
	AlertTypeDailyReminder = "daily_reminder"
	AlertTypeWeeklySummary = "weekly_summary"
	AlertTypeTest          = "test"

	// TaskStatusDone is the backend status value that marks a task completed
	TaskStatusDone = "Done"
)
