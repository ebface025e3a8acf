package constants

import "time"

const (
	// Preference store keys
	KeyNotificationPreferences = "notificationPreferences"
	KeyTaskNotificationIDs     = "taskNotificationIds"
	KeyDailyReminderID         = "dailyReminderNotificationId"
	KeyWeeklySummaryID         = "weeklySummaryNotificationId"
	KeyLocalTasks              = "localTasks"
	KeyJobPrefix               = "alerts.job."

	// Default preference values
	DefaultNotificationsEnabled = true
	DefaultReminderLeadMinutes  = 30
	// MaxReminderLeadMinutes is 30 days
	MaxReminderLeadMinutes = 30 * 24 * 60
	DefaultDailyReminderEnabled = true
	DefaultDailyReminderHour    = 9
	DefaultDailyReminderMinute  = 0
	DefaultWeeklySummaryEnabled = true
	DefaultSoundEnabled         = true
	DefaultVibrationEnabled     = true

	// Weekly summary trigger, not user-configurable
	WeeklySummaryWeekday = time.Sunday
	WeeklySummaryHour    = 18
	WeeklySummaryMinute  = 0

	// Alert text
	TaskReminderTitle  = "📋 Task Reminder"
	TaskReminderBody   = "%q is due in %d minutes!"
	DailyReminderTitle = "🌅 Good Morning!"
	DailyReminderBody  = "Start your day by checking your tasks in TickUp"
	WeeklySummaryTitle = "📊 Weekly Summary"
	WeeklySummaryBody  = "Check your productivity stats and plan for the week ahead!"
	TestAlertTitle     = "🧪 Test Notification"
	TestAlertBody      = "This is a test notification from TickUp!"
)
