package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/models"
)

var twelveHourPattern = regexp.MustCompile(`(?i)^(0?[1-9]|1[0-2]):([0-5][0-9]) (AM|PM)$`)

// ValidateTime12h checks that s is a 12-hour time such as "9:00 AM" or "12:45 pm".
func ValidateTime12h(s string) error {
	if !twelveHourPattern.MatchString(s) {
		return apperrors.NewValidationError("daily reminder time", s, "expected H:MM AM/PM")
	}
	return nil
}

// ParseTime12h parses a 12-hour time into its 24-hour TimeOfDay.
func ParseTime12h(s string) (models.TimeOfDay, error) {
	m := twelveHourPattern.FindStringSubmatch(s)
	if m == nil {
		return models.TimeOfDay{}, apperrors.NewValidationError("daily reminder time", s, "expected H:MM AM/PM")
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	switch strings.ToUpper(m[3]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}

	return models.TimeOfDay{Hour: hour, Minute: minute}, nil
}

// FormatTime12h renders a TimeOfDay in the editor's 12-hour form.
func FormatTime12h(t models.TimeOfDay) string {
	suffix := "AM"
	hour := t.Hour
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, t.Minute, suffix)
}

// ConvertTo24Hour converts "7:30 PM" to "19:30".
func ConvertTo24Hour(s string) (string, error) {
	t, err := ParseTime12h(s)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// ConvertTo12Hour converts "19:30" to "7:30 PM".
func ConvertTo12Hour(s string) (string, error) {
	t, err := models.ParseTimeOfDay(s)
	if err != nil {
		return "", apperrors.NewValidationError("time", s, "expected HH:MM")
	}
	return FormatTime12h(t), nil
}
