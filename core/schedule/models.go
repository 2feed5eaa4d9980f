package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// timeLayout is the stored start time format.
const timeLayout = "15:04:05"

var (
	days = map[string]DayOfWeek{
		"понедельник": Monday,
		"вторник":     Tuesday,
		"среда":       Wednesday,
		"четверг":     Thursday,
		"пятница":     Friday,
		"суббота":     Saturday,
		"воскресенье": Sunday,
	}

	// accepted layouts of ВремяНачала, most specific first
	startTimeLayouts = []string{
		"02.01.2006 15:04:05",
		"2.1.2006 15:04:05",
		"02.01.2006 15:04",
		"15:04:05",
		"15:04",
	}
)

type (
	Schedule struct {
		ID          int       `json:"id"`
		StartTime   string    `json:"start_time"` // HH:MM:SS
		DayOfWeek   DayOfWeek `json:"day_of_week"`
		GroupName   string    `json:"group"`
		Subject     string    `json:"subject"`
		TeacherID   int       `json:"teacher_id"`
		TeacherName string    `json:"teacher,omitempty"`
	}

	// Entry is one object of an uploaded schedule JSON file.
	Entry struct {
		StartTime string `json:"ВремяНачала" validate:"notblank"`
		DayOfWeek string `json:"ДеньНедели" validate:"notblank"`
		Group     string `json:"Группа" validate:"notblank"`
		Teacher   string `json:"ФизическоеЛицо" validate:"notblank"`
		Subject   string `json:"Дисциплина" validate:"notblank"`
	}
)

// Key identifies a lesson slot: day, time, subject, teacher and group.
func (s Schedule) Key() string {
	return fmt.Sprintf("%s_%s_%s_%d_%s", s.DayOfWeek, s.StartTime, s.Subject, s.TeacherID, s.GroupName)
}

// ParseDayOfWeek maps a russian weekday name to a DayOfWeek.
func ParseDayOfWeek(name string) (DayOfWeek, error) {
	day, ok := days[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", errors.Errorf("unknown day of week %q", name)
	}
	return day, nil
}

// ParseStartTime extracts the time of day from a "dd.MM.yyyy H:mm:ss" value.
func ParseStartTime(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(timeLayout), nil
		}
	}
	return "", errors.Errorf("invalid start time %q", value)
}
