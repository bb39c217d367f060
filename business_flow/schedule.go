package businessflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/lead-exchange/models"
)

// ScheduleError reports a malformed schedule value
type ScheduleError struct {
	Field string
	Value string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %s %q", e.Field, e.Value)
}

// ScheduleLocation resolves the timezone of routing terms, UTC when unset or unknown
func ScheduleLocation(terms models.RoutingTerms) *time.Location {
	if terms.Timezone == nil || strings.TrimSpace(*terms.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(*terms.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWithinSchedule reports whether now falls inside the routing window of the terms.
// A weekly schedule takes precedence over the single daily window. A window whose
// start is after its end spans midnight.
func IsWithinSchedule(terms models.RoutingTerms, now time.Time) (bool, error) {
	local := now.In(ScheduleLocation(terms))
	clock := secondsOfDay(local)

	if len(terms.WeeklySchedule) > 0 {
		day, ok := terms.WeeklySchedule.Day(local.Weekday().String())
		if !ok || !day.Active {
			return false, nil
		}
		if !hasWindow(day.StartTime, day.EndTime) {
			return true, nil
		}
		return inWindow(clock, *day.StartTime, *day.EndTime)
	}

	if !hasWindow(terms.StartTime, terms.EndTime) {
		return true, nil
	}
	return inWindow(clock, *terms.StartTime, *terms.EndTime)
}

func hasWindow(start, end *string) bool {
	return start != nil && end != nil && strings.TrimSpace(*start) != "" && strings.TrimSpace(*end) != ""
}

func inWindow(clock int, start, end string) (bool, error) {
	s, err := parseClock(start)
	if err != nil {
		return false, &ScheduleError{Field: "start_time", Value: start}
	}
	e, err := parseClock(end)
	if err != nil {
		return false, &ScheduleError{Field: "end_time", Value: end}
	}
	if s > e {
		return clock >= s || clock <= e, nil
	}
	return clock >= s && clock <= e, nil
}

// parseClock accepts HH:MM or HH:MM:SS and returns seconds since midnight
func parseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	layout := "15:04"
	if strings.Count(value, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0, err
	}
	return secondsOfDay(t), nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
