package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DaySchedule is the routing window of one weekday
type DaySchedule struct {
	Active    bool    `json:"active"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// WeeklySchedule maps lower-case weekday names ("monday" ... "sunday") to their window.
// A nil or empty schedule means no weekly schedule is configured.
type WeeklySchedule map[string]DaySchedule

// Day returns the schedule of the given weekday name
func (w WeeklySchedule) Day(weekday string) (DaySchedule, bool) {
	d, ok := w[strings.ToLower(weekday)]
	return d, ok
}

// Value implements the driver.Valuer interface for WeeklySchedule
func (w WeeklySchedule) Value() (driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan implements the sql.Scanner interface for WeeklySchedule
func (w *WeeklySchedule) Scan(value any) error {
	if value == nil {
		*w = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WeeklySchedule", value)
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*w = nil
		return nil
	}
	out := WeeklySchedule{}
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	normalized := make(WeeklySchedule, len(out))
	for k, v := range out {
		normalized[strings.ToLower(k)] = v
	}
	*w = normalized
	return nil
}
