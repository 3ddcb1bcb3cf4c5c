package models

import "time"

// ScheduleInterval is the fixed set of re-run intervals a snippet can be
// submitted with, in hours. Zero means run once.
type ScheduleInterval int

const (
	ScheduleNone ScheduleInterval = 0
	Schedule1h   ScheduleInterval = 1
	Schedule2h   ScheduleInterval = 2
	Schedule6h   ScheduleInterval = 6
	Schedule12h  ScheduleInterval = 12
)

var AllSchedules = []ScheduleInterval{
	ScheduleNone,
	Schedule1h,
	Schedule2h,
	Schedule6h,
	Schedule12h,
}

func (s ScheduleInterval) Valid() bool {
	for _, v := range AllSchedules {
		if s == v {
			return true
		}
	}
	return false
}

func (s ScheduleInterval) Duration() time.Duration {
	return time.Duration(s) * time.Hour
}
