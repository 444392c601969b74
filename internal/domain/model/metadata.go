package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MetaLastTrackerRun       = "last_tracker_run"
	MetaLastContestUpdate    = "last_contest_update"
	MetaLastDailyMaintenance = "last_daily_maintenance"
	MetaLastRatingRefresh    = "last_rating_refresh"
)

type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerAdmin    RunTrigger = "admin"
	TriggerCLI      RunTrigger = "cli"
)

// TrackerRun records the provenance of one roster sweep.
type TrackerRun struct {
	ID             uuid.UUID  `json:"id"`
	Trigger        RunTrigger `json:"trigger"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	UsersTotal     int        `json:"users_total"`
	NewSubmissions int        `json:"new_submissions"`
	ErrorCount     int        `json:"error_count"`
	DisabledCount  int        `json:"disabled_count"`
}

// Freshness is what the read API reports about the last background passes.
type Freshness struct {
	LastTrackerRun    *time.Time  `json:"last_tracker_run"`
	LastContestUpdate *time.Time  `json:"last_contest_update"`
	LastRun           *TrackerRun `json:"last_run,omitempty"`
}
