package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the job schedules. Specs use six fields with seconds or a descriptor.
type Config struct {
	CredentialProbe  string
	HistoryPrune     string
	HistoryRetention time.Duration
	ProbeTimeout     time.Duration
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name     string       `json:"name"`
	Spec     string       `json:"spec,omitempty"`
	EntryID  cron.EntryID `json:"entry_id"`
	Next     time.Time    `json:"next"`
	Previous time.Time    `json:"previous"`
}
