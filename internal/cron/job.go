package cron

import (
	"fmt"
	"time"
)

// DigestJob runs a bot command on a schedule and optionally delivers
// the reply to a chat. Schedules are either a cron expression
// (Kind "cron", with seconds field) or a fixed interval (Kind "every").
type DigestJob struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Schedule Schedule `json:"schedule"`
	Payload  Payload  `json:"payload"`
	Enabled  bool     `json:"enabled"`
	State    State    `json:"state"`
}

type Schedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
}

// Payload carries the command line the job runs (e.g. "/failed_logins
// 24h") and where the reply goes.
type Payload struct {
	Command string `json:"command"`
	Channel string `json:"channel,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
	Deliver bool   `json:"deliver"`
}

type State struct {
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

func NewDigestJob(name string, schedule Schedule, payload Payload) DigestJob {
	return DigestJob{
		ID:       fmt.Sprintf("job-%d", time.Now().UnixNano()),
		Name:     name,
		Schedule: schedule,
		Payload:  payload,
		Enabled:  true,
	}
}
