package qserver

import "github.com/zjrosen/skywidgets/internal/docs"

// Item states.
const (
	StateQueued   = "queued"
	StateRunning  = "running"
	StateFinished = "finished"
	StateStopped  = "stopped"
)

// Item results.
const (
	ResultSuccess = "success"
	ResultStopped = "stopped"
)

// Item is one plan in the queue, running slot or history.
type Item struct {
	UID       string  `json:"uid"`
	Name      string  `json:"name"`
	Plan      string  `json:"plan"`
	State     string  `json:"state"`
	Progress  int     `json:"progress"`
	Result    string  `json:"result,omitempty"`
	TimeStart float64 `json:"time_start,omitempty"`
	TimeStop  float64 `json:"time_stop,omitempty"`
}

// AddRequest is the body of POST /queue/add.
type AddRequest struct {
	UID  string `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
	Plan string `json:"plan,omitempty"`
}

// AddResponse is the reply to POST /queue/add.
type AddResponse struct {
	Result string `json:"result"`
	Item   Item   `json:"item"`
}

// QueueStatus is the reply to GET /queue/status.
type QueueStatus struct {
	Running *Item  `json:"running"`
	Queue   []Item `json:"queue"`
	History []Item `json:"history"`
}

// Status is the reply to GET /status.
type Status struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ResultResponse is the reply of the queue control endpoints: "ok" when the
// request changed something, "no-op" otherwise.
type ResultResponse struct {
	Result string `json:"result"`
}

// EnvironmentResponse is the reply to POST /environment/destroy.
type EnvironmentResponse struct {
	EnvironmentDestroy bool `json:"environment_destroy"`
}

// SavePlanRequest is the body of POST /plans.
type SavePlanRequest struct {
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

// SavePlanResponse is the reply to POST /plans.
type SavePlanResponse struct {
	Result string `json:"result"`
	Name   string `json:"name"`
}

// PlansResponse is the reply to GET /plans.
type PlansResponse struct {
	Plans []string `json:"plans"`
}

// RunsResponse is the reply to GET /runs: the running uid first, then
// history newest first.
type RunsResponse struct {
	Runs []string `json:"runs"`
}

// DocumentsResponse is the reply to GET /runs/{uid}/documents.
type DocumentsResponse struct {
	UID       string          `json:"uid"`
	Documents []docs.Document `json:"documents"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
