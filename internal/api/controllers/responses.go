package controllers

import "github.com/datallboy/streamgrab/internal/domain"

// StatusResponse is served on /api/status
type StatusResponse struct {
	Active    *domain.QueueSnapshot `json:"active,omitempty"`
	Pending   int                   `json:"pending"`
	Completed int                   `json:"completed"`
	Failed    int                   `json:"failed"`
	Total     int                   `json:"total"`
}

// JobsResponse is served on /api/jobs
type JobsResponse struct {
	Queue   []domain.QueueSnapshot `json:"queue"`
	History []domain.JobResult     `json:"history,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
