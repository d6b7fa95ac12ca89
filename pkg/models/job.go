// Package models holds the wire types shared with the scraping backend.
package models

import (
	"encoding/json"
	"fmt"
)

// JobStatus represents the current state of a scrape job on the backend
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusPending indicates the job is queued and has not started
	JobStatusPending
	// JobStatusRunning indicates the scraper is working on the job
	JobStatusRunning
	// JobStatusCompleted indicates the job finished and stored a result
	JobStatusCompleted
	// JobStatusFailed indicates the job finished and stored an error document
	JobStatusFailed
)

var jobStatusNames = []string{
	"unknown",
	"pending",
	"running",
	"completed",
	"failed",
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, status := range jobStatusNames {
		if status == str {
			return JobStatus(i), nil
		}
	}

	return JobStatus(0), fmt.Errorf("invalid job status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus.
// Statuses this client does not know decode as JobStatusUnknown so a newer
// backend cannot break the whole job list.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		status = JobStatusUnknown
	}

	*s = status
	return nil
}

func (s JobStatus) String() string {
	if int(s) < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}

// Terminal reports whether the backend will not change the job any further.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one submitted scrape request as reported by the backend.
// Data is the opaque result document and is only set once the job is terminal.
type Job struct {
	ID        uint      `json:"id"`
	URL       string    `json:"url"`
	Status    JobStatus `json:"status"`
	Data      *string   `json:"data"`
	CreatedAt Timestamp `json:"created_at"`
}

// HasData reports whether the backend stored a result or error document for the job.
func (j Job) HasData() bool {
	return j.Data != nil && *j.Data != ""
}

// Viewable reports whether the job's detail view can be opened: completed jobs,
// and failed jobs that carry an error document.
func (j Job) Viewable() bool {
	switch j.Status {
	case JobStatusCompleted:
		return true
	case JobStatusFailed:
		return j.HasData()
	default:
		return false
	}
}

// ScrapeRequest is the body of a scrape submission
type ScrapeRequest struct {
	URL      string  `json:"url"`
	Selector *string `json:"selector"`
}

// ScrapeResponse is returned when a job is created, either by a submission or a re-run
type ScrapeResponse struct {
	Message string `json:"message,omitempty"`
	JobID   uint   `json:"job_id"`
}

// ListJobsResponse is the full job snapshot returned by the list endpoint
type ListJobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job returned by the detail endpoint
type JobResponse struct {
	Job Job `json:"job"`
}

// ExportFormat is a file format supported by the export endpoint
type ExportFormat string

const (
	// ExportFormatJSON exports the stored result as JSON
	ExportFormatJSON ExportFormat = "json"
	// ExportFormatCSV exports the stored result as CSV
	ExportFormatCSV ExportFormat = "csv"
)

// ParseExportFormat validates an export format name
func ParseExportFormat(str string) (ExportFormat, error) {
	switch ExportFormat(str) {
	case ExportFormatJSON, ExportFormatCSV:
		return ExportFormat(str), nil
	default:
		return "", fmt.Errorf("invalid export format: %s", str)
	}
}
