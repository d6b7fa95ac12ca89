// Package mock provides a function-field implementation of client.Client for tests
package mock

import (
	"context"
	"sync"

	"github.com/xcrape/xcrape/pkg/api/v1/client"
	"github.com/xcrape/xcrape/pkg/models"
)

// Call records one invocation of a MockClient method
type Call struct {
	Method string
	ID     uint
	Index  int
	Format models.ExportFormat
	Req    models.ScrapeRequest
}

// MockClient implements the Client interface for testing
type MockClient struct {
	// Function fields that can be set to mock behavior
	ScrapeFn            func(ctx context.Context, req models.ScrapeRequest) (models.ScrapeResponse, error)
	ListJobsFn          func(ctx context.Context) ([]models.Job, error)
	GetJobFn            func(ctx context.Context, id uint) (models.Job, error)
	DeleteJobFn         func(ctx context.Context, id uint) error
	RescrapeJobFn       func(ctx context.Context, id uint) (models.ScrapeResponse, error)
	ExportJobFn         func(ctx context.Context, id uint, format models.ExportFormat) (client.Download, error)
	DownloadImageFn     func(ctx context.Context, id uint, index int) (client.Download, error)
	DownloadAllImagesFn func(ctx context.Context, id uint) (client.Download, error)

	mu    sync.Mutex
	calls []Call
}

// Ensure MockClient implements Client interface
var _ client.Client = (*MockClient)(nil)

func (m *MockClient) record(call Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns every recorded call in order
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls of one method
func (m *MockClient) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Scrape mocks the Scrape method
func (m *MockClient) Scrape(ctx context.Context, req models.ScrapeRequest) (models.ScrapeResponse, error) {
	m.record(Call{Method: "Scrape", Req: req})
	if m.ScrapeFn != nil {
		return m.ScrapeFn(ctx, req)
	}
	return models.ScrapeResponse{}, nil
}

// ListJobs mocks the ListJobs method
func (m *MockClient) ListJobs(ctx context.Context) ([]models.Job, error) {
	m.record(Call{Method: "ListJobs"})
	if m.ListJobsFn != nil {
		return m.ListJobsFn(ctx)
	}
	return []models.Job{}, nil
}

// GetJob mocks the GetJob method
func (m *MockClient) GetJob(ctx context.Context, id uint) (models.Job, error) {
	m.record(Call{Method: "GetJob", ID: id})
	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, id)
	}
	return models.Job{ID: id}, nil
}

// DeleteJob mocks the DeleteJob method
func (m *MockClient) DeleteJob(ctx context.Context, id uint) error {
	m.record(Call{Method: "DeleteJob", ID: id})
	if m.DeleteJobFn != nil {
		return m.DeleteJobFn(ctx, id)
	}
	return nil
}

// RescrapeJob mocks the RescrapeJob method
func (m *MockClient) RescrapeJob(ctx context.Context, id uint) (models.ScrapeResponse, error) {
	m.record(Call{Method: "RescrapeJob", ID: id})
	if m.RescrapeJobFn != nil {
		return m.RescrapeJobFn(ctx, id)
	}
	return models.ScrapeResponse{}, nil
}

// ExportJob mocks the ExportJob method
func (m *MockClient) ExportJob(ctx context.Context, id uint, format models.ExportFormat) (client.Download, error) {
	m.record(Call{Method: "ExportJob", ID: id, Format: format})
	if m.ExportJobFn != nil {
		return m.ExportJobFn(ctx, id, format)
	}
	return client.Download{}, nil
}

// DownloadImage mocks the DownloadImage method
func (m *MockClient) DownloadImage(ctx context.Context, id uint, index int) (client.Download, error) {
	m.record(Call{Method: "DownloadImage", ID: id, Index: index})
	if m.DownloadImageFn != nil {
		return m.DownloadImageFn(ctx, id, index)
	}
	return client.Download{}, nil
}

// DownloadAllImages mocks the DownloadAllImages method
func (m *MockClient) DownloadAllImages(ctx context.Context, id uint) (client.Download, error) {
	m.record(Call{Method: "DownloadAllImages", ID: id})
	if m.DownloadAllImagesFn != nil {
		return m.DownloadAllImagesFn(ctx, id)
	}
	return client.Download{}, nil
}
