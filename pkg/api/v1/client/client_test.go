// Package client provides unit tests for the scraping backend client.
//
// The tests use httptest to create a mock server that simulates the backend,
// allowing the client to be tested without requiring an actual scraper.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcrape/xcrape/pkg/models"
)

// TestNewClient tests the NewClient function with various configurations.
func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		opts       *Options
		wantErr    bool
		validateFn func(t *testing.T, client Client)
	}{
		{
			name: "nil options",
			opts: nil,
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				assert.True(t, ok, "client should be an *APIClient")

				expectedDefaults := DefaultOptions()
				assert.Equal(t, expectedDefaults.BaseURL, apiClient.baseURL)
				assert.Equal(t, expectedDefaults.Timeout, apiClient.timeout)
			},
		},
		{
			name: "valid options",
			opts: &Options{
				BaseURL: "http://example.com",
				Timeout: 10 * time.Second,
			},
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				assert.True(t, ok, "client should be an *APIClient")

				assert.Equal(t, "http://example.com", apiClient.baseURL)
				assert.Equal(t, 10*time.Second, apiClient.timeout)
			},
		},
		{
			name: "zero timeout falls back to default",
			opts: &Options{BaseURL: "http://example.com"},
			validateFn: func(t *testing.T, client Client) {
				assert.Equal(t, DefaultTimeout, client.(*APIClient).timeout)
			},
		},
		{
			name:    "invalid base URL",
			opts:    &Options{BaseURL: "://invalid-url"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
			if tt.validateFn != nil {
				tt.validateFn(t, client)
			}
		})
	}
}

// setupTestServer creates a mock backend serving the job endpoints used by the client.
func setupTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/scrape", func(w http.ResponseWriter, r *http.Request) {
		var req models.ScrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if req.URL == "https://fail.example" {
			http.Error(w, "scraper unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":"Job created","job_id":11}`))
	})
	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jobs":[
			{"id":2,"url":"https://b.example","status":"running","data":null,"created_at":"2024-01-01 00:00:01"},
			{"id":1,"url":"https://a.example","status":"completed","data":"{\"meta\":{\"title\":\"A\"}}","created_at":"2024-01-01 00:00:00"}
		]}`))
	})
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "1":
			_, _ = w.Write([]byte(`{"job":{"id":1,"url":"https://a.example","status":"completed","data":"{\"meta\":{\"title\":\"A\"}}","created_at":"2024-01-01 00:00:00"}}`))
		case "3":
			_, _ = w.Write([]byte(`{job`))
		default:
			http.Error(w, `{"detail":"Job not found"}`, http.StatusNotFound)
		}
	})
	mux.HandleFunc("DELETE /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"message":"Job deleted"}`))
	})
	mux.HandleFunc("POST /api/jobs/{id}/rescrape", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Job created","job_id":42}`))
	})
	mux.HandleFunc("GET /api/jobs/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="job_`+r.PathValue("id")+`.`+r.URL.Query().Get("format")+`"`)
		_, _ = w.Write([]byte("section,value\nmeta.title,A\n"))
	})
	mux.HandleFunc("GET /api/jobs/{id}/images/download-all", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04"))
	})
	mux.HandleFunc("GET /api/jobs/{id}/images/{index}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("index") == "9" {
			http.Error(w, "index out of range", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T) Client {
	server := setupTestServer(t)
	c, err := NewClient(&Options{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestAPIClient_Scrape(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	selector := "h1"
	resp, err := c.Scrape(ctx, models.ScrapeRequest{URL: "https://a.example", Selector: &selector})
	require.NoError(t, err)
	assert.Equal(t, uint(11), resp.JobID)

	_, err = c.Scrape(ctx, models.ScrapeRequest{URL: "https://fail.example"})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.False(t, IsNetworkError(err))
}

func TestAPIClient_ListJobs(t *testing.T) {
	c := newTestClient(t)

	jobs, err := c.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, uint(2), jobs[0].ID)
	assert.Equal(t, models.JobStatusRunning, jobs[0].Status)
	assert.Nil(t, jobs[0].Data)
	assert.Equal(t, models.JobStatusCompleted, jobs[1].Status)
	require.NotNil(t, jobs[1].Data)
	assert.JSONEq(t, `{"meta":{"title":"A"}}`, *jobs[1].Data)
}

func TestAPIClient_GetJob(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		job, err := c.GetJob(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint(1), job.ID)
		assert.True(t, job.HasData())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetJob(ctx, 2)
		require.Error(t, err)

		var fiberErr *fiber.Error
		require.True(t, errors.As(err, &fiberErr))
		assert.Equal(t, http.StatusNotFound, fiberErr.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := c.GetJob(ctx, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error decoding response")
		assert.Equal(t, 0, StatusCode(err))
	})
}

func TestAPIClient_DeleteAndRescrape(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.DeleteJob(ctx, 1))
	assert.Equal(t, http.StatusNotFound, StatusCode(c.DeleteJob(ctx, 5)))

	resp, err := c.RescrapeJob(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint(42), resp.JobID)
}

func TestAPIClient_Downloads(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	export, err := c.ExportJob(ctx, 4, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "job_4.csv", export.Filename)
	assert.Equal(t, "text/csv", export.ContentType)
	assert.Contains(t, string(export.Body), "meta.title")

	img, err := c.DownloadImage(ctx, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Empty(t, img.Filename)

	_, err = c.DownloadImage(ctx, 4, 9)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	zip, err := c.DownloadAllImages(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", zip.ContentType)
	assert.Equal(t, "PK\x03\x04", string(zip.Body))
}

func TestAPIClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c, err := NewClient(&Options{BaseURL: baseURL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ListJobs(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestAPIClient_CanceledContext(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListJobs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestAPIClient_createAgent tests the createAgent method of the APIClient.
func TestAPIClient_createAgent(t *testing.T) {
	client, err := NewClient(&Options{BaseURL: "http://example.com"})
	require.NoError(t, err)
	apiClient := client.(*APIClient)

	t.Run("valid request", func(t *testing.T) {
		agent, err := apiClient.createAgent(context.Background(), http.MethodGet, "/test", nil)
		assert.NoError(t, err)
		assert.NotNil(t, agent)
	})

	t.Run("unsupported method", func(t *testing.T) {
		agent, err := apiClient.createAgent(context.Background(), "INVALID", "/test", nil)
		assert.Error(t, err)
		assert.Nil(t, agent)
		assert.Contains(t, err.Error(), "unsupported HTTP method")
	})

	t.Run("with context deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		agent, err := apiClient.createAgent(ctx, http.MethodGet, "/test", nil)
		assert.NoError(t, err)
		assert.NotNil(t, agent)
	})
}

func TestFilenameFromDisposition(t *testing.T) {
	assert.Equal(t, "a.zip", filenameFromDisposition(`attachment; filename="a.zip"`))
	assert.Equal(t, "", filenameFromDisposition(""))
	assert.Equal(t, "", filenameFromDisposition("attachment"))
	assert.Equal(t, "", filenameFromDisposition(";;;"))
}
