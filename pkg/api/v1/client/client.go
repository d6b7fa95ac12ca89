// Package client provides the API client for interacting with the scraping backend
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/xcrape/xcrape/pkg/api/v1/routes"
	"github.com/xcrape/xcrape/pkg/models"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// ErrNetwork marks a request that never produced an HTTP response. Non-2xx
// responses are reported as *fiber.Error instead.
var ErrNetwork = errors.New("network error")

// Client is the interface for API client
type Client interface {
	// Job lifecycle
	Scrape(ctx context.Context, req models.ScrapeRequest) (models.ScrapeResponse, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	GetJob(ctx context.Context, id uint) (models.Job, error)
	DeleteJob(ctx context.Context, id uint) error
	RescrapeJob(ctx context.Context, id uint) (models.ScrapeResponse, error)

	// File endpoints
	ExportJob(ctx context.Context, id uint, format models.ExportFormat) (Download, error)
	DownloadImage(ctx context.Context, id uint, index int) (Download, error)
	DownloadAllImages(ctx context.Context, id uint) (Download, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the backend
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Accept", "application/json")

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// send executes the request and returns the status code and body, mapping
// transport failures to ErrNetwork and non-success codes to *fiber.Error
func send(agent *fiber.Agent) ([]byte, error) {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: error sending request: %w", ErrNetwork, errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	return body, nil
}

// doRequest sends the HTTP request and decodes the JSON response into v
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	body, err := send(agent)
	if err != nil {
		return err
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// executeDownload fetches a file endpoint and keeps the response headers the
// caller needs to name the file
func (c *APIClient) executeDownload(ctx context.Context, endpoint string) (Download, error) {
	if err := ctx.Err(); err != nil {
		return Download{}, err
	}

	agent, err := c.createAgent(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Download{}, err
	}
	agent.Set("Accept", "*/*")

	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)
	agent.SetResponse(resp)

	body, err := send(agent)
	if err != nil {
		return Download{}, err
	}

	return Download{
		Filename:    filenameFromDisposition(string(resp.Header.Peek(fiber.HeaderContentDisposition))),
		ContentType: string(resp.Header.ContentType()),
		Body:        body,
	}, nil
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// Job methods implementation

// Scrape submits a new scrape job
func (c *APIClient) Scrape(ctx context.Context, req models.ScrapeRequest) (models.ScrapeResponse, error) {
	var response models.ScrapeResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.ScrapeURL(), req, &response); err != nil {
		return models.ScrapeResponse{}, err
	}
	return response, nil
}

// ListJobs retrieves the full job snapshot
func (c *APIClient) ListJobs(ctx context.Context) ([]models.Job, error) {
	var response models.ListJobsResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobsURL(), nil, &response); err != nil {
		return []models.Job{}, err
	}
	if response.Jobs == nil {
		return []models.Job{}, nil
	}
	return response.Jobs, nil
}

// GetJob retrieves a job, including its stored data, by ID
func (c *APIClient) GetJob(ctx context.Context, id uint) (models.Job, error) {
	var response models.JobResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id), nil, &response); err != nil {
		return models.Job{}, err
	}
	return response.Job, nil
}

// DeleteJob deletes a job by ID
func (c *APIClient) DeleteJob(ctx context.Context, id uint) error {
	return c.executeRequest(ctx, http.MethodDelete, routes.DeleteJobURL(id), nil, nil)
}

// RescrapeJob creates a new job from an existing job's target
func (c *APIClient) RescrapeJob(ctx context.Context, id uint) (models.ScrapeResponse, error) {
	var response models.ScrapeResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.RescrapeJobURL(id), nil, &response); err != nil {
		return models.ScrapeResponse{}, err
	}
	return response, nil
}

// File methods implementation

// ExportJob downloads a job's stored result in the given format
func (c *APIClient) ExportJob(ctx context.Context, id uint, format models.ExportFormat) (Download, error) {
	return c.executeDownload(ctx, routes.ExportJobURL(id, string(format)))
}

// DownloadImage downloads one image referenced by a job's result
func (c *APIClient) DownloadImage(ctx context.Context, id uint, index int) (Download, error) {
	return c.executeDownload(ctx, routes.DownloadImageURL(id, index))
}

// DownloadAllImages downloads a zip of every image referenced by a job's result
func (c *APIClient) DownloadAllImages(ctx context.Context, id uint) (Download, error) {
	return c.executeDownload(ctx, routes.DownloadAllImagesURL(id))
}
