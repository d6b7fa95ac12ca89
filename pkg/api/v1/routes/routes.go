// Package routes defines the scraping backend routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"
)

/*

Routes are kept in the order fiber must match them:

1. GET, POST, DELETE order within a scope.
2. Static segments before param segments (download-all before :index), otherwise
   fiber interprets the static slug as the param.
3. Naming matches the action (i.e. GetJob, DeleteJob)

*/

// API base configuration
const (
	// DefaultPort is the default port of the scraping backend
	DefaultPort = "8000"
	// APIPrefix is the prefix for all API endpoints
	APIPrefix = "/api"
)

// DefaultBaseURL is the default base URL for the backend
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	ScrapeJob         = "ScrapeJob"
	GetJobs           = "GetJobs"
	GetJob            = "GetJob"
	DeleteJob         = "DeleteJob"
	RescrapeJob       = "RescrapeJob"
	ExportJob         = "ExportJob"
	DownloadAllImages = "DownloadAllImages"
	DownloadImage     = "DownloadImage"
)

// Handler serves the backend endpoints. The client never implements it; it exists
// so the route table has a single definition shared by URL building and test backends.
type Handler interface {
	Scrape(c *fiber.Ctx) error
	ListJobs(c *fiber.Ctx) error
	GetJob(c *fiber.Ctx) error
	DeleteJob(c *fiber.Ctx) error
	RescrapeJob(c *fiber.Ctx) error
	ExportJob(c *fiber.Ctx) error
	DownloadAllImages(c *fiber.Ctx) error
	DownloadImage(c *fiber.Ctx) error
}

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all backend routes on app
func RegisterRoutes(app *fiber.App, h Handler) {
	api := app.Group(APIPrefix)

	api.Post("/scrape", h.Scrape).Name(ScrapeJob)

	jobs := api.Group("/jobs")
	jobs.Get("/", h.ListJobs).Name(GetJobs)
	jobs.Get("/:id/export", h.ExportJob).Name(ExportJob)
	jobs.Get("/:id/images/download-all", h.DownloadAllImages).Name(DownloadAllImages)
	jobs.Get("/:id/images/:index", h.DownloadImage).Name(DownloadImage)
	jobs.Get("/:id", h.GetJob).Name(GetJob)
	jobs.Post("/:id/rescrape", h.RescrapeJob).Name(RescrapeJob)
	jobs.Delete("/:id", h.DeleteJob).Name(DeleteJob)
}

// nopHandler lets the route table be compiled without a backend
type nopHandler struct{}

func (nopHandler) Scrape(*fiber.Ctx) error            { return fiber.ErrNotImplemented }
func (nopHandler) ListJobs(*fiber.Ctx) error          { return fiber.ErrNotImplemented }
func (nopHandler) GetJob(*fiber.Ctx) error            { return fiber.ErrNotImplemented }
func (nopHandler) DeleteJob(*fiber.Ctx) error         { return fiber.ErrNotImplemented }
func (nopHandler) RescrapeJob(*fiber.Ctx) error       { return fiber.ErrNotImplemented }
func (nopHandler) ExportJob(*fiber.Ctx) error         { return fiber.ErrNotImplemented }
func (nopHandler) DownloadAllImages(*fiber.Ctx) error { return fiber.ErrNotImplemented }
func (nopHandler) DownloadImage(*fiber.Ctx) error     { return fiber.ErrNotImplemented }

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCacheMu.Lock()
		defer routeCacheMu.Unlock()

		routeCache = make(map[string]string)

		app := fiber.New()
		RegisterRoutes(app, nopHandler{})

		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	initRouteCache()

	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()
	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	// Replace parameters in the route
	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, url.PathEscape(value))
	}

	// Remove trailing slash if it's a base endpoint with no parameters
	if strings.HasSuffix(route, "/") && !strings.Contains(route, ":") {
		route = strings.TrimSuffix(route, "/")
	}

	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

func idParam(id uint) map[string]string {
	return map[string]string{"id": fmt.Sprintf("%d", id)}
}

// ScrapeURL returns the URL for submitting a scrape job
func ScrapeURL() string {
	return BuildURL(ScrapeJob, nil, nil)
}

// GetJobsURL returns the URL for the full job snapshot
func GetJobsURL() string {
	return BuildURL(GetJobs, nil, nil)
}

// GetJobURL returns the URL for getting a job by ID
func GetJobURL(id uint) string {
	return BuildURL(GetJob, idParam(id), nil)
}

// DeleteJobURL returns the URL for deleting a job by ID
func DeleteJobURL(id uint) string {
	return BuildURL(DeleteJob, idParam(id), nil)
}

// RescrapeJobURL returns the URL for re-running a job
func RescrapeJobURL(id uint) string {
	return BuildURL(RescrapeJob, idParam(id), nil)
}

// ExportJobURL returns the URL for exporting a job's result in the given format
func ExportJobURL(id uint, format string) string {
	q := url.Values{}
	q.Set("format", format)
	return BuildURL(ExportJob, idParam(id), q)
}

// DownloadImageURL returns the URL for downloading one image referenced by a job
func DownloadImageURL(id uint, index int) string {
	params := idParam(id)
	params["index"] = fmt.Sprintf("%d", index)
	return BuildURL(DownloadImage, params, nil)
}

// DownloadAllImagesURL returns the URL for the zip of all images referenced by a job
func DownloadAllImagesURL(id uint) string {
	return BuildURL(DownloadAllImages, idParam(id), nil)
}
