package test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	fiber "github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/xcrape/xcrape/pkg/api/v1/routes"
	"github.com/xcrape/xcrape/pkg/models"
)

// listLimit is how many jobs the list endpoint returns, newest first
const listLimit = 50

// sqliteTimestamp is the zone-less form SQLite's CURRENT_TIMESTAMP produces
const sqliteTimestamp = "2006-01-02 15:04:05"

// PNGPixel is a 1x1 PNG served for every image download
var PNGPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR4nGMAAQAABQABDQottAAAAABJRU5ErkJggg==")

// Backend is a fake scraping backend over a gorm jobs table. It never scrapes;
// tests move jobs between states with SetStatus, Complete and Fail.
type Backend struct {
	db *gorm.DB
}

var _ routes.Handler = (*Backend)(nil)

// NewBackend creates a backend over db
func NewBackend(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// jobWire is the backend's JSON form of a job
type jobWire struct {
	ID        uint    `json:"id"`
	URL       string  `json:"url"`
	Status    string  `json:"status"`
	Data      *string `json:"data"`
	CreatedAt string  `json:"created_at"`
}

func toWire(r JobRecord) jobWire {
	return jobWire{
		ID:        r.ID,
		URL:       r.URL,
		Status:    r.Status,
		Data:      r.Data,
		CreatedAt: r.CreatedAt.UTC().Format(sqliteTimestamp),
	}
}

// Create inserts a pending job and returns its ID
func (b *Backend) Create(url string, selector *string) (uint, error) {
	rec := JobRecord{URL: url, Selector: selector, Status: models.JobStatusPending.String()}
	if err := b.db.Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return rec.ID, nil
}

// SetStatus moves a job to status and stores data
func (b *Backend) SetStatus(id uint, status models.JobStatus, data *string) error {
	res := b.db.Model(&JobRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status.String(),
		"data":   data,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}

// Complete stores a result document and marks the job completed
func (b *Backend) Complete(id uint, document string) error {
	return b.SetStatus(id, models.JobStatusCompleted, &document)
}

// Fail stores an error document and marks the job failed
func (b *Backend) Fail(id uint, errType, message string) error {
	doc, err := json.Marshal(map[string]interface{}{
		"error":             message,
		"error_type":        errType,
		"load_time_seconds": 1.5,
	})
	if err != nil {
		return err
	}
	s := string(doc)
	return b.SetStatus(id, models.JobStatusFailed, &s)
}

// Count returns the number of stored jobs
func (b *Backend) Count() (int64, error) {
	var n int64
	err := b.db.Model(&JobRecord{}).Count(&n).Error
	return n, err
}

func (b *Backend) find(c *fiber.Ctx) (JobRecord, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return JobRecord{}, fiber.NewError(fiber.StatusUnprocessableEntity, "invalid job id")
	}
	var rec JobRecord
	if err := b.db.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return JobRecord{}, fiber.NewError(fiber.StatusNotFound, "Job not found")
		}
		return JobRecord{}, err
	}
	return rec, nil
}

// Scrape creates a job from the request body
func (b *Backend) Scrape(c *fiber.Ctx) error {
	var req models.ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "url is required")
	}

	id, err := b.Create(req.URL, req.Selector)
	if err != nil {
		return err
	}
	return c.JSON(models.ScrapeResponse{Message: "Job created", JobID: id})
}

// ListJobs returns the newest jobs first
func (b *Backend) ListJobs(c *fiber.Ctx) error {
	var recs []JobRecord
	if err := b.db.Order("id DESC").Limit(listLimit).Find(&recs).Error; err != nil {
		return err
	}
	jobs := make([]jobWire, 0, len(recs))
	for _, r := range recs {
		jobs = append(jobs, toWire(r))
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// GetJob returns one job with its data
func (b *Backend) GetJob(c *fiber.Ctx) error {
	rec, err := b.find(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"job": toWire(rec)})
}

// DeleteJob removes a job
func (b *Backend) DeleteJob(c *fiber.Ctx) error {
	rec, err := b.find(c)
	if err != nil {
		return err
	}
	if err := b.db.Delete(&JobRecord{}, rec.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Job deleted"})
}

// RescrapeJob creates a new pending job for the same target
func (b *Backend) RescrapeJob(c *fiber.Ctx) error {
	rec, err := b.find(c)
	if err != nil {
		return err
	}
	id, err := b.Create(rec.URL, rec.Selector)
	if err != nil {
		return err
	}
	return c.JSON(models.ScrapeResponse{Message: "Job re-run", JobID: id})
}

// ExportJob serves the stored document as JSON or as section,key,value CSV
func (b *Backend) ExportJob(c *fiber.Ctx) error {
	format, err := models.ParseExportFormat(c.Query("format", string(models.ExportFormatJSON)))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	rec, err := b.find(c)
	if err != nil {
		return err
	}
	if rec.Data == nil {
		return fiber.NewError(fiber.StatusNotFound, "No data available")
	}

	name := fmt.Sprintf("job_%d.%s", rec.ID, format)
	c.Attachment(name)
	if format == models.ExportFormatJSON {
		c.Type("json")
		return c.SendString(*rec.Data)
	}

	body, err := flattenCSV(*rec.Data)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	c.Type("csv")
	return c.Send(body)
}

// DownloadImage serves the image at index of the job's result
func (b *Backend) DownloadImage(c *fiber.Ctx) error {
	srcs, err := b.imageSources(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil || index < 0 || index >= len(srcs) {
		return fiber.NewError(fiber.StatusNotFound, "Image not found")
	}
	c.Attachment(fmt.Sprintf("image_%d.png", index))
	c.Type("png")
	return c.Send(PNGPixel)
}

// DownloadAllImages serves every image of the job's result as a zip
func (b *Backend) DownloadAllImages(c *fiber.Ctx) error {
	srcs, err := b.imageSources(c)
	if err != nil {
		return err
	}
	if len(srcs) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "No images")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := range srcs {
		w, err := zw.Create(fmt.Sprintf("image_%d.png", i))
		if err != nil {
			return err
		}
		if _, err := w.Write(PNGPixel); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}

	c.Attachment("images.zip")
	c.Type("zip")
	return c.Send(buf.Bytes())
}

func (b *Backend) imageSources(c *fiber.Ctx) ([]string, error) {
	rec, err := b.find(c)
	if err != nil {
		return nil, err
	}
	if rec.Data == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "No data available")
	}
	var doc struct {
		Images []struct {
			Src string `json:"src"`
		} `json:"images"`
	}
	if err := json.Unmarshal([]byte(*rec.Data), &doc); err != nil {
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "Invalid job data")
	}
	srcs := make([]string, 0, len(doc.Images))
	for _, img := range doc.Images {
		srcs = append(srcs, img.Src)
	}
	return srcs, nil
}

// flattenCSV writes the top-level scalar and meta fields of a document as
// section,key,value rows
func flattenCSV(document string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"section", "key", "value"}); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, section := range keys {
		var fields map[string]interface{}
		if err := json.Unmarshal(doc[section], &fields); err != nil {
			continue
		}
		names := make([]string, 0, len(fields))
		for k := range fields {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if err := w.Write([]string{section, k, fmt.Sprint(fields[k])}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
