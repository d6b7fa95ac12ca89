// Package actions runs the user actions that change backend state and feeds
// their outcome back into the poller, the detail session and the notices.
package actions

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/xcrape/xcrape/internal/logger"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/payload"
	"github.com/xcrape/xcrape/internal/poller"
	"github.com/xcrape/xcrape/internal/section"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/pkg/api/v1/client"
	"github.com/xcrape/xcrape/pkg/models"
)

// ValidationError is returned when input is rejected before any backend call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Form is the submission input. Reset clears it after a successful submit.
type Form interface {
	Values() (url, selector string)
	Reset()
}

// Refresher resynchronizes the job list
type Refresher interface {
	TriggerNow(ctx context.Context) error
}

// Session is the part of the detail session the dispatcher drives
type Session interface {
	View() session.View
	JobDeleted(jobID uint) bool
	Follow(ctx context.Context, oldID, newID uint) bool
}

// Deps wires a Dispatcher. Only Client is required.
type Deps struct {
	Client    client.Client
	Refresher Refresher
	Session   Session
	Saver     Saver
	Clipboard Clipboard
	Notifier  notify.Notifier
}

// Dispatcher issues exactly one backend call per action. Local state is only
// touched after the call succeeded.
type Dispatcher struct {
	client    client.Client
	refresher Refresher
	session   Session
	saver     Saver
	clipboard Clipboard
	notifier  notify.Notifier
}

// NewDispatcher creates a dispatcher
func NewDispatcher(d Deps) *Dispatcher {
	return &Dispatcher{
		client:    d.Client,
		refresher: d.Refresher,
		session:   d.Session,
		saver:     d.Saver,
		clipboard: d.Clipboard,
		notifier:  d.Notifier,
	}
}

// Submit creates a scrape job from the form
func (d *Dispatcher) Submit(ctx context.Context, form Form) (uint, error) {
	rawURL, selector := form.Values()
	rawURL = strings.TrimSpace(rawURL)
	selector = strings.TrimSpace(selector)
	if rawURL == "" {
		err := &ValidationError{Field: "url", Message: "a URL is required"}
		d.notify(notify.Failure(0, "Please enter a URL"))
		return 0, err
	}

	req := models.ScrapeRequest{URL: rawURL}
	if selector != "" {
		req.Selector = &selector
	}

	resp, err := d.client.Scrape(ctx, req)
	if err != nil {
		d.notify(notify.Failure(0, "%s", failureMessage(err, "Failed to create job")))
		return 0, fmt.Errorf("error creating job: %w", err)
	}

	form.Reset()
	d.notify(notify.Success(resp.JobID, "Job #%d created", resp.JobID))
	d.refresh(ctx)
	return resp.JobID, nil
}

// Delete removes a job and closes the detail session if it shows that job
func (d *Dispatcher) Delete(ctx context.Context, id uint) error {
	if err := d.client.DeleteJob(ctx, id); err != nil {
		d.notify(notify.Failure(id, "%s", failureMessage(err, "Failed to delete job")))
		return fmt.Errorf("error deleting job %d: %w", id, err)
	}

	if d.session != nil {
		d.session.JobDeleted(id)
	}
	d.notify(notify.Success(id, "Job #%d deleted", id))
	d.refresh(ctx)
	return nil
}

// Rescrape re-runs a job. A detail session showing the old job follows the new one.
func (d *Dispatcher) Rescrape(ctx context.Context, id uint) (uint, error) {
	resp, err := d.client.RescrapeJob(ctx, id)
	if err != nil {
		d.notify(notify.Failure(id, "%s", failureMessage(err, "Failed to re-run job")))
		return 0, fmt.Errorf("error re-running job %d: %w", id, err)
	}

	if d.session != nil {
		d.session.Follow(ctx, id, resp.JobID)
	}
	d.notify(notify.Success(resp.JobID, "Job #%d re-run as #%d", id, resp.JobID))
	d.refresh(ctx)
	return resp.JobID, nil
}

// ExportPayload downloads a job's result in the given format and saves it
func (d *Dispatcher) ExportPayload(ctx context.Context, id uint, format string) (string, error) {
	f, err := models.ParseExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		d.notify(notify.Failure(id, "Unsupported export format: %s", format))
		return "", &ValidationError{Field: "format", Message: err.Error()}
	}

	dl, err := d.client.ExportJob(ctx, id, f)
	if err != nil {
		d.notify(notify.Failure(id, "%s", failureMessage(err, "Failed to export job")))
		return "", fmt.Errorf("error exporting job %d: %w", id, err)
	}

	path, err := d.save(ctx, id, "export."+string(f), dl.Body)
	if err != nil {
		return "", err
	}
	d.notify(notify.Success(id, "%s export saved to %s", strings.ToUpper(string(f)), path))
	d.refresh(ctx)
	return path, nil
}

// DownloadImage downloads one image of a job's result and saves it
func (d *Dispatcher) DownloadImage(ctx context.Context, id uint, index int) (string, error) {
	if index < 0 {
		d.notify(notify.Failure(id, "Invalid image index %d", index))
		return "", &ValidationError{Field: "index", Message: "must not be negative"}
	}

	dl, err := d.client.DownloadImage(ctx, id, index)
	if err != nil {
		d.notify(notify.Failure(id, "%s", failureMessage(err, "Failed to download image")))
		return "", fmt.Errorf("error downloading image %d of job %d: %w", index, id, err)
	}

	name := fmt.Sprintf("image-%d%s", index, extension(dl))
	path, err := d.save(ctx, id, name, dl.Body)
	if err != nil {
		return "", err
	}
	d.notify(notify.Success(id, "Image %d saved to %s", index+1, path))
	d.refresh(ctx)
	return path, nil
}

// DownloadAllImages downloads the archive of every image of a job's result
func (d *Dispatcher) DownloadAllImages(ctx context.Context, id uint) (string, error) {
	dl, err := d.client.DownloadAllImages(ctx, id)
	if err != nil {
		d.notify(notify.Failure(id, "%s", failureMessage(err, "Failed to download images")))
		return "", fmt.Errorf("error downloading images of job %d: %w", id, err)
	}

	path, err := d.save(ctx, id, "images.zip", dl.Body)
	if err != nil {
		return "", err
	}
	d.notify(notify.Success(id, "Images saved to %s", path))
	d.refresh(ctx)
	return path, nil
}

// Copy puts the data of one tab of the open result on the clipboard
func (d *Dispatcher) Copy(tab section.TabID) error {
	v, err := d.openView()
	if err != nil {
		d.notify(notify.Failure(0, "Nothing to copy"))
		return err
	}
	if d.clipboard == nil {
		return errors.New("no clipboard configured")
	}

	data, err := section.Copy(tab, v.Payload)
	if err != nil {
		d.notify(notify.Failure(v.JobID, "Nothing to copy"))
		return err
	}
	if err := d.clipboard.WriteAll(string(data)); err != nil {
		d.notify(notify.Failure(v.JobID, "Clipboard unavailable"))
		return fmt.Errorf("error writing clipboard: %w", err)
	}
	d.notify(notify.Success(v.JobID, "Copied %s section", tab.Label()))
	return nil
}

// SaveScreenshot writes the page capture of the open result to disk. It does
// not call the backend.
func (d *Dispatcher) SaveScreenshot(ctx context.Context) (string, error) {
	v, err := d.openView()
	if err != nil {
		return "", err
	}
	res, ok := v.Payload.(*payload.SuccessResult)
	if !ok {
		return "", payload.ErrNoScreenshot
	}
	capture, err := res.DecodeScreenshot()
	if err != nil {
		d.notify(notify.Failure(v.JobID, "No screenshot to save"))
		return "", err
	}

	path, err := d.save(ctx, v.JobID, "screenshot"+capture.Extension, capture.Data)
	if err != nil {
		return "", err
	}
	d.notify(notify.Success(v.JobID, "Screenshot saved to %s", path))
	return path, nil
}

func (d *Dispatcher) openView() (session.View, error) {
	if d.session == nil {
		return session.View{}, session.ErrNotOpen
	}
	v := d.session.View()
	if v.State != session.StateOpen {
		return session.View{}, session.ErrNotOpen
	}
	return v, nil
}

func (d *Dispatcher) save(ctx context.Context, id uint, name string, body []byte) (string, error) {
	if d.saver == nil {
		return "", errors.New("no saver configured")
	}
	path, err := d.saver.Save(ctx, id, name, body)
	if err != nil {
		d.notify(notify.Failure(id, "Could not save %s", name))
		return "", err
	}
	return path, nil
}

func (d *Dispatcher) refresh(ctx context.Context) {
	if d.refresher == nil {
		return
	}
	if err := d.refresher.TriggerNow(ctx); err != nil && !errors.Is(err, poller.ErrStopped) {
		logger.Warnf("Refresh after action failed: %v", err)
	}
}

func (d *Dispatcher) notify(n notify.Notice) {
	if d.notifier != nil {
		d.notifier.Notify(n)
	}
}

func failureMessage(err error, fallback string) string {
	if client.IsNetworkError(err) {
		return "Network error"
	}
	if code := client.StatusCode(err); code != 0 {
		return fmt.Sprintf("%s (HTTP %d)", fallback, code)
	}
	return fallback
}

// extension picks a file extension for a download from its content, falling
// back to the served filename
func extension(dl client.Download) string {
	if ext := mimetype.Detect(dl.Body).Extension(); ext != "" {
		return ext
	}
	if ext := filepath.Ext(dl.Filename); ext != "" {
		return ext
	}
	return ".bin"
}
