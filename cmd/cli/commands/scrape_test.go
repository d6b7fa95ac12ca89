//go:build !lint
// +build !lint

package commands

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcrape/xcrape/pkg/api/v1/client"
	"github.com/xcrape/xcrape/pkg/models"
)

func TestScrapeCommand(t *testing.T) {
	tc := setupTestCommand(t)
	tc.client.ScrapeFn = func(context.Context, models.ScrapeRequest) (models.ScrapeResponse, error) {
		return models.ScrapeResponse{JobID: 9}, nil
	}

	require.NoError(t, tc.run("scrape", "  https://example.com  "))

	calls := tc.client.CallsTo("Scrape")
	require.Len(t, calls, 1)
	assert.Equal(t, "https://example.com", calls[0].Req.URL)
	assert.Nil(t, calls[0].Req.Selector)
	assert.Equal(t, "9\n", tc.out.String())
	assert.Contains(t, tc.errOut.String(), "[+] Job #9 created")
}

func TestScrapeCommandWithSelector(t *testing.T) {
	tc := setupTestCommand(t)

	require.NoError(t, tc.run("scrape", "https://example.com", "--selector", "h1.title"))

	calls := tc.client.CallsTo("Scrape")
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Req.Selector)
	assert.Equal(t, "h1.title", *calls[0].Req.Selector)
}

func TestScrapeCommandRejectsBlankURL(t *testing.T) {
	tc := setupTestCommand(t)

	err := tc.run("scrape", "   ")

	require.Error(t, err)
	assert.Empty(t, tc.client.CallsTo("Scrape"))
	assert.Contains(t, tc.errOut.String(), "Please enter a URL")
}

func TestScrapeCommandWaits(t *testing.T) {
	tc := setupTestCommand(t)
	tc.client.ScrapeFn = func(context.Context, models.ScrapeRequest) (models.ScrapeResponse, error) {
		return models.ScrapeResponse{JobID: 9}, nil
	}
	var polls atomic.Int32
	tc.client.ListJobsFn = func(context.Context) ([]models.Job, error) {
		status := models.JobStatusRunning
		if polls.Add(1) >= 3 {
			status = models.JobStatusCompleted
		}
		return []models.Job{{ID: 9, URL: "https://example.com", Status: status}}, nil
	}

	require.NoError(t, tc.run("scrape", "https://example.com", "--wait", "--poll-interval", "10ms"))

	assert.GreaterOrEqual(t, polls.Load(), int32(3))
	output := tc.out.String()
	assert.Contains(t, output, "#9")
	assert.Contains(t, output, "COMPLETED")
}

func TestScrapeCommandWaitJobVanished(t *testing.T) {
	tc := setupTestCommand(t)
	tc.client.ScrapeFn = func(context.Context, models.ScrapeRequest) (models.ScrapeResponse, error) {
		return models.ScrapeResponse{JobID: 9}, nil
	}

	err := tc.run("scrape", "https://example.com", "-w", "--poll-interval", "10ms")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "job 9 no longer exists")
}

func TestImagesGetCommand(t *testing.T) {
	tc := setupTestCommand(t)
	tc.client.DownloadImageFn = func(context.Context, uint, int) (client.Download, error) {
		return client.Download{Filename: "photo", Body: []byte("plain text body")}, nil
	}

	require.NoError(t, tc.run("images", "get", "5", "1"))

	calls := tc.client.CallsTo("DownloadImage")
	require.Len(t, calls, 1)
	assert.Equal(t, uint(5), calls[0].ID)
	assert.Equal(t, 1, calls[0].Index)
	path := strings.TrimSpace(tc.out.String())
	assert.Equal(t, filepath.Join(tc.dir, "jobs", "5", "image-1.txt"), path)
	assert.Contains(t, tc.errOut.String(), "Image 2 saved to")
}

func TestImagesGetCommandRejectsIndex(t *testing.T) {
	tc := setupTestCommand(t)

	require.Error(t, tc.run("images", "get", "5", "first"))
	require.Error(t, tc.run("images", "get", "5", "-1"))

	assert.Empty(t, tc.client.CallsTo("DownloadImage"))
}

func TestImagesDownloadAllCommand(t *testing.T) {
	tc := setupTestCommand(t)
	tc.client.DownloadAllImagesFn = func(context.Context, uint) (client.Download, error) {
		return client.Download{Filename: "images.zip", Body: []byte("PK\x03\x04")}, nil
	}

	require.NoError(t, tc.run("images", "download-all", "5"))

	path := strings.TrimSpace(tc.out.String())
	assert.Equal(t, filepath.Join(tc.dir, "jobs", "5", "images.zip"), path)
	assert.FileExists(t, path)
}
