package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/votable"
)

// TAPClient runs ADQL queries against the archive's TAP service. Queries
// over public tables run anonymously; queries needing proprietary rows go
// through the authenticated proxy.
type TAPClient struct {
	endpoints  models.EndpointConfig
	creds      *models.Credentials
	httpClient *HTTPClient
	jobClient  *JobClient
	logger     *lib.Logger
}

// NewTAPClient creates a TAP client. A nil creds runs every query against
// the anonymous endpoint.
func NewTAPClient(endpoints models.EndpointConfig, creds *models.Credentials, httpClient *HTTPClient, logger *lib.Logger) *TAPClient {
	return &TAPClient{
		endpoints:  endpoints,
		creds:      creds,
		httpClient: httpClient,
		jobClient:  NewJobClient(httpClient, logger),
		logger:     logger,
	}
}

// tapForm builds the standard TAP request fields for an ADQL query.
func tapForm(query string) url.Values {
	return url.Values{
		"query":   []string{query},
		"request": []string{"doQuery"},
		"lang":    []string{"ADQL"},
		"format":  []string{"votable"},
	}
}

// SyncQueryBytes runs a synchronous TAP query and returns the raw VOTable
// response, for callers that save the table to disk unparsed.
func (c *TAPClient) SyncQueryBytes(query string) ([]byte, error) {
	syncURL := c.endpoints.TapSyncURL(c.creds != nil)
	c.logger.Debug("TAP sync query", "url", syncURL, "query", query)

	resp, err := c.httpClient.PostForm(syncURL, tapForm(query), c.creds)
	if err != nil {
		return nil, lib.ErrTransport(syncURL, err)
	}
	body := ReadBody(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, lib.ErrUnauthorized(syncURL)
	}
	if resp.StatusCode >= 400 {
		return nil, lib.ErrTransport(syncURL, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

// SyncQuery runs a synchronous TAP query and parses the result table.
func (c *TAPClient) SyncQuery(query string) (*votable.Document, error) {
	body, err := c.SyncQueryBytes(query)
	if err != nil {
		return nil, err
	}

	doc, err := votable.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse TAP response: %w", err)
	}
	return doc, nil
}

// AsyncQuery runs a TAP query through the async endpoint, waiting for the
// job to complete. Large catalogue queries that would hit the sync
// endpoint's execution limit go this way.
func (c *TAPClient) AsyncQuery(ctx context.Context, query string, pollInterval time.Duration) (*CompletedJob, error) {
	asyncURL := c.endpoints.TapAsyncURL(c.creds != nil)
	c.logger.Debug("TAP async query", "url", asyncURL, "query", query)

	job, err := c.jobClient.createJob(asyncURL, tapForm(query), c.creds)
	if err != nil {
		return nil, err
	}
	return job.Run(ctx, pollInterval)
}
