package services

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/votable"
)

// SIA2Client queries the archive's SIA2 service for image products
// matching positional criteria.
type SIA2Client struct {
	endpoints  models.EndpointConfig
	creds      models.Credentials
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewSIA2Client creates an SIA2 client. The service sits behind the
// authenticated proxy, so credentials are always required.
func NewSIA2Client(endpoints models.EndpointConfig, creds models.Credentials, httpClient *HTTPClient, logger *lib.Logger) *SIA2Client {
	return &SIA2Client{
		endpoints:  endpoints,
		creds:      creds,
		httpClient: httpClient,
		logger:     logger,
	}
}

// FindProducts runs an SIA2 query with one POS parameter per criterion and
// returns the parsed result table. Criteria come from models.PosCriteria or
// models.CirclePos. maxrec caps the row count when > 0.
func (c *SIA2Client) FindProducts(criteria []string, maxrec int) (*votable.Document, error) {
	params := url.Values{}
	for _, criterion := range criteria {
		params.Add("POS", criterion)
	}
	if maxrec > 0 {
		params.Set("MAXREC", fmt.Sprintf("%d", maxrec))
	}

	queryURL := c.endpoints.SIA2QueryURL() + "?" + params.Encode()
	c.logger.Debug("SIA2 query", "url", queryURL, "criteria", len(criteria))

	resp, err := c.httpClient.Get(queryURL, &c.creds)
	if err != nil {
		return nil, lib.ErrTransport(queryURL, err)
	}
	body := ReadBody(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, lib.ErrUnauthorized(queryURL)
	}
	if resp.StatusCode >= 400 {
		return nil, lib.ErrTransport(queryURL, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	doc, err := votable.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SIA2 response: %w", err)
	}
	return doc, nil
}
