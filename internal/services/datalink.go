package services

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/votable"
)

// ErrNoAccess is returned when a DataLink document carries no authenticated
// token for the requested service. This is a valid "no access" outcome for
// the caller to filter out, not a transport or protocol failure.
var ErrNoAccess = errors.New("no access to this data product for the requested service")

// authenticatedLinkDescription marks a result row whose access_url points at
// the secure DataLink endpoint that must be fetched in a second pass.
const authenticatedLinkDescription = "Authenticated Data Link"

// DataLinkResolver turns data product identifiers into (service URL, token)
// pairs by fetching and parsing the product's DataLink document.
type DataLinkResolver struct {
	endpoints  models.EndpointConfig
	creds      models.Credentials
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewDataLinkResolver creates a resolver bound to one environment and one
// set of credentials.
func NewDataLinkResolver(endpoints models.EndpointConfig, creds models.Credentials, httpClient *HTTPClient, logger *lib.Logger) *DataLinkResolver {
	return &DataLinkResolver{
		endpoints:  endpoints,
		creds:      creds,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Resolve fetches the DataLink document for a data product and extracts the
// async endpoint URL and authenticated id token for the named service.
//
// Some product records publish an unauthenticated DataLink pointer; in that
// case the first document contains an "Authenticated Data Link" row whose
// access_url is a second DataLink endpoint, and the lookup runs against the
// document fetched from there instead.
//
// Returns ErrNoAccess (wrapped) when the document has no token for the
// service; callers aggregate tokens across products and must filter these
// out before creating a job.
func (r *DataLinkResolver) Resolve(productID string, service models.ServiceName) (*models.ServiceAccess, error) {
	doc, err := r.fetchDocument(r.endpoints.DataLinkURL(productID))
	if err != nil {
		return nil, err
	}

	secureURL, err := authenticatedDataLinkURL(doc)
	if err != nil {
		return nil, fmt.Errorf("datalink document for %s: %w", productID, err)
	}
	if secureURL != "" {
		// The first document was the unauthenticated pointer; replace it.
		r.logger.Debug("Following authenticated datalink", "product", productID, "url", secureURL)
		doc, err = r.fetchDocument(secureURL)
		if err != nil {
			return nil, err
		}
	}

	access, err := serviceAccessFromDocument(doc, service)
	if err != nil {
		return nil, fmt.Errorf("datalink document for %s: %w", productID, err)
	}
	if access.Token == "" {
		r.logger.Info("No access token for product", "product", productID, "service", service)
		return nil, fmt.Errorf("product %s, service %s: %w", productID, service, ErrNoAccess)
	}

	r.logger.Debug("Resolved service access",
		"product", productID,
		"service", service,
		"async_url", access.ServiceURL)

	return access, nil
}

// fetchDocument GETs a DataLink URL with basic auth and parses the VOTable.
func (r *DataLinkResolver) fetchDocument(url string) (*votable.Document, error) {
	resp, err := r.httpClient.Get(url, &r.creds)
	if err != nil {
		return nil, lib.ErrTransport(url, err)
	}

	body := ReadBody(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, lib.ErrUnauthorized(url)
	}
	if resp.StatusCode >= 400 {
		return nil, lib.ErrTransport(url, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	doc, err := votable.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse datalink response from %s: %w", url, err)
	}
	return doc, nil
}

// authenticatedDataLinkURL returns the secure DataLink endpoint published in
// the document, or "" when the document already came from the secure
// endpoint.
func authenticatedDataLinkURL(doc *votable.Document) (string, error) {
	table, err := doc.FirstTable()
	if err != nil {
		return "", err
	}

	secureURL := ""
	for _, row := range table.Rows() {
		desc, err := row.Field("description")
		if err != nil {
			return "", err
		}
		if desc == authenticatedLinkDescription {
			secureURL, err = row.Field("access_url")
			if err != nil {
				return "", err
			}
		}
	}
	return secureURL, nil
}

// serviceAccessFromDocument scans the result rows for the named service's
// token and the meta resources for its async endpoint URL.
//
// The DataLink protocol does not define multiplicity for rows sharing a
// service_def; when several match, the last one wins.
func serviceAccessFromDocument(doc *votable.Document, service models.ServiceName) (*models.ServiceAccess, error) {
	table, err := doc.FirstTable()
	if err != nil {
		return nil, err
	}

	access := &models.ServiceAccess{}
	for _, row := range table.Rows() {
		def, err := row.Field("service_def")
		if err != nil {
			return nil, err
		}
		if def == string(service) {
			token, err := row.Field("authenticated_id_token")
			if err != nil {
				return nil, err
			}
			access.Token = models.AccessToken(token)
		}
	}

	if meta := doc.Meta(string(service)); meta != nil {
		if url, ok := meta.Param("accessURL"); ok {
			access.ServiceURL = url
		}
	}

	return access, nil
}
