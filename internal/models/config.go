package models

import (
	"fmt"
	"net/url"
	"strings"
)

// EndpointConfig is the immutable set of base URLs for one archive
// environment. A value is constructed once (normally via EndpointsFor) and
// passed explicitly into every client instance, so concurrent clients can
// target different environments without shared state.
type EndpointConfig struct {
	// QueryBase is the authenticated VO proxy used for TAP, SIA2 and
	// DataLink requests.
	QueryBase string
	// AnonQueryBase is the anonymous VO tools endpoint used for
	// unauthenticated TAP queries.
	AnonQueryBase string
	// SodaBase is the data access service hosting the SODA async endpoint.
	SodaBase string
}

// Named environment presets. Prod is the default.
var (
	EndpointsProd = EndpointConfig{
		QueryBase:     "https://data.csiro.au/casda_vo_proxy/vo/",
		AnonQueryBase: "https://casda.csiro.au/casda_vo_tools/",
		SodaBase:      "https://casda.csiro.au/casda_data_access/",
	}
	EndpointsAT = EndpointConfig{
		QueryBase:     "https://daplt.csiro.au/casda_vo_proxy/vo/",
		AnonQueryBase: "https://casda-at-app.csiro.au/casda_vo_tools/",
		SodaBase:      "https://casda-at-app.csiro.au/casda_data_access/",
	}
	EndpointsTest = EndpointConfig{
		QueryBase:     "https://daptst.csiro.au/casda_vo_proxy/vo/",
		AnonQueryBase: "https://casda-tst-app.csiro.au/casda_vo_tools/",
		SodaBase:      "https://casda-tst-app.csiro.au/casda_data_access/",
	}
	EndpointsDev = EndpointConfig{
		QueryBase:     "https://dapdev.csiro.au/casda_vo_proxy/vo/",
		AnonQueryBase: "https://casda-dev-app.csiro.au/casda_vo_tools/",
		SodaBase:      "https://casda-dev-app.csiro.au/casda_data_access/",
	}
)

// EndpointsFor returns the endpoint preset for an environment name.
func EndpointsFor(environment string) (EndpointConfig, error) {
	switch environment {
	case "", "prod":
		return EndpointsProd, nil
	case "at":
		return EndpointsAT, nil
	case "test":
		return EndpointsTest, nil
	case "dev":
		return EndpointsDev, nil
	default:
		return EndpointConfig{}, fmt.Errorf("unknown environment %q (expected prod, at, test or dev)", environment)
	}
}

// TapSyncURL returns the synchronous TAP endpoint. Authenticated queries go
// through the VO proxy, anonymous ones through the public VO tools.
func (e EndpointConfig) TapSyncURL(authenticated bool) string {
	if authenticated {
		return e.QueryBase + "tap/sync"
	}
	return e.AnonQueryBase + "tap/sync"
}

// TapAsyncURL returns the asynchronous TAP endpoint.
func (e EndpointConfig) TapAsyncURL(authenticated bool) string {
	if authenticated {
		return e.QueryBase + "tap/async"
	}
	return e.AnonQueryBase + "tap/async"
}

// DataLinkURL returns the DataLink links endpoint for a data product.
func (e EndpointConfig) DataLinkURL(productID string) string {
	return e.QueryBase + "datalink/links?ID=" + url.QueryEscape(productID)
}

// SIA2QueryURL returns the SIA2 query endpoint.
func (e EndpointConfig) SIA2QueryURL() string {
	return e.QueryBase + "sia2/query"
}

// SodaAsyncURL returns the default SODA async job endpoint, used when a
// DataLink document does not supply a service-specific one.
func (e EndpointConfig) SodaAsyncURL() string {
	return e.SodaBase + "data/async"
}

// ResultsPageURL returns the human-readable request page for a job location.
func (e EndpointConfig) ResultsPageURL(jobLocation string) string {
	parts := strings.Split(strings.TrimRight(jobLocation, "/"), "/")
	jobID := parts[len(parts)-1]
	return e.SodaBase + "requests/" + jobID
}

// Credentials holds the archive account used for HTTP basic authentication.
// There is no token refresh or session model; every authenticated request
// carries these directly.
type Credentials struct {
	Username string
	Password string
}

// ArchiveConfig contains archive connection and job polling settings.
type ArchiveConfig struct {
	Environment         string `yaml:"environment" json:"environment"`
	Username            string `yaml:"username" json:"username"`
	Password            string `yaml:"password" json:"password"`
	PasswordFile        string `yaml:"password_file" json:"password_file"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
}

// RetryConfig controls retry behavior for transient HTTP errors.
type RetryConfig struct {
	MaxAttempts      int   `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoffMs int64 `yaml:"initial_backoff_ms" json:"initial_backoff_ms"`
	MaxBackoffMs     int64 `yaml:"max_backoff_ms" json:"max_backoff_ms"`
}

// ProjectConfig is the top-level configuration for the vela CLI.
type ProjectConfig struct {
	Archive        ArchiveConfig `yaml:"archive" json:"archive"`
	Retry          RetryConfig   `yaml:"retry" json:"retry"`
	DestinationDir string        `yaml:"destination_dir" json:"destination_dir"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		Archive: ArchiveConfig{
			Environment: "prod",
			// No enforced minimum; values below the server's rate-limit
			// tolerance are the caller's responsibility.
			PollIntervalSeconds: 20,
		},
		Retry: RetryConfig{
			MaxAttempts:      5,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
		},
		DestinationDir: "temp",
	}
}

// Validate checks the ArchiveConfig for required fields and valid values.
func (c *ArchiveConfig) Validate() error {
	if _, err := EndpointsFor(c.Environment); err != nil {
		return err
	}
	if c.Username == "" {
		return fmt.Errorf("archive username is required")
	}
	if c.Password == "" && c.PasswordFile == "" {
		return fmt.Errorf("archive password or password_file is required")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.PollIntervalSeconds)
	}
	return nil
}
