package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"time"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
)

// uwsJob is the subset of the UWS job status document the client consumes.
type uwsJob struct {
	Phase   string `xml:"http://www.ivoa.net/xml/UWS/v1.0 phase"`
	Results struct {
		Entries []uwsResult `xml:"http://www.ivoa.net/xml/UWS/v1.0 result"`
	} `xml:"http://www.ivoa.net/xml/UWS/v1.0 results"`
	ErrorSummary *struct {
		Message string `xml:"http://www.ivoa.net/xml/UWS/v1.0 message"`
	} `xml:"http://www.ivoa.net/xml/UWS/v1.0 errorSummary"`
}

type uwsResult struct {
	ID   string `xml:"id,attr"`
	Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

// ParameterRejectedError is returned when the server refuses an added filter
// parameter. The job must not be started after one of these: running it
// would silently drop the intended filter and extract the wrong data.
type ParameterRejectedError struct {
	Key        string
	StatusCode int
	Body       string
}

func (e *ParameterRejectedError) Error() string {
	return fmt.Sprintf("server rejected %s parameter: HTTP %d: %s", e.Key, e.StatusCode, e.Body)
}

// JobFailedError is returned when a job reaches a terminal ERROR or ABORTED
// phase, carrying the server's error summary message when one was provided.
type JobFailedError struct {
	Location string
	Phase    models.Phase
	Message  string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s finished with phase %s", e.Location, e.Phase)
	}
	return fmt.Sprintf("job %s finished with phase %s: %s", e.Location, e.Phase, e.Message)
}

// JobClient creates and drives UWS async jobs (SODA extractions and TAP
// async queries share the protocol).
//
// The job lifecycle is encoded in the types: CreateJob returns a
// *CreatedJob, which accepts parameters; Start consumes it and returns a
// *RunningJob, which can only be polled; completion yields a *CompletedJob,
// which is the only type the downloader accepts. Adding parameters to a
// running job, or downloading an unfinished one, does not compile.
type JobClient struct {
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewJobClient creates a UWS job client.
func NewJobClient(httpClient *HTTPClient, logger *lib.Logger) *JobClient {
	return &JobClient{
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreatedJob is a job that exists server-side but has not been started.
// Filter parameters may only be attached in this state; the server rejects
// parameters added after the run phase is triggered.
type CreatedJob struct {
	location string
	client   *JobClient
}

// RunningJob is a job whose run phase has been triggered.
type RunningJob struct {
	location string
	client   *JobClient
}

// CompletedJob is a job observed in COMPLETED phase. Its result list is
// immutable.
type CompletedJob struct {
	location string
	results  []models.ResultEntry
}

// CreateJob creates an async job with one ID parameter per access token.
// The response's final URL, after any redirect, is the job's location and
// never changes afterwards.
//
// An empty token set is rejected before any network call: it means no
// accessible products, and a job with zero ID parameters is meaningless.
func (c *JobClient) CreateJob(serviceURL string, tokens []models.AccessToken) (*CreatedJob, error) {
	if len(tokens) == 0 {
		return nil, lib.ErrNoTokens()
	}

	form := url.Values{}
	for _, token := range tokens {
		form.Add("ID", string(token))
	}
	return c.createJob(serviceURL, form, nil)
}

// createJob POSTs a job creation form and records the redirected location.
// TAP async creation reuses this with query fields instead of ID tokens.
func (c *JobClient) createJob(serviceURL string, form url.Values, creds *models.Credentials) (*CreatedJob, error) {
	c.logger.Info("Creating async job", "url", serviceURL)

	resp, err := c.httpClient.PostForm(serviceURL, form, creds)
	if err != nil {
		return nil, lib.ErrTransport(serviceURL, err)
	}
	location := resp.Request.URL.String()
	body := ReadBody(resp)

	if resp.StatusCode >= 400 {
		return nil, lib.ErrTransport(serviceURL, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	c.logger.Info("Async job created", "location", location)

	return &CreatedJob{location: location, client: c}, nil
}

// Location returns the job's canonical URL.
func (j *CreatedJob) Location() string {
	return j.location
}

// AddParams attaches every value as a repeated form field named key to the
// job. An empty values list is a no-op: nothing is posted and no error is
// returned.
func (j *CreatedJob) AddParams(key string, values []string) error {
	if len(values) == 0 {
		return nil
	}

	form := url.Values{}
	for _, value := range values {
		form.Add(key, value)
	}

	paramsURL := j.location + "/parameters"
	resp, err := j.client.httpClient.PostForm(paramsURL, form, nil)
	if err != nil {
		return lib.ErrTransport(paramsURL, err)
	}
	body := ReadBody(resp)

	if resp.StatusCode >= 400 {
		return &ParameterRejectedError{
			Key:        key,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	j.client.logger.Debug("Added job parameters", "job", j.location, "key", key, "count", len(values))
	return nil
}

// Start triggers the job's run phase. The server does not guarantee
// idempotence here, so Start consumes the CreatedJob; call it exactly once.
func (j *CreatedJob) Start() (*RunningJob, error) {
	phaseURL := j.location + "/phase"
	form := url.Values{"phase": []string{"RUN"}}

	resp, err := j.client.httpClient.PostForm(phaseURL, form, nil)
	if err != nil {
		return nil, lib.ErrTransport(phaseURL, err)
	}
	body := ReadBody(resp)

	if resp.StatusCode >= 400 {
		return nil, lib.ErrTransport(phaseURL, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	j.client.logger.Info("Started async job", "job", j.location)

	return &RunningJob{location: j.location, client: j.client}, nil
}

// Run starts the job and waits for it to complete.
func (j *CreatedJob) Run(ctx context.Context, pollInterval time.Duration) (*CompletedJob, error) {
	running, err := j.Start()
	if err != nil {
		return nil, err
	}
	return running.WaitForCompletion(ctx, pollInterval)
}

// Location returns the job's canonical URL.
func (j *RunningJob) Location() string {
	return j.location
}

// Poll reads the job's current phase from the server. This is a pure read:
// every call is a fresh status request and nothing is cached, so the result
// always reflects the server's latest state.
func (j *RunningJob) Poll() (models.Phase, error) {
	job, err := j.client.fetchJob(j.location)
	if err != nil {
		return "", err
	}
	return models.Phase(job.Phase), nil
}

// WaitForCompletion polls the job until it leaves the active phases,
// sleeping pollInterval between reads. There is no default deadline: long
// server-side extractions are expected to finish eventually, and callers
// wanting a bound supply it through ctx. Cancelling ctx aborts the wait
// during a sleep.
//
// Returns a *JobFailedError when the terminal phase is ERROR or ABORTED.
func (j *RunningJob) WaitForCompletion(ctx context.Context, pollInterval time.Duration) (*CompletedJob, error) {
	for {
		phase, err := j.Poll()
		if err != nil {
			return nil, err
		}
		lib.LogJobPhase(j.client.logger, j.location, string(phase))

		if !phase.IsActive() {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return j.Complete()
}

// Complete reads the job's final state and returns it as a CompletedJob.
// The job must have been observed in a terminal phase; an ERROR or ABORTED
// phase yields a *JobFailedError with the server's error summary.
func (j *RunningJob) Complete() (*CompletedJob, error) {
	job, err := j.client.fetchJob(j.location)
	if err != nil {
		return nil, err
	}

	phase := models.Phase(job.Phase)
	if phase != models.PhaseCompleted {
		return nil, &JobFailedError{
			Location: j.location,
			Phase:    phase,
			Message:  errorMessage(job),
		}
	}

	results := make([]models.ResultEntry, 0, len(job.Results.Entries))
	for _, entry := range job.Results.Entries {
		href, err := url.PathUnescape(entry.Href)
		if err != nil {
			// Malformed escape; use the raw href rather than dropping the entry.
			href = entry.Href
		}
		results = append(results, models.ResultEntry{Href: href, Name: entry.ID})
	}

	return &CompletedJob{location: j.location, results: results}, nil
}

// Location returns the job's canonical URL.
func (j *CompletedJob) Location() string {
	return j.location
}

// Results returns the job's downloadable outputs.
func (j *CompletedJob) Results() []models.ResultEntry {
	return j.results
}

// fetchJob GETs the job status document and parses it.
func (c *JobClient) fetchJob(location string) (*uwsJob, error) {
	resp, err := c.httpClient.Get(location, nil)
	if err != nil {
		return nil, lib.ErrTransport(location, err)
	}
	body := ReadBody(resp)

	if resp.StatusCode >= 400 {
		return nil, lib.ErrTransport(location, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	return parseUWSJob(body)
}

// parseUWSJob parses a UWS job status document. Parsing the same bytes
// twice yields the same phase.
func parseUWSJob(data []byte) (*uwsJob, error) {
	var job uwsJob
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to parse UWS job document: %w", err)
	}
	if job.Phase == "" {
		return nil, fmt.Errorf("UWS job document has no phase element")
	}
	return &job, nil
}

// errorMessage extracts the error summary text, present only for ERROR jobs.
func errorMessage(job *uwsJob) string {
	if job.ErrorSummary == nil {
		return ""
	}
	return job.ErrorSummary.Message
}
