package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
)

func testLogger() *lib.Logger {
	return lib.NewLogger(lib.LogLevelError)
}

func testHTTPClient() *HTTPClient {
	return NewHTTPClient(0, models.RetryConfig{
		MaxAttempts:      2,
		InitialBackoffMs: 1,
		MaxBackoffMs:     5,
	}, testLogger())
}

// uwsJobState tracks one fake job's server-side lifecycle.
type uwsJobState struct {
	started         bool
	polls           int
	pollsToComplete int
	finalPhase      string
	errorMessage    string
	resultHrefs     []string
	paramForms      []url.Values
}

// fakeArchive is an httptest server speaking just enough UWS for the job
// client: job creation with a 303 redirect, parameter and phase posts, and
// job status documents that advance toward a terminal phase as they are
// polled.
type fakeArchive struct {
	t      *testing.T
	mu     sync.Mutex
	server *httptest.Server

	seq          int
	jobs         map[string]*uwsJobState
	createForms  []url.Values
	creations    []createSpec
	downloads    []string
	rejectParams bool
}

// createSpec configures the next job the fake archive creates.
type createSpec struct {
	pollsToComplete int
	finalPhase      string
	errorMessage    string
	resultHrefs     []string
}

func newFakeArchive(t *testing.T) *fakeArchive {
	f := &fakeArchive{
		t:    t,
		jobs: make(map[string]*uwsJobState),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeArchive) URL() string {
	return f.server.URL
}

func (f *fakeArchive) asyncURL() string {
	return f.server.URL + "/data/async"
}

// nextJob queues the lifecycle for the next created job. Hrefs are made
// absolute against the server URL when relative.
func (f *fakeArchive) nextJob(spec createSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creations = append(f.creations, spec)
}

func (f *fakeArchive) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/download/") {
		f.downloads = append(f.downloads, strings.TrimPrefix(r.URL.Path, "/download/"))
		fmt.Fprint(w, "payload")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/data/async")
	switch {
	case r.Method == "POST" && path == "":
		_ = r.ParseForm()
		f.createForms = append(f.createForms, r.PostForm)

		spec := createSpec{pollsToComplete: 1, finalPhase: "COMPLETED"}
		if len(f.creations) > 0 {
			spec = f.creations[0]
			f.creations = f.creations[1:]
		}

		f.seq++
		id := fmt.Sprintf("job-%d", f.seq)
		f.jobs[id] = &uwsJobState{
			pollsToComplete: spec.pollsToComplete,
			finalPhase:      spec.finalPhase,
			errorMessage:    spec.errorMessage,
			resultHrefs:     spec.resultHrefs,
		}
		http.Redirect(w, r, "/data/async/"+id, http.StatusSeeOther)

	case r.Method == "POST" && strings.HasSuffix(path, "/parameters"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/parameters")
		job := f.jobs[id]
		if job == nil {
			http.NotFound(w, r)
			return
		}
		if f.rejectParams {
			http.Error(w, "invalid criteria", http.StatusBadRequest)
			return
		}
		_ = r.ParseForm()
		job.paramForms = append(job.paramForms, r.PostForm)

	case r.Method == "POST" && strings.HasSuffix(path, "/phase"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/phase")
		job := f.jobs[id]
		if job == nil {
			http.NotFound(w, r)
			return
		}
		job.started = true

	case r.Method == "GET":
		id := strings.TrimPrefix(path, "/")
		job := f.jobs[id]
		if job == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, f.jobDocument(job))

	default:
		http.NotFound(w, r)
	}
}

// jobDocument renders the UWS status document for the job's current state,
// advancing the poll counter for started jobs.
func (f *fakeArchive) jobDocument(job *uwsJobState) string {
	phase := "PENDING"
	if job.started {
		job.polls++
		if job.polls > job.pollsToComplete {
			phase = job.finalPhase
		} else {
			phase = "EXECUTING"
		}
	}

	var sb strings.Builder
	sb.WriteString(`<uws:job xmlns:uws="http://www.ivoa.net/xml/UWS/v1.0" xmlns:xlink="http://www.w3.org/1999/xlink">`)
	sb.WriteString("<uws:phase>" + phase + "</uws:phase>")
	if phase == "COMPLETED" {
		sb.WriteString("<uws:results>")
		for i, href := range job.resultHrefs {
			if strings.HasPrefix(href, "/") {
				href = f.server.URL + href
			}
			sb.WriteString(fmt.Sprintf(`<uws:result id="result-%d" xlink:href="%s"/>`, i+1, href))
		}
		sb.WriteString("</uws:results>")
	}
	if phase == "ERROR" && job.errorMessage != "" {
		sb.WriteString("<uws:errorSummary><uws:message>" + job.errorMessage + "</uws:message></uws:errorSummary>")
	}
	sb.WriteString("</uws:job>")
	return sb.String()
}

// jobState returns the recorded state for a job location.
func (f *fakeArchive) jobState(location string) *uwsJobState {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(location, "/")
	return f.jobs[parts[len(parts)-1]]
}

func (f *fakeArchive) createFormCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createForms)
}

// downloadOrder returns the result files served so far, in request order.
func (f *fakeArchive) downloadOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.downloads...)
}
