package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointsFor(t *testing.T) {
	prod, err := EndpointsFor("prod")
	require.NoError(t, err)
	assert.Equal(t, EndpointsProd, prod)

	// Empty means prod.
	def, err := EndpointsFor("")
	require.NoError(t, err)
	assert.Equal(t, EndpointsProd, def)

	at, err := EndpointsFor("at")
	require.NoError(t, err)
	assert.Equal(t, EndpointsAT, at)

	_, err = EndpointsFor("staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}

func TestEndpointConfig_URLs(t *testing.T) {
	e := EndpointConfig{
		QueryBase:     "https://proxy.example/vo/",
		AnonQueryBase: "https://public.example/vo/",
		SodaBase:      "https://data.example/access/",
	}

	assert.Equal(t, "https://proxy.example/vo/tap/sync", e.TapSyncURL(true))
	assert.Equal(t, "https://public.example/vo/tap/sync", e.TapSyncURL(false))
	assert.Equal(t, "https://proxy.example/vo/tap/async", e.TapAsyncURL(true))
	assert.Equal(t, "https://proxy.example/vo/sia2/query", e.SIA2QueryURL())
	assert.Equal(t, "https://data.example/access/data/async", e.SodaAsyncURL())
}

func TestEndpointConfig_DataLinkURL_EscapesProductID(t *testing.T) {
	e := EndpointConfig{QueryBase: "https://proxy.example/vo/"}
	assert.Equal(t,
		"https://proxy.example/vo/datalink/links?ID=cube-123+%26+more",
		e.DataLinkURL("cube-123 & more"))
}

func TestEndpointConfig_ResultsPageURL(t *testing.T) {
	e := EndpointConfig{SodaBase: "https://data.example/access/"}

	assert.Equal(t,
		"https://data.example/access/requests/norequest-abc123",
		e.ResultsPageURL("https://data.example/access/data/async/norequest-abc123"))

	// Trailing slash on the job location does not change the request ID.
	assert.Equal(t,
		"https://data.example/access/requests/norequest-abc123",
		e.ResultsPageURL("https://data.example/access/data/async/norequest-abc123/"))
}

func TestArchiveConfig_Validate(t *testing.T) {
	valid := ArchiveConfig{
		Environment:         "prod",
		Username:            "observer",
		Password:            "secret",
		PollIntervalSeconds: 20,
	}
	assert.NoError(t, valid.Validate())

	noUser := valid
	noUser.Username = ""
	assert.Error(t, noUser.Validate())

	noPassword := valid
	noPassword.Password = ""
	assert.Error(t, noPassword.Validate())

	passwordFileOnly := valid
	passwordFileOnly.Password = ""
	passwordFileOnly.PasswordFile = "/run/secrets/archive"
	assert.NoError(t, passwordFileOnly.Validate())

	badEnv := valid
	badEnv.Environment = "qa"
	assert.Error(t, badEnv.Validate())

	badInterval := valid
	badInterval.PollIntervalSeconds = 0
	assert.Error(t, badInterval.Validate())
}

func TestPhase_Classification(t *testing.T) {
	active := []Phase{PhasePending, PhaseQueued, PhaseExecuting}
	for _, p := range active {
		assert.True(t, p.IsActive(), string(p))
		assert.False(t, p.IsTerminal(), string(p))
	}

	terminal := []Phase{PhaseCompleted, PhaseError, PhaseAborted}
	for _, p := range terminal {
		assert.True(t, p.IsTerminal(), string(p))
		assert.False(t, p.IsActive(), string(p))
	}

	// A phase value this client does not know is neither.
	unknown := Phase("HELD")
	assert.False(t, unknown.IsActive())
	assert.False(t, unknown.IsTerminal())
}
