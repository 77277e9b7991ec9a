package services

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/votable"
)

// datalinkRow is one result row of a fixture DataLink document.
type datalinkRow struct {
	serviceDef  string
	token       string
	description string
	accessURL   string
}

// datalinkDocument renders a DataLink VOTable with the given result rows
// and one meta resource per service name.
func datalinkDocument(rows []datalinkRow, services map[string]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<VOTABLE version="1.3">`)
	sb.WriteString(`<RESOURCE type="results">`)
	sb.WriteString(`<TABLE>`)
	sb.WriteString(`<FIELD name="ID" datatype="char"/>`)
	sb.WriteString(`<FIELD name="access_url" datatype="char"/>`)
	sb.WriteString(`<FIELD name="service_def" datatype="char"/>`)
	sb.WriteString(`<FIELD name="description" datatype="char"/>`)
	sb.WriteString(`<FIELD name="authenticated_id_token" datatype="char"/>`)
	sb.WriteString(`<DATA><TABLEDATA>`)
	for _, row := range rows {
		sb.WriteString("<TR>")
		sb.WriteString("<TD>product</TD>")
		sb.WriteString("<TD>" + row.accessURL + "</TD>")
		sb.WriteString("<TD>" + row.serviceDef + "</TD>")
		sb.WriteString("<TD>" + row.description + "</TD>")
		sb.WriteString("<TD>" + row.token + "</TD>")
		sb.WriteString("</TR>")
	}
	sb.WriteString(`</TABLEDATA></DATA>`)
	sb.WriteString(`</TABLE>`)
	sb.WriteString(`</RESOURCE>`)
	for name, accessURL := range services {
		sb.WriteString(fmt.Sprintf(`<RESOURCE type="meta" ID="%s" utype="adhoc:service">`, name))
		sb.WriteString(fmt.Sprintf(`<PARAM name="accessURL" datatype="char" value="%s"/>`, accessURL))
		sb.WriteString(`</RESOURCE>`)
	}
	sb.WriteString(`</VOTABLE>`)
	return sb.String()
}

func newResolver(t *testing.T, handler http.Handler) (*DataLinkResolver, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	endpoints := models.EndpointConfig{
		QueryBase:     server.URL + "/vo/",
		AnonQueryBase: server.URL + "/anon/",
		SodaBase:      server.URL + "/soda/",
	}
	creds := models.Credentials{Username: "observer", Password: "secret"}
	resolver := NewDataLinkResolver(endpoints, creds, testHTTPClient(), testLogger())
	return resolver, server
}

func TestDataLinkResolver_Resolve_Direct(t *testing.T) {
	doc := datalinkDocument(
		[]datalinkRow{
			{serviceDef: "cutout_service", token: "cube-123|observer|RAW"},
			{serviceDef: "async_service", token: "cube-123|observer|FULL"},
		},
		map[string]string{"cutout_service": "https://archive.example/soda/async"},
	)

	var sawAuth bool
	resolver, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vo/datalink/links", r.URL.Path)
		assert.Equal(t, "cube-123", r.URL.Query().Get("ID"))
		user, _, ok := r.BasicAuth()
		sawAuth = ok && user == "observer"
		fmt.Fprint(w, doc)
	}))

	access, err := resolver.Resolve("cube-123", models.CutoutService)
	require.NoError(t, err)
	assert.Equal(t, models.AccessToken("cube-123|observer|RAW"), access.Token)
	assert.Equal(t, "https://archive.example/soda/async", access.ServiceURL)
	assert.True(t, sawAuth)
}

func TestDataLinkResolver_Resolve_TwoPass(t *testing.T) {
	var secureURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/vo/datalink/links", func(w http.ResponseWriter, r *http.Request) {
		// Unauthenticated pointer document: no tokens, just the link to
		// the secure endpoint.
		fmt.Fprint(w, datalinkDocument(
			[]datalinkRow{{description: "Authenticated Data Link", accessURL: secureURL + "?ID=cube-9"}},
			nil,
		))
	})
	mux.HandleFunc("/secure/datalink/links", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cube-9", r.URL.Query().Get("ID"))
		fmt.Fprint(w, datalinkDocument(
			[]datalinkRow{{serviceDef: "spectrum_generation_service", token: "cube-9|observer|SPEC"}},
			map[string]string{"spectrum_generation_service": "https://archive.example/soda/async"},
		))
	})

	resolver, server := newResolver(t, mux)
	secureURL = server.URL + "/secure/datalink/links"

	access, err := resolver.Resolve("cube-9", models.SpectrumService)
	require.NoError(t, err)
	assert.Equal(t, models.AccessToken("cube-9|observer|SPEC"), access.Token)
}

func TestDataLinkResolver_Resolve_NoAccess(t *testing.T) {
	doc := datalinkDocument(
		[]datalinkRow{{serviceDef: "async_service", token: "cube-1|observer|FULL"}},
		map[string]string{"async_service": "https://archive.example/soda/async"},
	)
	resolver, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	}))

	// The document has no cutout token for this product.
	_, err := resolver.Resolve("cube-1", models.CutoutService)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAccess))
}

func TestDataLinkResolver_Resolve_Unauthorized(t *testing.T) {
	resolver, _ := newResolver(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))

	_, err := resolver.Resolve("cube-1", models.CutoutService)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestServiceAccessFromDocument_LastMatchWins(t *testing.T) {
	doc, err := votable.Parse(strings.NewReader(datalinkDocument(
		[]datalinkRow{
			{serviceDef: "cutout_service", token: "first"},
			{serviceDef: "cutout_service", token: "second"},
		},
		map[string]string{"cutout_service": "https://archive.example/soda/async"},
	)))
	require.NoError(t, err)

	access, err := serviceAccessFromDocument(doc, models.CutoutService)
	require.NoError(t, err)
	assert.Equal(t, models.AccessToken("second"), access.Token)
}

func TestServiceAccessFromDocument_MissingField(t *testing.T) {
	// A document whose table never declares service_def.
	raw := `<VOTABLE><RESOURCE type="results"><TABLE>
		<FIELD name="ID"/><DATA><TABLEDATA><TR><TD>x</TD></TR></TABLEDATA></DATA>
		</TABLE></RESOURCE></VOTABLE>`
	doc, err := votable.Parse(strings.NewReader(raw))
	require.NoError(t, err)

	_, err = serviceAccessFromDocument(doc, models.CutoutService)
	require.Error(t, err)

	var missing *votable.FieldMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "service_def", missing.Field)
}
