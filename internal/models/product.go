package models

// ServiceName identifies a named DataLink service definition offered for a
// data product. The archive publishes one token per (product, service) pair.
type ServiceName string

const (
	// CutoutService produces spatial/spectral cutouts from image cubes.
	CutoutService ServiceName = "cutout_service"
	// SpectrumService extracts one-dimensional spectra from spectral cubes.
	SpectrumService ServiceName = "spectrum_generation_service"
	// AsyncService retrieves the complete data product file.
	AsyncService ServiceName = "async_service"
)

// AccessToken is an opaque authenticated id token scoping the caller's
// access to one data product for one named service. It is only ever used as
// an ID parameter when creating an async job.
type AccessToken string

// ServiceAccess is the resolved access point for one data product: the
// async endpoint of the requested service and the token to submit to it.
type ServiceAccess struct {
	ServiceURL string
	Token      AccessToken
}
