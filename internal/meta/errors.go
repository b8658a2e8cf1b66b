package meta

import "errors"

var (
	// ErrSen1Meta is returned when required Sentinel-1 metadata is absent or malformed.
	ErrSen1Meta = errors.New("sentinel-1 metadata error")

	// ErrSen2Meta is returned when required Sentinel-2 metadata is absent or malformed.
	ErrSen2Meta = errors.New("sentinel-2 metadata error")

	// ErrSen3Meta is returned when required Sentinel-3 metadata is absent or malformed.
	ErrSen3Meta = errors.New("sentinel-3 metadata error")

	// ErrSen5Meta is returned when required Sentinel-5 metadata is absent or malformed.
	ErrSen5Meta = errors.New("sentinel-5 metadata error")

	// ErrUnknownSatellite is returned when a filename does not identify a
	// supported mission family.
	ErrUnknownSatellite = errors.New("unrecognized satellite family")

	// ErrDescription is returned when a sidecar description XML file cannot
	// be parsed.
	ErrDescription = errors.New("description XML error")
)
