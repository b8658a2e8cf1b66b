// Package proj supplies the projected-coordinate transforms used when taking
// footprint centroids. Given two CRS identifiers (EPSG codes) it returns a
// forward/inverse transform pair operating on (x, y) points.
//
// Only the projections the archive actually selects are implemented: the UTM
// zones (EPSG 32601-32760) and the two polar stereographic systems used near
// the poles (EPSG 3031 south, 3995 north). The spherical forms are used;
// placement only needs a shape-preserving local plane to centroid in, and the
// datum difference is far below the 5 degree grid-cell size.
package proj

import (
	"errors"
	"fmt"
	"math"
)

// EPSG codes recognized by New.
const (
	EPSGWGS84      = 4326
	EPSGPolarSouth = 3031
	EPSGPolarNorth = 3995
)

// earthRadius is the authalic sphere radius in metres.
const earthRadius = 6371007.0

// ErrUnsupportedCRS is returned for EPSG codes outside the supported set.
var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// PointFunc transforms a single coordinate pair.
type PointFunc func(x, y float64) (float64, float64)

// Transform is a forward/inverse pair between two coordinate reference
// systems. Forward maps from-CRS coordinates to to-CRS coordinates.
type Transform struct {
	Forward PointFunc
	Inverse PointFunc
}

// projection is a projected system with its own forward (lon/lat -> x/y)
// and inverse mappings, in degrees on the geographic side.
type projection struct {
	forward PointFunc
	inverse PointFunc
}

// New returns the transform pair between two EPSG codes. Either side may be
// geographic WGS84 (4326); projected-to-projected transforms pivot through
// lat/long.
func New(fromEPSG, toEPSG int) (*Transform, error) {
	if fromEPSG == toEPSG {
		ident := func(x, y float64) (float64, float64) { return x, y }
		return &Transform{Forward: ident, Inverse: ident}, nil
	}

	if fromEPSG == EPSGWGS84 {
		p, err := lookup(toEPSG)
		if err != nil {
			return nil, err
		}
		return &Transform{Forward: p.forward, Inverse: p.inverse}, nil
	}

	if toEPSG == EPSGWGS84 {
		p, err := lookup(fromEPSG)
		if err != nil {
			return nil, err
		}
		return &Transform{Forward: p.inverse, Inverse: p.forward}, nil
	}

	from, err := lookup(fromEPSG)
	if err != nil {
		return nil, err
	}
	to, err := lookup(toEPSG)
	if err != nil {
		return nil, err
	}
	return &Transform{
		Forward: func(x, y float64) (float64, float64) {
			return to.forward(from.inverse(x, y))
		},
		Inverse: func(x, y float64) (float64, float64) {
			return from.forward(to.inverse(x, y))
		},
	}, nil
}

func lookup(epsg int) (*projection, error) {
	switch {
	case epsg >= 32601 && epsg <= 32660:
		return utm(epsg-32600, true), nil
	case epsg >= 32701 && epsg <= 32760:
		return utm(epsg-32700, false), nil
	case epsg == EPSGPolarSouth:
		return polarStereographic(false), nil
	case epsg == EPSGPolarNorth:
		return polarStereographic(true), nil
	}
	return nil, fmt.Errorf("%w: EPSG %d", ErrUnsupportedCRS, epsg)
}

// utm builds the spherical transverse Mercator projection for the given zone.
func utm(zone int, north bool) *projection {
	const (
		k0           = 0.9996
		falseEasting = 500000.0
	)
	falseNorthing := 0.0
	if !north {
		falseNorthing = 10000000.0
	}
	lon0 := float64(zone)*6.0 - 183.0

	forward := func(lon, lat float64) (float64, float64) {
		dlam := wrapDegrees(lon-lon0) * math.Pi / 180
		phi := lat * math.Pi / 180
		b := math.Cos(phi) * math.Sin(dlam)
		x := falseEasting + k0*earthRadius*math.Atanh(b)
		y := falseNorthing + k0*earthRadius*math.Atan2(math.Tan(phi), math.Cos(dlam))
		return x, y
	}

	inverse := func(x, y float64) (float64, float64) {
		xn := (x - falseEasting) / (k0 * earthRadius)
		yn := (y - falseNorthing) / (k0 * earthRadius)
		phi := math.Asin(math.Sin(yn) / math.Cosh(xn))
		lam := lon0 + math.Atan2(math.Sinh(xn), math.Cos(yn))*180/math.Pi
		return wrapDegrees(lam), phi * 180 / math.Pi
	}

	return &projection{forward: forward, inverse: inverse}
}

// polarStereographic builds the spherical polar stereographic projection with
// a standard parallel at +/-71 degrees, matching EPSG 3995 and 3031.
func polarStereographic(north bool) *projection {
	k0 := (1 + math.Sin(71*math.Pi/180)) / 2

	forward := func(lon, lat float64) (float64, float64) {
		lam := lon * math.Pi / 180
		phi := lat * math.Pi / 180
		if north {
			rho := 2 * earthRadius * k0 * math.Tan(math.Pi/4-phi/2)
			return rho * math.Sin(lam), -rho * math.Cos(lam)
		}
		rho := 2 * earthRadius * k0 * math.Tan(math.Pi/4+phi/2)
		return rho * math.Sin(lam), rho * math.Cos(lam)
	}

	inverse := func(x, y float64) (float64, float64) {
		rho := math.Hypot(x, y)
		c := 2 * math.Atan(rho/(2*earthRadius*k0))
		if north {
			lat := (math.Pi/2 - c) * 180 / math.Pi
			lon := math.Atan2(x, -y) * 180 / math.Pi
			return wrapDegrees(lon), lat
		}
		lat := (c - math.Pi/2) * 180 / math.Pi
		lon := math.Atan2(x, y) * 180 / math.Pi
		return wrapDegrees(lon), lat
	}

	return &projection{forward: forward, inverse: inverse}
}

// wrapDegrees brings a longitude or longitude difference into [-180, 180).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg >= 180 {
		deg -= 360
	} else if deg < -180 {
		deg += 360
	}
	return deg
}
