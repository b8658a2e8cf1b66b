package proj

import (
	"errors"
	"math"
	"testing"
)

func TestNewRejectsUnknownCode(t *testing.T) {
	_, err := New(EPSGWGS84, 99999)
	if !errors.Is(err, ErrUnsupportedCRS) {
		t.Fatalf("expected ErrUnsupportedCRS, got %v", err)
	}
}

func TestUTMRoundTrip(t *testing.T) {
	// Zone 55 south covers eastern Australia.
	tr, err := New(EPSGWGS84, 32755)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lon, lat := 147.5, -35.2
	x, y := tr.Forward(lon, lat)
	lon2, lat2 := tr.Inverse(x, y)

	if math.Abs(lon2-lon) > 1e-9 || math.Abs(lat2-lat) > 1e-9 {
		t.Errorf("round trip drifted: got (%f, %f), want (%f, %f)", lon2, lat2, lon, lat)
	}
	if y >= 10000000.0 {
		t.Errorf("southern hemisphere northing should be below the false northing, got %f", y)
	}
}

func TestUTMCentralMeridian(t *testing.T) {
	// Zone 55 has central meridian 147E; a point on it maps to the false easting.
	tr, err := New(EPSGWGS84, 32655)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x, _ := tr.Forward(147.0, 40.0)
	if math.Abs(x-500000.0) > 1e-6 {
		t.Errorf("central meridian easting = %f, want 500000", x)
	}
}

func TestUTMHandlesDatelineWraparound(t *testing.T) {
	// Zone 60 (central meridian 177E) must treat -179 as just east of 177,
	// not half a world away.
	tr, err := New(EPSGWGS84, 32660)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xEast, _ := tr.Forward(179.0, -10.0)
	xWest, _ := tr.Forward(-179.0, -10.0)
	if xWest <= xEast {
		t.Errorf("longitude -179 should project east of 179: got %f <= %f", xWest, xEast)
	}
	if math.Abs(xWest-xEast) > 500000 {
		t.Errorf("projected points should be close together, got separation %f", xWest-xEast)
	}
}

func TestPolarStereographicRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		epsg     int
		lon, lat float64
	}{
		{EPSGPolarSouth, 110.0, -85.0},
		{EPSGPolarSouth, -45.0, -81.0},
		{EPSGPolarNorth, 10.0, 86.0},
		{EPSGPolarNorth, -150.0, 82.5},
	} {
		tr, err := New(EPSGWGS84, tc.epsg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		x, y := tr.Forward(tc.lon, tc.lat)
		lon2, lat2 := tr.Inverse(x, y)
		if math.Abs(lon2-tc.lon) > 1e-9 || math.Abs(lat2-tc.lat) > 1e-9 {
			t.Errorf("EPSG %d round trip drifted: got (%f, %f), want (%f, %f)",
				tc.epsg, lon2, lat2, tc.lon, tc.lat)
		}
	}
}

func TestPoleMapsToOrigin(t *testing.T) {
	tr, err := New(EPSGWGS84, EPSGPolarSouth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x, y := tr.Forward(37.0, -90.0)
	if math.Abs(x) > 1e-6 || math.Abs(y) > 1e-6 {
		t.Errorf("south pole should project to origin, got (%f, %f)", x, y)
	}
}

func TestIdentityTransform(t *testing.T) {
	tr, err := New(EPSGWGS84, EPSGWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x, y := tr.Forward(12.5, -7.25)
	if x != 12.5 || y != -7.25 {
		t.Errorf("identity transform changed coordinates: (%f, %f)", x, y)
	}
}
