package meta

import (
	"math"
	"strings"
	"testing"
)

const sen3ManifestSample = `<?xml version="1.0" encoding="UTF-8"?>
<xfdu:XFDU version="esa/safe/sentinel/1.1/sentinel-3/olci/level-1">
  <informationPackageMap>
    <xfdu:contentUnit ID="packageUnit" unitType="Information Package"
        textInfo="SENTINEL-3 OLCI Full Resolution Level 1"/>
  </informationPackageMap>
  <metadataSection>
    <metadataObject ID="measurementOrbitReference" classification="DESCRIPTION" category="DMD">
      <metadataWrap>
        <xmlData>
          <sentinel-safe:orbitReference>
            <sentinel-safe:relativeOrbitNumber type="start">305</sentinel-safe:relativeOrbitNumber>
          </sentinel-safe:orbitReference>
        </xmlData>
      </metadataWrap>
    </metadataObject>
    <metadataObject ID="acquisitionPeriod" classification="DESCRIPTION" category="DMD">
      <metadataWrap>
        <xmlData>
          <sentinel-safe:acquisitionPeriod>
            <sentinel-safe:startTime>2018-06-10T23:42:07.929426Z</sentinel-safe:startTime>
            <sentinel-safe:stopTime>2018-06-10T23:45:07.929426Z</sentinel-safe:stopTime>
          </sentinel-safe:acquisitionPeriod>
        </xmlData>
      </metadataWrap>
    </metadataObject>
    <metadataObject ID="platform" classification="DESCRIPTION" category="DMD">
      <metadataWrap>
        <xmlData>
          <sentinel-safe:platform>
            <sentinel-safe:familyName>Sentinel-3</sentinel-safe:familyName>
            <sentinel-safe:number>A</sentinel-safe:number>
            <sentinel-safe:instrument>
              <sentinel-safe:familyName abbreviation="OLCI">Ocean Land Colour Instrument</sentinel-safe:familyName>
            </sentinel-safe:instrument>
          </sentinel-safe:platform>
        </xmlData>
      </metadataWrap>
    </metadataObject>
    <metadataObject ID="generalProductInformation" classification="DESCRIPTION" category="DMD">
      <metadataWrap>
        <xmlData>
          <sentinel3:generalProductInformation>
            <sentinel3:productName>S3A_OL_1_EFR____20180610T234207_20180610T234507_20180612T035943_0179_032_101_3060_MAR_O_NT_002.SEN3</sentinel3:productName>
            <sentinel3:alongtrackCoordinate>3060</sentinel3:alongtrackCoordinate>
          </sentinel3:generalProductInformation>
        </xmlData>
      </metadataWrap>
    </metadataObject>
    <metadataObject ID="measurementFrameSet" classification="DESCRIPTION" category="DMD">
      <metadataWrap>
        <xmlData>
          <sentinel-safe:frameSet>
            <sentinel-safe:footPrint srsName="http://www.opengis.net/def/crs/EPSG/0/4326">
              <gml:posList>-34.0 144.0 -34.0 146.0 -32.0 146.0 -32.0 144.0 -34.0 144.0</gml:posList>
            </sentinel-safe:footPrint>
          </sentinel-safe:frameSet>
        </xmlData>
      </metadataWrap>
    </metadataObject>
  </metadataSection>
</xfdu:XFDU>`

func TestParseSen3Manifest(t *testing.T) {
	m, err := ParseSen3Manifest([]byte(sen3ManifestSample))
	if err != nil {
		t.Fatalf("ParseSen3Manifest: %v", err)
	}

	if m.SatelliteID != "S3A" {
		t.Errorf("SatelliteID = %q, want S3A", m.SatelliteID)
	}
	if m.Instrument != "OLCI" {
		t.Errorf("Instrument = %q, want OLCI", m.Instrument)
	}
	// No structured productType element in this manifest, so the type comes
	// from the product name.
	if m.ProductType != "OL_1_EFR___" {
		t.Errorf("ProductType = %q, want OL_1_EFR___", m.ProductType)
	}
	if m.ProcessingLevel != "OL_1_EFR" {
		t.Errorf("ProcessingLevel = %q, want OL_1_EFR", m.ProcessingLevel)
	}
	if m.StartTime.Hour() != 23 || m.StartTime.Minute() != 42 {
		t.Errorf("StartTime = %v", m.StartTime)
	}
	if m.RelativeOrbit == nil || *m.RelativeOrbit != 305 {
		t.Errorf("RelativeOrbit = %v, want 305", m.RelativeOrbit)
	}
	if m.FrameNumber == nil || *m.FrameNumber != 3060 {
		t.Errorf("FrameNumber = %v, want 3060", m.FrameNumber)
	}
	if m.Footprint == nil || m.Centroid == nil {
		t.Fatal("expected footprint and centroid")
	}
	if math.Abs(m.Centroid.Lon()-145) > 0.1 || math.Abs(m.Centroid.Lat()+33) > 0.1 {
		t.Errorf("centroid = %v, want near (145, -33)", *m.Centroid)
	}
}

func TestParseSen3ManifestReducedResolution(t *testing.T) {
	manifest := strings.Replace(sen3ManifestSample,
		"OLCI Full Resolution Level 1", "OLCI Reduced Resolution Level 1", 1)
	manifest = strings.Replace(manifest, "S3A_OL_1_EFR___", "S3A_OL_1_ERR___", 1)

	m, err := ParseSen3Manifest([]byte(manifest))
	if err != nil {
		t.Fatalf("ParseSen3Manifest: %v", err)
	}
	if m.ProcessingLevel != "OL_1_ERR" {
		t.Errorf("ProcessingLevel = %q, want OL_1_ERR", m.ProcessingLevel)
	}
	if m.ProductType != "OL_1_ERR___" {
		t.Errorf("ProductType = %q, want OL_1_ERR___", m.ProductType)
	}
}

func TestParseSen3ManifestMissingSection(t *testing.T) {
	manifest := strings.Replace(sen3ManifestSample, `ID="acquisitionPeriod"`, `ID="somethingElse"`, 1)
	if _, err := ParseSen3Manifest([]byte(manifest)); err == nil {
		t.Fatal("expected error for missing acquisitionPeriod section")
	}
}
