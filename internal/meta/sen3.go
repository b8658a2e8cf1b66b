package meta

import (
	"archive/zip"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/auscophub/archive/internal/geom"
)

// ParseSen3Zipfile reads the XFDU manifest from a Sentinel-3 SAFE zipfile.
func ParseSen3Zipfile(zipfilename string) (*ZipfileMeta, error) {
	zr, err := zip.OpenReader(zipfilename)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrSen3Meta, zipfilename, err)
	}
	defer zr.Close()

	var manifestName string
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "xfdumanifest.xml") {
			manifestName = f.Name
			break
		}
	}
	if manifestName == "" {
		return nil, fmt.Errorf("%w: no xfdumanifest.xml in %s", ErrSen3Meta, zipfilename)
	}

	data, err := readMember(zr, manifestName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSen3Meta, err)
	}
	return ParseSen3Manifest(data)
}

// ParseSen3Manifest parses the content of a Sentinel-3 xfdumanifest.xml.
//
// The manifest's metadataObject sections may appear in any order, so each is
// located by its ID attribute rather than by position. The gml:posList
// footprint stores pairs as "lat lon lat lon ..." and is swapped into
// lon/lat order before the polygon is built.
func ParseSen3Manifest(data []byte) (*ZipfileMeta, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest XML: %v", ErrSen3Meta, err)
	}

	m := &ZipfileMeta{}

	// Acquisition times.
	acq, err := sen3Section(doc, "acquisitionPeriod")
	if err != nil {
		return nil, err
	}
	startEl := acq.FindElement(".//startTime")
	stopEl := acq.FindElement(".//stopTime")
	if startEl == nil || stopEl == nil {
		return nil, fmt.Errorf("%w: acquisitionPeriod missing start/stop times", ErrSen3Meta)
	}
	if m.StartTime, err = parseSafeTime(startEl.Text()); err != nil {
		return nil, fmt.Errorf("%w: startTime: %v", ErrSen3Meta, err)
	}
	if m.StopTime, err = parseSafeTime(stopEl.Text()); err != nil {
		return nil, fmt.Errorf("%w: stopTime: %v", ErrSen3Meta, err)
	}
	m.Datetime = m.StartTime

	// Platform details. The un-abbreviated familyName carries the mission
	// name; the abbreviated one belongs to the instrument.
	platform, err := sen3Section(doc, "platform")
	if err != nil {
		return nil, err
	}
	var family string
	for _, el := range platform.FindElements(".//familyName") {
		if el.SelectAttr("abbreviation") == nil || el.SelectAttrValue("abbreviation", "") == "" {
			if el.Parent() != nil && el.Parent().Tag == "instrument" {
				continue
			}
			family = strings.TrimSpace(el.Text())
			break
		}
	}
	numberEl := platform.FindElement(".//number")
	if family == "" || numberEl == nil {
		return nil, fmt.Errorf("%w: platform section missing familyName/number", ErrSen3Meta)
	}
	if family != "Sentinel-3" {
		return nil, fmt.Errorf("%w: satellite family %q does not appear to be Sentinel-3", ErrSen3Meta, family)
	}
	m.SatelliteID = "S3" + strings.TrimSpace(numberEl.Text())

	instrFamily := platform.FindElement(".//instrument//familyName")
	if instrFamily == nil {
		return nil, fmt.Errorf("%w: platform section missing instrument familyName", ErrSen3Meta)
	}
	m.Instrument = instrFamily.SelectAttrValue("abbreviation", "")
	if m.Instrument == "" {
		return nil, fmt.Errorf("%w: instrument familyName has no abbreviation", ErrSen3Meta)
	}

	// Footprint lives under the measurementFrameSet section.
	frameSet, err := sen3Section(doc, "measurementFrameSet")
	if err != nil {
		return nil, err
	}
	posListEl := frameSet.FindElement(".//posList")
	if posListEl == nil {
		return nil, fmt.Errorf("%w: measurementFrameSet missing gml:posList", ErrSen3Meta)
	}
	footprint, err := polygonFromPosList(posListEl.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: posList: %v", ErrSen3Meta, err)
	}
	m.Footprint = footprint
	if epsg, ok := geom.FindSensibleProjection(footprint); ok {
		if ctr, err := geom.Centroid(footprint, epsg); err == nil {
			m.Centroid = &ctr
		}
	}

	// Frame number, stored in generalProductInformation rather than the
	// frame set.
	prodInfo, err := sen3Section(doc, "generalProductInformation")
	if err != nil {
		return nil, err
	}
	if frameEl := prodInfo.FindElement(".//alongtrackCoordinate"); frameEl != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(frameEl.Text())); err == nil {
			m.FrameNumber = &n
		}
	}
	if typeEl := prodInfo.FindElement(".//productType"); typeEl != nil {
		m.ProductType = strings.TrimSpace(typeEl.Text())
	} else if nameEl := prodInfo.FindElement(".//productName"); nameEl != nil {
		// Product type is the 11 characters after the "S3A_" prefix of the
		// product name.
		name := strings.TrimSpace(nameEl.Text())
		if len(name) >= 15 {
			m.ProductType = name[4:15]
		}
	}
	if m.ProductType == "" {
		return nil, fmt.Errorf("%w: cannot determine product type", ErrSen3Meta)
	}

	// Orbit number.
	orbitRef, err := sen3Section(doc, "measurementOrbitReference")
	if err != nil {
		return nil, err
	}
	relOrbitEl := orbitRef.FindElement(".//relativeOrbitNumber")
	if relOrbitEl == nil {
		return nil, fmt.Errorf("%w: measurementOrbitReference missing relativeOrbitNumber", ErrSen3Meta)
	}
	relOrbit, err := strconv.Atoi(strings.TrimSpace(relOrbitEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: bad relativeOrbitNumber %q", ErrSen3Meta, relOrbitEl.Text())
	}
	m.RelativeOrbit = &relOrbit

	// Processing level is only available as free text on the packageUnit
	// content unit. Suffix matching is brittle, but there is no structured
	// field carrying this.
	for _, unit := range doc.FindElements("//contentUnit") {
		if unit.SelectAttrValue("ID", "") != "packageUnit" {
			continue
		}
		textInfo := unit.SelectAttrValue("textInfo", "")
		switch {
		case strings.HasSuffix(textInfo, "OLCI Full Resolution Level 1"):
			m.ProcessingLevel = "OL_1_EFR"
		case strings.HasSuffix(textInfo, "OLCI Reduced Resolution Level 1"):
			m.ProcessingLevel = "OL_1_ERR"
		}
	}

	return m, nil
}

// sen3Section locates a metadataObject by its ID attribute. Sections may
// appear in any document order.
func sen3Section(doc *etree.Document, id string) (*etree.Element, error) {
	for _, el := range doc.FindElements("//metadataSection/metadataObject") {
		if el.SelectAttrValue("ID", "") == id {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: manifest has no metadataObject with ID %q", ErrSen3Meta, id)
}
