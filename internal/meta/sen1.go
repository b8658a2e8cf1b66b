package meta

import (
	"archive/zip"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/geom"
)

// Sentinel-1 relative orbit numbers follow from the absolute orbit by a
// fixed offset and cycle length defined by the mission orbital mechanics.
// Do not "fix" these constants; they are externally defined.
const (
	sen1OrbitOffset = 73
	sen1OrbitCycle  = 175
)

// sen1Annotation is the subset of one per-swath/per-polarisation annotation
// XML fragment that the archive cares about.
type sen1Annotation struct {
	missionID     string
	productType   string
	polarisation  string
	mode          string
	swath         string
	passDirection string
	startTime     time.Time
	stopTime      time.Time
	absoluteOrbit int
	gridPoints    []orb.Point
}

// ParseSen1Zipfile reads the metadata scattered through a Sentinel-1 SAFE
// zipfile. Each annotation XML covers one sub-swath and polarisation, so the
// polarisation and swath fields are the union across all fragments and the
// time range is the envelope. The footprint is the convex hull of the
// geolocation grid points from every fragment.
func ParseSen1Zipfile(zipfilename string) (*ZipfileMeta, error) {
	zr, err := zip.OpenReader(zipfilename)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrSen1Meta, zipfilename, err)
	}
	defer zr.Close()

	safeDir, ok := safeDirName(zr)
	if !ok {
		return nil, fmt.Errorf("%w: no .SAFE directory in %s", ErrSen1Meta, zipfilename)
	}

	annotationDir := safeDir + "annotation"
	var annotationFiles []string
	for _, f := range zr.File {
		if path.Dir(f.Name) == annotationDir && strings.HasSuffix(f.Name, ".xml") {
			annotationFiles = append(annotationFiles, f.Name)
		}
	}
	if len(annotationFiles) == 0 {
		return nil, fmt.Errorf("%w: no annotation XML files in %s", ErrSen1Meta, zipfilename)
	}
	sort.Strings(annotationFiles)

	var annotations []sen1Annotation
	for _, name := range annotationFiles {
		data, err := readMember(zr, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSen1Meta, err)
		}
		ann, err := parseSen1Annotation(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSen1Meta, name, err)
		}
		annotations = append(annotations, *ann)
	}

	m := &ZipfileMeta{
		SatelliteID: annotations[0].missionID,
		Instrument:  "C-SAR",
		ProductType: annotations[0].productType,
	}

	polarisations := map[string]bool{}
	swaths := map[string]bool{}
	var points []orb.Point
	for i, ann := range annotations {
		polarisations[ann.polarisation] = true
		swaths[ann.swath] = true
		points = append(points, ann.gridPoints...)
		if i == 0 || ann.startTime.Before(m.StartTime) {
			m.StartTime = ann.startTime
		}
		if i == 0 || ann.stopTime.After(m.StopTime) {
			m.StopTime = ann.stopTime
		}
	}
	m.Datetime = m.StartTime
	m.Polarisations = sortedKeys(polarisations)
	m.Swaths = sortedKeys(swaths)
	m.Mode = annotations[0].mode
	m.PassDirection = annotations[0].passDirection

	absolute := annotations[0].absoluteOrbit
	relative := (absolute-sen1OrbitOffset)%sen1OrbitCycle + 1
	if relative < 1 {
		relative += sen1OrbitCycle
	}
	m.AbsoluteOrbit = &absolute
	m.RelativeOrbit = &relative

	if len(points) >= 3 {
		m.Footprint = geom.ConvexHull(points)
		if epsg, ok := geom.FindSensibleProjection(m.Footprint); ok {
			if ctr, err := geom.Centroid(m.Footprint, epsg); err == nil {
				m.Centroid = &ctr
			}
		}
	}

	m.PreviewImage = findPreview(zr, safeDir)
	return m, nil
}

func parseSen1Annotation(data []byte) (*sen1Annotation, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("malformed annotation XML: %v", err)
	}

	ads := doc.FindElement("//product/adsHeader")
	if ads == nil {
		return nil, fmt.Errorf("missing adsHeader node")
	}

	ann := &sen1Annotation{}
	for _, field := range []struct {
		tag  string
		dest *string
	}{
		{"missionId", &ann.missionID},
		{"productType", &ann.productType},
		{"polarisation", &ann.polarisation},
		{"mode", &ann.mode},
		{"swath", &ann.swath},
	} {
		el := ads.FindElement(field.tag)
		if el == nil {
			return nil, fmt.Errorf("missing adsHeader/%s", field.tag)
		}
		*field.dest = strings.TrimSpace(el.Text())
	}

	for _, field := range []struct {
		tag  string
		dest *time.Time
	}{
		{"startTime", &ann.startTime},
		{"stopTime", &ann.stopTime},
	} {
		el := ads.FindElement(field.tag)
		if el == nil {
			return nil, fmt.Errorf("missing adsHeader/%s", field.tag)
		}
		t, err := parseSafeTime(el.Text())
		if err != nil {
			return nil, fmt.Errorf("adsHeader/%s: %v", field.tag, err)
		}
		*field.dest = t
	}

	orbitEl := ads.FindElement("absoluteOrbitNumber")
	if orbitEl == nil {
		return nil, fmt.Errorf("missing adsHeader/absoluteOrbitNumber")
	}
	orbit, err := strconv.Atoi(strings.TrimSpace(orbitEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("bad absoluteOrbitNumber %q", orbitEl.Text())
	}
	ann.absoluteOrbit = orbit

	passEl := doc.FindElement("//generalAnnotation/productInformation/pass")
	if passEl == nil {
		return nil, fmt.Errorf("missing productInformation/pass")
	}
	ann.passDirection = strings.TrimSpace(passEl.Text())

	pointNodes := doc.FindElements("//geolocationGrid/geolocationGridPointList/geolocationGridPoint")
	for _, node := range pointNodes {
		lonEl := node.FindElement("longitude")
		latEl := node.FindElement("latitude")
		if lonEl == nil || latEl == nil {
			return nil, fmt.Errorf("geolocation grid point missing coordinates")
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonEl.Text()), 64)
		if err != nil {
			return nil, fmt.Errorf("bad geolocation longitude %q", lonEl.Text())
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latEl.Text()), 64)
		if err != nil {
			return nil, fmt.Errorf("bad geolocation latitude %q", latEl.Text())
		}
		ann.gridPoints = append(ann.gridPoints, orb.Point{lon, lat})
	}

	return ann, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
