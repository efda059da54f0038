// Package gpx parses GPX 1.1 documents into point sequences.
package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"trailpace/internal/geo"
)

// ErrNoPoints is returned for GPX documents that contain no track or route
// points.
var ErrNoPoints = errors.New("gpx: no points")

type document struct {
	Tracks []track `xml:"trk"`
	Routes []route `xml:"rte"`
}

type track struct {
	Segments []trackSegment `xml:"trkseg"`
}

type trackSegment struct {
	Points []point `xml:"trkpt"`
}

type route struct {
	Points []point `xml:"rtept"`
}

type point struct {
	Lat       float64 `xml:"lat,attr"`
	Lon       float64 `xml:"lon,attr"`
	Elevation float64 `xml:"ele"`
}

// Parse reads a GPX document and returns its points in document order.
// Track points are preferred; routes are used when no track exists.
func Parse(r io.Reader) ([]geo.Point, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("gpx: parsing: %w", err)
	}

	var points []geo.Point
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				points = append(points, geo.Point{Lat: p.Lat, Lon: p.Lon, Elevation: p.Elevation})
			}
		}
	}
	if len(points) == 0 {
		for _, rte := range doc.Routes {
			for _, p := range rte.Points {
				points = append(points, geo.Point{Lat: p.Lat, Lon: p.Lon, Elevation: p.Elevation})
			}
		}
	}
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	return points, nil
}
