// Package export renders meeting point results for map tools.
package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml"

	"meetpoint/internal/models"
)

const (
	originStyleID    = "origin"
	candidateStyleID = "candidate"
	optimalStyleID   = "optimal"
	routeStyleID     = "route"
)

// WriteKML writes result as a KML document: one folder of origins, one of ranked
// candidates, and straight lines from every origin to the optimal point.
func WriteKML(w io.Writer, result *models.MeetingPointResult) error {
	if result == nil {
		return fmt.Errorf("no result to export")
	}

	origins := kml.Folder(kml.Name("Origins"))
	for i, o := range result.Origins {
		origins.Add(kml.Placemark(
			kml.Name(fmt.Sprintf("Origin %d", i+1)),
			kml.StyleURL("#"+originStyleID),
			point(o),
		))
	}

	candidates := kml.Folder(kml.Name("Candidates"))
	for rank, c := range result.Candidates {
		style := candidateStyleID
		if rank == 0 {
			style = optimalStyleID
		}
		candidates.Add(kml.Placemark(
			kml.Name(fmt.Sprintf("#%d %s", rank+1, displayName(c.NamedLocation))),
			kml.Description(describe(c)),
			kml.StyleURL("#"+style),
			point(c.Coordinates),
		))
	}

	routes := kml.Folder(kml.Name("Routes to optimal"))
	for i, o := range result.Origins {
		desc := ""
		if i < len(result.Optimal.Routes) {
			r := result.Optimal.Routes[i]
			desc = fmt.Sprintf("%.1f min, %.0f m, source %s", r.DurationMinutes, r.DistanceMeters, r.Source)
		}
		routes.Add(kml.Placemark(
			kml.Name(fmt.Sprintf("Origin %d", i+1)),
			kml.Description(desc),
			kml.StyleURL("#"+routeStyleID),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coordinate(o), coordinate(result.Optimal.Coordinates)),
			),
		))
	}

	doc := kml.KML(kml.Document(
		kml.Name(fmt.Sprintf("Meeting point %s", result.Meta.RequestID)),
		kml.Description(fmt.Sprintf("%d participants, %s, fairness %.1f",
			result.Meta.ParticipantCount, result.Meta.Mode, result.Meta.FairnessScore)),
		kml.SharedStyle(originStyleID, kml.IconStyle(kml.Color(color.RGBA{R: 0, G: 0, B: 255, A: 255}))),
		kml.SharedStyle(candidateStyleID, kml.IconStyle(kml.Color(color.RGBA{R: 255, G: 200, B: 0, A: 255}))),
		kml.SharedStyle(optimalStyleID, kml.IconStyle(
			kml.Color(color.RGBA{R: 0, G: 200, B: 0, A: 255}),
			kml.Scale(1.4),
		)),
		kml.SharedStyle(routeStyleID, kml.LineStyle(
			kml.Color(color.RGBA{R: 0, G: 120, B: 255, A: 160}),
			kml.Width(3),
		)),
		origins,
		candidates,
		routes,
	))

	return doc.WriteIndent(w, "", "  ")
}

func displayName(loc models.NamedLocation) string {
	if loc.PlaceName != "" {
		return loc.PlaceName
	}
	return loc.Address
}

func describe(c models.CandidateLocation) string {
	return fmt.Sprintf("%s\nscore %.1f, average %.1f min, commercial %.1f",
		c.Address, c.OverallScore, c.AverageTravelTimeMinutes, c.CommercialScore)
}

func coordinate(c models.Coordinates) kml.Coordinate {
	return kml.Coordinate{Lon: c.Lng, Lat: c.Lat}
}

func point(c models.Coordinates) kml.Element {
	return kml.Point(kml.Coordinates(coordinate(c)))
}
