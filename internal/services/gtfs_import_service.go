package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/jamespfennell/gtfs"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/busline-backend/internal/models"
)

// StationUpserter writes stations keyed by code
type StationUpserter interface {
	Upsert(ctx context.Context, station *models.Station) error
}

// RouteUpserter writes routes keyed by code together with their ordered stations
type RouteUpserter interface {
	UpsertWithStations(ctx context.Context, route *models.Route, stationIDs []string) error
}

// GTFSImportService loads stations and routes from a GTFS static feed
type GTFSImportService struct {
	stations StationUpserter
	routes   RouteUpserter
	logger   *logrus.Logger
}

// NewGTFSImportService creates a new GTFSImportService
func NewGTFSImportService(stations StationUpserter, routes RouteUpserter, logger *logrus.Logger) *GTFSImportService {
	return &GTFSImportService{stations: stations, routes: routes, logger: logger}
}

// Import parses a GTFS static zip. Stops become stations and each route takes
// its station order and duration from its longest scheduled trip.
func (s *GTFSImportService) Import(ctx context.Context, feed []byte) (*models.GTFSImportResult, error) {
	static, err := gtfs.ParseStatic(feed, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid GTFS feed", Err: err}
	}

	result := &models.GTFSImportResult{}

	stationIDs := make(map[string]string, len(static.Stops))
	for i := range static.Stops {
		stop := &static.Stops[i]
		station := &models.Station{
			Code:      stopCode(stop),
			Name:      stop.Name,
			Latitude:  stop.Latitude,
			Longitude: stop.Longitude,
		}
		if station.Name == "" {
			station.Name = station.Code
		}
		if err := s.stations.Upsert(ctx, station); err != nil {
			return nil, storeError(fmt.Sprintf("failed to import stop %s", stop.Id), err)
		}
		stationIDs[stop.Id] = station.ID
		result.Stations++
	}

	longest := longestTrips(static.Trips)
	for i := range static.Routes {
		gr := &static.Routes[i]
		code := gr.ShortName
		if code == "" {
			code = gr.Id
		}

		trip := longest[gr.Id]
		if trip == nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("route %s: no scheduled trips", code))
			continue
		}
		stopTimes := orderedStopTimes(trip)
		ids := routeStationIDs(stopTimes, stationIDs)
		if len(ids) < 2 {
			result.Skipped = append(result.Skipped, fmt.Sprintf("route %s: fewer than two stops", code))
			continue
		}

		route := &models.Route{
			Code:     code,
			Name:     routeName(gr, code),
			IsActive: true,
		}
		if minutes := tripMinutes(stopTimes); minutes > 0 {
			route.DurationMinutes = &minutes
		}
		if err := s.routes.UpsertWithStations(ctx, route, ids); err != nil {
			return nil, storeError(fmt.Sprintf("failed to import route %s", code), err)
		}
		result.Routes++
	}

	s.logger.WithFields(logrus.Fields{
		"stations": result.Stations,
		"routes":   result.Routes,
		"skipped":  len(result.Skipped),
	}).Info("GTFS feed imported")

	return result, nil
}

func stopCode(stop *gtfs.Stop) string {
	if stop.Code != "" {
		return stop.Code
	}
	return stop.Id
}

func routeName(r *gtfs.Route, code string) string {
	if r.LongName != "" {
		return r.LongName
	}
	return code
}

func longestTrips(trips []gtfs.ScheduledTrip) map[string]*gtfs.ScheduledTrip {
	longest := make(map[string]*gtfs.ScheduledTrip)
	for i := range trips {
		trip := &trips[i]
		if trip.Route == nil {
			continue
		}
		if cur, ok := longest[trip.Route.Id]; !ok || len(trip.StopTimes) > len(cur.StopTimes) {
			longest[trip.Route.Id] = trip
		}
	}
	return longest
}

func orderedStopTimes(trip *gtfs.ScheduledTrip) []gtfs.ScheduledStopTime {
	stopTimes := make([]gtfs.ScheduledStopTime, len(trip.StopTimes))
	copy(stopTimes, trip.StopTimes)
	sort.Slice(stopTimes, func(i, j int) bool {
		return stopTimes[i].StopSequence < stopTimes[j].StopSequence
	})
	return stopTimes
}

// routeStationIDs maps stop times to station IDs, dropping unknown stops and repeats
func routeStationIDs(stopTimes []gtfs.ScheduledStopTime, stationIDs map[string]string) []string {
	seen := make(map[string]bool, len(stopTimes))
	var ids []string
	for _, st := range stopTimes {
		if st.Stop == nil {
			continue
		}
		id, ok := stationIDs[st.Stop.Id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func tripMinutes(stopTimes []gtfs.ScheduledStopTime) int {
	if len(stopTimes) < 2 {
		return 0
	}
	first, last := stopTimes[0], stopTimes[len(stopTimes)-1]
	return int((last.ArrivalTime - first.DepartureTime).Minutes())
}
