package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/config"
	"github.com/ctanbus/ctanbus_core/internal/ctan"
	"github.com/ctanbus/ctanbus_core/internal/geo"
	"github.com/ctanbus/ctanbus_core/internal/geocode"
	"github.com/ctanbus/ctanbus_core/internal/geolocation"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/ctanbus/ctanbus_core/internal/nearby"
)

func main() {
	// Command-line flags
	lat := flag.Float64("lat", math.NaN(), "Latitude of the position to search around")
	lon := flag.Float64("lon", math.NaN(), "Longitude of the position to search around")
	ip := flag.String("ip", "", "Locate by IP address instead of -lat/-lon")
	radius := flag.Int("radius", ctan.DefaultRadius, "Search radius in meters")
	query := flag.String("q", "", "Only list stops whose name or municipality contains this text")
	limit := flag.Int("limit", 10, "Maximum number of stops to list")
	stopID := flag.String("stop", "", "List the lines serving this stop")
	lineID := flag.String("line", "", "List the ordered stops of this line")
	verbose := flag.Bool("v", false, "Log diagnostics to stderr")

	flag.Parse()

	if err := geo.ValidateRadius(*radius); err != nil {
		fmt.Println("Usage: nearby [-lat=<lat> -lon=<lon> | -ip=<addr>] [-radius=500] [-q=<text>] [-stop=<id>] [-line=<id>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.Discard()
	if *verbose {
		logger = logging.New(os.Stderr, logging.ParseLevel("debug"), "text")
	}

	store := cache.NewMemory(cfg.Cache.TTL)
	client := ctan.NewClient(ctan.Config{
		BaseURL:    cfg.CTAN.BaseURL,
		Consortium: cfg.CTAN.Consortium,
		Lang:       cfg.CTAN.Lang,
		Timeout:    cfg.CTAN.Timeout,
	}, store, ctan.WithLogger(logger))

	resolver := geolocation.NewResolver(
		models.Coordinate{Latitude: cfg.Location.DefaultLatitude, Longitude: cfg.Location.DefaultLongitude},
		geolocation.Options{Timeout: cfg.Location.Timeout, HighAccuracy: true},
		logger,
	)
	geocoder := geocode.NewNominatim(cfg.Location.GeocoderURL, cfg.Location.UserAgent, store, logger)
	service := nearby.NewService(client, geocoder, resolver, *radius, logger)

	var locator geolocation.Locator
	switch {
	case !math.IsNaN(*lat) && !math.IsNaN(*lon):
		locator = geolocation.StaticLocator{Coordinate: models.Coordinate{Latitude: *lat, Longitude: *lon}}
	case *ip != "":
		locator = geolocation.NewIPLocator(cfg.Location.IPLookupURL, *ip, geolocation.PermissionGranted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, os.Stdout, service, locator, *query, *limit, *stopID, *lineID); err != nil {
		log.Fatalf("Lookup failed: %v", err)
	}
}

func run(ctx context.Context, w io.Writer, service *nearby.Service, locator geolocation.Locator, query string, limit int, stopID, lineID string) error {
	overview, err := service.Locate(ctx, locator)
	if err != nil {
		return err
	}

	loc := overview.Location
	fmt.Fprintf(w, "Location: %s", loc.Coordinate)
	if loc.Fallback {
		fmt.Fprintf(w, " (default: %s)", loc.Failure.Message())
	}
	fmt.Fprintln(w)
	if overview.Address != "" {
		fmt.Fprintf(w, "Address:  %s\n", overview.Address)
	}
	fmt.Fprintln(w)

	stops := nearby.Limit(nearby.FilterStops(overview.Stops, query), limit)
	printStops(w, stops, true)

	session := nearby.NewSession(service.Transit())

	if stopID != "" {
		stop := models.BusStop{ID: stopID}
		for _, s := range overview.Stops {
			if s.ID == stopID {
				stop = s
				break
			}
		}

		selected, err := session.SelectStop(ctx, stop)
		if err != nil {
			return fmt.Errorf("lines for stop %s: %w", stopID, err)
		}
		fmt.Fprintf(w, "\nLines serving stop %s %s\n", selected.ID, selected.Name)
		printLines(w, selected.Lines)
	}

	if lineID != "" {
		detail, err := session.SelectLine(ctx, lineID)
		if err != nil {
			return fmt.Errorf("line %s: %w", lineID, err)
		}
		fmt.Fprintf(w, "\nStops of line %s\n", lineID)
		printStops(w, detail.Stops, false)
		if detail.RouteAvailable {
			fmt.Fprintf(w, "Route: %d points\n", len(detail.Route))
		} else {
			fmt.Fprintln(w, "Route: not available")
		}
	}

	return nil
}

func printStops(w io.Writer, stops []models.BusStop, withDistance bool) {
	if len(stops) == 0 {
		fmt.Fprintln(w, "No stops found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, s := range stops {
		prefix := ""
		switch {
		case withDistance && s.Distance != nil:
			prefix = geo.FormatDistance(*s.Distance)
		case s.Order != nil:
			prefix = fmt.Sprintf("#%d", *s.Order)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", prefix, s.ID, s.Name, s.Municipality)
	}
}

func printLines(w io.Writer, lines []models.BusLine) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No lines found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Code, l.Name, l.Mode)
	}
}
