// Package flights looks up airport departures from an OpenSky-compatible
// REST API so operators can line up aircraft activity with concentration
// peaks.
package flights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"ufpmap/internal/config"
	"ufpmap/internal/logging"
	"ufpmap/internal/services"
)

// MaxWindow is the longest interval sent in one request.
const MaxWindow = 2 * time.Hour

// Departure is one flight leaving the airport.
type Departure struct {
	ICAO24           string `json:"icao24"`
	Callsign         string `json:"callsign"`
	FirstSeen        int64  `json:"firstSeen"`
	LastSeen         int64  `json:"lastSeen"`
	DepartureAirport string `json:"estDepartureAirport"`
	ArrivalAirport   string `json:"estArrivalAirport"`
}

// DepartedAt is the first time the aircraft was seen.
func (d Departure) DepartedAt() time.Time {
	return time.Unix(d.FirstSeen, 0)
}

// Settings configure the client.
type Settings struct {
	BaseURL           string
	Username          string
	Password          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// SettingsFromConfig copies the flights section.
func SettingsFromConfig(f config.Flights) Settings {
	return Settings{
		BaseURL:  f.BaseURL,
		Username: f.Username,
		Password: f.Password,
		Timeout:  time.Duration(f.TimeoutSeconds) * time.Second,
	}
}

// Client queries departures.
type Client struct {
	settings Settings
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]Departure]
	logger   *slog.Logger
}

// NewClient builds a Client. Without a configured rate the client sends one
// request per second, which stays inside the anonymous quota.
func NewClient(settings Settings, logger *slog.Logger) *Client {
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	limit := rate.Limit(1)
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}
	c := &Client{
		settings: settings,
		http:     &http.Client{Timeout: settings.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logging.NewComponentLogger(logger, "flights"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]Departure](gobreaker.Settings{
		Name:    "flights-api",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClient)
		},
	})
	return c
}

// Windows splits [begin, end) into consecutive windows no longer than size.
func Windows(begin, end time.Time, size time.Duration) [][2]time.Time {
	var out [][2]time.Time
	for start := begin; start.Before(end); start = start.Add(size) {
		stop := start.Add(size)
		if stop.After(end) {
			stop = end
		}
		out = append(out, [2]time.Time{start, stop})
	}
	return out
}

// Departures lists flights departing airport within [begin, end), sorted by
// departure time.
func (c *Client) Departures(ctx context.Context, airport string, begin, end time.Time) ([]Departure, error) {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	if airport == "" {
		return nil, services.Wrap(services.ErrConfiguration, "flights", "departures", "airport is required", nil)
	}
	if !end.After(begin) {
		return nil, services.Wrap(services.ErrInput, "flights", "departures",
			fmt.Sprintf("end %s is not after begin %s", end.Format(time.RFC3339), begin.Format(time.RFC3339)), nil)
	}
	if c.settings.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "flights", "departures", "flights.base_url is empty", nil)
	}

	var all []Departure
	for _, w := range Windows(begin, end, MaxWindow) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		batch, err := c.breaker.Execute(func() ([]Departure, error) {
			return c.fetch(ctx, airport, w[0], w[1])
		})
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "flights", "departures",
				fmt.Sprintf("%s %s-%s", airport, w[0].Format("15:04"), w[1].Format("15:04")), err)
		}
		c.logger.Debug("departure window fetched",
			logging.String("airport", airport),
			logging.String("begin", w[0].Format(time.RFC3339)),
			logging.Int("flights", len(batch)),
		)
		all = append(all, batch...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].FirstSeen != all[j].FirstSeen {
			return all[i].FirstSeen < all[j].FirstSeen
		}
		return all[i].ICAO24 < all[j].ICAO24
	})
	return all, nil
}

var errClient = errors.New("request rejected")

func (c *Client) fetch(ctx context.Context, airport string, begin, end time.Time) ([]Departure, error) {
	q := url.Values{}
	q.Set("airport", airport)
	q.Set("begin", strconv.FormatInt(begin.Unix(), 10))
	q.Set("end", strconv.FormatInt(end.Unix(), 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.BaseURL+"/flights/departure?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.settings.Username != "" {
		req.SetBasicAuth(c.settings.Username, c.settings.Password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		// No departures in the window.
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s (check flights.username and flights.password)", errClient, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET departures: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out []Departure
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode departures: %w", err)
	}
	for i := range out {
		out[i].Callsign = strings.TrimSpace(out[i].Callsign)
	}
	return out, nil
}
