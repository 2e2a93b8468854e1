// Package qualifying resolves the starting order for a Grand Prix: Ergast
// qualifying, then Ergast sprint qualifying, then the roster's baseline.
package qualifying

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/httpclient"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/observability/metrics"
)

const (
	// RequestTimeout keeps the fallback path fast when Ergast is slow.
	RequestTimeout = 3 * time.Second

	defaultBreakerFailures = 3
	defaultBreakerCooldown = time.Minute

	breakerName = "ergast"

	endpointQualifying       = "qualifying"
	endpointSprintQualifying = "sprint_qualifying"
)

// Entry is one classified driver in an Ergast qualifying session.
type Entry struct {
	Position   int
	Code       string
	Number     int
	GivenName  string
	FamilyName string
}

// FullName joins given and family names.
func (e Entry) FullName() string {
	return strings.TrimSpace(e.GivenName + " " + e.FamilyName)
}

type ergastDriver struct {
	Code            string `json:"code"`
	PermanentNumber string `json:"permanentNumber"`
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
}

type ergastResult struct {
	Position string       `json:"position"`
	Driver   ergastDriver `json:"Driver"`
}

type ergastResponse struct {
	MRData struct {
		RaceTable struct {
			Season string `json:"season"`
			Round  string `json:"round"`
			Races  []struct {
				RaceName                string         `json:"raceName"`
				QualifyingResults       []ergastResult `json:"QualifyingResults"`
				SprintQualifyingResults []ergastResult `json:"SprintQualifyingResults"`
			} `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

// ClientConfig configures the Ergast client.
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimit       float64 // requests per second, 0 = unlimited
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Metrics         *metrics.QualifyingMetrics
	Logger          logger.Logger
}

// ErgastClient fetches qualifying classifications from the Ergast API.
// Safe for concurrent use.
type ErgastClient struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]Entry]
	metrics *metrics.QualifyingMetrics
	log     logger.Logger
}

// NewErgastClient creates an Ergast client with rate limiting and a circuit breaker.
func NewErgastClient(client *httpclient.Client, cfg ClientConfig) *ErgastClient {
	c := &ErgastClient{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = RequestTimeout
	}
	if c.log == nil {
		c.log = logger.Global().Module("qualifying")
	}
	if cfg.RateLimit > 0 {
		burst := max(1, int(cfg.RateLimit))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	if c.metrics != nil {
		c.metrics.SetBreakerState(breakerName, float64(gobreaker.StateClosed))
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]Entry](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Info("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			if c.metrics != nil {
				c.metrics.SetBreakerState(name, float64(to))
			}
		},
	})
	return c
}

// Qualifying fetches the main qualifying classification.
func (c *ErgastClient) Qualifying(ctx context.Context, season, round int) ([]Entry, error) {
	url := fmt.Sprintf("%s/%d/%d/qualifying.json", c.baseURL, season, round)
	return c.fetch(ctx, endpointQualifying, url, false)
}

// SprintQualifying fetches the sprint qualifying classification.
func (c *ErgastClient) SprintQualifying(ctx context.Context, season, round int) ([]Entry, error) {
	url := fmt.Sprintf("%s/%d/%d/sprint/qualifying.json", c.baseURL, season, round)
	return c.fetch(ctx, endpointSprintQualifying, url, true)
}

// BreakerState reports the circuit breaker state.
func (c *ErgastClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *ErgastClient) fetch(ctx context.Context, endpoint, url string, sprint bool) ([]Entry, error) {
	start := time.Now()
	entries, err := c.breaker.Execute(func() ([]Entry, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var payload ergastResponse
		if err := c.client.GetJSON(reqCtx, url, &payload); err != nil {
			return nil, err
		}
		return parseEntries(&payload, sprint)
	})
	elapsed := time.Since(start)

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, metrics.StatusError, elapsed.Seconds())
		}
		category := errors.CategoryNetwork
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			category = errors.CategoryIntegration
		case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
			category = errors.CategoryTimeout
		}
		return nil, errors.New(err).
			Component("qualifying").
			Category(category).
			Context("operation", "fetch_"+endpoint).
			NetworkContext(c.baseURL, c.timeout).
			Build()
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(endpoint, metrics.StatusSuccess, elapsed.Seconds())
	}
	c.log.Debug("fetched ergast classification",
		logger.String("endpoint", endpoint),
		logger.Int("entries", len(entries)),
		logger.Duration("elapsed", elapsed))
	return entries, nil
}

func parseEntries(payload *ergastResponse, sprint bool) ([]Entry, error) {
	races := payload.MRData.RaceTable.Races
	if len(races) == 0 {
		return nil, nil
	}
	results := races[0].QualifyingResults
	if sprint {
		results = races[0].SprintQualifyingResults
	}

	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.Position)
		if err != nil || pos <= 0 {
			continue
		}
		number, _ := strconv.Atoi(r.Driver.PermanentNumber)
		entries = append(entries, Entry{
			Position:   pos,
			Code:       r.Driver.Code,
			Number:     number,
			GivenName:  r.Driver.GivenName,
			FamilyName: r.Driver.FamilyName,
		})
	}
	return entries, nil
}
