package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/metrics"
	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/station"
)

var (
	// ErrCycleRunning is returned when a run is requested while another is in progress.
	ErrCycleRunning  = errors.New("ingestion cycle already running")
	ErrUnknownDomain = errors.New("unknown ingestion domain")
	ErrUnknownPhase  = errors.New("unknown ingestion phase")
)

// Phase selects which half of a domain to run.
type Phase string

const (
	PhaseAll      Phase = "all"
	PhaseCurrent  Phase = "current"
	PhaseForecast Phase = "forecast"
)

func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case "", PhaseAll:
		return PhaseAll, nil
	case PhaseCurrent, PhaseForecast:
		return Phase(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

func (p Phase) current() bool  { return p == PhaseAll || p == PhaseCurrent }
func (p Phase) forecast() bool { return p == PhaseAll || p == PhaseForecast }

// StationError records one failed station phase.
type StationError struct {
	Station string `json:"station"`
	Phase   Phase  `json:"phase"`
	Error   string `json:"error"`
}

// DomainReport aggregates one domain run. Counts are per station.
type DomainReport struct {
	Domain           string         `json:"domain"`
	Stations         int            `json:"stations"`
	Success          int            `json:"success"`
	Failed           int            `json:"failed"`
	ForecastSuccess  int            `json:"forecastSuccess"`
	ForecastFailed   int            `json:"forecastFailed"`
	ForecastEntities int            `json:"forecastEntities"`
	Errors           []StationError `json:"errors,omitempty"`
	Duration         string         `json:"duration"`
}

// CycleReport is the result of one run over one or more domains.
type CycleReport struct {
	StartedAt time.Time      `json:"startedAt"`
	Domains   []DomainReport `json:"domains"`
}

// Orchestrator runs domains over the active station list. Domains run
// concurrently; stations within a domain run in order.
type Orchestrator struct {
	stations station.Source
	domains  []Domain
	logger   *zap.Logger
	metrics  *metrics.Metrics
	running  atomic.Bool
}

func NewOrchestrator(src station.Source, domains []Domain, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{stations: src, domains: domains, logger: logger, metrics: m}
}

// RunCycle runs every domain, both phases.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleReport, error) {
	return o.Run(ctx, "all", PhaseAll)
}

// RunDomain runs a single named domain; "all" and "" are rejected.
func (o *Orchestrator) RunDomain(ctx context.Context, name string, phase Phase) (DomainReport, error) {
	if name == "" || name == "all" {
		return DomainReport{}, fmt.Errorf("%w: %q", ErrUnknownDomain, name)
	}
	rep, err := o.Run(ctx, name, phase)
	if err != nil {
		return DomainReport{}, err
	}
	if len(rep.Domains) == 0 {
		return DomainReport{}, fmt.Errorf("%w: %q", ErrUnknownDomain, name)
	}
	return rep.Domains[0], nil
}

// Run executes the selected domains ("all" or a domain name). Per-station
// failures never fail the run; they are recorded in the report. Only an
// overlapping run, an unknown domain or an unreadable station list error.
func (o *Orchestrator) Run(ctx context.Context, domain string, phase Phase) (CycleReport, error) {
	selected, err := o.selectDomains(domain)
	if err != nil {
		return CycleReport{}, err
	}
	if !o.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleRunning
	}
	defer o.running.Store(false)

	report := CycleReport{StartedAt: time.Now().UTC()}

	stations, err := o.stations.ListActiveStations(ctx)
	if err != nil {
		return report, fmt.Errorf("list active stations: %w", err)
	}

	report.Domains = make([]DomainReport, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range selected {
		i, d := i, d
		g.Go(func() error {
			report.Domains[i] = o.runDomain(gctx, d, stations, phase)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range report.Domains {
		o.logger.Info("ingestion finished",
			zap.String("domain", d.Domain),
			zap.Int("stations", d.Stations),
			zap.Int("success", d.Success),
			zap.Int("failed", d.Failed),
			zap.Int("forecastSuccess", d.ForecastSuccess),
			zap.Int("forecastFailed", d.ForecastFailed),
			zap.String("duration", d.Duration))
	}
	return report, nil
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) selectDomains(name string) ([]Domain, error) {
	if name == "" || name == "all" {
		return o.domains, nil
	}
	for _, d := range o.domains {
		if d.Name() == name {
			return []Domain{d}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, name)
}

func (o *Orchestrator) runDomain(ctx context.Context, d Domain, stations []station.Station, phase Phase) DomainReport {
	start := time.Now()
	rep := DomainReport{Domain: d.Name(), Stations: len(stations)}
	log := o.logger.With(zap.String("domain", d.Name()))

	for _, st := range stations {
		if ctx.Err() != nil {
			rep.Errors = append(rep.Errors, StationError{Station: st.Code, Phase: phase, Error: ctx.Err().Error()})
			break
		}

		if phase.current() {
			err := d.IngestCurrent(ctx, st)
			o.metrics.IngestResult(d.Name(), string(PhaseCurrent), err == nil)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, StationError{Station: st.Code, Phase: PhaseCurrent, Error: err.Error()})
				log.Warn("current ingestion failed", zap.String("station", st.Code), zap.Error(err))
			} else {
				rep.Success++
			}
		}

		if phase.forecast() {
			n, err := d.IngestForecast(ctx, st)
			o.metrics.IngestResult(d.Name(), string(PhaseForecast), err == nil)
			if err != nil {
				rep.ForecastFailed++
				rep.Errors = append(rep.Errors, StationError{Station: st.Code, Phase: PhaseForecast, Error: err.Error()})
				log.Warn("forecast ingestion failed", zap.String("station", st.Code), zap.Error(err))
			} else {
				rep.ForecastSuccess++
				rep.ForecastEntities += n
			}
		}
	}

	elapsed := time.Since(start)
	o.metrics.ObserveCycle(d.Name(), elapsed)
	rep.Duration = elapsed.Round(time.Millisecond).String()
	return rep
}
