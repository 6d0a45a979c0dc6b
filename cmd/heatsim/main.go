// Command heatsim runs the domestic heating-system replacement
// simulation over a seed household population, streaming one
// JSON-lines record per step to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/heatsim/internal/checkpoint"
	"github.com/talgya/heatsim/internal/config"
	"github.com/talgya/heatsim/internal/engine"
	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
	"github.com/talgya/heatsim/internal/ingest"
	"github.com/talgya/heatsim/internal/rng"
	"github.com/talgya/heatsim/internal/runner"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("heatsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		populationPath  = flag.String("population", "", "path to the household population CSV")
		startDate       = flag.String("start-date", "", "simulation start datetime, ISO-8601")
		stepMonths      = flag.Int("step-interval-months", 1, "step length in months")
		steps           = flag.Int("steps", 0, "number of time steps to run")
		seedStr         = flag.String("seed", "", "PRNG seed, ISO-8601 datetime string")
		awareness       = flag.Float64("heat-pump-awareness", 0.4, "initial fraction of households aware of heat pumps")
		renovationRate  = flag.Float64("annual-renovation-rate", 0.05, "annual probability a household renovates")
		lookahead       = flag.Int("household-num-lookahead-years", 3, "fuel-bill NPV lookahead, years")
		hassle          = flag.Float64("heating-system-hassle-factor", 0.3, "owner-occupier hassle suppression factor")
		hassleRented    = flag.Float64("heating-system-hassle-factor-rented", 0.3, "rented-tenure hassle suppression factor")
		interventions   = flag.String("interventions", "", "comma-separated intervention list: RHI,BOILER_UPGRADE_SCHEME,GAS_OIL_BOILER_BAN,HEAT_PUMP_CAMPAIGN")
		banDate         = flag.String("gas-oil-boiler-ban-date", "2035-01-01T00:00:00Z", "gas/oil boiler ban effective date")
		banAnnounce     = flag.String("gas-oil-boiler-ban-announce-date", "2030-01-01T00:00:00Z", "gas/oil boiler ban announce date")
		ashpDiscount    = flag.Float64("air-source-heat-pump-discount-factor-2022", 0.1, "2022 air-source heat pump discount factor")
		priceGas        = flag.Float64("price-gbp-per-kwh-gas", 0.07, "gas price, GBP/kWh")
		priceElec       = flag.Float64("price-gbp-per-kwh-electricity", 0.28, "electricity price, GBP/kWh")
		priceOil        = flag.Float64("price-gbp-per-kwh-oil", 0.09, "oil price, GBP/kWh")
		installerBase   = flag.Int("installer-base-count", 3_000, "national base count of heat-pump installers")
		installerGrowth = flag.Float64("installer-annual-growth", 0.25, "annual growth rate of installer count")
		suitableAll     = flag.Bool("override-heat-pump-suitability", false, "treat every household as heat-pump-suitable")
		checkpointPath  = flag.String("checkpoint", "", "optional SQLite checkpoint path to save step state to")
		resumeRunID     = flag.String("resume-run-id", "", "resume an existing run ID from -checkpoint instead of starting from the seed population")
		policyFilePath  = flag.String("policy-file", "", "optional JSON file with schedules too shaped for flat flags: heat_pump_price_discount_schedule, awareness_campaign_schedule, annual_new_builds")
	)
	flag.Parse()

	if *populationPath == "" {
		return fmt.Errorf("config: -population is required")
	}
	start, err := time.Parse(time.RFC3339, *startDate)
	if err != nil {
		return fmt.Errorf("config: -start-date must be ISO-8601: %w", err)
	}
	seed, err := parseSeed(*seedStr)
	if err != nil {
		return err
	}
	ban, err := time.Parse(time.RFC3339, *banDate)
	if err != nil {
		return fmt.Errorf("config: -gas-oil-boiler-ban-date must be ISO-8601: %w", err)
	}
	banAnnounceTime, err := time.Parse(time.RFC3339, *banAnnounce)
	if err != nil {
		return fmt.Errorf("config: -gas-oil-boiler-ban-announce-date must be ISO-8601: %w", err)
	}
	interventionList, err := parseInterventions(*interventions)
	if err != nil {
		return err
	}
	policy, err := loadPolicyFile(*policyFilePath)
	if err != nil {
		return err
	}

	cfg := config.Config{
		Seed:                        seed,
		StartDatetime:               start,
		StepIntervalMonths:          *stepMonths,
		TimeSteps:                   *steps,
		HeatPumpAwareness:           *awareness,
		AnnualRenovationRate:        *renovationRate,
		LookaheadYears:              *lookahead,
		HassleFactor:                *hassle,
		HassleFactorRented:          *hassleRented,
		Interventions:               interventionList,
		GasOilBoilerBanDate:         ban,
		GasOilBoilerBanAnnounceDate: banAnnounceTime,
		FuelPricesGBPPerKWh: map[heating.HeatingFuel]float64{
			heating.FuelGas:         *priceGas,
			heating.FuelElectricity: *priceElec,
			heating.FuelOil:         *priceOil,
		},
		AirSourceDiscountFactor2022:   *ashpDiscount,
		HeatPumpPriceDiscountSchedule: policy.HeatPumpPriceDiscountSchedule,
		InstallerBaseCount:            *installerBase,
		InstallerAnnualGrowth:         *installerGrowth,
		AnnualNewBuilds:               policy.AnnualNewBuilds,
		AwarenessCampaignSchedule:     policy.AwarenessCampaignSchedule,
		AllHouseholdsHeatPumpSuitable: *suitableAll,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := os.Open(*populationPath)
	if err != nil {
		return fmt.Errorf("config: opening population file: %w", err)
	}
	defer f.Close()

	stream := rng.New(seed)
	households, err := ingest.ReadPopulation(f, cfg.StartDatetime, stream)
	if err != nil {
		return err
	}
	if cfg.AllHouseholdsHeatPumpSuitable {
		for _, h := range households {
			h.IsHeatPumpSuitableArchetype = true
		}
	}
	applyInitialAwareness(households, cfg.HeatPumpAwareness, stream)
	slog.Info("initial heat pump awareness applied", "fraction", cfg.HeatPumpAwareness)

	slog.Info("population loaded", "households", len(households))

	m := engine.NewModel(cfg.EngineConfig(), households, seed)

	var ckpt *checkpoint.DB
	if *checkpointPath != "" {
		ckpt, err = checkpoint.Open(*checkpointPath)
		if err != nil {
			return err
		}
		defer ckpt.Close()
	}

	var r *runner.Runner
	if *resumeRunID != "" {
		r, err = resumeRunner(m, ckpt, *resumeRunID)
		if err != nil {
			return err
		}
	} else {
		r = runner.New(m)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping between steps", "signal", sig)
		cancel()
	}()

	records := r.Run(ctx, cfg.TimeSteps)
	if ckpt != nil {
		records = checkpointing(records, ckpt, r.RunID.String(), m)
	}
	return ingest.WriteJSONLines(os.Stdout, records)
}

// checkpointing wraps in with a pass-through stage that saves model and
// household state to ckpt after each step, before the record is emitted.
// Every field a resume needs to reproduce the run bit-for-bit from this
// point on — clock, cumulative spend, RNG position, and the
// empty-candidate-set warning dedup — is captured alongside the households.
func checkpointing(in <-chan runner.StepRecord, ckpt *checkpoint.DB, runID string, m *engine.Model) <-chan runner.StepRecord {
	out := make(chan runner.StepRecord)
	go func() {
		defer close(out)
		for rec := range in {
			state := checkpoint.RunState{
				Step:                                   rec.Step,
				CurrentDatetime:                        m.CurrentDatetime(),
				BoilerUpgradeSchemeCumulativeSpendGBP:  m.BoilerUpgradeSchemeCumulativeSpendGBP(),
				RNGSeed:                                m.Rand().Seed(),
				RNGDrawCount:                           m.Rand().DrawCount(),
				WarnedEmptyCandidateSet:                m.WarnedEmptyCandidateSet(),
			}
			if err := ckpt.SaveStep(runID, state, m.Households()); err != nil {
				slog.Error("checkpoint save failed", "error", err)
			}
			out <- rec
		}
	}()
	return out
}

// resumeRunner loads runIDStr's checkpoint from ckpt, restores m's clock,
// cumulative spend, warning-dedup flag, RNG position, and every
// checkpointed household's mutable state, and returns a Runner that
// continues that run from the step immediately after the one saved.
func resumeRunner(m *engine.Model, ckpt *checkpoint.DB, runIDStr string) (*runner.Runner, error) {
	if ckpt == nil {
		return nil, fmt.Errorf("config: -resume-run-id requires -checkpoint")
	}
	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("config: -resume-run-id must be a UUID: %w", err)
	}

	state, err := ckpt.LoadRun(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("config: loading checkpoint for run %s: %w", runIDStr, err)
	}
	if err := ckpt.ApplyTo(runIDStr, m.Households()); err != nil {
		return nil, fmt.Errorf("config: restoring households for run %s: %w", runIDStr, err)
	}

	m.RestoreRunState(state.CurrentDatetime, state.BoilerUpgradeSchemeCumulativeSpendGBP, state.WarnedEmptyCandidateSet)
	m.RNG = rng.Restore(state.RNGSeed, state.RNGDrawCount)

	slog.Info("resuming run", "run_id", runIDStr, "from_step", state.Step+1)
	return runner.Resume(m, runID, state.Step+1), nil
}

func parseSeed(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("config: -seed is required")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("config: -seed must be ISO-8601: %w", err)
	}
	return t.Unix(), nil
}

func parseInterventions(s string) ([]heating.InterventionType, error) {
	if s == "" {
		return nil, nil
	}
	var out []heating.InterventionType
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			token := s[start:i]
			start = i + 1
			if token == "" {
				continue
			}
			it, err := heating.ParseInterventionType(token)
			if err != nil {
				return nil, fmt.Errorf("config: -interventions: %w", err)
			}
			out = append(out, it)
		}
	}
	return out, nil
}

// policyFile is the --policy-file JSON shape: the three schedule-valued
// parameters that don't fit flat scalar flags.
type policyFile struct {
	HeatPumpPriceDiscountSchedule []scheduleEntryJSON `json:"heat_pump_price_discount_schedule"`
	AwarenessCampaignSchedule     []scheduleEntryJSON `json:"awareness_campaign_schedule"`
	AnnualNewBuilds               map[string]int      `json:"annual_new_builds"`
}

type scheduleEntryJSON struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type loadedPolicy struct {
	HeatPumpPriceDiscountSchedule []engine.ScheduleEntry
	AwarenessCampaignSchedule     []engine.ScheduleEntry
	AnnualNewBuilds               map[int]int
}

func loadPolicyFile(path string) (loadedPolicy, error) {
	if path == "" {
		return loadedPolicy{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return loadedPolicy{}, fmt.Errorf("config: opening policy file: %w", err)
	}
	defer f.Close()

	var raw policyFile
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return loadedPolicy{}, fmt.Errorf("config: parsing policy file: %w", err)
	}

	discountSched, err := toScheduleEntries(raw.HeatPumpPriceDiscountSchedule)
	if err != nil {
		return loadedPolicy{}, fmt.Errorf("config: heat_pump_price_discount_schedule: %w", err)
	}
	awarenessSched, err := toScheduleEntries(raw.AwarenessCampaignSchedule)
	if err != nil {
		return loadedPolicy{}, fmt.Errorf("config: awareness_campaign_schedule: %w", err)
	}

	newBuilds := make(map[int]int, len(raw.AnnualNewBuilds))
	for yearStr, count := range raw.AnnualNewBuilds {
		year, err := parseYear(yearStr)
		if err != nil {
			return loadedPolicy{}, fmt.Errorf("config: annual_new_builds key %q: %w", yearStr, err)
		}
		newBuilds[year] = count
	}

	return loadedPolicy{
		HeatPumpPriceDiscountSchedule: discountSched,
		AwarenessCampaignSchedule:     awarenessSched,
		AnnualNewBuilds:               newBuilds,
	}, nil
}

func toScheduleEntries(raw []scheduleEntryJSON) ([]engine.ScheduleEntry, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]engine.ScheduleEntry, len(raw))
	for i, e := range raw {
		t, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			t, err = time.Parse("2006-01-02", e.Date)
			if err != nil {
				return nil, fmt.Errorf("entry %d: date %q is not ISO-8601: %w", i, e.Date, err)
			}
		}
		out[i] = engine.ScheduleEntry{Date: t, Value: e.Value}
	}
	return out, nil
}

func parseYear(s string) (int, error) {
	var year int
	_, err := fmt.Sscanf(s, "%d", &year)
	return year, err
}

// applyInitialAwareness gives each household an independent Bernoulli(awareness)
// draw for its seed IsHeatPumpAware flag, consumed in population order.
func applyInitialAwareness(households []*household.Household, awareness float64, s *rng.Stream) {
	for _, h := range households {
		h.IsHeatPumpAware = s.Bernoulli(awareness)
	}
}
