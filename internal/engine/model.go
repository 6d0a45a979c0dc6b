// Package engine implements the model controller: the simulation clock,
// policy state (interventions, fuel prices, installer capacity, price
// discounts, awareness campaign), and the household collection it
// advances one step at a time. It is the coordination layer the
// household decision procedure is invoked from.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
	"github.com/talgya/heatsim/internal/reference"
	"github.com/talgya/heatsim/internal/rng"
)

// ScheduleEntry is one (date, value) point in a sorted policy schedule —
// a price-discount factor or a target awareness fraction.
type ScheduleEntry struct {
	Date  time.Time
	Value float64
}

// Config is every scalar and schedule parameter the model needs at
// construction. Model assumes a validated Config (see Config.Validate and
// config.Config.Validate).
type Config struct {
	StartDatetime              time.Time
	StepIntervalMonths         int
	AnnualRenovationRate       float64
	LookaheadYears             int
	HassleFactor               float64
	HassleFactorRented         float64
	Interventions              []heating.InterventionType
	GasOilBoilerBanDate        time.Time
	GasOilBoilerBanAnnounceDate time.Time
	AirSourceDiscountFactor2022 float64
	FuelPricesGBPPerKWh        map[heating.HeatingFuel]float64
	HeatPumpPriceDiscountSchedule []ScheduleEntry
	InstallerBaseCount         int
	InstallerAnnualGrowth      float64
	AnnualNewBuilds            map[int]int
	AwarenessCampaignSchedule  []ScheduleEntry
	ReferencePopulation        float64
}

// Model owns the clock, policy state and the household collection.
type Model struct {
	cfg Config

	currentDatetime time.Time
	interventions   map[heating.InterventionType]bool
	discountSchedule []ScheduleEntry
	awarenessSchedule []ScheduleEntry

	boilerUpgradeSchemeCumulativeSpendGBP float64
	heatPumpInstallationsAtCurrentStep    int
	awarenessAwareCountAtCurrentStep      int

	households []*household.Household

	RNG *rng.Stream

	warnedEmptyCandidateSet bool
}

// NewModel constructs a Model from a validated Config and attaches the
// household collection in insertion order.
func NewModel(cfg Config, households []*household.Household, seed int64) *Model {
	interventions := make(map[heating.InterventionType]bool, len(cfg.Interventions))
	for _, it := range cfg.Interventions {
		interventions[it] = true
	}

	m := &Model{
		cfg:              cfg,
		currentDatetime:  cfg.StartDatetime,
		interventions:    interventions,
		discountSchedule: normalizeDiscountSchedule(cfg.HeatPumpPriceDiscountSchedule, cfg.StartDatetime),
		awarenessSchedule: sortedSchedule(cfg.AwarenessCampaignSchedule),
		households:       households,
		RNG:              rng.New(seed),
	}
	return m
}

func normalizeDiscountSchedule(sched []ScheduleEntry, start time.Time) []ScheduleEntry {
	if len(sched) == 0 {
		return []ScheduleEntry{{Date: start, Value: 1}}
	}
	out := sortedSchedule(sched)
	if out[0].Date.After(start) {
		out = append([]ScheduleEntry{{Date: start, Value: 1}}, out...)
	}
	return out
}

func sortedSchedule(sched []ScheduleEntry) []ScheduleEntry {
	out := make([]ScheduleEntry, len(sched))
	copy(out, sched)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Households exposes the collection in insertion order.
func (m *Model) Households() []*household.Household { return m.households }

// Rand exposes the model's single shared PRNG stream.
func (m *Model) Rand() *rng.Stream { return m.RNG }

// CurrentDatetime implements costs.ModelView.
func (m *Model) CurrentDatetime() time.Time { return m.currentDatetime }

// StartDatetime implements collectors.Model.
func (m *Model) StartDatetime() time.Time { return m.cfg.StartDatetime }

// StepIntervalMonths implements collectors.Model.
func (m *Model) StepIntervalMonths() int { return m.cfg.StepIntervalMonths }

// FuelPriceGBPPerKWh implements costs.ModelView.
func (m *Model) FuelPriceGBPPerKWh(fuel heating.HeatingFuel) float64 {
	return m.cfg.FuelPricesGBPPerKWh[fuel]
}

// InterventionActive implements costs.ModelView.
func (m *Model) InterventionActive(it heating.InterventionType) bool {
	return m.interventions[it]
}

// PopulationCount implements costs.ModelView.
func (m *Model) PopulationCount() int { return len(m.households) }

// LookaheadYears implements costs.ModelView.
func (m *Model) LookaheadYears() int { return m.cfg.LookaheadYears }

// BoilerUpgradeSchemeCumulativeSpendGBP implements costs.ModelView.
func (m *Model) BoilerUpgradeSchemeCumulativeSpendGBP() float64 {
	return m.boilerUpgradeSchemeCumulativeSpendGBP
}

// HassleFactorFor returns the applicable hassle-factor suppression for an
// occupant type.
func (m *Model) HassleFactorFor(o heating.OccupantType) float64 {
	if o.IsRented() {
		return m.cfg.HassleFactorRented
	}
	return m.cfg.HassleFactor
}

// StepIntervalYears is the step length expressed in fractional years.
func (m *Model) StepIntervalYears() float64 {
	return float64(m.cfg.StepIntervalMonths) / 12.0
}

// AnnualRenovationRate exposes the configured scalar.
func (m *Model) AnnualRenovationRate() float64 { return m.cfg.AnnualRenovationRate }

// AirSourceHeatPumpDiscountFactor implements costs.ModelView: a cost
// multiplier of 1 (no discount) before 2022, falling month by month across
// 2022, and 1 - AirSourceDiscountFactor2022 from 2023 onward.
func (m *Model) AirSourceHeatPumpDiscountFactor() float64 {
	year := m.currentDatetime.Year()
	switch {
	case year < 2022:
		return 1
	case year > 2022:
		return 1 - m.cfg.AirSourceDiscountFactor2022
	default:
		month := float64(m.currentDatetime.Month())
		return 1 - (month/12)*m.cfg.AirSourceDiscountFactor2022
	}
}

// HeatPumpPriceDiscountFactor implements costs.ModelView: the most recent
// schedule entry at or before the current datetime. The schedule is
// normalised to begin at the start datetime with a multiplier of 1, so the
// factor is 1 (no discount) until the first configured entry.
func (m *Model) HeatPumpPriceDiscountFactor() float64 {
	return lookupSchedule(m.discountSchedule, m.currentDatetime, 0)
}

func lookupSchedule(sched []ScheduleEntry, now time.Time, before float64) float64 {
	value := before
	for _, e := range sched {
		if e.Date.After(now) {
			break
		}
		value = e.Value
	}
	return value
}

// GasOilBoilerBanInForce reports whether the ban intervention is active
// and the current datetime is past the ban date — gas/oil boilers are
// globally excluded at this point.
func (m *Model) GasOilBoilerBanInForce() bool {
	return m.interventions[heating.GasOilBoilerBan] && m.currentDatetime.After(m.cfg.GasOilBoilerBanDate)
}

// GasOilBoilerBanAnnounced reports whether the ban has been announced
// (independent of whether it has come into force yet) — this is what
// makes households' heat-pump awareness irrelevant to candidate
// filtering.
func (m *Model) GasOilBoilerBanAnnounced() bool {
	return m.interventions[heating.GasOilBoilerBan] && !m.currentDatetime.Before(m.cfg.GasOilBoilerBanAnnounceDate)
}

// PermittedHeatingSystems returns the systems the model allows globally
// this step: every system, unless a boiler ban has come into force.
func (m *Model) PermittedHeatingSystems() map[heating.HeatingSystem]bool {
	out := make(map[heating.HeatingSystem]bool, len(heating.AllHeatingSystems))
	banned := m.GasOilBoilerBanInForce()
	for _, h := range heating.AllHeatingSystems {
		if banned && (h == heating.BoilerGas || h == heating.BoilerOil) {
			continue
		}
		out[h] = true
	}
	return out
}

// yearsElapsed is the whole-and-fractional years since StartDatetime.
func (m *Model) yearsElapsed() float64 {
	return m.currentDatetime.Sub(m.cfg.StartDatetime).Hours() / (24 * 365.25)
}

func (m *Model) populationScale() float64 {
	ref := m.cfg.ReferencePopulation
	if ref <= 0 {
		ref = reference.BoilerUpgradeSchemeReferencePopulation
	}
	return float64(len(m.households)) / ref
}

// InstallerCount is the number of heat-pump installers available this
// step: population-scaled, grown annually, and capped so that
// households-per-installer does not fall below the configured floor. The
// count is never below one, so a population smaller than the floor gets
// exactly one installer.
func (m *Model) InstallerCount() int {
	raw := m.populationScale() * float64(m.cfg.InstallerBaseCount) * math.Pow(1+m.cfg.InstallerAnnualGrowth, m.yearsElapsed())
	count := int(math.Floor(raw))
	if count < 1 {
		count = 1
	}
	cap := int(math.Floor(float64(len(m.households)) / reference.HouseholdsPerInstallerFloor))
	if cap < 1 {
		cap = 1
	}
	if count > cap {
		count = cap
	}
	return count
}

// InstallationsPerStepCapacity is the total number of heat-pump
// installations the installer base can complete this step.
func (m *Model) InstallationsPerStepCapacity() float64 {
	stepMonths := float64(m.cfg.StepIntervalMonths)
	return float64(m.InstallerCount()) * stepMonths / reference.MonthsPerHeatPumpInstall
}

// NewBuildSlots is the number of this step's installer capacity reserved
// for new-build properties (zero before 2025).
func (m *Model) NewBuildSlots() float64 {
	year := m.currentDatetime.Year()
	if year < 2025 {
		return 0
	}
	count, ok := m.cfg.AnnualNewBuilds[year]
	if !ok {
		return 0
	}
	stepFraction := float64(m.cfg.StepIntervalMonths) / 12.0
	return math.Round(float64(count) * stepFraction * m.populationScale())
}

// ExistingBuildCapacity is the installer capacity left over for existing
// (non-new-build) properties this step.
func (m *Model) ExistingBuildCapacity() float64 {
	total := m.InstallationsPerStepCapacity() - m.NewBuildSlots()
	if total < 0 {
		return 0
	}
	return total
}

// HasHeatPumpCapacity reports whether the model can still accept another
// heat-pump installation this step.
func (m *Model) HasHeatPumpCapacity() bool {
	return float64(m.heatPumpInstallationsAtCurrentStep) < m.ExistingBuildCapacity()
}

// RecordHeatPumpInstallation increments the per-step installation
// counter. Called by the decision procedure immediately after a
// household installs a heat pump.
func (m *Model) RecordHeatPumpInstallation() {
	m.heatPumpInstallationsAtCurrentStep++
}

// HeatPumpInstallationsAtCurrentStep is the running per-step count.
func (m *Model) HeatPumpInstallationsAtCurrentStep() int {
	return m.heatPumpInstallationsAtCurrentStep
}

// AwarenessAwareCountAtCurrentStep is the number of households whose
// awareness flipped true at the current step's campaign update.
func (m *Model) AwarenessAwareCountAtCurrentStep() int {
	return m.awarenessAwareCountAtCurrentStep
}

// WarnedEmptyCandidateSet reports whether the empty-candidate-set warning
// has already fired this run, so a checkpoint can preserve the dedup
// across a resume.
func (m *Model) WarnedEmptyCandidateSet() bool { return m.warnedEmptyCandidateSet }

// RestoreRunState applies a checkpoint's clock, cumulative spend, and
// warning-dedup flag back onto the model, for resuming a run from a step
// boundary. The caller is responsible for separately restoring m.RNG (via
// rng.Restore) and every household's mutable state (via
// checkpoint.DB.ApplyTo) — this only covers the model-level scalars that
// have no other setter.
func (m *Model) RestoreRunState(currentDatetime time.Time, boilerUpgradeSchemeCumulativeSpendGBP float64, warnedEmptyCandidateSet bool) {
	m.currentDatetime = currentDatetime
	m.boilerUpgradeSchemeCumulativeSpendGBP = boilerUpgradeSchemeCumulativeSpendGBP
	m.warnedEmptyCandidateSet = warnedEmptyCandidateSet
}

// WarnEmptyCandidateSetOnce logs a single warning the first time a
// household's candidate set is reduced to empty (a pathological
// configuration); subsequent occurrences are silent.
func (m *Model) WarnEmptyCandidateSetOnce(householdID int64) {
	if m.warnedEmptyCandidateSet {
		return
	}
	m.warnedEmptyCandidateSet = true
	slog.Warn("heating candidate set empty, household retains current system",
		"household_id", householdID, "datetime", m.currentDatetime)
}

// IncrementTimestep advances the clock by one step interval, folds the
// Boiler Upgrade Scheme spend of the step just completed into the
// cumulative total, resets per-step counters, and applies the awareness
// campaign schedule.
func (m *Model) IncrementTimestep() {
	m.currentDatetime = m.currentDatetime.AddDate(0, m.cfg.StepIntervalMonths, 0)
	m.heatPumpInstallationsAtCurrentStep = 0
	m.awarenessAwareCountAtCurrentStep = 0
	m.boilerUpgradeSchemeCumulativeSpendGBP += m.stepBoilerUpgradeSchemeSpend()
	m.applyAwarenessCampaign()
}

// stepBoilerUpgradeSchemeSpend sums every household's grant recorded
// during the previous step's decision-making (the runner calls
// IncrementTimestep before the households decide, so the decision logs
// still hold that step's grants).
func (m *Model) stepBoilerUpgradeSchemeSpend() float64 {
	total := 0.0
	for _, h := range m.households {
		total += h.Decisions.BoilerUpgradeGrantUsed
	}
	return total
}

// applyAwarenessCampaign flips a uniformly-random subset of currently
// unaware households to aware, if the schedule target for the current
// datetime exceeds the population's current awareness fraction.
// Awareness never regresses.
func (m *Model) applyAwarenessCampaign() {
	if !m.interventions[heating.HeatPumpCampaign] || len(m.awarenessSchedule) == 0 {
		return
	}
	target := lookupSchedule(m.awarenessSchedule, m.currentDatetime, -1)
	if target < 0 {
		return
	}

	var unaware []*household.Household
	awareCount := 0
	for _, h := range m.households {
		if h.IsHeatPumpAware {
			awareCount++
		} else {
			unaware = append(unaware, h)
		}
	}

	targetCount := int(math.Round(target * float64(len(m.households))))
	needed := targetCount - awareCount
	if needed <= 0 {
		return
	}
	if needed > len(unaware) {
		needed = len(unaware)
	}

	flipped := 0
	for len(unaware) > 0 && flipped < needed {
		idx := m.RNG.IntInclusive(0, len(unaware)-1)
		unaware[idx].IsHeatPumpAware = true
		unaware[idx] = unaware[len(unaware)-1]
		unaware = unaware[:len(unaware)-1]
		flipped++
	}
	m.awarenessAwareCountAtCurrentStep = flipped
}

// Validate reports a configuration error, if any: announce date after
// ban date, a non-monotone awareness schedule, a lookahead below one
// year, a negative renovation rate, or a hassle factor outside [0,1].
func (c Config) Validate() error {
	if c.GasOilBoilerBanAnnounceDate.After(c.GasOilBoilerBanDate) {
		return fmt.Errorf("engine: gas/oil boiler ban announce date %s is after ban date %s",
			c.GasOilBoilerBanAnnounceDate, c.GasOilBoilerBanDate)
	}
	sched := sortedSchedule(c.AwarenessCampaignSchedule)
	for i := 1; i < len(sched); i++ {
		if sched[i].Value < sched[i-1].Value {
			return fmt.Errorf("engine: awareness campaign schedule is not monotone non-decreasing at %s", sched[i].Date)
		}
	}
	if c.LookaheadYears < 1 {
		return fmt.Errorf("engine: household_num_lookahead_years must be >= 1, got %d", c.LookaheadYears)
	}
	if c.AnnualRenovationRate < 0 {
		return fmt.Errorf("engine: annual_renovation_rate must be >= 0, got %f", c.AnnualRenovationRate)
	}
	for _, f := range []float64{c.HassleFactor, c.HassleFactorRented} {
		if f < 0 || f > 1 {
			return fmt.Errorf("engine: hassle factor must be in [0,1], got %f", f)
		}
	}
	return nil
}
