// Package config is the single typed configuration surface for a
// simulation run: every scalar parameter, schedule, and intervention
// choice an operator can set, plus the validation that turns malformed
// input into a startup-time configuration error rather than a
// mid-run contract violation.
package config

import (
	"fmt"
	"time"

	"github.com/talgya/heatsim/internal/engine"
	"github.com/talgya/heatsim/internal/heating"
)

// Config is every external parameter listed in this system's external
// interfaces: start datetime, step interval, step count, and the full
// policy parameter set.
type Config struct {
	Seed int64

	StartDatetime      time.Time
	StepIntervalMonths int
	TimeSteps          int

	HeatPumpAwareness    float64
	AnnualRenovationRate float64
	LookaheadYears       int
	HassleFactor         float64
	HassleFactorRented   float64

	Interventions []heating.InterventionType

	GasOilBoilerBanDate         time.Time
	GasOilBoilerBanAnnounceDate time.Time

	FuelPricesGBPPerKWh map[heating.HeatingFuel]float64

	AirSourceDiscountFactor2022  float64
	HeatPumpPriceDiscountSchedule []engine.ScheduleEntry

	InstallerBaseCount    int
	InstallerAnnualGrowth float64
	AnnualNewBuilds       map[int]int

	AwarenessCampaignSchedule []engine.ScheduleEntry

	AllHouseholdsHeatPumpSuitable bool

	ReferencePopulation float64
}

// Validate checks every configuration error kind this system's error
// model calls out explicitly: out-of-range scalars, a ban announce date
// after the ban date, and a non-monotone awareness schedule.
func (c Config) Validate() error {
	if c.TimeSteps < 0 {
		return fmt.Errorf("config: time_steps must be >= 0, got %d", c.TimeSteps)
	}
	if c.StepIntervalMonths <= 0 {
		return fmt.Errorf("config: step_interval_months must be > 0, got %d", c.StepIntervalMonths)
	}
	if c.HeatPumpAwareness < 0 || c.HeatPumpAwareness > 1 {
		return fmt.Errorf("config: heat_pump_awareness must be in [0,1], got %f", c.HeatPumpAwareness)
	}
	if c.AnnualRenovationRate < 0 {
		return fmt.Errorf("config: annual_renovation_rate must be >= 0, got %f", c.AnnualRenovationRate)
	}
	if c.LookaheadYears < 1 {
		return fmt.Errorf("config: household_num_lookahead_years must be >= 1, got %d", c.LookaheadYears)
	}
	for name, f := range map[string]float64{"hassle_factor": c.HassleFactor, "hassle_factor_rented": c.HassleFactorRented} {
		if f < 0 || f > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %f", name, f)
		}
	}
	if c.GasOilBoilerBanAnnounceDate.After(c.GasOilBoilerBanDate) {
		return fmt.Errorf("config: gas/oil boiler ban announce date %s is after ban date %s",
			c.GasOilBoilerBanAnnounceDate, c.GasOilBoilerBanDate)
	}
	if err := validateMonotoneSchedule(c.AwarenessCampaignSchedule); err != nil {
		return fmt.Errorf("config: awareness_campaign_schedule: %w", err)
	}
	for _, fuel := range []heating.HeatingFuel{heating.FuelGas, heating.FuelElectricity, heating.FuelOil} {
		if _, ok := c.FuelPricesGBPPerKWh[fuel]; !ok {
			return fmt.Errorf("config: missing fuel price for %s", fuel)
		}
	}
	return nil
}

// validateMonotoneSchedule checks the schedule's value is non-decreasing
// once sorted by date; engine.Model does the same sort before use.
func validateMonotoneSchedule(sched []engine.ScheduleEntry) error {
	sorted := append([]engine.ScheduleEntry(nil), sched...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Date.Before(sorted[i].Date) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Value < sorted[i-1].Value {
			return fmt.Errorf("not monotone non-decreasing at %s", sorted[i].Date)
		}
	}
	return nil
}

// EngineConfig projects this Config onto engine.Config, the subset the
// model controller actually consumes.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		StartDatetime:               c.StartDatetime,
		StepIntervalMonths:          c.StepIntervalMonths,
		AnnualRenovationRate:        c.AnnualRenovationRate,
		LookaheadYears:              c.LookaheadYears,
		HassleFactor:                c.HassleFactor,
		HassleFactorRented:          c.HassleFactorRented,
		Interventions:               c.Interventions,
		GasOilBoilerBanDate:         c.GasOilBoilerBanDate,
		GasOilBoilerBanAnnounceDate: c.GasOilBoilerBanAnnounceDate,
		AirSourceDiscountFactor2022: c.AirSourceDiscountFactor2022,
		FuelPricesGBPPerKWh:         c.FuelPricesGBPPerKWh,
		HeatPumpPriceDiscountSchedule: c.HeatPumpPriceDiscountSchedule,
		InstallerBaseCount:          c.InstallerBaseCount,
		InstallerAnnualGrowth:       c.InstallerAnnualGrowth,
		AnnualNewBuilds:             c.AnnualNewBuilds,
		AwarenessCampaignSchedule:   c.AwarenessCampaignSchedule,
		ReferencePopulation:         c.ReferencePopulation,
	}
}
