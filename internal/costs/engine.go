// Package costs implements the pure cost-composition functions the
// household decision procedure weighs against a renovation budget: unit
// and installation cost, the net present value of future fuel bills,
// applicable subsidies, and the insulation cost a heat pump candidate
// requires as a prerequisite. Every function here is pure over its
// arguments plus RNG draws for uniformly-sampled cost intervals (one per
// quoted element) or a decommissioning fee — it never mutates the
// household or the model.
package costs

import (
	"math"
	"time"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
	"github.com/talgya/heatsim/internal/reference"
	"github.com/talgya/heatsim/internal/rng"
)

// ModelView is the subset of model state the cost engine needs to read.
// Defined here (rather than importing the engine package) to keep the
// dependency direction leaf-ward: engine depends on costs, not the
// reverse.
type ModelView interface {
	CurrentDatetime() time.Time
	FuelPriceGBPPerKWh(fuel heating.HeatingFuel) float64
	InterventionActive(it heating.InterventionType) bool
	PopulationCount() int
	LookaheadYears() int
	BoilerUpgradeSchemeCumulativeSpendGBP() float64
	AirSourceHeatPumpDiscountFactor() float64
	HeatPumpPriceDiscountFactor() float64
}

// reinstallDiscountFactor scales down the unit+install cost when a heat
// pump candidate matches the household's current system: no new
// groundworks or refit, just like-for-like replacement.
const reinstallDiscountFactor = 0.6

// decommissioningCostMinGBP and Max bound the random fee charged when
// switching away from the currently installed system.
const (
	decommissioningCostMinGBP = 500.0
	decommissioningCostMaxGBP = 2_000.0
)

// UnitAndInstallCost prices installing system on h, given the model's
// current policy discounts. Draws from s only when a decommissioning fee
// applies (i.e. the candidate differs from the currently installed
// system).
func UnitAndInstallCost(h *household.Household, system heating.HeatingSystem, m ModelView, s *rng.Stream) float64 {
	cost := baseUnitCost(h, system)

	switch {
	case system != h.HeatingSystem:
		cost += s.UniformInterval(decommissioningCostMinGBP, decommissioningCostMaxGBP)
	case system.IsHeatPump():
		cost *= reinstallDiscountFactor
	}

	if system == heating.HeatPumpAirSource {
		cost *= m.AirSourceHeatPumpDiscountFactor()
		cost *= m.HeatPumpPriceDiscountFactor()
		floor := reference.MeanCostGBPBoilerGas[h.PropertySize()]
		if cost < floor {
			cost = floor
		}
	}

	return cost
}

func baseUnitCost(h *household.Household, system heating.HeatingSystem) float64 {
	switch system {
	case heating.HeatPumpAirSource:
		kw := h.ComputeHeatPumpCapacityKW(system)
		return reference.MedianCostGBPHeatPumpAirSource[kw]
	case heating.HeatPumpGroundSource:
		kw := h.ComputeHeatPumpCapacityKW(system)
		return reference.MedianCostGBPHeatPumpGroundSource[kw]
	case heating.BoilerGas:
		return reference.MeanCostGBPBoilerGas[h.PropertySize()]
	case heating.BoilerOil:
		return reference.MeanCostGBPBoilerOil[h.PropertySize()]
	case heating.BoilerElectric:
		return reference.MeanCostGBPBoilerElectric[h.PropertySize()]
	default:
		heating.Invariant(false, "costs: baseUnitCost has no case for heating system %v", system)
		return 0
	}
}

// FuelNPV is the net present value of fuel bills over the model's
// look-ahead horizon if h operated system, discounted at h's own rate.
// Always zero for rented occupants (a landlord externality).
func FuelNPV(h *household.Household, system heating.HeatingSystem, m ModelView) float64 {
	price := m.FuelPriceGBPPerKWh(heating.FuelFor(system))
	annualBill := h.AnnualHeatingFuelBill(system, price)
	if annualBill == 0 {
		return 0
	}
	return presentValue(annualBill, h.DiscountRate(), m.LookaheadYears())
}

func presentValue(annualCashflow, rate float64, years int) float64 {
	total := 0.0
	for t := 0; t < years; t++ {
		total += annualCashflow / math.Pow(1+rate, float64(t))
	}
	return total
}

// boilerUpgradeSchemeWindowStart and End bound the dates during which the
// one-shot grant is available.
var (
	boilerUpgradeSchemeWindowStart = time.Date(2022, time.April, 1, 0, 0, 0, 0, time.UTC)
	boilerUpgradeSchemeWindowEnd   = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
)

// Subsidy sums the RHI income stream and the Boiler Upgrade Scheme grant
// applicable to system for h under the model's current intervention
// state. Returns the combined value as a positive GBP amount (the
// caller subtracts it from cost, per the cost-vector sign convention).
func Subsidy(h *household.Household, system heating.HeatingSystem, m ModelView) (total, busGrant float64) {
	rhi := rhiSubsidy(h, system, m)
	bus := boilerUpgradeSchemeGrant(system, m)
	return rhi + bus, bus
}

func rhiSubsidy(h *household.Household, system heating.HeatingSystem, m ModelView) float64 {
	if !system.IsHeatPump() || !m.InterventionActive(heating.RHI) {
		return 0
	}
	demand := h.AnnualKwhHeatingDemand(system)
	cap := reference.RHIAnnualDemandCapKWh[system]
	eligibleKWh := math.Min(math.Max(demand, 0), cap)
	annualPayment := eligibleKWh * reference.RHITariffGBPPerKWh[system]
	return presentValue(annualPayment, h.DiscountRate(), reference.RHIPaymentYears)
}

func boilerUpgradeSchemeGrant(system heating.HeatingSystem, m ModelView) float64 {
	if !system.IsHeatPump() || !m.InterventionActive(heating.BoilerUpgradeScheme) {
		return 0
	}
	now := m.CurrentDatetime()
	if now.Before(boilerUpgradeSchemeWindowStart) || !now.Before(boilerUpgradeSchemeWindowEnd) {
		return 0
	}
	populationScale := float64(m.PopulationCount()) / reference.BoilerUpgradeSchemeReferencePopulation
	cap := reference.BoilerUpgradeSchemeNationalCapGBP * populationScale
	if m.BoilerUpgradeSchemeCumulativeSpendGBP() >= cap {
		return 0
	}
	if system == heating.HeatPumpAirSource {
		return reference.BoilerUpgradeGrantASHP
	}
	return reference.BoilerUpgradeGrantGSHP
}

// ElementQuote is one fabric element's upgrade cost.
type ElementQuote struct {
	Element heating.Element
	CostGBP float64
}

// QuoteUpgradableElements samples a cost for every fabric element still
// below the efficiency cap (score < 5), drawing uniformly from the
// segment's cost interval for each. The order of elements quoted (and
// therefore of RNG draws consumed) is fixed: Roof, Walls, Glazing.
func QuoteUpgradableElements(h *household.Household, s *rng.Stream) []ElementQuote {
	seg := h.InsulationSegment()
	var quotes []ElementQuote
	for _, e := range heating.AllElements {
		if h.ElementEfficiency(e) >= 5 {
			continue
		}
		interval := reference.CostIntervalFor(e, seg, h.IsSolidWall)
		cost := s.UniformInterval(interval.Low, interval.High)
		quotes = append(quotes, ElementQuote{Element: e, CostGBP: cost})
	}
	return quotes
}

// CheapestN selects the n cheapest quotes from quotes, returning them in
// ascending cost order. If fewer than n quotes are available, returns all
// of them.
func CheapestN(quotes []ElementQuote, n int) []ElementQuote {
	sorted := make([]ElementQuote, len(quotes))
	copy(sorted, quotes)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].CostGBP < sorted[j-1].CostGBP; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// EPCCUpgradeQuote computes the element subset and cost a household would
// need to reach EPC >= C, assuming every installed element raises the
// rating by one grade. Returns the cheapest matching subset and its total
// cost; an already-EPC-C-or-better household gets an empty, zero-cost
// quote.
func EPCCUpgradeQuote(h *household.Household, s *rng.Stream) ([]ElementQuote, float64) {
	needed := int(heating.EPCc) - int(h.EPCRating)
	if needed <= 0 {
		return nil, 0
	}
	quotes := QuoteUpgradableElements(h, s)
	chosen := CheapestN(quotes, needed)
	total := 0.0
	for _, q := range chosen {
		total += q.CostGBP
	}
	return chosen, total
}

// InsulationPrerequisiteCost is the EPC-C upgrade cost required as a
// prerequisite for choosing system: non-zero only for heat pump
// candidates.
func InsulationPrerequisiteCost(h *household.Household, system heating.HeatingSystem, epcCQuote []ElementQuote) float64 {
	if !system.IsHeatPump() {
		return 0
	}
	total := 0.0
	for _, q := range epcCQuote {
		total += q.CostGBP
	}
	return total
}
