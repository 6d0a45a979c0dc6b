// Package decision implements the per-household decision procedure: the
// once-a-step sequence of heating-status update, renovation evaluation,
// opportunistic insulation, and heating-system replacement that is the
// core of this simulation. MakeDecisions runs that sequence and mutates
// the household in place as each stage completes.
package decision

import (
	"math"
	"time"

	"github.com/talgya/heatsim/internal/costs"
	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
	"github.com/talgya/heatsim/internal/rng"
)

// Probabilities fixed by the decision procedure's specification.
const (
	pRenovateHeatingSystem = 0.18
	pRenovateInsulation    = 0.33

	// budgetExceededWeightFloor is exp(-10): if every candidate's weight
	// falls below this, every option is judged unaffordable and the
	// household repairs (keeps its current system) instead of drawing.
	budgetExceededWeightFloor = 4.5399929762484854e-05 // math.Exp(-10)

	weightExponentCap = 50.0
)

// insulationCountWeights are the weights for picking how many elements an
// opportunistic insulation renovation upgrades: n=1,2,3.
var insulationCountWeights = []float64{0.76, 0.17, 0.07}

// ModelView is the subset of model state the decision procedure needs,
// beyond what the cost engine already requires.
type ModelView interface {
	costs.ModelView
	CurrentDatetime() time.Time
	Rand() *rng.Stream
	PermittedHeatingSystems() map[heating.HeatingSystem]bool
	GasOilBoilerBanInForce() bool
	GasOilBoilerBanAnnounced() bool
	HasHeatPumpCapacity() bool
	RecordHeatPumpInstallation()
	HassleFactorFor(o heating.OccupantType) float64
	StepIntervalYears() float64
	AnnualRenovationRate() float64
	WarnEmptyCandidateSetOnce(householdID int64)
}

// MakeDecisions runs the full per-step procedure for a single household,
// in the fixed order the concurrency model requires: reset scratch,
// update heating status, evaluate renovation, optional insulation,
// optional replacement.
func MakeDecisions(h *household.Household, m ModelView) {
	h.ResetScratch()
	updateHeatingStatus(h, m)
	evaluateRenovation(h, m)

	if h.IsRenovating && h.RenovateInsulation {
		performOpportunisticInsulation(h, m)
	}

	trigger := replacementTrigger(h)
	if trigger != heating.TriggerNone {
		evaluateReplacement(h, m, trigger)
	}
}

func replacementTrigger(h *household.Household) heating.EventTrigger {
	switch {
	case !h.HeatingFunctioning:
		return heating.TriggerBreakdown
	case h.IsRenovating && h.RenovateHeatingSystem:
		return heating.TriggerRenovation
	default:
		return heating.TriggerNone
	}
}

// updateHeatingStatus draws the heating-system failure Bernoulli from a
// Weibull hazard rate evaluated at the system's current age.
func updateHeatingStatus(h *household.Household, m ModelView) {
	age := h.HeatingSystemAgeYears(m.CurrentDatetime())
	p := rng.WeibullHazardProbability(hazardAlpha, hazardBeta, age, m.StepIntervalYears())
	failed := m.Rand().Bernoulli(p)
	h.HeatingFunctioning = !failed
}

const (
	hazardAlpha = 6.0
	hazardBeta  = 15.0
)

// evaluateRenovation draws whether h renovates this step and, if so,
// which of the two renovation sub-decisions apply.
func evaluateRenovation(h *household.Household, m ModelView) {
	pReno := m.AnnualRenovationRate() * m.StepIntervalYears()
	h.IsRenovating = m.Rand().Bernoulli(pReno)
	if !h.IsRenovating {
		h.RenovateHeatingSystem = false
		h.RenovateInsulation = false
		return
	}
	h.RenovateHeatingSystem = m.Rand().Bernoulli(pRenovateHeatingSystem)
	h.RenovateInsulation = m.Rand().Bernoulli(pRenovateInsulation)
	h.Decisions.IsRenovatingHeatingSys = h.RenovateHeatingSystem
	h.Decisions.IsRenovatingInsulation = h.RenovateInsulation
}

// performOpportunisticInsulation picks n in {1,2,3} elements (by weight)
// among those still upgradable and installs the n cheapest quotes.
func performOpportunisticInsulation(h *household.Household, m ModelView) {
	n := m.Rand().WeightedChoice(insulationCountWeights) + 1

	quotes := costs.QuoteUpgradableElements(h, m.Rand())
	chosen := costs.CheapestN(quotes, n)
	for _, q := range chosen {
		h.InstallElement(q.Element)
		h.Decisions.ElementCosts[q.Element] = q.CostGBP
	}
}

// evaluateReplacement runs the full heating-replacement branch: build the
// candidate set, price every candidate, weight-select one, and apply the
// installation side effects.
func evaluateReplacement(h *household.Household, m ModelView, trigger heating.EventTrigger) {
	h.Decisions.EventTrigger = trigger

	candidates := CandidateSet(h, m, trigger)
	epcCQuote, epcCCost := costs.EPCCUpgradeQuote(h, m.Rand())

	type priced struct {
		system heating.HeatingSystem
		vector household.CostVector
		weight float64
	}

	budget := h.RenovationBudget()
	var options []priced
	allBelowFloor := true

	for _, sys := range candidates {
		unitInstall := costs.UnitAndInstallCost(h, sys, m, m.Rand())
		fuelNPV := costs.FuelNPV(h, sys, m)
		subsidy, _ := costs.Subsidy(h, sys, m)
		insulation := costs.InsulationPrerequisiteCost(h, sys, epcCQuote)

		vector := household.CostVector{
			UnitAndInstallGBP: unitInstall,
			FuelNPVGBP:        fuelNPV,
			SubsidyGBP:        subsidy,
			InsulationGBP:     insulation,
		}
		h.Decisions.CandidateCosts[sys] = vector

		total := vector.Total()
		r := total / budget
		if r > weightExponentCap {
			r = weightExponentCap
		}
		if r < 0 {
			r = 0
		}
		weight := math.Exp(-r)
		if isHassleSystem(h, sys) {
			weight *= 1 - m.HassleFactorFor(h.OccupantType)
		}
		if weight >= budgetExceededWeightFloor {
			allBelowFloor = false
		}

		options = append(options, priced{system: sys, vector: vector, weight: weight})
	}
	_ = epcCCost

	if len(options) == 0 {
		m.WarnEmptyCandidateSetOnce(h.ID)
		h.HeatingFunctioning = true
		return
	}

	if allBelowFloor {
		h.HeatingFunctioning = true
		return
	}

	weights := make([]float64, len(options))
	for i, o := range options {
		weights[i] = o.weight
	}
	chosenIdx := m.Rand().WeightedChoice(weights)
	chosen := options[chosenIdx]

	installReplacement(h, m, chosen.system, epcCQuote)
}

// isHassleSystem reports whether sys counts as a "hassle" switch: a
// non-boiler system that differs from the currently installed one.
func isHassleSystem(h *household.Household, sys heating.HeatingSystem) bool {
	return sys.IsHeatPump() && sys != h.HeatingSystem
}

func installReplacement(h *household.Household, m ModelView, sys heating.HeatingSystem, epcCQuote []costs.ElementQuote) {
	now := m.CurrentDatetime()
	h.InstallHeatingSystem(sys, now)

	if sys.IsHeatPump() {
		m.RecordHeatPumpInstallation()
		for _, q := range epcCQuote {
			h.InstallElement(q.Element)
			h.Decisions.ElementCosts[q.Element] = q.CostGBP
		}
		_, busGrant := costs.Subsidy(h, sys, m)
		h.Decisions.BoilerUpgradeGrantUsed = busGrant
	}
}

// CandidateSet applies the §4.2.1 filter cascade to the model's globally
// permitted systems, returning the remaining candidates in a fixed order
// (heating.AllHeatingSystems order).
func CandidateSet(h *household.Household, m ModelView, trigger heating.EventTrigger) []heating.HeatingSystem {
	permitted := m.PermittedHeatingSystems()

	remove := make(map[heating.HeatingSystem]bool)

	if !h.IsHeatPumpSuitable() {
		remove[heating.HeatPumpAirSource] = true
		remove[heating.HeatPumpGroundSource] = true
	}

	banAnnounced := m.GasOilBoilerBanAnnounced()
	if !banAnnounced && !h.IsHeatPumpAware {
		remove[heating.HeatPumpAirSource] = true
		remove[heating.HeatPumpGroundSource] = true
	}

	if h.IsOffGasGrid {
		remove[heating.BoilerGas] = true
	} else {
		remove[heating.BoilerOil] = true
	}

	if h.PropertySize() != heating.Small {
		remove[heating.BoilerElectric] = true
	}

	if trigger == heating.TriggerBreakdown && !m.GasOilBoilerBanInForce() {
		for _, hp := range []heating.HeatingSystem{heating.HeatPumpAirSource, heating.HeatPumpGroundSource} {
			if hp != h.HeatingSystem {
				remove[hp] = true
			}
		}
	}

	if !m.HasHeatPumpCapacity() {
		remove[heating.HeatPumpAirSource] = true
		remove[heating.HeatPumpGroundSource] = true
	}

	var out []heating.HeatingSystem
	for _, sys := range heating.AllHeatingSystems {
		if !permitted[sys] {
			continue
		}
		if remove[sys] {
			continue
		}
		out = append(out, sys)
	}
	return out
}
