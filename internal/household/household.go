// Package household models a single dwelling: its immutable archetype,
// its mutable heating/insulation state, and the pure derived quantities
// the cost engine and decision procedure consume. Households are
// constructed once from the seed population and then mutated only by
// their own decision procedure, invoked once per step in collection
// order.
package household

import (
	"math"
	"time"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/reference"
	"github.com/talgya/heatsim/internal/rng"
)

// CostVector is the set of cost components the decision procedure
// computes for one candidate heating system, kept on the household for
// logging after the decision is made.
type CostVector struct {
	UnitAndInstallGBP float64
	FuelNPVGBP        float64
	SubsidyGBP        float64
	InsulationGBP     float64
}

// Total is the signed sum of cost components: subsidies reduce cost.
func (c CostVector) Total() float64 {
	return c.UnitAndInstallGBP + c.FuelNPVGBP + c.InsulationGBP - c.SubsidyGBP
}

// DecisionLog is the per-step scratch state the decision procedure
// writes to and the collectors read from. It is reset at the start of
// every step.
type DecisionLog struct {
	CandidateCosts map[heating.HeatingSystem]CostVector
	ElementCosts   map[heating.Element]float64
	BoilerUpgradeGrantUsed float64
	EventTrigger           heating.EventTrigger
	IsRenovatingInsulation bool
	IsRenovatingHeatingSys bool
}

func newDecisionLog() DecisionLog {
	return DecisionLog{
		CandidateCosts: make(map[heating.HeatingSystem]CostVector),
		ElementCosts:   make(map[heating.Element]float64),
	}
}

// Household is one dwelling in the synthetic population.
type Household struct {
	// Immutable after construction.
	ID                         int64
	Location                   string
	PropertyValueGBP           float64
	TotalFloorAreaM2           float64
	IsOffGasGrid               bool
	ConstructionYearBand       heating.ConstructionYearBand
	PropertyType               heating.PropertyType
	BuiltForm                  heating.BuiltForm
	IsSolidWall                bool
	IsHeatPumpSuitableArchetype bool
	OccupantType               heating.OccupantType

	// Mutable state.
	HeatingSystem             heating.HeatingSystem
	HeatingSystemPrevious     *heating.HeatingSystem
	HeatingSystemInstallDate  time.Time
	HeatingFunctioning        bool

	EPCRating          heating.EPCRating
	PotentialEPCRating heating.EPCRating
	WallsEfficiency    int // 1..5
	RoofEfficiency     int // 1..5, 5 if not applicable (e.g. flats)
	GlazingEfficiency  int // 1..5

	IsHeatPumpAware bool

	IsRenovating          bool
	RenovateHeatingSystem bool
	RenovateInsulation    bool

	Decisions DecisionLog

	// wealthPercentile, discountRate and renovationBudget are cached at
	// construction: they are pure functions of PropertyValueGBP (see
	// derive), not independent draws, so the monotonicity invariants
	// that relate them to property value hold by construction.
	wealthPercentile float64
	discountRate     float64
	renovationBudget float64
}

// New constructs a Household and derives its wealth-linked quantities.
// heatingSystemInstallDate should already reflect a plausible pre-run
// install age (the ingest layer samples this uniformly over the nominal
// heating-system lifetime, mirroring population seeding conventions).
func New(id int64, location string, propertyValueGBP, floorAreaM2 float64, offGasGrid bool,
	yearBand heating.ConstructionYearBand, propType heating.PropertyType, builtForm heating.BuiltForm,
	heatingSystem heating.HeatingSystem, installDate time.Time, epc, potentialEPC heating.EPCRating,
	occupant heating.OccupantType, solidWall bool, wallsEff, windowsEff, roofEff int,
	suitableArchetype bool) *Household {

	h := &Household{
		ID:                          id,
		Location:                    location,
		PropertyValueGBP:            propertyValueGBP,
		TotalFloorAreaM2:            floorAreaM2,
		IsOffGasGrid:                offGasGrid,
		ConstructionYearBand:        yearBand,
		PropertyType:                propType,
		BuiltForm:                   builtForm,
		IsSolidWall:                 solidWall,
		IsHeatPumpSuitableArchetype: suitableArchetype,
		OccupantType:                occupant,
		HeatingSystem:               heatingSystem,
		HeatingSystemInstallDate:    installDate,
		HeatingFunctioning:          true,
		EPCRating:                   epc,
		PotentialEPCRating:          potentialEPC,
		WallsEfficiency:             wallsEff,
		RoofEfficiency:              roofEff,
		GlazingEfficiency:           windowsEff,
		Decisions:                   newDecisionLog(),
	}
	h.derive()
	return h
}

// derive computes the wealth-linked quantities from PropertyValueGBP. It
// is deterministic: no RNG draw is involved, which is what keeps
// wealth_percentile, discount_rate and renovation_budget monotonic in
// property value as the testable properties require.
func (h *Household) derive() {
	h.wealthPercentile = weibullCDF(h.PropertyValueGBP, reference.PropertyValueWeibullAlpha, reference.PropertyValueWeibullBeta)

	// Wealthier households (higher percentile) draw a lower discount
	// rate: invert the quantile before inverting the discount-rate CDF.
	discountQuantile := clamp01(1 - h.wealthPercentile)
	h.discountRate = rng.WeibullInverseCDF(discountQuantile, reference.DiscountRateWeibullAlpha, reference.DiscountRateWeibullBeta)

	budget := rng.WeibullInverseCDF(h.wealthPercentile, reference.RenovationBudgetWeibullAlpha, reference.RenovationBudgetWeibullBeta)
	maxBudget := h.PropertyValueGBP * 0.9
	if budget > maxBudget {
		budget = maxBudget
	}
	if budget < 0 {
		budget = 0
	}
	h.renovationBudget = budget
}

// WealthPercentile is this household's position in the national
// property-value distribution, in [0, 1].
func (h *Household) WealthPercentile() float64 { return h.wealthPercentile }

// DiscountRate is the per-household annual discount rate used to
// present-value future fuel bills and RHI payments.
func (h *Household) DiscountRate() float64 { return h.discountRate }

// RenovationBudget is the monetary cap this household would spend on a
// heating-system replacement or insulation in a given step.
func (h *Household) RenovationBudget() float64 { return h.renovationBudget }

// HeatingFuel is the fuel the current heating system consumes.
func (h *Household) HeatingFuel() heating.HeatingFuel {
	return heating.FuelFor(h.HeatingSystem)
}

// PropertySize buckets the dwelling by floor area.
func (h *Household) PropertySize() heating.PropertySize {
	switch {
	case h.TotalFloorAreaM2 <= 70:
		return heating.Small
	case h.TotalFloorAreaM2 <= 110:
		return heating.Medium
	default:
		return heating.Large
	}
}

// InsulationSegment buckets the dwelling by size and form for retrofit
// cost lookup.
func (h *Household) InsulationSegment() heating.InsulationSegment {
	small := h.PropertySize() == heating.Small
	switch h.PropertyType {
	case heating.Bungalow:
		return heating.SegBungalow
	case heating.Flat:
		if small {
			return heating.SegSmallFlat
		}
		return heating.SegLargeFlat
	default: // House
		switch h.BuiltForm {
		case heating.MidTerrace:
			if small {
				return heating.SegSmallMidTerrace
			}
			return heating.SegLargeMidTerrace
		case heating.Detached:
			if small {
				return heating.SegSmallDetached
			}
			return heating.SegLargeDetached
		default: // SemiDetached, EndTerrace
			if small {
				return heating.SegSmallSemiEndTerrace
			}
			return heating.SegLargeSemiEndTerrace
		}
	}
}

// IsHeatPumpSuitable combines the archetype marker with a reachable EPC
// of at least C.
func (h *Household) IsHeatPumpSuitable() bool {
	return h.IsHeatPumpSuitableArchetype && h.PotentialEPCRating >= heating.EPCc
}

// AnnualKwhHeatingDemand is the annual heat demand, in kWh, if the
// household operated the given system.
func (h *Household) AnnualKwhHeatingDemand(system heating.HeatingSystem) float64 {
	ratio := reference.FuelKwhToHeatKwh[system]
	if ratio == 0 {
		ratio = 1
	}
	return (h.TotalFloorAreaM2 * reference.HeatingKwhPerSqmAnnual) / ratio
}

// AnnualHeatingFuelBill is the annual fuel cost if the household operated
// the given system at the given per-kWh fuel price. Rented occupants
// never bear this cost directly (a landlord externality).
func (h *Household) AnnualHeatingFuelBill(system heating.HeatingSystem, pricePerKWh float64) float64 {
	if h.OccupantType.IsRented() {
		return 0
	}
	return h.AnnualKwhHeatingDemand(system) * pricePerKWh
}

// HeatingSystemAgeYears is the age of the currently installed heating
// system, in fractional years, as of now.
func (h *Household) HeatingSystemAgeYears(now time.Time) float64 {
	d := now.Sub(h.HeatingSystemInstallDate)
	if d < 0 {
		return 0
	}
	return d.Hours() / (24 * 365.25)
}

// ElementEfficiency returns the current efficiency score for an element;
// for Roof on a Flat (no loft) it is treated as already at the cap.
func (h *Household) ElementEfficiency(e heating.Element) int {
	switch e {
	case heating.ElementRoof:
		if h.PropertyType == heating.Flat {
			return 5
		}
		return h.RoofEfficiency
	case heating.ElementWalls:
		return h.WallsEfficiency
	case heating.ElementGlazing:
		return h.GlazingEfficiency
	default:
		heating.Invariant(false, "household: ElementEfficiency has no case for element %v", e)
		return 5
	}
}

// SetElementEfficiency writes back an upgraded efficiency score,
// clamping to the valid range.
func (h *Household) SetElementEfficiency(e heating.Element, v int) {
	if v > 5 {
		v = 5
	}
	if v < 1 {
		v = 1
	}
	switch e {
	case heating.ElementRoof:
		h.RoofEfficiency = v
	case heating.ElementWalls:
		h.WallsEfficiency = v
	case heating.ElementGlazing:
		h.GlazingEfficiency = v
	}
}

// ResetScratch clears the per-step decision log. Called first in every
// household's decision procedure.
func (h *Household) ResetScratch() {
	h.Decisions = newDecisionLog()
}

// ComputeHeatPumpCapacityKW sizes a heat pump for this household's floor
// area, clipped to the system's min/max and rounded up to the next whole
// kW (unit-cost tables are keyed by integer kW).
func ComputeHeatPumpCapacityKW(floorAreaM2 float64, system heating.HeatingSystem) int {
	scale := reference.HeatPumpCapacityScaleFactor[system]
	minKW := reference.MinHeatPumpCapacityKW[system]
	maxKW := reference.MaxHeatPumpCapacityKW[system]
	kw := scale * floorAreaM2
	if kw < minKW {
		kw = minKW
	}
	if kw > maxKW {
		kw = maxKW
	}
	return int(math.Ceil(kw))
}

func (h *Household) ComputeHeatPumpCapacityKW(system heating.HeatingSystem) int {
	return ComputeHeatPumpCapacityKW(h.TotalFloorAreaM2, system)
}

// InstallHeatingSystem records a successful heating-system install:
// previous system, install date, functioning flag.
func (h *Household) InstallHeatingSystem(system heating.HeatingSystem, at time.Time) {
	prev := h.HeatingSystem
	h.HeatingSystemPrevious = &prev
	h.HeatingSystem = system
	h.HeatingSystemInstallDate = at
	h.HeatingFunctioning = true
}

// InstallElement pushes an element's efficiency score to the cap (5) and
// raises the EPC rating by one grade, capped at A.
func (h *Household) InstallElement(e heating.Element) {
	h.SetElementEfficiency(e, 5)
	h.EPCRating = (h.EPCRating + 1).Clamp()
	if h.EPCRating > h.PotentialEPCRating {
		h.EPCRating = h.PotentialEPCRating
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func weibullCDF(x, alpha, beta float64) float64 {
	if x < 0 {
		return 0
	}
	return 1 - math.Exp(-math.Pow(x/beta, alpha))
}

// SampleInstallDate draws a plausible pre-run install date for a freshly
// seeded household, uniformly over the nominal heating-system lifetime.
func SampleInstallDate(s *rng.Stream, now time.Time) time.Time {
	days := s.IntInclusive(0, 365*reference.HeatingSystemLifetimeYears)
	return now.AddDate(0, 0, -days)
}
