// Package reference holds the immutable lookup data the cost engine and
// decision procedure draw on: retrofit cost intervals, heat-pump and
// boiler unit costs, Weibull distribution parameters, sizing factors and
// caps, and the fixed heating-demand/fuel-efficiency constants. Apart from
// the RHI tariff and demand-cap figures, which are representative
// placeholders, every value here is carried over from the population-level
// constants this system's cost model was originally calibrated against.
package reference

import "github.com/talgya/heatsim/internal/heating"

// CostInterval is an inclusive [Low, High] GBP range a value is sampled
// uniformly from.
type CostInterval struct {
	Low, High float64
}

// HeatingSystemLifetimeYears is the nominal service life used to seed a
// plausible initial install age for freshly-constructed households.
const HeatingSystemLifetimeYears = 15

// Hazard rate parameters for heating-system failure (Weibull shape/scale,
// scale expressed in years).
const (
	HazardRateHeatingSystemAlpha = 6.0
	HazardRateHeatingSystemBeta  = 15.0
)

// Weibull parameters for the three per-household distributions sampled at
// construction time.
const (
	RenovationBudgetWeibullAlpha = 0.55
	RenovationBudgetWeibullBeta  = 21_994.0

	PropertyValueWeibullAlpha = 1.61
	PropertyValueWeibullBeta  = 280_000.0

	DiscountRateWeibullAlpha = 0.8
	DiscountRateWeibullBeta  = 0.165
)

// HeatingKwhPerSqmAnnual is the baseline annual heat demand per square
// metre, calibrated against a gas-boiler coefficient of performance.
const HeatingKwhPerSqmAnnual = 122.0

// FuelKwhToHeatKwh is the conversion efficiency between one kWh of fuel
// input and useful heat output for a given heating system.
var FuelKwhToHeatKwh = map[heating.HeatingSystem]float64{
	heating.BoilerGas:            0.92,
	heating.BoilerOil:            0.92,
	heating.BoilerElectric:       0.995,
	heating.HeatPumpAirSource:    3,
	heating.HeatPumpGroundSource: 4,
}

// Heat-pump sizing: scale factor (kW per m^2) and capacity bounds.
var (
	HeatPumpCapacityScaleFactor = map[heating.HeatingSystem]float64{
		heating.HeatPumpAirSource:    0.10,
		heating.HeatPumpGroundSource: 0.08,
	}
	MinHeatPumpCapacityKW = map[heating.HeatingSystem]float64{
		heating.HeatPumpAirSource:    4.0,
		heating.HeatPumpGroundSource: 4.0,
	}
	MaxHeatPumpCapacityKW = map[heating.HeatingSystem]float64{
		heating.HeatPumpAirSource:    20.0,
		heating.HeatPumpGroundSource: 25.0,
	}
)

// Retrofit cost interval tables, by insulation segment.
var (
	CavityWallInsulationCost = map[heating.InsulationSegment]CostInterval{
		heating.SegSmallFlat:           {300, 630},
		heating.SegLargeFlat:           {350, 640},
		heating.SegSmallMidTerrace:     {350, 640},
		heating.SegLargeMidTerrace:     {450, 670},
		heating.SegSmallSemiEndTerrace: {480, 660},
		heating.SegLargeSemiEndTerrace: {600, 690},
		heating.SegSmallDetached:       {550, 800},
		heating.SegLargeDetached:       {750, 1_200},
		heating.SegBungalow:            {500, 650},
	}

	InternalWallInsulationCost = map[heating.InsulationSegment]CostInterval{
		heating.SegSmallFlat:           {2_500, 3_000},
		heating.SegLargeFlat:           {3_000, 4_000},
		heating.SegSmallMidTerrace:     {3_000, 5_000},
		heating.SegLargeMidTerrace:     {4_000, 4_000},
		heating.SegSmallSemiEndTerrace: {5_000, 10_400},
		heating.SegLargeSemiEndTerrace: {6_000, 8_000},
		heating.SegSmallDetached:       {6_600, 8_000},
		heating.SegLargeDetached:       {7_000, 11_600},
		heating.SegBungalow:            {5_600, 7_000},
	}

	LoftInsulationJoistsCost = map[heating.InsulationSegment]CostInterval{
		heating.SegSmallFlat:           {180, 580},
		heating.SegLargeFlat:           {235, 590},
		heating.SegSmallMidTerrace:     {180, 600},
		heating.SegLargeMidTerrace:     {200, 645},
		heating.SegSmallSemiEndTerrace: {180, 610},
		heating.SegLargeSemiEndTerrace: {210, 650},
		heating.SegSmallDetached:       {220, 750},
		heating.SegLargeDetached:       {300, 955},
		heating.SegBungalow:            {430, 900},
	}

	DoubleGlazingUPVCCost = map[heating.InsulationSegment]CostInterval{
		heating.SegSmallFlat:           {1_200, 3_000},
		heating.SegLargeFlat:           {3_000, 4_200},
		heating.SegSmallMidTerrace:     {3_200, 5_000},
		heating.SegLargeMidTerrace:     {4_800, 5_500},
		heating.SegSmallSemiEndTerrace: {4_800, 7_000},
		heating.SegLargeSemiEndTerrace: {6_000, 8_000},
		heating.SegSmallDetached:       {5_000, 7_000},
		heating.SegLargeDetached:       {7_000, 10_000},
		heating.SegBungalow:            {5_800, 8_000},
	}
)

// CostIntervalFor returns the sampling interval for an element upgrade on
// a household, selecting the internal-wall table over the cavity-wall
// table for the Walls element when the dwelling has a solid wall.
func CostIntervalFor(elem heating.Element, seg heating.InsulationSegment, solidWall bool) CostInterval {
	switch elem {
	case heating.ElementWalls:
		if solidWall {
			return InternalWallInsulationCost[seg]
		}
		return CavityWallInsulationCost[seg]
	case heating.ElementRoof:
		return LoftInsulationJoistsCost[seg]
	case heating.ElementGlazing:
		return DoubleGlazingUPVCCost[seg]
	default:
		return CostInterval{}
	}
}

// MedianCostGBPHeatPumpAirSource is unit+install cost by integer kW
// capacity, 1..20, adjusted upstream for monotonicity.
var MedianCostGBPHeatPumpAirSource = map[int]float64{
	1: 1500, 2: 3000, 3: 4500, 4: 6000, 5: 7500, 6: 7500, 7: 8050, 8: 9200,
	9: 10350, 10: 11500, 11: 11500, 12: 11500, 13: 12350, 14: 13300,
	15: 14250, 16: 14250, 17: 14250, 18: 14580, 19: 15390, 20: 16200,
}

// MedianCostGBPHeatPumpGroundSource is unit+install cost by integer kW
// capacity, 1..25.
var MedianCostGBPHeatPumpGroundSource = map[int]float64{
	1: 1800, 2: 3600, 3: 5400, 4: 7200, 5: 9000, 6: 10920, 7: 12740,
	8: 14560, 9: 16380, 10: 18200, 11: 18200, 12: 18840, 13: 20410,
	14: 21980, 15: 23550, 16: 23550, 17: 24990, 18: 26460, 19: 27930,
	20: 29400, 21: 29400, 22: 29400, 23: 30590, 24: 31920, 25: 33250,
}

// MeanCostGBPBoiler is unit+install cost by property size, per boiler
// type.
var (
	MeanCostGBPBoilerGas = map[heating.PropertySize]float64{
		heating.Small: 2277, heating.Medium: 2347, heating.Large: 2476,
	}
	MeanCostGBPBoilerOil = map[heating.PropertySize]float64{
		heating.Small: 2183, heating.Medium: 2350, heating.Large: 3025,
	}
	MeanCostGBPBoilerElectric = map[heating.PropertySize]float64{
		heating.Small: 1250, heating.Medium: 1750, heating.Large: 2250,
	}
)

// Boiler Upgrade Scheme grant amounts, GBP.
const (
	BoilerUpgradeGrantASHP = 5_000.0
	BoilerUpgradeGrantGSHP = 6_000.0
)

// BoilerUpgradeSchemeNationalCapGBP and the reference population it was
// calibrated against: the scheme's spend ceiling is scaled to the actual
// simulated population by this ratio.
const (
	BoilerUpgradeSchemeNationalCapGBP      = 450_000_000.0
	BoilerUpgradeSchemeReferencePopulation = 24_600_000.0
)

// RHI tariff and cap reference values, GBP per kWh and kWh respectively.
// Tariffs and caps are system-specific: these are representative domestic
// RHI (Renewable Heat Incentive) reference figures for air- and
// ground-source heat pumps.
var (
	RHITariffGBPPerKWh = map[heating.HeatingSystem]float64{
		heating.HeatPumpAirSource:    0.108,
		heating.HeatPumpGroundSource: 0.213,
	}
	RHIAnnualDemandCapKWh = map[heating.HeatingSystem]float64{
		heating.HeatPumpAirSource:    20_000,
		heating.HeatPumpGroundSource: 25_000,
	}
	RHIPaymentYears = 7
)

// HouseholdsPerInstallerFloor is the minimum ratio of households to
// installers the model enforces when scaling installer count to
// population (see model controller installer-capacity accounting).
const HouseholdsPerInstallerFloor = 215.0

// MonthsPerHeatPumpInstall approximates the labour-months a single
// installer consumes per heat-pump install (about 20 working days).
const MonthsPerHeatPumpInstall = 0.65
