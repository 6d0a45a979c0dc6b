// Package collectors implements the projection functions that turn
// household and model state into the values logged at each step. Each
// collector is a named, pure function; a collector may return "absent"
// (ok=false), in which case the runner omits its key from the emitted
// record entirely rather than writing a null.
package collectors

import (
	"time"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
)

// Model is the subset of model state collectors read.
type Model interface {
	CurrentDatetime() time.Time
	StartDatetime() time.Time
	StepIntervalMonths() int
	BoilerUpgradeSchemeCumulativeSpendGBP() float64
	FuelPriceGBPPerKWh(fuel heating.HeatingFuel) float64
	InstallerCount() int
	InstallationsPerStepCapacity() float64
	HeatPumpInstallationsAtCurrentStep() int
	AwarenessAwareCountAtCurrentStep() int
}

// Value is the logged value for one collector key at one step; present
// is false when the collector is gated off (e.g. a first-step-only
// collector on a later step) and the runner should omit the key.
type Value struct {
	Present bool
	Data    any
}

func present(v any) Value { return Value{Present: true, Data: v} }

var absent = Value{Present: false}

// AgentCollector is a named projection from a household (plus read-only
// model context) to a logged value.
type AgentCollector struct {
	Name string
	Fn   func(h *household.Household, m Model) Value
}

// ModelCollector is a named projection from the model to a logged value.
type ModelCollector struct {
	Name string
	Fn   func(m Model) Value
}

// IsFirstTimestep mirrors the source system's predicate: true exactly
// when the current datetime is one step past the start datetime.
func IsFirstTimestep(m Model) bool {
	return m.CurrentDatetime().Equal(firstStepDatetime(m))
}

func firstStepDatetime(m Model) time.Time {
	return m.StartDatetime().AddDate(0, m.StepIntervalMonths(), 0)
}

// FirstStepOnly wraps an AgentCollector so it only fires on the first
// timestep; every later step reports it absent.
func FirstStepOnly(c AgentCollector) AgentCollector {
	inner := c.Fn
	c.Fn = func(h *household.Household, m Model) Value {
		if !IsFirstTimestep(m) {
			return absent
		}
		return inner(h, m)
	}
	return c
}

// FirstStepOnlyModel wraps a ModelCollector so it only fires on the first
// timestep.
func FirstStepOnlyModel(c ModelCollector) ModelCollector {
	inner := c.Fn
	c.Fn = func(m Model) Value {
		if !IsFirstTimestep(m) {
			return absent
		}
		return inner(m)
	}
	return c
}

func agent(name string, fn func(h *household.Household, m Model) Value) AgentCollector {
	return AgentCollector{Name: name, Fn: fn}
}

func modelC(name string, fn func(m Model) Value) ModelCollector {
	return ModelCollector{Name: name, Fn: fn}
}

// AgentCollectors returns every per-household collector: always-on
// attributes and outcomes, plus the static first-step-only attributes.
func AgentCollectors() []AgentCollector {
	always := []AgentCollector{
		agent("household_id", func(h *household.Household, m Model) Value { return present(h.ID) }),
		agent("household_heating_system", func(h *household.Household, m Model) Value { return present(h.HeatingSystem.String()) }),
		agent("household_heating_system_previous", func(h *household.Household, m Model) Value {
			if h.HeatingSystemPrevious == nil {
				return absent
			}
			return present(h.HeatingSystemPrevious.String())
		}),
		agent("household_heating_functioning", func(h *household.Household, m Model) Value { return present(h.HeatingFunctioning) }),
		agent("household_heating_install_date", func(h *household.Household, m Model) Value {
			return present(h.HeatingSystemInstallDate.Format("2006-01-02"))
		}),
		agent("household_epc_rating", func(h *household.Household, m Model) Value { return present(h.EPCRating.String()) }),
		agent("household_potential_epc_rating", func(h *household.Household, m Model) Value { return present(h.PotentialEPCRating.String()) }),
		agent("household_is_heat_pump_aware", func(h *household.Household, m Model) Value { return present(h.IsHeatPumpAware) }),
		agent("household_is_renovating", func(h *household.Household, m Model) Value { return present(h.IsRenovating) }),
		agent("household_is_renovating_insulation", func(h *household.Household, m Model) Value { return present(h.Decisions.IsRenovatingInsulation) }),
		agent("household_is_renovating_heating_system", func(h *household.Household, m Model) Value { return present(h.Decisions.IsRenovatingHeatingSys) }),
		agent("household_wealth_percentile", func(h *household.Household, m Model) Value { return present(h.WealthPercentile()) }),
		agent("household_discount_rate", func(h *household.Household, m Model) Value { return present(h.DiscountRate()) }),
		agent("household_renovation_budget", func(h *household.Household, m Model) Value { return present(int(h.RenovationBudget())) }),
		agent("household_is_heat_pump_suitable", func(h *household.Household, m Model) Value { return present(h.IsHeatPumpSuitable()) }),
		agent("household_annual_kwh_heating_demand", func(h *household.Household, m Model) Value {
			return present(int(h.AnnualKwhHeatingDemand(h.HeatingSystem)))
		}),
		agent("household_boiler_upgrade_grant_used", func(h *household.Household, m Model) Value {
			return present(h.Decisions.BoilerUpgradeGrantUsed)
		}),
	}

	for _, e := range heating.AllElements {
		e := e
		always = append(always, agent("household_element_upgrade_cost_"+elementKey(e), func(h *household.Household, m Model) Value {
			cost, ok := h.Decisions.ElementCosts[e]
			if !ok {
				return present(0)
			}
			return present(cost)
		}))
	}

	for _, sys := range heating.AllHeatingSystems {
		sys := sys
		suffix := systemKey(sys)
		always = append(always,
			agent("household_heating_system_costs_unit_and_install_"+suffix, func(h *household.Household, m Model) Value {
				return candidateCostField(h, sys, func(v household.CostVector) float64 { return v.UnitAndInstallGBP })
			}),
			agent("household_heating_system_costs_fuel_"+suffix, func(h *household.Household, m Model) Value {
				return candidateCostField(h, sys, func(v household.CostVector) float64 { return v.FuelNPVGBP })
			}),
			agent("household_heating_system_costs_subsidies_"+suffix, func(h *household.Household, m Model) Value {
				return candidateCostField(h, sys, func(v household.CostVector) float64 { return v.SubsidyGBP })
			}),
			agent("household_heating_system_costs_insulation_"+suffix, func(h *household.Household, m Model) Value {
				return candidateCostField(h, sys, func(v household.CostVector) float64 { return v.InsulationGBP })
			}),
		)
	}

	firstStep := []AgentCollector{
		agent("household_location", func(h *household.Household, m Model) Value { return present(h.Location) }),
		agent("household_property_value_gbp", func(h *household.Household, m Model) Value { return present(h.PropertyValueGBP) }),
		agent("household_floor_area_sqm", func(h *household.Household, m Model) Value { return present(h.TotalFloorAreaM2) }),
		agent("household_is_off_gas_grid", func(h *household.Household, m Model) Value { return present(h.IsOffGasGrid) }),
		agent("household_construction_year_band", func(h *household.Household, m Model) Value { return present(h.ConstructionYearBand.String()) }),
		agent("household_property_type", func(h *household.Household, m Model) Value { return present(h.PropertyType.String()) }),
		agent("household_built_form", func(h *household.Household, m Model) Value { return present(h.BuiltForm.String()) }),
		agent("household_occupant_type", func(h *household.Household, m Model) Value { return present(h.OccupantType.String()) }),
		agent("household_is_solid_wall", func(h *household.Household, m Model) Value { return present(h.IsSolidWall) }),
		agent("household_walls_energy_efficiency", func(h *household.Household, m Model) Value { return present(h.WallsEfficiency) }),
		agent("household_windows_energy_efficiency", func(h *household.Household, m Model) Value { return present(h.GlazingEfficiency) }),
		agent("household_roof_energy_efficiency", func(h *household.Household, m Model) Value { return present(h.RoofEfficiency) }),
		agent("household_is_heat_pump_suitable_archetype", func(h *household.Household, m Model) Value { return present(h.IsHeatPumpSuitableArchetype) }),
	}

	out := always
	for _, c := range firstStep {
		out = append(out, FirstStepOnly(c))
	}
	return out
}

func candidateCostField(h *household.Household, sys heating.HeatingSystem, field func(household.CostVector) float64) Value {
	v, ok := h.Decisions.CandidateCosts[sys]
	if !ok {
		return absent
	}
	return present(field(v))
}

// ModelCollectors returns every model-level collector: always-on
// aggregates plus the first-step-only static parameters.
func ModelCollectors() []ModelCollector {
	always := []ModelCollector{
		modelC("model_current_datetime", func(m Model) Value { return present(m.CurrentDatetime().Format(time.RFC3339)) }),
		modelC("model_boiler_upgrade_scheme_cumulative_spend_gbp", func(m Model) Value {
			return present(m.BoilerUpgradeSchemeCumulativeSpendGBP())
		}),
		modelC("model_heat_pump_installers", func(m Model) Value { return present(m.InstallerCount()) }),
		modelC("model_heat_pump_installation_capacity_per_step", func(m Model) Value {
			return present(m.InstallationsPerStepCapacity())
		}),
		modelC("model_heat_pump_installations_at_current_step", func(m Model) Value {
			return present(m.HeatPumpInstallationsAtCurrentStep())
		}),
		modelC("model_heat_pump_awareness_at_timestep", func(m Model) Value {
			return present(m.AwarenessAwareCountAtCurrentStep())
		}),
	}

	firstStep := []ModelCollector{
		modelC("model_price_gbp_per_kwh_gas", func(m Model) Value { return present(m.FuelPriceGBPPerKWh(heating.FuelGas)) }),
		modelC("model_price_gbp_per_kwh_oil", func(m Model) Value { return present(m.FuelPriceGBPPerKWh(heating.FuelOil)) }),
		modelC("model_price_gbp_per_kwh_electricity", func(m Model) Value {
			return present(m.FuelPriceGBPPerKWh(heating.FuelElectricity))
		}),
	}

	out := always
	for _, c := range firstStep {
		out = append(out, FirstStepOnlyModel(c))
	}
	return out
}

func elementKey(e heating.Element) string {
	switch e {
	case heating.ElementRoof:
		return "roof"
	case heating.ElementWalls:
		return "walls"
	case heating.ElementGlazing:
		return "windows"
	default:
		return "unknown"
	}
}

func systemKey(h heating.HeatingSystem) string {
	switch h {
	case heating.BoilerGas:
		return "boiler_gas"
	case heating.BoilerOil:
		return "boiler_oil"
	case heating.BoilerElectric:
		return "boiler_electric"
	case heating.HeatPumpAirSource:
		return "heat_pump_air_source"
	case heating.HeatPumpGroundSource:
		return "heat_pump_ground_source"
	default:
		return "unknown"
	}
}
