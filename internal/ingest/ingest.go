// Package ingest implements the two boundary interfaces this system
// treats as external collaborators: reading the household population
// seed table, and writing the line-delimited step-record stream. Kept
// deliberately thin — this is not where the simulation's semantics live.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
	"github.com/talgya/heatsim/internal/rng"
	"github.com/talgya/heatsim/internal/runner"
)

// populationColumns are the header names the population CSV must contain,
// in any order; enum columns are matched case-insensitively.
var populationColumns = []string{
	"id", "location", "property_value_gbp", "total_floor_area_m2", "is_off_gas_grid",
	"construction_year_band", "property_type", "built_form", "heating_system",
	"epc_rating", "potential_epc_rating", "occupant_type", "is_solid_wall",
	"walls_energy_efficiency", "windows_energy_efficiency", "roof_energy_efficiency",
	"is_heat_pump_suitable_archetype",
}

// ReadPopulation parses a household population CSV, constructing one
// Household per row. Each household's pre-run heating-system install
// date is sampled uniformly over the nominal system lifetime, anchored
// at simulationStart, consuming one RNG draw per row.
func ReadPopulation(r io.Reader, simulationStart time.Time, s *rng.Stream) ([]*household.Household, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: reading population header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}
	for _, want := range populationColumns {
		if _, ok := colIndex[want]; !ok {
			return nil, fmt.Errorf("ingest: population table missing required column %q", want)
		}
	}

	var households []*household.Household
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: reading population row %d: %w", rowNum, err)
		}

		h, err := parseRow(row, colIndex, simulationStart, s)
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d: %w", rowNum, err)
		}
		households = append(households, h)
		rowNum++
	}
	return households, nil
}

func parseRow(row []string, col map[string]int, simulationStart time.Time, s *rng.Stream) (*household.Household, error) {
	get := func(name string) string { return row[col[name]] }

	id, err := strconv.ParseInt(get("id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	propertyValue, err := strconv.ParseFloat(get("property_value_gbp"), 64)
	if err != nil {
		return nil, fmt.Errorf("property_value_gbp: %w", err)
	}
	floorArea, err := strconv.ParseFloat(get("total_floor_area_m2"), 64)
	if err != nil {
		return nil, fmt.Errorf("total_floor_area_m2: %w", err)
	}
	offGasGrid, err := strconv.ParseBool(get("is_off_gas_grid"))
	if err != nil {
		return nil, fmt.Errorf("is_off_gas_grid: %w", err)
	}
	yearBand, err := heating.ParseConstructionYearBand(get("construction_year_band"))
	if err != nil {
		return nil, err
	}
	propType, err := heating.ParsePropertyType(get("property_type"))
	if err != nil {
		return nil, err
	}
	builtForm, err := heating.ParseBuiltForm(get("built_form"))
	if err != nil {
		return nil, err
	}
	heatingSystem, err := heating.ParseHeatingSystem(get("heating_system"))
	if err != nil {
		return nil, err
	}
	epc, err := heating.ParseEPCRating(get("epc_rating"))
	if err != nil {
		return nil, err
	}
	potentialEPC, err := heating.ParseEPCRating(get("potential_epc_rating"))
	if err != nil {
		return nil, err
	}
	if epc > potentialEPC {
		return nil, fmt.Errorf("epc_rating %s exceeds potential_epc_rating %s", epc, potentialEPC)
	}
	occupant, err := heating.ParseOccupantType(get("occupant_type"))
	if err != nil {
		return nil, err
	}
	solidWall, err := strconv.ParseBool(get("is_solid_wall"))
	if err != nil {
		return nil, fmt.Errorf("is_solid_wall: %w", err)
	}
	wallsEff, err := parseNullableInt(get("walls_energy_efficiency"))
	if err != nil {
		return nil, fmt.Errorf("walls_energy_efficiency: %w", err)
	}
	windowsEff, err := parseNullableInt(get("windows_energy_efficiency"))
	if err != nil {
		return nil, fmt.Errorf("windows_energy_efficiency: %w", err)
	}
	roofEff, err := parseNullableInt(get("roof_energy_efficiency"))
	if err != nil {
		return nil, fmt.Errorf("roof_energy_efficiency: %w", err)
	}
	suitableArchetype, err := strconv.ParseBool(get("is_heat_pump_suitable_archetype"))
	if err != nil {
		return nil, fmt.Errorf("is_heat_pump_suitable_archetype: %w", err)
	}

	installDate := household.SampleInstallDate(s, simulationStart)

	return household.New(id, get("location"), propertyValue, floorArea, offGasGrid,
		yearBand, propType, builtForm, heatingSystem, installDate, epc, potentialEPC,
		occupant, solidWall, wallsEff, windowsEff, roofEff, suitableArchetype), nil
}

// parseNullableInt treats an empty string as "not applicable" (score 5,
// i.e. already at the cap).
func parseNullableInt(s string) (int, error) {
	if s == "" {
		return 5, nil
	}
	return strconv.Atoi(s)
}

// WriteJSONLines writes one JSON array `[agent_records, model_record]`
// per step to w, newline-delimited.
func WriteJSONLines(w io.Writer, records <-chan runner.StepRecord) error {
	enc := json.NewEncoder(w)
	for rec := range records {
		line := [2]any{rec.AgentRecords, rec.ModelRecord}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("ingest: writing step %d: %w", rec.Step, err)
		}
	}
	return nil
}
