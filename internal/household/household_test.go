package household

import (
	"testing"
	"time"

	"github.com/talgya/heatsim/internal/heating"
)

func newTestHousehold(t *testing.T, propertyValue float64) *Household {
	t.Helper()
	return New(1, "E09000001", propertyValue, 90, false,
		heating.Post2007, heating.House, heating.SemiDetached,
		heating.BoilerGas, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		heating.EPCd, heating.EPCb, heating.OwnerOccupied, false,
		3, 3, 3, true)
}

func TestDiscountRateMonotoneNonIncreasingInPropertyValue(t *testing.T) {
	low := newTestHousehold(t, 100_000)
	high := newTestHousehold(t, 900_000)
	if high.DiscountRate() > low.DiscountRate() {
		t.Errorf("discount_rate not monotone non-increasing: low=%v (pv=100k) high=%v (pv=900k)",
			low.DiscountRate(), high.DiscountRate())
	}
}

func TestRenovationBudgetMonotoneNonDecreasingInPropertyValue(t *testing.T) {
	low := newTestHousehold(t, 100_000)
	high := newTestHousehold(t, 900_000)
	if high.RenovationBudget() < low.RenovationBudget() {
		t.Errorf("renovation_budget not monotone non-decreasing: low=%v high=%v",
			low.RenovationBudget(), high.RenovationBudget())
	}
}

func TestWealthPercentileInUnitInterval(t *testing.T) {
	for _, pv := range []float64{0, 10_000, 280_000, 5_000_000} {
		h := newTestHousehold(t, pv)
		if h.WealthPercentile() < 0 || h.WealthPercentile() > 1 {
			t.Errorf("wealth percentile out of [0,1] for property value %v: %v", pv, h.WealthPercentile())
		}
	}
}

func TestRenovationBudgetNeverExceedsNinetyPercentOfPropertyValue(t *testing.T) {
	h := newTestHousehold(t, 1_000_000)
	if h.RenovationBudget() > 0.9*h.PropertyValueGBP {
		t.Errorf("renovation budget %v exceeds 90%% of property value %v", h.RenovationBudget(), h.PropertyValueGBP)
	}
}

func TestRentedOccupantsHaveZeroFuelBill(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	h.OccupantType = heating.RentedPrivate
	if bill := h.AnnualHeatingFuelBill(heating.BoilerGas, 0.07); bill != 0 {
		t.Errorf("rented household fuel bill = %v, want 0", bill)
	}
}

func TestOwnerOccupierFuelBillIsPositive(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	if bill := h.AnnualHeatingFuelBill(heating.BoilerGas, 0.07); bill <= 0 {
		t.Errorf("owner-occupier fuel bill = %v, want > 0", bill)
	}
}

func TestPropertySizeThresholds(t *testing.T) {
	cases := []struct {
		area float64
		want heating.PropertySize
	}{
		{50, heating.Small},
		{70, heating.Small},
		{90, heating.Medium},
		{110, heating.Medium},
		{200, heating.Large},
	}
	for _, c := range cases {
		h := newTestHousehold(t, 300_000)
		h.TotalFloorAreaM2 = c.area
		if got := h.PropertySize(); got != c.want {
			t.Errorf("PropertySize(%v m2) = %v, want %v", c.area, got, c.want)
		}
	}
}

func TestIsHeatPumpSuitableRequiresArchetypeAndReachableEPC(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	h.IsHeatPumpSuitableArchetype = true
	h.PotentialEPCRating = heating.EPCc
	if !h.IsHeatPumpSuitable() {
		t.Error("expected suitable with archetype=true and potential EPC=C")
	}
	h.PotentialEPCRating = heating.EPCd
	if h.IsHeatPumpSuitable() {
		t.Error("expected unsuitable when potential EPC is below C")
	}
	h.PotentialEPCRating = heating.EPCb
	h.IsHeatPumpSuitableArchetype = false
	if h.IsHeatPumpSuitable() {
		t.Error("expected unsuitable when archetype marker is false regardless of EPC")
	}
}

func TestInstallElementRaisesEPCByOneGradeCappedAtPotential(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	h.EPCRating = heating.EPCd
	h.PotentialEPCRating = heating.EPCd
	h.WallsEfficiency = 2
	h.InstallElement(heating.ElementWalls)
	if h.WallsEfficiency != 5 {
		t.Errorf("WallsEfficiency after install = %d, want 5", h.WallsEfficiency)
	}
	if h.EPCRating != heating.EPCd {
		t.Errorf("EPC rating should not exceed potential: got %v, want %v", h.EPCRating, heating.EPCd)
	}
}

func TestInstallElementNeverExceedsGradeA(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	h.EPCRating = heating.EPCa
	h.PotentialEPCRating = heating.EPCa
	h.InstallElement(heating.ElementRoof)
	if h.EPCRating != heating.EPCa {
		t.Errorf("EPC rating = %v, want to stay at EPCa", h.EPCRating)
	}
}

func TestInstallHeatingSystemRecordsPreviousAndResetsFunctioning(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	h.HeatingFunctioning = false
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	h.InstallHeatingSystem(heating.HeatPumpAirSource, now)
	if h.HeatingSystem != heating.HeatPumpAirSource {
		t.Errorf("HeatingSystem = %v, want HeatPumpAirSource", h.HeatingSystem)
	}
	if h.HeatingSystemPrevious == nil || *h.HeatingSystemPrevious != heating.BoilerGas {
		t.Errorf("HeatingSystemPrevious = %v, want BoilerGas", h.HeatingSystemPrevious)
	}
	if !h.HeatingFunctioning {
		t.Error("HeatingFunctioning must be true immediately after a successful install")
	}
	if !h.HeatingSystemInstallDate.Equal(now) {
		t.Errorf("HeatingSystemInstallDate = %v, want %v", h.HeatingSystemInstallDate, now)
	}
}

func TestElementEfficiencyFlatRoofAlwaysAtCap(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	h.PropertyType = heating.Flat
	h.RoofEfficiency = 1
	if got := h.ElementEfficiency(heating.ElementRoof); got != 5 {
		t.Errorf("flat roof efficiency = %d, want 5", got)
	}
}

func TestElementEfficiencyPanicsOnUnknownElement(t *testing.T) {
	h := newTestHousehold(t, 300_000)
	defer func() {
		if r := recover(); r == nil {
			t.Error("ElementEfficiency did not panic for an element outside the closed enum")
		}
	}()
	h.ElementEfficiency(heating.Element(99))
}

func TestComputeHeatPumpCapacityKWRespectsBounds(t *testing.T) {
	if kw := ComputeHeatPumpCapacityKW(1, heating.HeatPumpAirSource); kw < 4 {
		t.Errorf("tiny floor area should clamp to the minimum capacity, got %d", kw)
	}
	if kw := ComputeHeatPumpCapacityKW(10_000, heating.HeatPumpAirSource); kw > 20 {
		t.Errorf("huge floor area should clamp to the maximum capacity, got %d", kw)
	}
}
