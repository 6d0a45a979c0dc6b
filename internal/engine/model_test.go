package engine

import (
	"testing"
	"time"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
)

func baseConfig() Config {
	return Config{
		StartDatetime:         time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		StepIntervalMonths:    1,
		AnnualRenovationRate:  0.05,
		LookaheadYears:        3,
		HassleFactor:          0.3,
		HassleFactorRented:    0.1,
		FuelPricesGBPPerKWh: map[heating.HeatingFuel]float64{
			heating.FuelGas:         0.07,
			heating.FuelElectricity: 0.28,
			heating.FuelOil:         0.09,
		},
		InstallerBaseCount:    1000,
		InstallerAnnualGrowth: 0.1,
		ReferencePopulation:   100,
	}
}

func newHouseholds(n int) []*household.Household {
	out := make([]*household.Household, n)
	for i := 0; i < n; i++ {
		out[i] = household.New(int64(i), "E09000001", 300_000, 90, false,
			heating.Post2007, heating.House, heating.SemiDetached,
			heating.BoilerGas, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
			heating.EPCd, heating.EPCb, heating.OwnerOccupied, false,
			3, 3, 3, true)
	}
	return out
}

func TestIncrementTimestepAdvancesByConfiguredMonths(t *testing.T) {
	cfg := baseConfig()
	cfg.StepIntervalMonths = 3
	m := NewModel(cfg, newHouseholds(5), 1)
	before := m.CurrentDatetime()
	m.IncrementTimestep()
	want := before.AddDate(0, 3, 0)
	if !m.CurrentDatetime().Equal(want) {
		t.Errorf("CurrentDatetime after increment = %v, want %v", m.CurrentDatetime(), want)
	}
}

func TestIncrementTimestepResetsPerStepCounters(t *testing.T) {
	cfg := baseConfig()
	m := NewModel(cfg, newHouseholds(5), 1)
	m.RecordHeatPumpInstallation()
	m.RecordHeatPumpInstallation()
	if m.HeatPumpInstallationsAtCurrentStep() != 2 {
		t.Fatalf("expected 2 recorded installations before increment")
	}
	m.IncrementTimestep()
	if m.HeatPumpInstallationsAtCurrentStep() != 0 {
		t.Errorf("HeatPumpInstallationsAtCurrentStep after increment = %d, want 0", m.HeatPumpInstallationsAtCurrentStep())
	}
}

func TestGasOilBoilerBanAnnouncedBeforeInForce(t *testing.T) {
	cfg := baseConfig()
	cfg.Interventions = []heating.InterventionType{heating.GasOilBoilerBan}
	cfg.GasOilBoilerBanAnnounceDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.GasOilBoilerBanDate = time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewModel(cfg, newHouseholds(1), 1)

	m.currentDatetime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !m.GasOilBoilerBanAnnounced() {
		t.Error("ban should be announced once past the announce date")
	}
	if m.GasOilBoilerBanInForce() {
		t.Error("ban should not be in force before the ban date")
	}

	m.currentDatetime = time.Date(2036, 1, 1, 0, 0, 0, 0, time.UTC)
	if !m.GasOilBoilerBanInForce() {
		t.Error("ban should be in force once past the ban date")
	}
}

func TestPermittedHeatingSystemsExcludesGasOilOnceBanInForce(t *testing.T) {
	cfg := baseConfig()
	cfg.Interventions = []heating.InterventionType{heating.GasOilBoilerBan}
	cfg.GasOilBoilerBanAnnounceDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.GasOilBoilerBanDate = time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	m := NewModel(cfg, newHouseholds(1), 1)
	m.currentDatetime = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	permitted := m.PermittedHeatingSystems()
	if permitted[heating.BoilerGas] || permitted[heating.BoilerOil] {
		t.Errorf("gas/oil boilers should be excluded once the ban is in force: %v", permitted)
	}
	if !permitted[heating.HeatPumpAirSource] {
		t.Error("heat pumps should remain permitted")
	}
}

func TestAirSourceHeatPumpDiscountFactorRampsAcross2022(t *testing.T) {
	cfg := baseConfig()
	cfg.AirSourceDiscountFactor2022 = 0.6
	m := NewModel(cfg, newHouseholds(1), 1)

	m.currentDatetime = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := m.AirSourceHeatPumpDiscountFactor(); got != 1 {
		t.Errorf("before 2022, discount factor = %v, want 1", got)
	}

	m.currentDatetime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	if got, want := m.AirSourceHeatPumpDiscountFactor(), 1-0.6; got != want {
		t.Errorf("after 2022, discount factor = %v, want %v", got, want)
	}
}

func TestHeatPumpPriceDiscountFactorLooksUpMostRecentEntry(t *testing.T) {
	cfg := baseConfig()
	cfg.HeatPumpPriceDiscountSchedule = []ScheduleEntry{
		{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Value: 0.8},
		{Date: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Value: 0.5},
	}
	m := NewModel(cfg, newHouseholds(1), 1)

	m.currentDatetime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := m.HeatPumpPriceDiscountFactor(); got != 1 {
		t.Errorf("before the first entry, factor = %v, want the injected default of 1", got)
	}

	m.currentDatetime = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := m.HeatPumpPriceDiscountFactor(); got != 0.8 {
		t.Errorf("between entries, factor = %v, want 0.8", got)
	}

	m.currentDatetime = time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := m.HeatPumpPriceDiscountFactor(); got != 0.5 {
		t.Errorf("past the last entry, factor = %v, want 0.5", got)
	}
}

func TestInstallerCountNeverBelowOne(t *testing.T) {
	cfg := baseConfig()
	cfg.InstallerBaseCount = 0
	cfg.InstallerAnnualGrowth = 0
	m := NewModel(cfg, newHouseholds(10), 1)
	if m.InstallerCount() < 1 {
		t.Errorf("InstallerCount must never fall below 1, got %d", m.InstallerCount())
	}
}

func TestInstallerCountCappedByHouseholdsPerInstallerFloor(t *testing.T) {
	cfg := baseConfig()
	cfg.InstallerBaseCount = 1_000_000
	cfg.InstallerAnnualGrowth = 0
	cfg.ReferencePopulation = 3
	m := NewModel(cfg, newHouseholds(3), 1)
	// With only 3 households, installer count cannot exceed what the
	// households-per-installer floor allows.
	if float64(m.InstallerCount()) > 3 {
		t.Errorf("InstallerCount %d exceeds what 3 households can support", m.InstallerCount())
	}
}

func TestHasHeatPumpCapacityFalseOnceExhausted(t *testing.T) {
	cfg := baseConfig()
	cfg.InstallerBaseCount = 1
	cfg.InstallerAnnualGrowth = 0
	cfg.ReferencePopulation = 1_000_000
	m := NewModel(cfg, newHouseholds(1), 1)
	if !m.HasHeatPumpCapacity() {
		t.Fatal("expected capacity to exist before any installation is recorded")
	}
	for i := 0; i < 1000 && m.HasHeatPumpCapacity(); i++ {
		m.RecordHeatPumpInstallation()
	}
	if m.HasHeatPumpCapacity() {
		t.Error("capacity should run out once enough installations are recorded")
	}
}

func TestNewBuildSlotsZeroBefore2025(t *testing.T) {
	cfg := baseConfig()
	cfg.AnnualNewBuilds = map[int]int{2024: 1000, 2025: 1000}
	m := NewModel(cfg, newHouseholds(1), 1)
	m.currentDatetime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := m.NewBuildSlots(); got != 0 {
		t.Errorf("NewBuildSlots before 2025 = %v, want 0", got)
	}
	m.currentDatetime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := m.NewBuildSlots(); got <= 0 {
		t.Errorf("NewBuildSlots in 2025 with a configured count = %v, want > 0", got)
	}
}

func TestApplyAwarenessCampaignNeverRegresses(t *testing.T) {
	cfg := baseConfig()
	cfg.Interventions = []heating.InterventionType{heating.HeatPumpCampaign}
	cfg.AwarenessCampaignSchedule = []ScheduleEntry{
		{Date: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), Value: 0.5},
	}
	households := newHouseholds(10)
	for _, h := range households {
		h.IsHeatPumpAware = true
	}
	m := NewModel(cfg, households, 1)
	m.currentDatetime = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	m.applyAwarenessCampaign()
	for _, h := range households {
		if !h.IsHeatPumpAware {
			t.Error("awareness must never regress once true")
		}
	}
}

func TestApplyAwarenessCampaignRaisesAwareCountTowardTarget(t *testing.T) {
	cfg := baseConfig()
	cfg.Interventions = []heating.InterventionType{heating.HeatPumpCampaign}
	cfg.AwarenessCampaignSchedule = []ScheduleEntry{
		{Date: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), Value: 1.0},
	}
	households := newHouseholds(20)
	m := NewModel(cfg, households, 1)
	m.currentDatetime = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	m.applyAwarenessCampaign()

	awareCount := 0
	for _, h := range households {
		if h.IsHeatPumpAware {
			awareCount++
		}
	}
	if awareCount != 20 {
		t.Errorf("expected all 20 households to become aware at a 100%% target, got %d", awareCount)
	}
}

func TestValidateRejectsAnnounceDateAfterBanDate(t *testing.T) {
	cfg := baseConfig()
	cfg.GasOilBoilerBanAnnounceDate = time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.GasOilBoilerBanDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when the announce date is after the ban date")
	}
}

func TestValidateRejectsNonMonotoneAwarenessSchedule(t *testing.T) {
	cfg := baseConfig()
	cfg.AwarenessCampaignSchedule = []ScheduleEntry{
		{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Value: 0.8},
		{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Value: 0.3},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a non-monotone awareness schedule")
	}
}

func TestValidateRejectsZeroLookaheadYears(t *testing.T) {
	cfg := baseConfig()
	cfg.LookaheadYears = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when lookahead years is zero")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.GasOilBoilerBanAnnounceDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.GasOilBoilerBanDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error for a well-formed config: %v", err)
	}
}
