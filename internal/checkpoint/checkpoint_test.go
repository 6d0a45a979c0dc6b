package checkpoint

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talgya/heatsim/internal/engine"
	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
	"github.com/talgya/heatsim/internal/rng"
	"github.com/talgya/heatsim/internal/runner"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestHousehold(id int64) *household.Household {
	return household.New(id, "E09000001", 300_000, 90, false,
		heating.Post2007, heating.House, heating.SemiDetached,
		heating.BoilerGas, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		heating.EPCd, heating.EPCb, heating.OwnerOccupied, false,
		3, 3, 3, true)
}

func testRunState(step int, now time.Time, spend float64) RunState {
	return RunState{
		Step:                                   step,
		CurrentDatetime:                        now,
		BoilerUpgradeSchemeCumulativeSpendGBP:  spend,
		RNGSeed:                                99,
		RNGDrawCount:                           42,
		WarnedEmptyCandidateSet:                true,
	}
}

func TestSaveStepThenLoadRunRoundTrips(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	households := []*household.Household{newTestHousehold(1), newTestHousehold(2)}

	require.NoError(t, db.SaveStep("run-a", testRunState(3, now, 12345.67), households))

	state, err := db.LoadRun("run-a")
	require.NoError(t, err)
	require.Equal(t, 3, state.Step)
	require.True(t, state.CurrentDatetime.Equal(now))
	require.Equal(t, 12345.67, state.BoilerUpgradeSchemeCumulativeSpendGBP)
	require.Equal(t, int64(99), state.RNGSeed)
	require.Equal(t, int64(42), state.RNGDrawCount)
	require.True(t, state.WarnedEmptyCandidateSet)
}

func TestSaveStepUpsertsOnRepeatedCalls(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	households := []*household.Household{newTestHousehold(1)}

	require.NoError(t, db.SaveStep("run-a", testRunState(1, now, 100), households))
	require.NoError(t, db.SaveStep("run-a", testRunState(2, now.AddDate(0, 1, 0), 200), households))

	state, err := db.LoadRun("run-a")
	require.NoError(t, err)
	require.Equal(t, 2, state.Step)
	require.Equal(t, 200.0, state.BoilerUpgradeSchemeCumulativeSpendGBP)
}

func TestApplyToRestoresHouseholdFieldsByID(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	saved := newTestHousehold(7)
	saved.HeatingSystem = heating.HeatPumpAirSource
	prior := heating.BoilerGas
	saved.HeatingSystemPrevious = &prior
	saved.HeatingFunctioning = false
	saved.EPCRating = heating.EPCb
	saved.IsHeatPumpAware = true

	require.NoError(t, db.SaveStep("run-b", testRunState(1, now, 0), []*household.Household{saved}))

	fresh := newTestHousehold(7)
	require.NoError(t, db.ApplyTo("run-b", []*household.Household{fresh}))

	require.Equal(t, heating.HeatPumpAirSource, fresh.HeatingSystem)
	require.NotNil(t, fresh.HeatingSystemPrevious)
	require.Equal(t, heating.BoilerGas, *fresh.HeatingSystemPrevious)
	require.False(t, fresh.HeatingFunctioning)
	require.Equal(t, heating.EPCb, fresh.EPCRating)
	require.True(t, fresh.IsHeatPumpAware)
}

func TestApplyToIgnoresUnknownHouseholdIDs(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveStep("run-c", testRunState(1, now, 0), []*household.Household{newTestHousehold(99)}))

	fresh := newTestHousehold(1)
	require.NoError(t, db.ApplyTo("run-c", []*household.Household{fresh}))
	require.Equal(t, heating.BoilerGas, fresh.HeatingSystem, "household with no matching checkpoint row should be left untouched")
}

func TestApplyToHandlesNilHeatingSystemPrevious(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	saved := newTestHousehold(3)
	saved.HeatingSystemPrevious = nil
	require.NoError(t, db.SaveStep("run-d", testRunState(1, now, 0), []*household.Household{saved}))

	fresh := newTestHousehold(3)
	require.NoError(t, db.ApplyTo("run-d", []*household.Household{fresh}))
	require.Nil(t, fresh.HeatingSystemPrevious)
}

func testEngineConfig() engine.Config {
	return engine.Config{
		StartDatetime:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		StepIntervalMonths:   1,
		AnnualRenovationRate: 0.05,
		LookaheadYears:       3,
		HassleFactor:         0.3,
		HassleFactorRented:   0.1,
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

func testPopulation(n int) []*household.Household {
	out := make([]*household.Household, n)
	for i := 0; i < n; i++ {
		out[i] = newTestHousehold(int64(i))
	}
	return out
}

// drainStep runs a Runner for n steps, saving a checkpoint after every
// step, and returns the last StepRecord observed.
func drainStep(t *testing.T, r *runner.Runner, db *DB, n int) runner.StepRecord {
	t.Helper()
	var last runner.StepRecord
	for rec := range r.Run(t.Context(), n) {
		last = rec
		state := RunState{
			Step:                                   rec.Step,
			CurrentDatetime:                        r.Model.CurrentDatetime(),
			BoilerUpgradeSchemeCumulativeSpendGBP:  r.Model.BoilerUpgradeSchemeCumulativeSpendGBP(),
			RNGSeed:                                r.Model.Rand().Seed(),
			RNGDrawCount:                           r.Model.Rand().DrawCount(),
			WarnedEmptyCandidateSet:                r.Model.WarnedEmptyCandidateSet(),
		}
		require.NoError(t, db.SaveStep(r.RunID.String(), state, r.Model.Households()))
	}
	return last
}

// TestResumeAtStepBoundaryMatchesRunningStraightThrough exercises the
// invariant a checkpoint resume exists to satisfy: running N steps, saving,
// reloading into a fresh model, then running M more must reach the same
// state as running N+M steps in one shot.
func TestResumeAtStepBoundaryMatchesRunningStraightThrough(t *testing.T) {
	const seed = 4242
	const n, m = 3, 2

	straight := engine.NewModel(testEngineConfig(), testPopulation(6), seed)
	straightRunner := runner.New(straight)
	straightLast := drainStep(t, straightRunner, openTestDB(t), n+m)

	db := openTestDB(t)
	firstHalf := engine.NewModel(testEngineConfig(), testPopulation(6), seed)
	firstRunner := runner.New(firstHalf)
	drainStep(t, firstRunner, db, n)

	resumedPopulation := testPopulation(6)
	require.NoError(t, db.ApplyTo(firstRunner.RunID.String(), resumedPopulation))
	state, err := db.LoadRun(firstRunner.RunID.String())
	require.NoError(t, err)

	resumed := engine.NewModel(testEngineConfig(), resumedPopulation, seed)
	resumed.RestoreRunState(state.CurrentDatetime, state.BoilerUpgradeSchemeCumulativeSpendGBP, state.WarnedEmptyCandidateSet)
	resumed.RNG = resumedRNG(state.RNGSeed, state.RNGDrawCount)

	resumedRunner := runner.Resume(resumed, firstRunner.RunID, state.Step+1)
	resumedLast := drainStep(t, resumedRunner, db, m)

	require.Equal(t, straightLast.Step, resumedLast.Step)
	require.Equal(t, fmtRecord(straightLast), fmtRecord(resumedLast))
	require.True(t, straight.CurrentDatetime().Equal(resumed.CurrentDatetime()))
	require.Equal(t, straight.BoilerUpgradeSchemeCumulativeSpendGBP(), resumed.BoilerUpgradeSchemeCumulativeSpendGBP())
	for i, h := range straight.Households() {
		require.Equal(t, h.HeatingSystem, resumed.Households()[i].HeatingSystem, "household %d heating system diverged after resume", i)
		require.Equal(t, h.EPCRating, resumed.Households()[i].EPCRating, "household %d EPC rating diverged after resume", i)
	}
}

func resumedRNG(seed, draws int64) *rng.Stream {
	return rng.Restore(seed, draws)
}

func fmtRecord(rec runner.StepRecord) string {
	return fmt.Sprintf("%v|%v", rec.AgentRecords, rec.ModelRecord)
}
