package selector

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/julianstephens/nextup/internal/models"
)

var now = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) // Monday

func task(id string, importance int) models.Task {
	t := models.NewTask(id, "task "+id)
	t.Importance = importance
	return t
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestEligibleFilter(t *testing.T) {
	later := now.Add(time.Hour)

	paused := task("paused", 3)
	paused.Paused = true
	manualOnly := task("manual-only", 3)
	manualOnly.AutoShuffleAllowed = false
	snoozed := task("snoozed", 3)
	snoozed.Status = models.StatusSnoozed
	snoozed.SnoozedUntil, snoozed.NextEligibleAt = &later, &later
	offWork := task("off-work", 3)
	offWork.Period.Kind = models.PeriodOffWork
	work := task("work", 3)
	work.Period.Kind = models.PeriodWork

	s := New(nil)
	got := ids(s.Eligible([]models.Task{paused, manualOnly, snoozed, offWork, work, task("plain", 1)}, models.DefaultSettings(), now))
	want := []string{"work", "plain"}
	if !slices.Equal(got, want) {
		t.Errorf("Eligible() = %v, want %v", got, want)
	}
}

func TestPickNextEmptyPool(t *testing.T) {
	if got := New(nil).PickNext(nil, models.DefaultSettings(), now, true); got != nil {
		t.Errorf("PickNext(nil) = %v, want nil", got)
	}
}

func TestCutInLineWins(t *testing.T) {
	low := task("low", 1)
	low.CutInLine = models.CutInLineOnce
	tasks := []models.Task{task("high", 5), task("mid", 4), low}

	for _, deterministic := range []bool{true, false} {
		got := New(nil).PickNext(tasks, models.DefaultSettings(), now, deterministic)
		if got == nil || got.ID != "low" {
			t.Errorf("PickNext(deterministic=%v) = %v, want cut-in-line task", deterministic, got)
		}
	}
}

func TestCutInLineIgnoredWhenIneligible(t *testing.T) {
	low := task("low", 1)
	low.CutInLine = models.CutInLineUntilCompletion
	low.Paused = true

	got := New(nil).PickNext([]models.Task{task("high", 5), low}, models.DefaultSettings(), now, true)
	if got == nil || got.ID != "high" {
		t.Errorf("PickNext() = %v, want high", got)
	}
}

func TestDeterministicStableUnderReordering(t *testing.T) {
	// b and c tie on score; the lower id must win regardless of order.
	tasks := []models.Task{task("a", 2), task("c", 5), task("b", 5), task("d", 1)}
	s := New(nil)
	settings := models.DefaultSettings()

	want := "b"
	for i := 0; i < 20; i++ {
		shuffled := slices.Clone(tasks)
		r := rand.New(rand.NewPCG(uint64(i), 7))
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := s.PickNext(shuffled, settings, now, true)
		if got == nil || got.ID != want {
			t.Fatalf("order %v: PickNext() = %v, want %s", ids(shuffled), got, want)
		}
	}
}

func TestSoftmax(t *testing.T) {
	got := Softmax([]float64{1, 2, 3})
	denom := math.Exp(1) + math.Exp(2) + math.Exp(3)
	for i, v := range []float64{1, 2, 3} {
		if want := math.Exp(v) / denom; math.Abs(got[i]-want) > 1e-12 {
			t.Errorf("Softmax()[%d] = %v, want %v", i, got[i], want)
		}
	}

	if got := Softmax([]float64{1000, 1001}); got == nil || math.IsNaN(got[0]) {
		t.Errorf("Softmax() with large scores = %v, want finite probabilities", got)
	}
	if got := Softmax([]float64{math.NaN(), 1}); got != nil {
		t.Errorf("Softmax() with NaN = %v, want nil", got)
	}
	if got := Softmax(nil); got != nil {
		t.Errorf("Softmax(nil) = %v, want nil", got)
	}
}

func TestSoftmaxSamplingConverges(t *testing.T) {
	scores := []float64{0.5, 1.5, 2.0, 3.0}
	probs := Softmax(scores)

	const trials = 200_000
	counts := make([]int, len(scores))
	r := rand.New(rand.NewPCG(42, 1))
	for i := 0; i < trials; i++ {
		counts[SampleIndex(probs, r.Float64())]++
	}

	for i := range scores {
		got := float64(counts[i]) / trials
		if math.Abs(got-probs[i]) > 0.01 {
			t.Errorf("index %d chosen with frequency %.4f, want %.4f", i, got, probs[i])
		}
	}
}

func TestPickNextSamplingMatchesSoftmax(t *testing.T) {
	tasks := []models.Task{task("high", 5), task("low", 2)}
	settings := models.DefaultSettings()
	settings.ImportanceWeight = 1.5
	settings.UrgencyWeight = 0
	s := New(nil, WithRand(rand.New(rand.NewPCG(7, 11))))

	ranked := s.Rank(tasks, settings, now)
	if len(ranked) != 2 {
		t.Fatalf("Rank() returned %d candidates, want 2", len(ranked))
	}
	gap := ranked[0].Score - ranked[1].Score
	want := expectedTopShare(gap)
	if want < 0.5 || want > 0.99 {
		t.Fatalf("score gap %.3f gives top share %.4f, too extreme to check sampling", gap, want)
	}

	const trials = 100_000
	top := 0
	for i := 0; i < trials; i++ {
		got := s.PickNext(tasks, settings, now, false)
		if got == nil {
			t.Fatal("PickNext() = nil with two eligible tasks")
		}
		if got.ID == ranked[0].Task.ID {
			top++
		}
	}
	if got := float64(top) / trials; math.Abs(got-want) > 0.01 {
		t.Errorf("%s chosen with frequency %.4f, want %.4f", ranked[0].Task.ID, got, want)
	}
}

// expectedTopShare integrates the softmax share of the leading task over the
// jitter added to both scores. The difference of two uniform [-0.5, 0.5)
// draws is triangular on [-1, 1].
func expectedTopShare(gap float64) float64 {
	const steps = 20_000
	width := 2.0 / steps
	var share float64
	for i := 0; i < steps; i++ {
		x := -1 + (float64(i)+0.5)*width
		share += Softmax([]float64{gap + x, 0})[0] * (1 - math.Abs(x)) * width
	}
	return share
}

func TestSampleIndexRoundoff(t *testing.T) {
	if got := SampleIndex([]float64{0.3, 0.3, 0.3}, 0.999); got != 2 {
		t.Errorf("SampleIndex() past cumulative total = %d, want last index", got)
	}
}

func TestSeed(t *testing.T) {
	date := time.Date(2024, 3, 11, 23, 59, 0, 0, time.UTC)
	if got := Seed(date, ""); got != 20240311 {
		t.Errorf("Seed(date, \"\") = %d, want 20240311", got)
	}

	h := fnv.New32a()
	h.Write([]byte("task-1"))
	want := int64(20240311)*1_000_003 ^ int64(h.Sum32())
	if got := Seed(date, "task-1"); got != want {
		t.Errorf("Seed(date, task-1) = %d, want %d", got, want)
	}

	if Seed(date, "task-1") == Seed(date.AddDate(0, 0, 1), "task-1") {
		t.Error("Seed() is identical across days")
	}
}

func TestStableRandomnessIsReproducible(t *testing.T) {
	tasks := []models.Task{task("a", 3), task("b", 3), task("c", 3), task("d", 3)}
	settings := models.DefaultSettings()
	settings.StableRandomnessPerDay = true
	settings.ImportanceWeight = 0
	settings.UrgencyWeight = 0

	run := func() []string {
		s := New(nil)
		var picks []string
		for i := 0; i < 10; i++ {
			picks = append(picks, s.PickNext(tasks, settings, now, false).ID)
		}
		return picks
	}

	first, second := run(), run()
	if !slices.Equal(first, second) {
		t.Errorf("day-stable picks differ across runs: %v vs %v", first, second)
	}
}

func TestTaskJitterRange(t *testing.T) {
	for _, id := range []string{"a", "b", "task-1", "00000000-0000-0000-0000-000000000000"} {
		j := taskJitter(now, id)
		if j < -0.5 || j >= 0.5 {
			t.Errorf("taskJitter(%s) = %v, want within [-0.5, 0.5)", id, j)
		}
		if j != taskJitter(now, id) {
			t.Errorf("taskJitter(%s) is not stable", id)
		}
	}
}

func TestManualPool(t *testing.T) {
	manualOnly := task("manual-only", 3)
	manualOnly.AutoShuffleAllowed = false
	manualOnly.Period = models.PeriodRef{Kind: models.PeriodWork, CustomStart: "06:00", CustomEnd: "07:00"}

	settings := models.DefaultSettings()
	settings.ManualShuffleRespectsPeriod = false

	pool := ManualPool([]models.Task{manualOnly}, settings)
	if !pool[0].AutoShuffleAllowed {
		t.Error("ManualPool() did not force auto-shuffle on")
	}
	if pool[0].Period.Kind != models.PeriodAny || pool[0].Period.CustomStart != "" {
		t.Errorf("ManualPool() period = %+v, want relaxed to any", pool[0].Period)
	}
	if manualOnly.AutoShuffleAllowed || manualOnly.Period.Kind != models.PeriodWork {
		t.Error("ManualPool() modified the original task")
	}

	settings.ManualShuffleRespectsPeriod = true
	if pool := ManualPool([]models.Task{manualOnly}, settings); pool[0].Period.Kind != models.PeriodWork {
		t.Errorf("ManualPool() period = %+v, want preserved", pool[0].Period)
	}
}

func TestPickManualReturnsOriginal(t *testing.T) {
	manualOnly := task("manual-only", 5)
	manualOnly.AutoShuffleAllowed = false
	manualOnly.Period.Kind = models.PeriodOffWork // not allowed on monday morning

	settings := models.DefaultSettings()
	settings.ManualShuffleRespectsPeriod = false

	s := New(nil)
	if got := s.PickNext([]models.Task{manualOnly}, settings, now, true); got != nil {
		t.Fatalf("PickNext() = %v, want nil for manual-only task", got)
	}

	got := s.PickManual([]models.Task{manualOnly}, settings, now, true)
	if got == nil || got.ID != "manual-only" {
		t.Fatalf("PickManual() = %v, want manual-only", got)
	}
	if got.AutoShuffleAllowed || got.Period.Kind != models.PeriodOffWork {
		t.Errorf("PickManual() returned the relaxed clone %+v, want the original task", got)
	}
}

func TestRank(t *testing.T) {
	ranked := New(nil).Rank([]models.Task{task("a", 1), task("b", 5), task("c", 3)}, models.DefaultSettings(), now)
	var got []string
	for _, st := range ranked {
		got = append(got, st.Task.ID)
	}
	if want := []string{"b", "c", "a"}; !slices.Equal(got, want) {
		t.Errorf("Rank() order = %v, want %v", got, want)
	}
}

func TestWithRandControlsFreeRunningPicks(t *testing.T) {
	tasks := []models.Task{task("a", 3), task("b", 3), task("c", 3)}
	settings := models.DefaultSettings()

	pick := func() []string {
		s := New(nil, WithRand(rand.New(rand.NewPCG(9, 9))))
		var picks []string
		for i := 0; i < 10; i++ {
			picks = append(picks, s.PickNext(tasks, settings, now, false).ID)
		}
		return picks
	}
	if a, b := pick(), pick(); !slices.Equal(a, b) {
		t.Errorf("seeded selectors disagree: %v vs %v", a, b)
	}
}
