// Package selector filters the task pool and picks the next task to show.
package selector

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/julianstephens/nextup/internal/lifecycle"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
	"github.com/julianstephens/nextup/internal/period"
	"github.com/julianstephens/nextup/internal/scoring"
)

// ScoredTask pairs a task with its score for a single selection call.
type ScoredTask struct {
	Task      models.Task
	Breakdown scoring.Breakdown
	Score     float64 // combined score plus jitter
}

type Selector struct {
	periods *period.Evaluator
	free    *lockedRand
	stable  *dayStableSource
}

type Option func(*Selector)

// WithRand replaces the free-running generator, mainly for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		s.free = &lockedRand{r: r}
	}
}

// New creates a selector. A nil evaluator only knows the built-in periods.
func New(periods *period.Evaluator, opts ...Option) *Selector {
	if periods == nil {
		periods = period.NewEvaluator(nil)
	}
	s := &Selector{
		periods: periods,
		free:    &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))},
		stable:  &dayStableSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Periods returns the evaluator used for the period filter.
func (s *Selector) Periods() *period.Evaluator {
	return s.periods
}

// Eligible filters tasks down to auto-shuffle candidates at now.
func (s *Selector) Eligible(tasks []models.Task, settings models.Settings, now time.Time) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if s.IsCandidate(t, settings, now) {
			out = append(out, t)
		}
	}
	return out
}

// IsCandidate reports whether a single task passes the selection filter.
func (s *Selector) IsCandidate(t models.Task, settings models.Settings, now time.Time) bool {
	return lifecycle.IsEligible(t, now) &&
		!t.Paused &&
		t.AutoShuffleAllowed &&
		s.periods.TaskAllowed(t, now, settings)
}

// PickNext returns the next task to show, or nil when nothing is eligible.
// A cut-in-line task wins outright; otherwise tasks are scored and chosen by
// argmax (deterministic) or softmax sampling.
func (s *Selector) PickNext(tasks []models.Task, settings models.Settings, now time.Time, deterministic bool) *models.Task {
	candidates := s.Eligible(tasks, settings, now)
	if len(candidates) == 0 {
		logger.Debug("No eligible candidates", "pool", len(tasks))
		return nil
	}

	for i := range candidates {
		if candidates[i].CutsInLine() {
			logger.Debug("Cut-in-line task selected", "task_id", candidates[i].ID, "mode", candidates[i].CutInLine)
			picked := candidates[i]
			return &picked
		}
	}

	scored := s.score(candidates, settings, now, deterministic)
	var idx int
	if deterministic {
		idx = argmax(scored)
	} else {
		idx = s.sample(scored, settings, now)
	}
	picked := scored[idx].Task
	logger.Debug("Task selected", "task_id", picked.ID, "score", scored[idx].Score, "candidates", len(scored))
	return &picked
}

// Rank scores every candidate without jitter, highest first.
func (s *Selector) Rank(tasks []models.Task, settings models.Settings, now time.Time) []ScoredTask {
	scored := s.score(s.Eligible(tasks, settings, now), settings, now, true)
	slices.SortStableFunc(scored, func(a, b ScoredTask) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Task.ID, b.Task.ID)
	})
	return scored
}

// PickManual picks from the manual pool and maps the winner back to the
// unmodified task.
func (s *Selector) PickManual(tasks []models.Task, settings models.Settings, now time.Time, deterministic bool) *models.Task {
	picked := s.PickNext(ManualPool(tasks, settings), settings, now, deterministic)
	if picked == nil {
		return nil
	}
	for i := range tasks {
		if tasks[i].ID == picked.ID {
			original := tasks[i]
			return &original
		}
	}
	return nil
}

// ManualPool clones every task with auto-shuffle forced on. When manual
// shuffles ignore allowed hours the period is relaxed to Any.
func ManualPool(tasks []models.Task, settings models.Settings) []models.Task {
	pool := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		c := t.Clone()
		c.AutoShuffleAllowed = true
		if !settings.ManualShuffleRespectsPeriod {
			c.Period = models.PeriodRef{Kind: models.PeriodAny}
		}
		pool = append(pool, c)
	}
	return pool
}

func (s *Selector) score(candidates []models.Task, settings models.Settings, now time.Time, deterministic bool) []ScoredTask {
	scored := make([]ScoredTask, 0, len(candidates))
	for _, t := range candidates {
		b := scoring.Score(t, now, settings)
		st := ScoredTask{Task: t, Breakdown: b, Score: b.Combined}
		if !deterministic {
			if settings.StableRandomnessPerDay {
				st.Score += taskJitter(now, t.ID)
			} else {
				st.Score += s.free.Float64() - 0.5
			}
		}
		scored = append(scored, st)
	}
	return scored
}

// argmax picks the highest score; ties go to the lowest task id so the result
// does not depend on input order.
func argmax(scored []ScoredTask) int {
	best := 0
	for i := 1; i < len(scored); i++ {
		switch {
		case scored[i].Score > scored[best].Score:
			best = i
		case scored[i].Score == scored[best].Score && scored[i].Task.ID < scored[best].Task.ID:
			best = i
		}
	}
	return best
}

func (s *Selector) sample(scored []ScoredTask, settings models.Settings, now time.Time) int {
	scores := make([]float64, len(scored))
	for i, st := range scored {
		scores[i] = st.Score
	}
	probs := Softmax(scores)
	if probs == nil {
		return argmax(scored)
	}

	var u float64
	if settings.StableRandomnessPerDay {
		u = s.stable.Float64(now)
	} else {
		u = s.free.Float64()
	}
	return SampleIndex(probs, u)
}

// Softmax normalizes exp(score - max). It returns nil when the distribution
// is degenerate (non-positive or non-finite exponent sum).
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := math.Inf(-1)
	for _, v := range scores {
		maxScore = math.Max(maxScore, v)
	}

	exps := make([]float64, len(scores))
	var sum float64
	for i, v := range scores {
		exps[i] = math.Exp(v - maxScore)
		sum += exps[i]
	}
	if !(sum > 0) || math.IsInf(sum, 0) {
		return nil
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}

// SampleIndex walks the cumulative distribution with a single draw u in [0,1).
func SampleIndex(probs []float64, u float64) int {
	var cum float64
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}
