package selector

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"
)

// seedPrime spreads day keys apart before the task hash is mixed in.
const seedPrime = 1_000_003

// Seed derives the day-stable RNG seed for a calendar date and optional task
// id. Persisted reproducibility depends on this exact derivation:
//
//	dayKey = year*10000 + month*100 + day
//	seed   = dayKey                          (no task id)
//	seed   = dayKey*1_000_003 XOR fnv32a(id) (with task id)
func Seed(date time.Time, taskID string) int64 {
	dayKey := int64(date.Year()*10000 + int(date.Month())*100 + date.Day())
	if taskID == "" {
		return dayKey
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return dayKey*seedPrime ^ int64(h.Sum32())
}

// taskJitter returns a value in [-0.5, 0.5) that is fixed for a given task
// on a given day.
func taskJitter(date time.Time, taskID string) float64 {
	r := rand.New(rand.NewPCG(uint64(Seed(date, taskID)), 0))
	return r.Float64() - 0.5
}

// dayStableSource yields samples that are reproducible for a given day and
// call sequence. The counter keeps successive same-day samples distinct.
type dayStableSource struct {
	mu      sync.Mutex
	counter uint64
}

func (d *dayStableSource) Float64(date time.Time) float64 {
	d.mu.Lock()
	n := d.counter
	d.counter++
	d.mu.Unlock()

	r := rand.New(rand.NewPCG(uint64(Seed(date, "")), n))
	return r.Float64()
}

// lockedRand guards a free-running generator; *rand.Rand is not safe for
// concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
