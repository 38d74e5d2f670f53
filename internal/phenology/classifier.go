// Package phenology decides, per forcing timestep, whether thaw or freeze conditions
// have persisted long enough to switch the catchment between melt and accumulation.
package phenology

// Classifier evaluates consecutive-observation temperature predicates over a forcing
// series. One "observation" per day is taken from the first two samples of that day's
// window: sample i-j*StepsPerDay and the one before it. In averaged mode the two samples
// are averaged before the comparison; otherwise both must qualify.
//
// A window that would reach before the first sample is never satisfied.
type Classifier struct {
	Temperature   []float64
	FreezingPoint float64
	StepsPerDay   int
	Averaged      bool
}

// New returns a Classifier over temps. The slice is read, never modified.
func New(temps []float64, freezingPoint float64, stepsPerDay int, averaged bool) *Classifier {
	return &Classifier{
		Temperature:   temps,
		FreezingPoint: freezingPoint,
		StepsPerDay:   stepsPerDay,
		Averaged:      averaged,
	}
}

// Thaw reports whether the last k daily observations up to and including step i were
// all above freezing. k == 0 is the instantaneous test at i.
func (c *Classifier) Thaw(i, k int) bool {
	return c.holds(i, k, c.above)
}

// Freeze reports whether the last k daily observations up to and including step i were
// all below freezing. k == 0 is the instantaneous test at i.
func (c *Classifier) Freeze(i, k int) bool {
	return c.holds(i, k, c.below)
}

// Above is the instantaneous thaw test, independent of any window.
func (c *Classifier) Above(i int) bool {
	if i < 0 || i >= len(c.Temperature) {
		return false
	}
	return c.above(c.Temperature[i])
}

func (c *Classifier) above(t float64) bool { return t > c.FreezingPoint }
func (c *Classifier) below(t float64) bool { return t < c.FreezingPoint }

func (c *Classifier) holds(i, k int, qualifies func(float64) bool) bool {
	n := len(c.Temperature)
	if i < 0 || i >= n || k < 0 {
		return false
	}
	if k == 0 {
		return qualifies(c.Temperature[i])
	}

	// Oldest sample the window touches.
	if i-(k-1)*c.StepsPerDay-1 < 0 {
		return false
	}

	for j := 0; j < k; j++ {
		a := c.Temperature[i-j*c.StepsPerDay]
		b := c.Temperature[i-j*c.StepsPerDay-1]
		if c.Averaged {
			if !qualifies((a + b) / 2) {
				return false
			}
			continue
		}
		if !qualifies(a) || !qualifies(b) {
			return false
		}
	}
	return true
}
