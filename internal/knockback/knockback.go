// Package knockback estimates post-hit knockback from move parameters and
// recent-move staleness. The formula is a best-effort approximation of the
// in-game physics; analysis consumers pin its output, so it must not be
// "corrected" even where it is known to be inaccurate.
package knockback

const staleQueueSize = 9

// staleTable holds the per-slot damage discount for a move found in the
// recency queue, most recent first.
var staleTable = [staleQueueSize]float64{
	0.09,
	0.08545,
	0.07635,
	0.0679,
	0.05945,
	0.05035,
	0.04255,
	0.03345,
	0.025,
}

// freshMove marks an empty slot in the recency queue.
const freshMove = -1

// Move is one attack to feed into the calculator.
type Move struct {
	ID              int
	Damage          float64
	BaseKnockback   float64
	KnockbackGrowth float64
	IsShorthop      bool
}

// Calculator accumulates damage onto a defender and estimates the
// knockback of each successive move. Not safe for concurrent use.
type Calculator struct {
	rage    float64
	percent float64
	weight  float64
	mul1v1  float64

	staleQueue [staleQueueSize]int
}

// New builds a calculator. Rage derives from the attacker's own percent,
// clamped to [1.0, 1.1]. The 1v1 multiplier applies to damage dealt, not to
// the knockback scaling itself.
func New(youPercent, opponentPercent, opponentWeight float64, is1v1 bool) *Calculator {
	rage := 1 + (youPercent-35)/115*0.1
	if rage > 1.1 {
		rage = 1.1
	}
	if rage < 1.0 {
		rage = 1.0
	}

	mul := 1.0
	if is1v1 {
		mul = 1.2
	}

	c := &Calculator{
		rage:    rage,
		percent: opponentPercent,
		weight:  opponentWeight,
		mul1v1:  mul,
	}
	for i := range c.staleQueue {
		c.staleQueue[i] = freshMove
	}
	return c
}

// Percent returns the defender's accumulated damage percent.
func (c *Calculator) Percent() float64 { return c.percent }

// AddMove applies one move: discount its damage by staleness and shorthop,
// accumulate the defender's percent, compute the knockback, and push the
// move into the recency queue.
func (c *Calculator) AddMove(m Move) float64 {
	staleness := c.stalenessOf(m.ID)
	shorthop := 1.0
	if m.IsShorthop {
		shorthop = 0.85
	}

	dmgDealt := m.Damage * shorthop * staleness * c.mul1v1
	dmgDealtKB := m.Damage * shorthop * staleness
	percentKB := c.percent + dmgDealtKB
	c.percent += dmgDealt

	knockback := percentKB / 10.0
	knockback += percentKB * m.Damage * (1.0 - (1.0-staleness)*0.3) / 20.0
	knockback *= 200.0 / (c.weight + 100.0) * 1.4
	knockback += 18
	knockback *= m.KnockbackGrowth / 100.0
	knockback += m.BaseKnockback
	knockback *= c.rage

	c.addToQueue(m.ID)

	return knockback
}

// stalenessOf sums the discounts for every queue slot holding this move. A
// move absent from the queue gets a small freshness bonus instead.
func (c *Calculator) stalenessOf(id int) float64 {
	staleness := 1.0
	for i, qid := range c.staleQueue {
		if qid == id {
			staleness -= staleTable[i]
		}
	}
	if staleness == 1.0 {
		staleness = 1.05
	}
	return staleness
}

func (c *Calculator) addToQueue(id int) {
	copy(c.staleQueue[1:], c.staleQueue[:staleQueueSize-1])
	c.staleQueue[0] = id
}
