package domain

import (
	"sync"
	"time"
)

// DailyCap is a pure counter keyed by (calendar day, entity). Used to enforce
// rules like "at most one large trade per counterparty per day". No side
// effects beyond incrementing; old days are evicted on use.
type DailyCap struct {
	max int
	mu  sync.Mutex
	// counts[date][entity] = trades so far
	counts map[string]map[string]int
}

// NewDailyCap crea un contador con el máximo diario dado por entidad.
func NewDailyCap(max int) *DailyCap {
	return &DailyCap{max: max, counts: make(map[string]map[string]int)}
}

// Allow devuelve true si la entidad todavía tiene cupo hoy.
func (c *DailyCap) Allow(entity string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := now.UTC().Format("2006-01-02")
	return c.counts[day][entity] < c.max
}

// Record incrementa el contador de la entidad para hoy y purga días viejos.
func (c *DailyCap) Record(entity string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := now.UTC().Format("2006-01-02")
	if c.counts[day] == nil {
		c.counts[day] = make(map[string]int)
	}
	c.counts[day][entity]++

	for d := range c.counts {
		if d != day {
			delete(c.counts, d)
		}
	}
}

// Count devuelve cuántos trades lleva la entidad hoy.
func (c *DailyCap) Count(entity string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[now.UTC().Format("2006-01-02")][entity]
}
