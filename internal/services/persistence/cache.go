package persistence

import (
	"sort"
	"sync"

	"github.com/LeonardoBeccarini/cropsim/internal/model"
)

// Cache keeps the recent runs in memory so the API can answer without Influx.
type Cache struct {
	mu       sync.RWMutex
	maxRuns  int
	results  map[string]model.RunResultEvent // by run id
	records  map[string][]model.DailyRecordEvent
	runOrder []string
}

func NewCache(maxRuns int) *Cache {
	if maxRuns <= 0 {
		maxRuns = 100
	}
	return &Cache{
		maxRuns: maxRuns,
		results: make(map[string]model.RunResultEvent),
		records: make(map[string][]model.DailyRecordEvent),
	}
}

func (c *Cache) touch(run string) {
	if _, ok := c.records[run]; ok {
		return
	}
	if _, ok := c.results[run]; ok {
		return
	}
	c.runOrder = append(c.runOrder, run)
	for len(c.runOrder) > c.maxRuns {
		old := c.runOrder[0]
		c.runOrder = c.runOrder[1:]
		delete(c.results, old)
		delete(c.records, old)
	}
}

// AddRecord stores a daily record; redelivered days replace the earlier copy.
func (c *Cache) AddRecord(e model.DailyRecordEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch(e.RunID)
	recs := c.records[e.RunID]
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Day >= e.Day })
	switch {
	case i < len(recs) && recs[i].Day == e.Day:
		recs[i] = e
	default:
		recs = append(recs, model.DailyRecordEvent{})
		copy(recs[i+1:], recs[i:])
		recs[i] = e
	}
	c.records[e.RunID] = recs
}

// AddResult stores the result of a run.
func (c *Cache) AddResult(e model.RunResultEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch(e.RunID)
	c.results[e.RunID] = e
}

// Latest returns up to limit run results, newest first, optionally of one field.
func (c *Cache) Latest(field string, limit int) []model.RunResultEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.RunResultEvent, 0, len(c.results))
	for _, r := range c.results {
		if field == "" || r.FieldID == field {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Records returns the first limit daily records of a run in day order.
func (c *Cache) Records(run string, limit int) []model.DailyRecordEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	recs := c.records[run]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return append([]model.DailyRecordEvent(nil), recs...)
}
