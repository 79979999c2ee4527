package scrape

import (
	"log"
	"sync"
	"time"
)

// Per-run error messages kept for the summary; the rest are only
// counted.
const maxKeptErrors = 20

// runMetrics collects one adapter run's counters. Safe for concurrent
// use from the detail workers.
type runMetrics struct {
	source    string
	startedAt time.Time

	mu      sync.Mutex
	pages   int
	details int
	saved   int
	skipped int
	failed  int
	errors  []string
}

func newRunMetrics(source string) *runMetrics {
	return &runMetrics{source: source, startedAt: time.Now()}
}

func (m *runMetrics) page() {
	m.mu.Lock()
	m.pages++
	m.mu.Unlock()
}

func (m *runMetrics) detail() {
	m.mu.Lock()
	m.details++
	m.mu.Unlock()
}

func (m *runMetrics) save() {
	m.mu.Lock()
	m.saved++
	m.mu.Unlock()
}

func (m *runMetrics) skip() {
	m.mu.Lock()
	m.skipped++
	m.mu.Unlock()
}

func (m *runMetrics) fail(msg string) {
	m.mu.Lock()
	m.failed++
	if len(m.errors) < maxKeptErrors {
		m.errors = append(m.errors, msg)
	}
	m.mu.Unlock()
}

func (m *runMetrics) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

func (m *runMetrics) logSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Printf("[%s] run done: pages=%d details=%d saved=%d skipped=%d failed=%d in %s",
		m.source, m.pages, m.details, m.saved, m.skipped, m.failed,
		time.Since(m.startedAt).Round(time.Second))
	for _, e := range m.errors {
		log.Printf("[%s] run error: %s", m.source, e)
	}
}
