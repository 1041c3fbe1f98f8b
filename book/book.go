// Package book is the process-wide memory bookkeeping registry: a map from a
// field's primary storage handle to its construction metadata, used for
// diagnostics and leak tracking.
//
// Entries are inserted when a field is constructed and removed when it is
// closed. The registry never owns the storage it describes; it holds identity
// back-references only. A shared default registry exists for process
// lifetime, and prometheus gauges expose the live container count and bytes.
package book

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sbl8/gridfield/grid"
	"github.com/sbl8/gridfield/otype"
	"github.com/sbl8/gridfield/storage"
)

// Entry describes one live field container.
type Entry struct {
	ID      uuid.UUID
	Grid    *grid.Grid
	Otype   *otype.ObjectType
	Bytes   int64
	Created time.Time
}

// Book is a registry of live field containers keyed by primary storage
// handle. Insert and Remove are atomic with respect to each other; the
// multi-rank test harness runs several ranks as goroutines in one process,
// so the single-threaded-per-process assumption is not enough here.
type Book struct {
	mu      sync.Mutex
	entries map[storage.Handle]Entry

	liveGauge  prometheus.Gauge
	bytesGauge prometheus.Gauge
}

// New creates an empty registry with unregistered gauges.
func New() *Book {
	return &Book{
		entries: make(map[storage.Handle]Entry),
		liveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridfield_live_containers",
			Help: "Number of live lattice field containers.",
		}),
		bytesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridfield_live_bytes",
			Help: "Rank-local bytes held by live lattice field containers.",
		}),
	}
}

// Register attaches the registry's gauges to a prometheus registerer.
func (b *Book) Register(reg prometheus.Registerer) error {
	if err := reg.Register(b.liveGauge); err != nil {
		return err
	}
	return reg.Register(b.bytesGauge)
}

// Insert records a newly constructed field under its primary handle. A
// duplicate key means two containers claim the same handle, which the
// exclusive-ownership contract forbids.
func (b *Book) Insert(h storage.Handle, g *grid.Grid, ot *otype.ObjectType, bytes int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[h]; ok {
		return fmt.Errorf("book: handle %d already registered", h)
	}
	b.entries[h] = Entry{
		ID:      uuid.New(),
		Grid:    g,
		Otype:   ot,
		Bytes:   bytes,
		Created: time.Now(),
	}
	b.liveGauge.Inc()
	b.bytesGauge.Add(float64(bytes))
	return nil
}

// Remove drops the entry for a handle at field destruction.
func (b *Book) Remove(h storage.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[h]
	if !ok {
		return fmt.Errorf("book: handle %d not registered", h)
	}
	delete(b.entries, h)
	b.liveGauge.Dec()
	b.bytesGauge.Sub(float64(e.Bytes))
	return nil
}

// Contains reports whether a handle is registered.
func (b *Book) Contains(h storage.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[h]
	return ok
}

// Len returns the number of live entries.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Snapshot returns a copy of the live-field mapping. This is the only read
// interface exposed to diagnostic tooling; no mutation entry point exists
// outside field construction and destruction.
func (b *Book) Snapshot() map[storage.Handle]Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[storage.Handle]Entry, len(b.entries))
	for h, e := range b.entries {
		out[h] = e
	}
	return out
}

// Report renders the live entries sorted by creation time, one per line.
func (b *Book) Report() string {
	snap := b.Snapshot()
	type row struct {
		h storage.Handle
		e Entry
	}
	rows := make([]row, 0, len(snap))
	for h, e := range snap {
		rows = append(rows, row{h, e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].e.Created.Before(rows[j].e.Created) })
	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s handle=%d otype=%s grid=%s bytes=%d created=%s\n",
			r.e.ID, r.h, r.e.Otype.Name, r.e.Grid.Describe(), r.e.Bytes,
			r.e.Created.Format(time.RFC3339Nano))
	}
	return sb.String()
}

// Default is the process-wide registry used by field construction unless a
// container is created with an explicit one.
var Default = New()
