package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shiptrack/internal/coload"
	"shiptrack/internal/domain"
	"shiptrack/internal/filter"
	"shiptrack/internal/intake"
	"shiptrack/internal/metrics"
)

// ShipmentSource is the part of the data source the dashboard reads.
type ShipmentSource interface {
	ListShipments(ctx context.Context) ([]domain.Shipment, error)
}

// View is everything the display layer renders for the current criteria.
type View struct {
	Criteria    filter.Criteria   `json:"criteria"`
	Total       int               `json:"total"`
	Count       int               `json:"count"`
	Shipments   []domain.Shipment `json:"shipments"`
	Groups      []coload.Group    `json:"groups"`
	Standalone  []domain.Shipment `json:"standalone"`
	Intake      intake.KPIs       `json:"intake"`
	RefreshedAt string            `json:"refreshed_at,omitempty" format:"date-time"`
	// Version increases with every recomputation.
	Version uint64 `json:"version"`
}

// Patch changes a subset of the criteria. Nil fields are left alone.
type Patch struct {
	Search *string
	Type   *string
	POType *string
	From   *string
	To     *string
	Sort   *string
}

// Dashboard owns the filter criteria and the last shipment snapshot and
// recomputes the view whenever either changes.
type Dashboard struct {
	Source ShipmentSource
	Log    *zap.Logger
	Now    func() time.Time

	mu          sync.RWMutex
	criteria    filter.Criteria
	snapshot    []domain.Shipment
	refreshedAt time.Time
	view        View
	version     uint64
	listeners   map[int]func(View)
	nextID      int

	// notifyMu orders listener calls; notified is the last version delivered.
	notifyMu sync.Mutex
	notified uint64
}

func NewDashboard(src ShipmentSource, log *zap.Logger) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dashboard{
		Source:    src,
		Log:       log,
		Now:       time.Now,
		criteria:  filter.Default(),
		listeners: map[int]func(View){},
	}
	d.view = d.compute("init")
	return d
}

func (d *Dashboard) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Refresh replaces the snapshot with the data source's current shipments. On
// error the previous snapshot stays in place.
func (d *Dashboard) Refresh(ctx context.Context) error {
	shipments, err := d.Source.ListShipments(ctx)
	if err != nil {
		return fmt.Errorf("refresh shipments: %w", err)
	}
	d.Load(shipments)
	return nil
}

// Load replaces the snapshot directly.
func (d *Dashboard) Load(shipments []domain.Shipment) {
	snap := make([]domain.Shipment, len(shipments))
	copy(snap, shipments)
	d.mutate("refresh", func() {
		d.snapshot = snap
		d.refreshedAt = d.now()
	})
}

// Snapshot returns a copy of the last loaded shipments in source order.
func (d *Dashboard) Snapshot() []domain.Shipment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make([]domain.Shipment, len(d.snapshot))
	copy(res, d.snapshot)
	return res
}

// Shipment looks a PO up in the snapshot regardless of the criteria.
func (d *Dashboard) Shipment(poNumber string) (domain.Shipment, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.snapshot {
		if s.PONumber == poNumber {
			return s, true
		}
	}
	return domain.Shipment{}, false
}

func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

func (d *Dashboard) Criteria() filter.Criteria {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.criteria
}

// Subscribe registers fn to run after recomputations and returns a function
// that removes it. Listeners see views in increasing Version order; a view
// superseded before delivery is skipped. fn may read the dashboard but must
// not change it.
func (d *Dashboard) Subscribe(fn func(View)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *Dashboard) SetSearchTerm(term string) {
	d.mutate("search", func() { d.criteria.Search = term })
}

func (d *Dashboard) SetTransportType(t string) {
	d.mutate("type", func() { d.criteria.Type = t })
}

func (d *Dashboard) SetPOType(t string) {
	d.mutate("po_type", func() { d.criteria.POType = t })
}

// SetDateRange sets the inclusive ETD bounds. Either bound may be empty.
func (d *Dashboard) SetDateRange(from, to string) {
	d.mutate("date_range", func() {
		d.criteria.From = from
		d.criteria.To = to
	})
}

func (d *Dashboard) ClearDateRange() {
	d.SetDateRange("", "")
}

func (d *Dashboard) SetSort(opt filter.SortOption) {
	d.mutate("sort", func() { d.criteria.Sort = opt })
}

// ClearAll restores the default criteria.
func (d *Dashboard) ClearAll() {
	d.mutate("clear", func() { d.criteria = filter.Default() })
}

// Update applies p atomically. The resulting criteria are validated and
// nothing changes when validation fails.
func (d *Dashboard) Update(p Patch) (View, error) {
	d.mu.Lock()
	next := d.criteria
	if p.Search != nil {
		next.Search = *p.Search
	}
	if p.Type != nil {
		next.Type = *p.Type
	}
	if p.POType != nil {
		next.POType = *p.POType
	}
	if p.From != nil {
		next.From = *p.From
	}
	if p.To != nil {
		next.To = *p.To
	}
	if p.Sort != nil {
		opt, err := filter.ParseSort(*p.Sort)
		if err != nil {
			d.mu.Unlock()
			return View{}, err
		}
		next.Sort = opt
	}
	if err := next.Validate(); err != nil {
		d.mu.Unlock()
		return View{}, err
	}
	d.criteria = next
	view, listeners := d.recomputeLocked("update")
	d.mu.Unlock()
	d.notify(listeners, view)
	return view, nil
}

func (d *Dashboard) mutate(trigger string, fn func()) {
	d.mu.Lock()
	fn()
	view, listeners := d.recomputeLocked(trigger)
	d.mu.Unlock()
	d.notify(listeners, view)
}

func (d *Dashboard) recomputeLocked(trigger string) (View, []func(View)) {
	d.version++
	d.view = d.compute(trigger)
	d.view.Version = d.version
	listeners := make([]func(View), 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	return d.view, listeners
}

func (d *Dashboard) compute(trigger string) View {
	start := time.Now()
	res := filter.Apply(d.snapshot, d.criteria)
	part := coload.Partition(res.Shipments)
	v := View{
		Criteria:   d.criteria,
		Total:      len(d.snapshot),
		Count:      res.Count,
		Shipments:  res.Shipments,
		Groups:     part.Groups,
		Standalone: part.Standalone,
		Intake:     intake.Compute(d.snapshot, d.now()),
	}
	if !d.refreshedAt.IsZero() {
		v.RefreshedAt = d.refreshedAt.UTC().Format(time.RFC3339)
	}
	elapsed := time.Since(start)
	metrics.RecordRecompute(trigger, elapsed, v.Count, len(v.Groups))
	d.Log.Debug("dashboard recomputed",
		zap.String("trigger", trigger),
		zap.Int("visible", v.Count),
		zap.Int("groups", len(v.Groups)),
		zap.Duration("elapsed", elapsed))
	return v
}

func (d *Dashboard) notify(listeners []func(View), v View) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	if v.Version <= d.notified {
		return
	}
	d.notified = v.Version
	for _, fn := range listeners {
		fn(v)
	}
}
