// Package filter narrows and orders a shipment collection by a set of
// user-selected criteria. Apply is a pure function of (shipments, criteria).
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"shiptrack/internal/domain"
)

// All is the selector value that disables a selector predicate.
const All = "all"

const dateLayout = "2006-01-02"

var ErrInvalidCriteria = errors.New("invalid criteria")

type SortOption string

const (
	SortNone          SortOption = "none"
	SortClearDateAsc  SortOption = "clearDate-asc"
	SortClearDateDesc SortOption = "clearDate-desc"
	SortStatusAsc     SortOption = "status-asc"
	SortStatusDesc    SortOption = "status-desc"
)

// SortOptions lists the accepted sort options.
var SortOptions = []SortOption{SortNone, SortClearDateAsc, SortClearDateDesc, SortStatusAsc, SortStatusDesc}

// ParseSort maps a user supplied string to a SortOption. The empty string means SortNone.
func ParseSort(s string) (SortOption, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortNone, nil
	}
	for _, opt := range SortOptions {
		if string(opt) == s {
			return opt, nil
		}
	}
	return SortNone, fmt.Errorf("%w: unknown sort option %q", ErrInvalidCriteria, s)
}

// Criteria selects and orders shipments. Empty selectors behave like All.
type Criteria struct {
	Search string     `json:"search"`
	Type   string     `json:"type"`
	POType string     `json:"po_type"`
	From   string     `json:"from"`
	To     string     `json:"to"`
	Sort   SortOption `json:"sort"`
}

// Default returns criteria that match every shipment and keep source order.
func Default() Criteria {
	return Criteria{Type: All, POType: All, Sort: SortNone}
}

// Validate checks the parts of the criteria a caller can get wrong. Apply never
// calls it: it is meant for outer surfaces that accept user input.
func (c Criteria) Validate() error {
	if _, err := ParseSort(string(c.Sort)); err != nil {
		return err
	}
	for _, b := range []struct{ name, value string }{{"from", c.From}, {"to", c.To}} {
		if b.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, b.value); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", ErrInvalidCriteria, b.name, b.value)
		}
	}
	if c.From != "" && c.To != "" && c.From > c.To {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidCriteria, c.From, c.To)
	}
	return nil
}

type Result struct {
	Shipments []domain.Shipment `json:"shipments"`
	Count     int               `json:"count"`
}

// Apply returns the shipments matching every active predicate of c, ordered by
// c.Sort. The input slice is never modified.
func Apply(all []domain.Shipment, c Criteria) Result {
	visible := make([]domain.Shipment, 0, len(all))
	for _, s := range all {
		if Matches(s, c) {
			visible = append(visible, s)
		}
	}
	sortShipments(visible, c.Sort)
	return Result{Shipments: visible, Count: len(visible)}
}

// Matches reports whether s satisfies every predicate of c.
func Matches(s domain.Shipment, c Criteria) bool {
	if !selectorMatches(c.Type, s.Type) {
		return false
	}
	if !selectorMatches(c.POType, s.POType) {
		return false
	}
	if c.Search != "" {
		term := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(s.SupplierName), term) &&
			!strings.Contains(strings.ToLower(s.PONumber), term) {
			return false
		}
	}
	// ISO dates order lexicographically.
	if c.From != "" && s.ETD < c.From {
		return false
	}
	if c.To != "" && s.ETD > c.To {
		return false
	}
	return true
}

func selectorMatches(selector, value string) bool {
	return selector == "" || selector == All || selector == value
}

var statusPriority = func() map[string]int {
	m := make(map[string]int, len(domain.Statuses))
	for i, st := range domain.Statuses {
		m[st] = i + 1
	}
	return m
}()

// StatusPriority returns the lifecycle rank of a status and whether it is known.
// Unknown statuses sort last for both status-asc and status-desc.
func StatusPriority(status string) (int, bool) {
	p, ok := statusPriority[status]
	return p, ok
}

// sortKey holds one comparable value; invalid keys always order last.
type sortKey struct {
	valid bool
	n     int64
}

func sortShipments(items []domain.Shipment, opt SortOption) {
	var keyOf func(domain.Shipment) sortKey
	desc := false
	switch opt {
	case SortClearDateAsc, SortClearDateDesc:
		keyOf = clearDateKey
		desc = opt == SortClearDateDesc
	case SortStatusAsc, SortStatusDesc:
		keyOf = statusKey
		desc = opt == SortStatusDesc
	default:
		return
	}
	keys := make([]sortKey, len(items))
	for i, s := range items {
		keys[i] = keyOf(s)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.valid != kb.valid {
			return ka.valid
		}
		if !ka.valid {
			return false
		}
		if desc {
			return ka.n > kb.n
		}
		return ka.n < kb.n
	})
	sorted := make([]domain.Shipment, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func clearDateKey(s domain.Shipment) sortKey {
	t, ok := ParseDate(s.DateClear)
	if !ok {
		return sortKey{}
	}
	return sortKey{valid: true, n: t.Unix()}
}

func statusKey(s domain.Shipment) sortKey {
	p, ok := StatusPriority(s.Status)
	return sortKey{valid: ok, n: int64(p)}
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 timestamps.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}
