package filter_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"shiptrack/internal/domain"
	"shiptrack/internal/filter"
)

func fixture() []domain.Shipment {
	return []domain.Shipment{
		{PONumber: "PO-2025-001", SupplierName: "Sarah Chen", Type: "Air", POType: "Single", ETD: "2025-07-01", DateClear: "2025-07-10", Status: "in-transit"},
		{PONumber: "PO-2025-002", SupplierName: "Jennifer Kim", Type: "Oversea", POType: "Co-load", ETD: "2025-07-02", DateClear: "2025-07-05", Status: "submitted"},
		{PONumber: "PO-2025-003", SupplierName: "Mike Rodriguez", Type: "Truck", POType: "Multiple", ETD: "2025-07-03", DateClear: "not-a-date", Status: "completed"},
		{PONumber: "PO-2025-004", SupplierName: "Anna Chenko", Type: "Oversea", POType: "Co-load", ETD: "2025-07-04", DateClear: "2025-07-08", Status: "mystery"},
		{PONumber: "PO-2025-005", SupplierName: "David Park", Type: "Air", POType: "Co-load", ETD: "2025-06-30", DateClear: "2025-07-01", Status: "preparing"},
	}
}

func poNumbers(items []domain.Shipment) []string {
	res := make([]string, 0, len(items))
	for _, s := range items {
		res = append(res, s.PONumber)
	}
	return res
}

func TestApplyMatchAllKeepsOrder(t *testing.T) {
	in := fixture()
	for _, c := range []filter.Criteria{{}, filter.Default()} {
		res := filter.Apply(in, c)
		if diff := cmp.Diff(in, res.Shipments); diff != "" {
			t.Fatalf("match-all changed the collection (-want +got):\n%s", diff)
		}
		if res.Count != len(in) {
			t.Fatalf("count = %d, want %d", res.Count, len(in))
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := fixture()
	before := poNumbers(in)
	filter.Apply(in, filter.Criteria{Sort: filter.SortStatusDesc})
	if diff := cmp.Diff(before, poNumbers(in)); diff != "" {
		t.Fatalf("input reordered (-want +got):\n%s", diff)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	c := filter.Criteria{Search: "chen", Sort: filter.SortClearDateDesc}
	first := filter.Apply(fixture(), c)
	second := filter.Apply(first.Shipments, c)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second pass differs (-first +second):\n%s", diff)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	in := []domain.Shipment{
		{PONumber: "PO-1", SupplierName: "Sarah Chen"},
		{PONumber: "PO-2", SupplierName: "Jennifer Kim"},
	}
	res := filter.Apply(in, filter.Criteria{Search: "chen"})
	if diff := cmp.Diff([]string{"PO-1"}, poNumbers(res.Shipments)); diff != "" {
		t.Fatalf("search (-want +got):\n%s", diff)
	}
	res = filter.Apply(fixture(), filter.Criteria{Search: "po-2025-00"})
	if res.Count != 5 {
		t.Fatalf("PO number search matched %d, want 5", res.Count)
	}
}

func TestSelectors(t *testing.T) {
	tests := []struct {
		name string
		c    filter.Criteria
		want []string
	}{
		{"transport", filter.Criteria{Type: "Oversea"}, []string{"PO-2025-002", "PO-2025-004"}},
		{"transport is case sensitive", filter.Criteria{Type: "oversea"}, []string{}},
		{"po type", filter.Criteria{POType: "Co-load"}, []string{"PO-2025-002", "PO-2025-004", "PO-2025-005"}},
		{"both", filter.Criteria{Type: "Air", POType: "Co-load"}, []string{"PO-2025-005"}},
		{"all keyword", filter.Criteria{Type: filter.All, POType: filter.All}, poNumbers(fixture())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := filter.Apply(fixture(), tt.c)
			if diff := cmp.Diff(tt.want, poNumbers(res.Shipments)); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"both bounds inclusive", "2025-07-01", "2025-07-03", []string{"PO-2025-001", "PO-2025-002", "PO-2025-003"}},
		{"lower only", "2025-07-03", "", []string{"PO-2025-003", "PO-2025-004"}},
		{"upper only", "", "2025-07-01", []string{"PO-2025-001", "PO-2025-005"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := filter.Apply(fixture(), filter.Criteria{From: tt.from, To: tt.to})
			if diff := cmp.Diff(tt.want, poNumbers(res.Shipments)); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestEveryResultSatisfiesCriteria(t *testing.T) {
	c := filter.Criteria{Search: "e", Type: "Oversea", POType: "Co-load", From: "2025-07-01", To: "2025-07-31"}
	res := filter.Apply(fixture(), c)
	if res.Count == 0 {
		t.Fatalf("expected some matches")
	}
	for _, s := range res.Shipments {
		if !filter.Matches(s, c) {
			t.Fatalf("%s returned but does not match", s.PONumber)
		}
	}
}

func TestSortClearDate(t *testing.T) {
	asc := filter.Apply(fixture(), filter.Criteria{Sort: filter.SortClearDateAsc})
	want := []string{"PO-2025-005", "PO-2025-002", "PO-2025-004", "PO-2025-001", "PO-2025-003"}
	if diff := cmp.Diff(want, poNumbers(asc.Shipments)); diff != "" {
		t.Fatalf("asc (-want +got):\n%s", diff)
	}
	desc := filter.Apply(fixture(), filter.Criteria{Sort: filter.SortClearDateDesc})
	// unparsable dates stay last in both directions
	want = []string{"PO-2025-001", "PO-2025-004", "PO-2025-002", "PO-2025-005", "PO-2025-003"}
	if diff := cmp.Diff(want, poNumbers(desc.Shipments)); diff != "" {
		t.Fatalf("desc (-want +got):\n%s", diff)
	}
}

func TestSortClearDateReversesForValidDates(t *testing.T) {
	var valid []domain.Shipment
	for _, s := range fixture() {
		if _, ok := filter.ParseDate(s.DateClear); ok {
			valid = append(valid, s)
		}
	}
	asc := poNumbers(filter.Apply(valid, filter.Criteria{Sort: filter.SortClearDateAsc}).Shipments)
	desc := poNumbers(filter.Apply(valid, filter.Criteria{Sort: filter.SortClearDateDesc}).Shipments)
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("desc is not the reverse of asc: %v vs %v", asc, desc)
		}
	}
}

func TestSortStatus(t *testing.T) {
	asc := filter.Apply(fixture(), filter.Criteria{Sort: filter.SortStatusAsc})
	want := []string{"PO-2025-002", "PO-2025-005", "PO-2025-001", "PO-2025-003", "PO-2025-004"}
	if diff := cmp.Diff(want, poNumbers(asc.Shipments)); diff != "" {
		t.Fatalf("asc (-want +got):\n%s", diff)
	}
	desc := filter.Apply(fixture(), filter.Criteria{Sort: filter.SortStatusDesc})
	want = []string{"PO-2025-003", "PO-2025-001", "PO-2025-005", "PO-2025-002", "PO-2025-004"}
	if diff := cmp.Diff(want, poNumbers(desc.Shipments)); diff != "" {
		t.Fatalf("desc (-want +got):\n%s", diff)
	}
}

func TestSortTiesKeepSourceOrder(t *testing.T) {
	in := []domain.Shipment{
		{PONumber: "A", Status: "preparing"},
		{PONumber: "B", Status: "submitted"},
		{PONumber: "C", Status: "preparing"},
		{PONumber: "D", Status: "submitted"},
	}
	res := filter.Apply(in, filter.Criteria{Sort: filter.SortStatusAsc})
	if diff := cmp.Diff([]string{"B", "D", "A", "C"}, poNumbers(res.Shipments)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestStatusPriorityOrder(t *testing.T) {
	prev := 0
	for _, st := range domain.Statuses {
		p, ok := filter.StatusPriority(st)
		if !ok || p <= prev {
			t.Fatalf("status %s has priority %d after %d", st, p, prev)
		}
		prev = p
	}
	if _, ok := filter.StatusPriority("Pending"); ok {
		t.Fatalf("unknown status reported as known")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       filter.Criteria
		wantErr bool
	}{
		{"zero", filter.Criteria{}, false},
		{"full", filter.Criteria{From: "2025-07-01", To: "2025-07-03", Sort: filter.SortStatusAsc}, false},
		{"bad sort", filter.Criteria{Sort: "priority-asc"}, true},
		{"bad from", filter.Criteria{From: "07/01/2025"}, true},
		{"inverted range", filter.Criteria{From: "2025-07-04", To: "2025-07-01"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, filter.ErrInvalidCriteria) {
				t.Fatalf("error %v does not wrap ErrInvalidCriteria", err)
			}
		})
	}
}

func TestDateRangeExcludesLaterETD(t *testing.T) {
	in := []domain.Shipment{{PONumber: "PO-X", ETD: "2025-07-04"}}
	res := filter.Apply(in, filter.Criteria{From: "2025-07-01", To: "2025-07-03"})
	if res.Count != 0 {
		t.Fatalf("expected shipment with etd 2025-07-04 to be excluded")
	}
}
