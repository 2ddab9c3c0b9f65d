// Package coload partitions Co-load shipments into container groups.
//
// Grouping is driven by the declared relations of the shipment that starts a
// group: each related PO is looked up once in the visible set and joins the
// group when it is an unassigned Co-load shipment. Relations of the joined
// shipments are not followed.
package coload

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"shiptrack/internal/domain"
)

// WeightUnit is the unit reported for summed group weights.
const WeightUnit = "kg"

// CriticalOrder ranks statuses for a group's most critical status, highest first.
var CriticalOrder = []string{
	domain.StatusPreparing,
	domain.StatusInTransit,
	domain.StatusClearance,
	domain.StatusDelayed,
	domain.StatusCompleted,
}

type Group struct {
	Key                string            `json:"key"`
	Container          string            `json:"container"`
	Shipments          []domain.Shipment `json:"shipments"`
	TotalValue         float64           `json:"total_value"`
	TotalWeight        float64           `json:"total_weight"`
	WeightUnit         string            `json:"weight_unit"`
	Ports              []string          `json:"ports"`
	Suppliers          []string          `json:"suppliers"`
	StatusCounts       map[string]int    `json:"status_counts"`
	MostCriticalStatus string            `json:"most_critical_status"`
	UnresolvedPOs      []string          `json:"unresolved_pos"`
}

// PONumbers returns the PO numbers of the group members in membership order.
func (g Group) PONumbers() []string {
	res := make([]string, 0, len(g.Shipments))
	for _, s := range g.Shipments {
		res = append(res, s.PONumber)
	}
	return res
}

type Result struct {
	Groups     []Group           `json:"groups"`
	Standalone []domain.Shipment `json:"standalone"`
}

// Partition groups the Co-load shipments of visible. Shipments of other PO
// types are ignored. Every Co-load PO of visible ends up in exactly one group
// or in Standalone.
func Partition(visible []domain.Shipment) Result {
	byPO := make(map[string]int, len(visible))
	for i, s := range visible {
		if !s.IsCoload() {
			continue
		}
		if _, dup := byPO[s.PONumber]; !dup {
			byPO[s.PONumber] = i
		}
	}

	res := Result{Groups: []Group{}, Standalone: []domain.Shipment{}}
	assigned := make(map[string]bool, len(byPO))
	for _, s := range visible {
		if !s.IsCoload() || assigned[s.PONumber] {
			continue
		}
		assigned[s.PONumber] = true
		related := declaredRelations(s)
		if len(related) == 0 {
			res.Standalone = append(res.Standalone, s)
			continue
		}
		members := []domain.Shipment{s}
		var unresolved []string
		for _, po := range related {
			idx, ok := byPO[po]
			if !ok {
				unresolved = append(unresolved, po)
				continue
			}
			if assigned[po] {
				continue
			}
			assigned[po] = true
			members = append(members, visible[idx])
		}
		g := summarize(members)
		g.Key = GroupKey(s.PONumber, related)
		g.UnresolvedPOs = nonNil(unresolved)
		res.Groups = append(res.Groups, g)
	}
	return res
}

// GroupKey is the sorted, de-duplicated, pipe-joined set of the seed PO and
// its declared relations. It does not depend on which members are visible.
func GroupKey(seed string, related []string) string {
	set := map[string]struct{}{seed: {}}
	for _, po := range related {
		set[po] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for po := range set {
		keys = append(keys, po)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// declaredRelations drops blanks, duplicates and self references.
func declaredRelations(s domain.Shipment) []string {
	var res []string
	seen := map[string]bool{s.PONumber: true}
	for _, po := range s.RelatedPOs {
		po = strings.TrimSpace(po)
		if po == "" || seen[po] {
			continue
		}
		seen[po] = true
		res = append(res, po)
	}
	return res
}

func summarize(members []domain.Shipment) Group {
	g := Group{
		Shipments:    members,
		Container:    members[0].QualityContainer,
		WeightUnit:   WeightUnit,
		Ports:        []string{},
		Suppliers:    []string{},
		StatusCounts: map[string]int{},
	}
	value := decimal.Zero
	weight := decimal.Zero
	seenPort := map[string]bool{}
	seenSupplier := map[string]bool{}
	for _, s := range members {
		value = value.Add(decimal.NewFromFloat(s.TotalValue))
		weight = weight.Add(decimal.NewFromFloat(ParseWeight(s.Weight)))
		if !seenPort[s.Port] {
			seenPort[s.Port] = true
			g.Ports = append(g.Ports, s.Port)
		}
		if !seenSupplier[s.SupplierName] {
			seenSupplier[s.SupplierName] = true
			g.Suppliers = append(g.Suppliers, s.SupplierName)
		}
		g.StatusCounts[s.Status]++
	}
	g.TotalValue = value.InexactFloat64()
	g.TotalWeight = weight.InexactFloat64()
	g.MostCriticalStatus = mostCritical(g.StatusCounts, members[0].Status)
	return g
}

func mostCritical(counts map[string]int, fallback string) string {
	for _, st := range CriticalOrder {
		if counts[st] > 0 {
			return st
		}
	}
	return fallback
}

// ParseWeight extracts the numeric magnitude of a weight such as "1,200 kg".
// Units are ignored; anything unparsable counts as zero.
func ParseWeight(w string) float64 {
	var b strings.Builder
	for _, r := range w {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
