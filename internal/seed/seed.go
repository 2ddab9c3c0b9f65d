// Package seed loads shipment and notification datasets into a workspace.
package seed

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"shiptrack/internal/domain"
	"shiptrack/internal/events"
	"shiptrack/internal/repo"
)

//go:embed mock.yaml
var mockYAML []byte

var ErrInvalidDataset = errors.New("invalid dataset")

type Dataset struct {
	Shipments     []domain.Shipment     `yaml:"shipments"`
	Notifications []domain.Notification `yaml:"notifications"`
}

// Mock returns the embedded demo dataset.
func Mock() (Dataset, error) {
	return Parse(mockYAML)
}

// LoadFile parses a dataset from a YAML file.
func LoadFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a dataset. Missing ids are generated and nil
// lists become empty.
func Parse(data []byte) (Dataset, error) {
	var d Dataset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	d.normalize()
	if err := d.Validate(); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

func (d *Dataset) normalize() {
	for i := range d.Shipments {
		s := &d.Shipments[i]
		s.PONumber = strings.TrimSpace(s.PONumber)
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Documents == nil {
			s.Documents = []string{}
		}
		if s.RelatedPOs == nil {
			s.RelatedPOs = []string{}
		}
	}
	for i := range d.Notifications {
		if d.Notifications[i].ID == "" {
			d.Notifications[i].ID = uuid.NewString()
		}
	}
}

// Validate enforces unique, non-empty PO numbers and notification ids and
// rejects shipments that list themselves as related.
func (d Dataset) Validate() error {
	pos := make(map[string]struct{}, len(d.Shipments))
	for i, s := range d.Shipments {
		if s.PONumber == "" {
			return fmt.Errorf("%w: shipment #%d has no po_number", ErrInvalidDataset, i+1)
		}
		if _, dup := pos[s.PONumber]; dup {
			return fmt.Errorf("%w: duplicate po_number %s", ErrInvalidDataset, s.PONumber)
		}
		pos[s.PONumber] = struct{}{}
		for _, rel := range s.RelatedPOs {
			if strings.TrimSpace(rel) == s.PONumber {
				return fmt.Errorf("%w: %s lists itself as related", ErrInvalidDataset, s.PONumber)
			}
		}
		if s.Progress < 0 || s.Progress > 100 {
			return fmt.Errorf("%w: %s progress %d out of range", ErrInvalidDataset, s.PONumber, s.Progress)
		}
	}
	ids := make(map[string]struct{}, len(d.Notifications))
	for _, n := range d.Notifications {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate notification id %s", ErrInvalidDataset, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	return nil
}

// Import replaces the workspace data with d in one transaction, keeping the
// dataset order as source order. evtType names the dataset event appended in
// the same transaction.
func Import(ctx context.Context, r repo.Repo, w events.Writer, evtType string, d Dataset) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		if err := r.ClearData(ctx, tx); err != nil {
			return err
		}
		for i, s := range d.Shipments {
			if err := r.UpsertShipment(ctx, tx, s, i); err != nil {
				return err
			}
		}
		for i, n := range d.Notifications {
			if err := r.UpsertNotification(ctx, tx, n, i); err != nil {
				return err
			}
		}
		return w.Append(ctx, tx, evtType, events.KindDataset, "", events.Payload{
			"shipments":     len(d.Shipments),
			"notifications": len(d.Notifications),
		})
	})
}

// EnsureSeeded imports the demo dataset when the workspace holds no shipments.
// It reports whether an import happened.
func EnsureSeeded(ctx context.Context, r repo.Repo, w events.Writer) (bool, error) {
	n, err := r.CountShipments(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	d, err := Mock()
	if err != nil {
		return false, err
	}
	return true, Import(ctx, r, w, events.DataImported, d)
}
