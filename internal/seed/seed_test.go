package seed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"shiptrack/internal/db"
	"shiptrack/internal/events"
	"shiptrack/internal/migrate"
	"shiptrack/internal/repo"
	"shiptrack/internal/seed"
)

func TestMockDatasetIsValid(t *testing.T) {
	d, err := seed.Mock()
	require.NoError(t, err)
	require.Len(t, d.Notifications, 5)
	require.NotEmpty(t, d.Shipments)
	require.Equal(t, "PO-2025-001", d.Shipments[0].PONumber)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"duplicate po": `shipments:
  - po_number: PO-1
  - po_number: PO-1
`,
		"self reference": `shipments:
  - po_number: PO-1
    related_pos: [PO-2, PO-1]
`,
		"missing po":    "shipments:\n  - supplier_name: nobody\n",
		"unknown field": "shipments:\n  - po_number: PO-1\n    colour: red\n",
		"progress":      "shipments:\n  - po_number: PO-1\n    progress: 140\n",
	}
	for name, doc := range tests {
		_, err := seed.Parse([]byte(doc))
		if !errors.Is(err, seed.ErrInvalidDataset) {
			t.Errorf("%s: expected ErrInvalidDataset, got %v", name, err)
		}
	}
}

func TestParseFillsDefaults(t *testing.T) {
	d, err := seed.Parse([]byte("shipments:\n  - po_number: ' PO-1 '\nnotifications:\n  - title: hi\n"))
	require.NoError(t, err)
	require.Equal(t, "PO-1", d.Shipments[0].PONumber)
	require.NotEmpty(t, d.Shipments[0].ID)
	require.NotNil(t, d.Shipments[0].RelatedPOs)
	require.NotEmpty(t, d.Notifications[0].ID)
}

func TestEnsureSeededOnce(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(ctx, conn))
	r := repo.Repo{DB: conn}
	w := events.Writer{}

	seeded, err := seed.EnsureSeeded(ctx, r, w)
	require.NoError(t, err)
	require.True(t, seeded)
	seeded, err = seed.EnsureSeeded(ctx, r, w)
	require.NoError(t, err)
	require.False(t, seeded)

	d, _ := seed.Mock()
	got, err := r.ListShipments(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(d.Shipments))
	for i := range got {
		require.Equal(t, d.Shipments[i].PONumber, got[i].PONumber)
	}
	evts, err := r.LatestEvents(ctx, events.KindDataset, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	require.Equal(t, events.DataImported, evts[0].Type)
}
