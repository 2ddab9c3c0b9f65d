package server

import (
	"context"
	"net/http"
	"path"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shiptrack/internal/coload"
	"shiptrack/internal/domain"
	"shiptrack/internal/engine"
	"shiptrack/internal/export"
	"shiptrack/internal/filter"
	"shiptrack/internal/intake"
)

// criteriaQuery carries filter criteria on the query string. Empty values
// select everything.
type criteriaQuery struct {
	Search string `query:"search" doc:"Case-insensitive substring of supplier name or PO number"`
	Type   string `query:"type" doc:"Transport type or all" example:"Air"`
	POType string `query:"po_type" doc:"PO type or all" example:"Co-load"`
	From   string `query:"from" doc:"Inclusive lower ETD bound" example:"2025-07-01"`
	To     string `query:"to" doc:"Inclusive upper ETD bound" example:"2025-07-31"`
	Sort   string `query:"sort" enum:"none,clearDate-asc,clearDate-desc,status-asc,status-desc"`
}

func (q criteriaQuery) criteria() (filter.Criteria, error) {
	opt, err := filter.ParseSort(q.Sort)
	if err != nil {
		return filter.Criteria{}, err
	}
	c := filter.Criteria{Search: q.Search, Type: q.Type, POType: q.POType, From: q.From, To: q.To, Sort: opt}
	if err := c.Validate(); err != nil {
		return filter.Criteria{}, err
	}
	return c, nil
}

type ShipmentList struct {
	Count     int               `json:"count"`
	Total     int               `json:"total"`
	Shipments []domain.Shipment `json:"shipments"`
}

type GroupList struct {
	Groups     []coload.Group    `json:"groups"`
	Standalone []domain.Shipment `json:"standalone"`
}

type RefreshResult struct {
	Shipments     int `json:"shipments"`
	Notifications int `json:"notifications"`
}

// criteriaPatch is the body of PATCH /dashboard/criteria. Omitted fields keep
// their current value.
type criteriaPatch struct {
	Search *string `json:"search,omitempty"`
	Type   *string `json:"type,omitempty"`
	POType *string `json:"po_type,omitempty"`
	From   *string `json:"from,omitempty"`
	To     *string `json:"to,omitempty"`
	Sort   *string `json:"sort,omitempty"`
}

func registerShipments(api huma.API, cfg Config) {
	d := cfg.Session.Dashboard

	huma.Register(api, huma.Operation{
		OperationID: "list-shipments",
		Method:      http.MethodGet,
		Path:        "/shipments",
		Summary:     "Filter and sort shipments",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *criteriaQuery) (*struct {
		Body ShipmentList `json:"body"`
	}, error) {
		c, err := input.criteria()
		if err != nil {
			return nil, handleError(err)
		}
		snapshot := d.Snapshot()
		res := filter.Apply(snapshot, c)
		return &struct {
			Body ShipmentList `json:"body"`
		}{Body: ShipmentList{Count: res.Count, Total: len(snapshot), Shipments: res.Shipments}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-shipment",
		Method:      http.MethodGet,
		Path:        "/shipments/{po_number}",
		Summary:     "Get a shipment by PO number",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PONumber string `path:"po_number"`
	}) (*struct {
		Body domain.Shipment `json:"body"`
	}, error) {
		s, ok := d.Shipment(input.PONumber)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "shipment not found", map[string]any{"po_number": input.PONumber})
		}
		return &struct {
			Body domain.Shipment `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-coload-groups",
		Method:      http.MethodGet,
		Path:        "/coload-groups",
		Summary:     "Group the filtered co-load shipments by container",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *criteriaQuery) (*struct {
		Body GroupList `json:"body"`
	}, error) {
		c, err := input.criteria()
		if err != nil {
			return nil, handleError(err)
		}
		part := coload.Partition(filter.Apply(d.Snapshot(), c).Shipments)
		return &struct {
			Body GroupList `json:"body"`
		}{Body: GroupList{Groups: part.Groups, Standalone: part.Standalone}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "intake",
		Method:      http.MethodGet,
		Path:        "/intake",
		Summary:     "Purchase order intake KPIs",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body intake.KPIs `json:"body"`
	}, error) {
		return &struct {
			Body intake.KPIs `json:"body"`
		}{Body: intake.Compute(d.Snapshot(), cfg.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/refresh",
		Summary:     "Reload shipments and notifications from the data source",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RefreshResult `json:"body"`
	}, error) {
		if err := cfg.Session.Refresh(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RefreshResult `json:"body"`
		}{Body: RefreshResult{
			Shipments:     d.View().Total,
			Notifications: len(cfg.Session.Inbox.Notifications(engine.InboxFilter{})),
		}}, nil
	})
}

func registerDashboard(api huma.API, cfg Config) {
	d := cfg.Session.Dashboard

	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Current dashboard view",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.View `json:"body"`
	}, error) {
		return &struct {
			Body engine.View `json:"body"`
		}{Body: d.View()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-dashboard-criteria",
		Method:      http.MethodPatch,
		Path:        "/dashboard/criteria",
		Summary:     "Change the dashboard criteria",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body criteriaPatch
	}) (*struct {
		Body engine.View `json:"body"`
	}, error) {
		p := input.Body
		view, err := d.Update(engine.Patch{Search: p.Search, Type: p.Type, POType: p.POType, From: p.From, To: p.To, Sort: p.Sort})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.View `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-dashboard-criteria",
		Method:      http.MethodDelete,
		Path:        "/dashboard/criteria",
		Summary:     "Reset the dashboard criteria",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.View `json:"body"`
	}, error) {
		d.ClearAll()
		return &struct {
			Body engine.View `json:"body"`
		}{Body: d.View()}, nil
	})
}

// registerExport serves the current dashboard view as a workbook.
func registerExport(r chi.Router, basePath string, cfg Config) {
	r.Get(path.Join(basePath, "export/shipments.xlsx"), func(w http.ResponseWriter, r *http.Request) {
		v := cfg.Session.Dashboard.View()
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", "attachment; filename=shipments.xlsx")
		if err := export.WriteXLSX(w, v.Shipments, v.Groups); err != nil {
			cfg.Log.Error("export failed", zap.Error(err))
			http.Error(w, "failed to write workbook", http.StatusInternalServerError)
		}
	})
}
