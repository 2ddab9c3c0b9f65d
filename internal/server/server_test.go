package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"shiptrack/internal/app"
	"shiptrack/internal/config"
	"shiptrack/internal/domain"
	"shiptrack/internal/engine"
	shiptracksdk "shiptrack/sdk/go"
)

type testServer struct {
	URL     string
	client  *http.Client
	session *app.Session
	close   func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.Mock.Latency = false
	session, err := app.Open(ctx, t.TempDir(), cfg, nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := session.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	now := func() time.Time { return time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC) }
	handler, err := New(Config{Session: session, BasePath: "/v0", Now: now})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:     "http://" + ln.Addr().String(),
		client:  &http.Client{},
		session: session,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			session.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("unexpected health body %s", string(data))
	}
}

func TestListShipmentsFiltersAndSorts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	client := shiptracksdk.New(srv.URL)

	all, err := client.ListShipments(ctx, shiptracksdk.Query{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if all.Total != 10 || all.Count != 10 {
		t.Fatalf("expected 10/10 shipments, got %d/%d", all.Count, all.Total)
	}
	if all.Shipments[0].PONumber != "PO-2025-001" {
		t.Fatalf("expected source order, got %s first", all.Shipments[0].PONumber)
	}

	air, err := client.ListShipments(ctx, shiptracksdk.Query{Type: domain.TransportAir})
	if err != nil {
		t.Fatalf("list air: %v", err)
	}
	if air.Count != 3 || air.Total != 10 {
		t.Fatalf("expected 3 air shipments of 10, got %d of %d", air.Count, air.Total)
	}
	for _, s := range air.Shipments {
		if s.Type != domain.TransportAir {
			t.Fatalf("non-air shipment %s in result", s.PONumber)
		}
	}

	coload, err := client.ListShipments(ctx, shiptracksdk.Query{POType: domain.POTypeCoload, Search: "po-2025-00"})
	if err != nil {
		t.Fatalf("list co-load: %v", err)
	}
	if coload.Count != 5 {
		t.Fatalf("expected 5 co-load shipments matching search, got %d", coload.Count)
	}

	ranged, err := client.ListShipments(ctx, shiptracksdk.Query{From: "2025-07-03", To: "2025-07-03"})
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	if ranged.Count != 3 {
		t.Fatalf("expected 3 shipments departing 2025-07-03, got %d", ranged.Count)
	}

	sorted, err := client.ListShipments(ctx, shiptracksdk.Query{Sort: "clearDate-asc"})
	if err != nil {
		t.Fatalf("list sorted: %v", err)
	}
	if last := sorted.Shipments[len(sorted.Shipments)-1]; last.DateClear != "invalid-date" {
		t.Fatalf("expected unparsable clear date last, got %s (%s)", last.PONumber, last.DateClear)
	}
}

func TestListShipmentsRejectsBadCriteria(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/shipments?sort=sideways", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/shipments?from=2025-07-10&to=2025-07-01", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d: %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "invalid_criteria" {
		t.Fatalf("expected invalid_criteria, got %+v", env.Error)
	}

	_, err := shiptracksdk.New(srv.URL).ListShipments(context.Background(), shiptracksdk.Query{From: "07/01/2025"})
	var apiErr *shiptracksdk.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_criteria" {
		t.Fatalf("expected invalid_criteria api error, got %v", err)
	}
}

func TestGetShipment(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := shiptracksdk.New(srv.URL)

	s, err := client.GetShipment(context.Background(), "PO-2025-005")
	if err != nil {
		t.Fatalf("get shipment: %v", err)
	}
	if s.POType != domain.POTypeCoload || len(s.RelatedPOs) != 2 {
		t.Fatalf("unexpected shipment %+v", s)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/shipments/PO-0000", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "not_found" || env.Error.Details["po_number"] != "PO-0000" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestColoadGroups(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := shiptracksdk.New(srv.URL)

	res, err := client.ColoadGroups(context.Background(), shiptracksdk.Query{})
	if err != nil {
		t.Fatalf("coload groups: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(res.Groups))
	}
	first := res.Groups[0]
	if first.Key != "PO-2025-005|PO-2025-006|PO-2025-007" || len(first.Shipments) != 3 {
		t.Fatalf("unexpected first group %+v", first)
	}
	if first.WeightUnit != "kg" || first.TotalWeight <= 0 {
		t.Fatalf("expected summed weight in kg, got %v %s", first.TotalWeight, first.WeightUnit)
	}
	second := res.Groups[1]
	if len(second.UnresolvedPOs) != 1 || second.UnresolvedPOs[0] != "PO-2025-099" {
		t.Fatalf("expected PO-2025-099 unresolved, got %v", second.UnresolvedPOs)
	}
	if len(res.Standalone) != 1 || res.Standalone[0].PONumber != "PO-2025-010" {
		t.Fatalf("unexpected standalone %+v", res.Standalone)
	}

	// Hiding one member keeps the group key stable.
	air, err := client.ColoadGroups(context.Background(), shiptracksdk.Query{Search: "PO-2025-008"})
	if err != nil {
		t.Fatalf("coload groups filtered: %v", err)
	}
	if len(air.Groups) != 1 || air.Groups[0].Key != second.Key || len(air.Groups[0].Shipments) != 1 {
		t.Fatalf("unexpected filtered groups %+v", air.Groups)
	}
}

func TestDashboardCriteria(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/dashboard/criteria", map[string]any{
		"type": "Truck",
		"sort": "status-desc",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch criteria status %d: %s", res.StatusCode, string(data))
	}
	var view engine.View
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if view.Count != 2 || view.Criteria.Type != "Truck" || view.Criteria.Sort != "status-desc" {
		t.Fatalf("unexpected view criteria=%+v count=%d", view.Criteria, view.Count)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/dashboard/criteria", map[string]any{
		"search": "ignored",
		"from":   "not-a-date",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d: %s", res.StatusCode, string(data))
	}
	if got := srv.session.Dashboard.Criteria(); got.Search != "" || got.Type != "Truck" {
		t.Fatalf("rejected patch must not change criteria, got %+v", got)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/dashboard/criteria", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clear criteria status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if view.Count != 10 || view.Criteria.Type != "all" {
		t.Fatalf("expected defaults after clear, got %+v", view.Criteria)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/intake", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("intake status %d: %s", res.StatusCode, string(data))
	}
	if !strings.Contains(string(data), `"date":"2025-07-03"`) {
		t.Fatalf("intake should use the configured clock: %s", string(data))
	}
}

func TestNotifications(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	client := shiptracksdk.New(srv.URL)

	inbox, err := client.Notifications(ctx, "", false)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if inbox.UnreadCount != 3 || len(inbox.Notifications) != 5 || inbox.Counts["all"] != 5 {
		t.Fatalf("unexpected inbox %+v", inbox)
	}

	unread, err := client.Notifications(ctx, "", true)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread.Notifications) != 3 {
		t.Fatalf("expected 3 unread, got %d", len(unread.Notifications))
	}

	inbox, err = client.MarkNotificationRead(ctx, "n1")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if inbox.UnreadCount != 2 || inbox.LastMutation.Phase != "committed" {
		t.Fatalf("unexpected inbox after mark read %+v", inbox)
	}

	_, err = client.MarkNotificationRead(ctx, "missing")
	var apiErr *shiptracksdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown notification, got %v", err)
	}
	if got := srv.session.Inbox.LastMutation().Phase; got != engine.PhaseRolledBack {
		t.Fatalf("expected rolled back mutation, got %s", got)
	}
	if got := srv.session.Inbox.UnreadCount(); got != 2 {
		t.Fatalf("rollback must keep unread count, got %d", got)
	}

	inbox, err = client.DeleteNotification(ctx, "n2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(inbox.Notifications) != 4 || inbox.Counts["comment"] != 0 {
		t.Fatalf("unexpected inbox after delete %+v", inbox)
	}

	inbox, err = client.MarkAllNotificationsRead(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if inbox.UnreadCount != 0 {
		t.Fatalf("expected no unread, got %d", inbox.UnreadCount)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/notifications?type=fax", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d: %s", res.StatusCode, string(data))
	}
}

func TestEvents(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	if _, err := shiptracksdk.New(srv.URL).MarkNotificationRead(context.Background(), "n4"); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?entity_kind=notification&limit=10", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var list EventList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Type != "notification.read" || list.Items[0].EntityID != "n4" {
		t.Fatalf("unexpected events %+v", list.Items)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?limit=0", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?entity_kind=shipment", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an entity kind that is never logged, got %d: %s", res.StatusCode, string(data))
	}
}

func TestExportAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/export/shipments.xlsx", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export status %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("workbook should be a zip archive")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "shiptrack_recomputes_total") {
		t.Fatalf("metrics missing recompute counter: %d", res.StatusCode)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	for _, p := range []string{"/v0/shipments", "/v0/coload-groups", "/v0/notifications/{id}/read", "/v0/dashboard/criteria"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("openapi missing path %s", p)
		}
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/docs", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("docs status %d", res.StatusCode)
	}
	if !strings.Contains(string(data), `url: "/v0/openapi.json"`) {
		t.Fatalf("docs page should load the base path document: %s", string(data))
	}
}
