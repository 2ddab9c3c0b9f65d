package shiptracksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal shiptrack HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Shipment represents the API shipment model (partial).
type Shipment struct {
	ID               string   `json:"id"`
	SupplierName     string   `json:"supplier_name"`
	PONumber         string   `json:"po_number"`
	Port             string   `json:"port"`
	DateClear        string   `json:"date_clear"`
	Type             string   `json:"type"`
	POType           string   `json:"po_type"`
	QualityContainer string   `json:"quality_container,omitempty"`
	ETD              string   `json:"etd"`
	ETA              string   `json:"eta"`
	Status           string   `json:"status"`
	Progress         int      `json:"progress"`
	TotalValue       float64  `json:"total_value"`
	Weight           string   `json:"weight"`
	RelatedPOs       []string `json:"related_pos"`
}

// Group is a co-load container group.
type Group struct {
	Key                string         `json:"key"`
	Container          string         `json:"container"`
	Shipments          []Shipment     `json:"shipments"`
	TotalValue         float64        `json:"total_value"`
	TotalWeight        float64        `json:"total_weight"`
	WeightUnit         string         `json:"weight_unit"`
	Ports              []string       `json:"ports"`
	Suppliers          []string       `json:"suppliers"`
	StatusCounts       map[string]int `json:"status_counts"`
	MostCriticalStatus string         `json:"most_critical_status"`
	UnresolvedPOs      []string       `json:"unresolved_pos"`
}

type Notification struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	PONumber       string `json:"po_number"`
	Author         string `json:"author,omitempty"`
	Timestamp      string `json:"timestamp"`
	IsRead         bool   `json:"is_read"`
	Priority       string `json:"priority"`
	ActionRequired bool   `json:"action_required"`
}

// Query holds shipment filter criteria. Zero values are omitted.
type Query struct {
	Search string
	Type   string
	POType string
	From   string
	To     string
	Sort   string
}

func (q Query) values() url.Values {
	v := url.Values{}
	for key, val := range map[string]string{
		"search": q.Search, "type": q.Type, "po_type": q.POType, "from": q.From, "to": q.To, "sort": q.Sort,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

type ShipmentList struct {
	Count     int        `json:"count"`
	Total     int        `json:"total"`
	Shipments []Shipment `json:"shipments"`
}

type GroupList struct {
	Groups     []Group    `json:"groups"`
	Standalone []Shipment `json:"standalone"`
}

type Mutation struct {
	Kind     string `json:"kind,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Phase    string `json:"phase"`
	Error    string `json:"error,omitempty"`
}

type Inbox struct {
	UnreadCount   int            `json:"unread_count"`
	Counts        map[string]int `json:"counts"`
	LastMutation  Mutation       `json:"last_mutation"`
	Notifications []Notification `json:"notifications"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListShipments filters and sorts shipments on the server.
func (c *Client) ListShipments(ctx context.Context, q Query) (ShipmentList, error) {
	var resp ShipmentList
	err := c.do(ctx, http.MethodGet, c.path("shipments", q.values()), nil, &resp)
	return resp, err
}

func (c *Client) GetShipment(ctx context.Context, poNumber string) (Shipment, error) {
	var resp Shipment
	err := c.do(ctx, http.MethodGet, c.path("shipments/"+url.PathEscape(poNumber), nil), nil, &resp)
	return resp, err
}

// ColoadGroups groups the co-load shipments matching q.
func (c *Client) ColoadGroups(ctx context.Context, q Query) (GroupList, error) {
	var resp GroupList
	err := c.do(ctx, http.MethodGet, c.path("coload-groups", q.values()), nil, &resp)
	return resp, err
}

// Notifications lists the inbox, optionally narrowed to a type or to unread items.
func (c *Client) Notifications(ctx context.Context, notificationType string, unreadOnly bool) (Inbox, error) {
	v := url.Values{}
	if notificationType != "" {
		v.Set("type", notificationType)
	}
	if unreadOnly {
		v.Set("unread_only", strconv.FormatBool(true))
	}
	var resp Inbox
	err := c.do(ctx, http.MethodGet, c.path("notifications", v), nil, &resp)
	return resp, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (Inbox, error) {
	var resp Inbox
	err := c.do(ctx, http.MethodPost, c.path("notifications/"+url.PathEscape(id)+"/read", nil), nil, &resp)
	return resp, err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (Inbox, error) {
	var resp Inbox
	err := c.do(ctx, http.MethodPost, c.path("notifications/read-all", nil), nil, &resp)
	return resp, err
}

func (c *Client) DeleteNotification(ctx context.Context, id string) (Inbox, error) {
	var resp Inbox
	err := c.do(ctx, http.MethodDelete, c.path("notifications/"+url.PathEscape(id), nil), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) path(p string, query url.Values) string {
	base := "/" + strings.Trim(c.BasePath, "/")
	if base == "/" {
		base = ""
	}
	res := base + "/" + strings.TrimLeft(p, "/")
	if len(query) > 0 {
		res += "?" + query.Encode()
	}
	return res
}
