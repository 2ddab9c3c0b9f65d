package domain

// Transport types.
const (
	TransportAir     = "Air"
	TransportOversea = "Oversea"
	TransportTruck   = "Truck"
)

// Purchase order types. Only Co-load shipments take part in container grouping.
const (
	POTypeSingle   = "Single"
	POTypeMultiple = "Multiple"
	POTypeCoload   = "Co-load"
)

// Shipment lifecycle statuses.
const (
	StatusSubmitted = "submitted"
	StatusConfirm   = "confirm"
	StatusApproved  = "approved"
	StatusPreparing = "preparing"
	StatusInTransit = "in-transit"
	StatusClearance = "clearance"
	StatusDelayed   = "delayed"
	StatusCompleted = "completed"
)

// Pre-shipment testing statuses.
const (
	PSTNotStarted = "not-started"
	PSTInProgress = "in-progress"
	PSTCompleted  = "completed"
)

// Statuses lists every known shipment status in lifecycle order.
var Statuses = []string{
	StatusSubmitted,
	StatusConfirm,
	StatusApproved,
	StatusPreparing,
	StatusInTransit,
	StatusClearance,
	StatusDelayed,
	StatusCompleted,
}

var (
	TransportTypes = []string{TransportAir, TransportOversea, TransportTruck}
	POTypes        = []string{POTypeSingle, POTypeMultiple, POTypeCoload}
)

type Shipment struct {
	ID                  string   `json:"id" yaml:"id"`
	SupplierName        string   `json:"supplier_name" yaml:"supplier_name"`
	PONumber            string   `json:"po_number" yaml:"po_number"`
	Port                string   `json:"port" yaml:"port"`
	DateClear           string   `json:"date_clear" yaml:"date_clear" format:"date"`
	Type                string   `json:"type" yaml:"type" enum:"Air,Oversea,Truck"`
	POType              string   `json:"po_type" yaml:"po_type" enum:"Single,Multiple,Co-load"`
	Term                string   `json:"term,omitempty" yaml:"term"`
	PermitStatus        bool     `json:"permit_status" yaml:"permit_status"`
	BLAWBNumber         string   `json:"bl_awb_number,omitempty" yaml:"bl_awb_number"`
	QualityContainer    string   `json:"quality_container,omitempty" yaml:"quality_container"`
	TaxStatus           bool     `json:"tax_status" yaml:"tax_status"`
	ETD                 string   `json:"etd" yaml:"etd" format:"date"`
	ETA                 string   `json:"eta" yaml:"eta" format:"date"`
	Status              string   `json:"status" yaml:"status"`
	Progress            int      `json:"progress" yaml:"progress" minimum:"0" maximum:"100"`
	PSTStatus           string   `json:"pst_status,omitempty" yaml:"pst_status"`
	SupplierContact     string   `json:"supplier_contact,omitempty" yaml:"supplier_contact"`
	SupplierEmail       string   `json:"supplier_email,omitempty" yaml:"supplier_email"`
	SupplierAddress     string   `json:"supplier_address,omitempty" yaml:"supplier_address"`
	TotalValue          float64  `json:"total_value" yaml:"total_value"`
	Weight              string   `json:"weight" yaml:"weight"`
	Dimensions          string   `json:"dimensions,omitempty" yaml:"dimensions"`
	AssignedAgent       string   `json:"assigned_agent,omitempty" yaml:"assigned_agent"`
	AgentContact        string   `json:"agent_contact,omitempty" yaml:"agent_contact"`
	TrackingNumber      string   `json:"tracking_number,omitempty" yaml:"tracking_number"`
	CustomsDeclaration  string   `json:"customs_declaration,omitempty" yaml:"customs_declaration"`
	Insurance           bool     `json:"insurance" yaml:"insurance"`
	Priority            string   `json:"priority,omitempty" yaml:"priority"`
	SpecialInstructions string   `json:"special_instructions,omitempty" yaml:"special_instructions"`
	Documents           []string `json:"documents" yaml:"documents"`
	RelatedPOs          []string `json:"related_pos" yaml:"related_pos"`
}

// IsCoload reports whether the shipment shares a container with other POs.
func (s Shipment) IsCoload() bool {
	return s.POType == POTypeCoload
}

type Notification struct {
	ID             string `json:"id" yaml:"id"`
	Type           string `json:"type" yaml:"type" enum:"mention,comment,system,action,update"`
	Title          string `json:"title" yaml:"title"`
	Message        string `json:"message" yaml:"message"`
	PONumber       string `json:"po_number" yaml:"po_number"`
	Author         string `json:"author,omitempty" yaml:"author"`
	Timestamp      string `json:"timestamp" yaml:"timestamp" format:"date-time"`
	IsRead         bool   `json:"is_read" yaml:"is_read"`
	Priority       string `json:"priority" yaml:"priority" enum:"low,medium,high"`
	ActionRequired bool   `json:"action_required" yaml:"action_required"`
}

// NotificationTypes lists the inbox tabs in display order.
var NotificationTypes = []string{"mention", "comment", "system", "action", "update"}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
