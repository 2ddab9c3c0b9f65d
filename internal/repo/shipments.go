package repo

import (
	"context"
	"database/sql"
	"fmt"

	"shiptrack/internal/domain"
)

const shipmentColumns = `id,po_number,supplier_name,port,date_clear,type,po_type,COALESCE(term,''),permit_status,
COALESCE(bl_awb_number,''),COALESCE(quality_container,''),tax_status,etd,eta,status,progress,COALESCE(pst_status,''),
COALESCE(supplier_contact,''),COALESCE(supplier_email,''),COALESCE(supplier_address,''),total_value,weight,
COALESCE(dimensions,''),COALESCE(assigned_agent,''),COALESCE(agent_contact,''),COALESCE(tracking_number,''),
COALESCE(customs_declaration,''),insurance,COALESCE(priority,''),COALESCE(special_instructions,''),documents_json,related_pos_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (domain.Shipment, error) {
	var (
		s                  domain.Shipment
		docs, related      string
		permit, tax, insur int
	)
	err := row.Scan(&s.ID, &s.PONumber, &s.SupplierName, &s.Port, &s.DateClear, &s.Type, &s.POType, &s.Term, &permit,
		&s.BLAWBNumber, &s.QualityContainer, &tax, &s.ETD, &s.ETA, &s.Status, &s.Progress, &s.PSTStatus,
		&s.SupplierContact, &s.SupplierEmail, &s.SupplierAddress, &s.TotalValue, &s.Weight,
		&s.Dimensions, &s.AssignedAgent, &s.AgentContact, &s.TrackingNumber,
		&s.CustomsDeclaration, &insur, &s.Priority, &s.SpecialInstructions, &docs, &related)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.PermitStatus, s.TaxStatus, s.Insurance = permit == 1, tax == 1, insur == 1
	if s.Documents, err = decodeList(docs); err != nil {
		return s, fmt.Errorf("shipment %s documents: %w", s.PONumber, err)
	}
	if s.RelatedPOs, err = decodeList(related); err != nil {
		return s, fmt.Errorf("shipment %s related pos: %w", s.PONumber, err)
	}
	return s, nil
}

// UpsertShipment inserts or replaces a shipment keyed by PO number. position
// fixes the shipment's place in the source order.
func (r Repo) UpsertShipment(ctx context.Context, tx *sql.Tx, s domain.Shipment, position int) error {
	docs, err := encodeList(s.Documents)
	if err != nil {
		return err
	}
	related, err := encodeList(s.RelatedPOs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO shipments(po_number,id,position,supplier_name,port,date_clear,type,po_type,term,permit_status,
bl_awb_number,quality_container,tax_status,etd,eta,status,progress,pst_status,supplier_contact,supplier_email,supplier_address,
total_value,weight,dimensions,assigned_agent,agent_contact,tracking_number,customs_declaration,insurance,priority,
special_instructions,documents_json,related_pos_json)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(po_number) DO UPDATE SET id=excluded.id,position=excluded.position,supplier_name=excluded.supplier_name,
port=excluded.port,date_clear=excluded.date_clear,type=excluded.type,po_type=excluded.po_type,term=excluded.term,
permit_status=excluded.permit_status,bl_awb_number=excluded.bl_awb_number,quality_container=excluded.quality_container,
tax_status=excluded.tax_status,etd=excluded.etd,eta=excluded.eta,status=excluded.status,progress=excluded.progress,
pst_status=excluded.pst_status,supplier_contact=excluded.supplier_contact,supplier_email=excluded.supplier_email,
supplier_address=excluded.supplier_address,total_value=excluded.total_value,weight=excluded.weight,
dimensions=excluded.dimensions,assigned_agent=excluded.assigned_agent,agent_contact=excluded.agent_contact,
tracking_number=excluded.tracking_number,customs_declaration=excluded.customs_declaration,insurance=excluded.insurance,
priority=excluded.priority,special_instructions=excluded.special_instructions,documents_json=excluded.documents_json,
related_pos_json=excluded.related_pos_json`,
		s.PONumber, s.ID, position, s.SupplierName, s.Port, s.DateClear, s.Type, s.POType, nullable(s.Term), boolInt(s.PermitStatus),
		nullable(s.BLAWBNumber), nullable(s.QualityContainer), boolInt(s.TaxStatus), s.ETD, s.ETA, s.Status, s.Progress, nullable(s.PSTStatus),
		nullable(s.SupplierContact), nullable(s.SupplierEmail), nullable(s.SupplierAddress),
		s.TotalValue, s.Weight, nullable(s.Dimensions), nullable(s.AssignedAgent), nullable(s.AgentContact), nullable(s.TrackingNumber),
		nullable(s.CustomsDeclaration), boolInt(s.Insurance), nullable(s.Priority), nullable(s.SpecialInstructions), docs, related)
	if err != nil {
		return fmt.Errorf("upsert shipment %s: %w", s.PONumber, err)
	}
	return nil
}

// ListShipments returns every shipment in source order.
func (r Repo) ListShipments(ctx context.Context) ([]domain.Shipment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY position ASC, po_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Shipment{}
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetShipment(ctx context.Context, poNumber string) (domain.Shipment, error) {
	return scanShipment(r.DB.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE po_number=?`, poNumber))
}

func (r Repo) CountShipments(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipments`).Scan(&n)
	return n, err
}
