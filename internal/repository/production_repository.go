package repository

import (
	"context"
	"fmt"

	"github.com/garagehub/shopload/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type productionRepository struct{}

// NewProductionRepository wires a repository over the production tables. All
// upserts run on the caller's transaction and are keyed by the
// crosswalk-resolved production id, so reruns update in place instead of
// duplicating rows. Each upsert reports insert (true) versus update (false)
// using the xmax system column, which is zero only for freshly inserted rows.
func NewProductionRepository() ProductionRepository {
	return &productionRepository{}
}

func (r *productionRepository) UpsertCustomer(ctx context.Context, tx pgx.Tx, id uuid.UUID, key domain.LoadKey, c domain.Customer) (bool, error) {
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO customers (
			id, partner_id, shop_id, source_app_name, external_id,
			first_name, last_name, street_address1, street_address2,
			city, state, zip_code, country, contact_cell, contact_email,
			default_labor_rate, do_not_charge_tax
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			source_app_name = EXCLUDED.source_app_name,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			street_address1 = EXCLUDED.street_address1,
			street_address2 = EXCLUDED.street_address2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			country = EXCLUDED.country,
			contact_cell = EXCLUDED.contact_cell,
			contact_email = EXCLUDED.contact_email,
			default_labor_rate = EXCLUDED.default_labor_rate,
			do_not_charge_tax = EXCLUDED.do_not_charge_tax,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, c.SourceAppName, c.ExternalID,
		c.FirstName, c.LastName, c.StreetAddress1, c.StreetAddress2,
		c.City, c.State, c.ZipCode, c.Country, c.ContactCell, c.ContactEmail,
		c.DefaultLaborRate, c.DoNotChargeTax,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert customer %s: %w", c.ExternalID, err)
	}
	return inserted, nil
}

func (r *productionRepository) UpsertVehicle(ctx context.Context, tx pgx.Tx, id uuid.UUID, customerID uuid.UUID, key domain.LoadKey, v domain.Vehicle) (bool, error) {
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO vehicles (
			id, partner_id, shop_id, customer_id, source_app_name, external_id,
			year, make, model, engine, vin, license_plate, license_state, fuel_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			source_app_name = EXCLUDED.source_app_name,
			year = EXCLUDED.year,
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			engine = EXCLUDED.engine,
			vin = EXCLUDED.vin,
			license_plate = EXCLUDED.license_plate,
			license_state = EXCLUDED.license_state,
			fuel_type = EXCLUDED.fuel_type,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, customerID, v.SourceAppName, v.ExternalID,
		v.Year, v.Make, v.Model, v.Engine, v.VIN, v.LicensePlate, v.LicenseState, v.FuelType,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert vehicle %s: %w", v.ExternalID, err)
	}
	return inserted, nil
}

func (r *productionRepository) UpsertInvoice(ctx context.Context, tx pgx.Tx, id uuid.UUID, customerID uuid.UUID, key domain.LoadKey, inv domain.Invoice) (bool, error) {
	// The imported flag is stamped on insert and never listed in the update
	// set, so reruns cannot clear the provenance marker.
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO invoices (
			id, partner_id, shop_id, customer_id, source_app_name, external_id,
			vehicle_external_id, created_on, updated_on, state, service_tag,
			mileage_in, mileage_out, shop_note, sub_total, tax, total, imported
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			source_app_name = EXCLUDED.source_app_name,
			vehicle_external_id = EXCLUDED.vehicle_external_id,
			created_on = EXCLUDED.created_on,
			updated_on = EXCLUDED.updated_on,
			state = EXCLUDED.state,
			service_tag = EXCLUDED.service_tag,
			mileage_in = EXCLUDED.mileage_in,
			mileage_out = EXCLUDED.mileage_out,
			shop_note = EXCLUDED.shop_note,
			sub_total = EXCLUDED.sub_total,
			tax = EXCLUDED.tax,
			total = EXCLUDED.total,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, customerID, inv.SourceAppName, inv.ExternalID,
		inv.VehicleExternalID, inv.CreatedOn, inv.UpdatedOn, inv.State, inv.ServiceTag,
		inv.MileageIn, inv.MileageOut, inv.ShopNote, inv.SubTotal, inv.Tax, inv.Total,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert invoice %s: %w", inv.ExternalID, err)
	}
	return inserted, nil
}

func (r *productionRepository) UpsertLineItem(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID uuid.UUID, parentID *uuid.UUID, key domain.LoadKey, li domain.LineItem) (bool, error) {
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO line_items (
			id, partner_id, shop_id, invoice_id, parent_id, source_app_name, external_id,
			line_number, dataline_type, dataline_name, description, part_number,
			cost, quantity_or_hours, subtotal, taxable, total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			invoice_id = EXCLUDED.invoice_id,
			parent_id = EXCLUDED.parent_id,
			source_app_name = EXCLUDED.source_app_name,
			line_number = EXCLUDED.line_number,
			dataline_type = EXCLUDED.dataline_type,
			dataline_name = EXCLUDED.dataline_name,
			description = EXCLUDED.description,
			part_number = EXCLUDED.part_number,
			cost = EXCLUDED.cost,
			quantity_or_hours = EXCLUDED.quantity_or_hours,
			subtotal = EXCLUDED.subtotal,
			taxable = EXCLUDED.taxable,
			total = EXCLUDED.total,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, invoiceID, parentID, li.SourceAppName, li.ExternalID,
		li.LineNumber, li.DatalineType, li.DatalineName, li.Description, li.PartNumber,
		li.Cost, li.QuantityOrHours, li.Subtotal, li.Taxable, li.Total,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert line item %s: %w", li.ExternalID, err)
	}
	return inserted, nil
}

func (r *productionRepository) UpsertPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID uuid.UUID, key domain.LoadKey, p domain.Payment) (bool, error) {
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO payments (
			id, partner_id, shop_id, invoice_id, source_app_name, external_id,
			date, amount, method, method_type, reference_no, notes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			invoice_id = EXCLUDED.invoice_id,
			source_app_name = EXCLUDED.source_app_name,
			date = EXCLUDED.date,
			amount = EXCLUDED.amount,
			method = EXCLUDED.method,
			method_type = EXCLUDED.method_type,
			reference_no = EXCLUDED.reference_no,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, invoiceID, p.SourceAppName, p.ExternalID,
		p.Date, p.Amount, p.Method, p.MethodType, p.ReferenceNo, p.Notes, p.Status,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert payment %s: %w", p.ExternalID, err)
	}
	return inserted, nil
}

func (r *productionRepository) UpsertInventoryPart(ctx context.Context, tx pgx.Tx, id uuid.UUID, key domain.LoadKey, part domain.InventoryPart) (bool, error) {
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO inventory_parts (
			id, partner_id, shop_id, source_app_name, external_id,
			part_number, description, category, unit_cost, unit_price,
			quantity_on_hand, reorder_level, supplier_part_number, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			source_app_name = EXCLUDED.source_app_name,
			part_number = EXCLUDED.part_number,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			unit_cost = EXCLUDED.unit_cost,
			unit_price = EXCLUDED.unit_price,
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			reorder_level = EXCLUDED.reorder_level,
			supplier_part_number = EXCLUDED.supplier_part_number,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, part.SourceAppName, part.ExternalID,
		part.PartNumber, part.Description, part.Category, part.UnitCost, part.UnitPrice,
		part.QuantityOnHand, part.ReorderLevel, part.SupplierPartNumber, part.Active,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert inventory part %s: %w", part.ExternalID, err)
	}
	return inserted, nil
}

func (r *productionRepository) UpsertSupplier(ctx context.Context, tx pgx.Tx, id uuid.UUID, key domain.LoadKey, s domain.Supplier) (bool, error) {
	var inserted bool
	err := tx.QueryRow(
		ctx,
		`INSERT INTO suppliers (
			id, partner_id, shop_id, source_app_name, external_id,
			name, contact_person, street_address1, city, state, zip_code,
			country, phone, email, payment_terms, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			source_app_name = EXCLUDED.source_app_name,
			name = EXCLUDED.name,
			contact_person = EXCLUDED.contact_person,
			street_address1 = EXCLUDED.street_address1,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			country = EXCLUDED.country,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			payment_terms = EXCLUDED.payment_terms,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING (xmax = 0)`,
		id, key.PartnerID, key.ShopID, s.SourceAppName, s.ExternalID,
		s.Name, s.ContactPerson, s.StreetAddress1, s.City, s.State, s.ZipCode,
		s.Country, s.Phone, s.Email, s.PaymentTerms, s.Active,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert supplier %s: %w", s.ExternalID, err)
	}
	return inserted, nil
}
