package upsert

import (
	"errors"

	"github.com/garagehub/shopload/internal/domain"
)

// Builders turn a staging row into its typed production entity, coercing
// column values. Column names match the partner CSV contract. A missing
// external id, a missing required parent id, or an uncoercible value fails
// the row.

var errMissingExternalID = errors.New("missing external id")

func buildCustomer(row domain.StagingRow) (domain.Customer, error) {
	c := domain.Customer{
		SourceAppName:  row.Value("sourceAppName"),
		ExternalID:     row.Value("externalCustomerId"),
		FirstName:      row.Value("firstName"),
		LastName:       row.Value("lastName"),
		StreetAddress1: row.Value("streetAddress1"),
		StreetAddress2: row.Value("streetAddress2"),
		City:           row.Value("city"),
		State:          row.Value("state"),
		ZipCode:        row.Value("zipCode"),
		Country:        row.Value("country"),
		ContactCell:    row.Value("contactCell"),
		ContactEmail:   row.Value("contactEmail"),
	}
	if c.ExternalID == "" {
		return c, errMissingExternalID
	}

	var err error
	if c.DefaultLaborRate, err = coerceFloat("defaultLaborRate", row.Value("defaultLaborRate")); err != nil {
		return c, err
	}
	if c.DoNotChargeTax, err = coerceBool("doNotChargeTax", row.Value("doNotChargeTax")); err != nil {
		return c, err
	}
	return c, nil
}

func buildVehicle(row domain.StagingRow) (domain.Vehicle, error) {
	v := domain.Vehicle{
		SourceAppName:      row.Value("sourceAppName"),
		ExternalID:         row.Value("externalVehicleId"),
		CustomerExternalID: row.Value("externalCustomerId"),
		Make:               row.Value("make"),
		Model:              row.Value("model"),
		Engine:             row.Value("engine"),
		VIN:                row.Value("vin"),
		LicensePlate:       row.Value("licensePlate"),
		LicenseState:       row.Value("licenseState"),
		FuelType:           row.Value("fuelType"),
	}
	if v.ExternalID == "" {
		return v, errMissingExternalID
	}
	if v.CustomerExternalID == "" {
		return v, errors.New("missing externalCustomerId")
	}

	var err error
	if v.Year, err = coerceInt("year", row.Value("year")); err != nil {
		return v, err
	}
	return v, nil
}

func buildInvoice(row domain.StagingRow) (domain.Invoice, error) {
	inv := domain.Invoice{
		SourceAppName:      row.Value("sourceAppName"),
		ExternalID:         row.Value("externalDocumentId"),
		CustomerExternalID: row.Value("externalCustomerId"),
		VehicleExternalID:  row.Value("externalVehicleId"),
		State:              row.Value("state"),
		ServiceTag:         row.Value("serviceTag"),
		ShopNote:           row.Value("shopNote"),
	}
	if inv.ExternalID == "" {
		return inv, errMissingExternalID
	}
	if inv.CustomerExternalID == "" {
		return inv, errors.New("missing externalCustomerId")
	}

	var err error
	if inv.CreatedOn, err = coerceTime("createdOn", row.Value("createdOn")); err != nil {
		return inv, err
	}
	if inv.UpdatedOn, err = coerceTime("updatedOn", row.Value("updatedOn")); err != nil {
		return inv, err
	}
	if inv.MileageIn, err = coerceInt("mileageIn", row.Value("mileageIn")); err != nil {
		return inv, err
	}
	if inv.MileageOut, err = coerceInt("mileageOut", row.Value("mileageOut")); err != nil {
		return inv, err
	}
	if inv.SubTotal, err = coerceFloat("subTotal", row.Value("subTotal")); err != nil {
		return inv, err
	}
	if inv.Tax, err = coerceFloat("tax", row.Value("tax")); err != nil {
		return inv, err
	}
	if inv.Total, err = coerceFloat("total", row.Value("total")); err != nil {
		return inv, err
	}
	return inv, nil
}

func buildLineItem(row domain.StagingRow) (domain.LineItem, error) {
	li := domain.LineItem{
		SourceAppName:     row.Value("sourceAppName"),
		ExternalID:        row.Value("externalDatalineId"),
		InvoiceExternalID: row.Value("externalDocumentId"),
		ParentExternalID:  row.Value("externalParentDatalineId"),
		DatalineType:      row.Value("datalineType"),
		DatalineName:      row.Value("datalineName"),
		Description:       row.Value("description"),
		PartNumber:        row.Value("partNumber"),
	}
	if li.ExternalID == "" {
		return li, errMissingExternalID
	}
	if li.InvoiceExternalID == "" {
		return li, errors.New("missing externalDocumentId")
	}

	var err error
	if li.LineNumber, err = coerceInt("lineNumber", row.Value("lineNumber")); err != nil {
		return li, err
	}
	if li.Cost, err = coerceFloat("cost", row.Value("cost")); err != nil {
		return li, err
	}
	if li.QuantityOrHours, err = coerceFloat("quantityOrHours", row.Value("quantityOrHours")); err != nil {
		return li, err
	}
	if li.Subtotal, err = coerceFloat("subtotal", row.Value("subtotal")); err != nil {
		return li, err
	}
	if li.Taxable, err = coerceBool("taxable", row.Value("taxable")); err != nil {
		return li, err
	}
	if li.Total, err = coerceFloat("total", row.Value("total")); err != nil {
		return li, err
	}
	return li, nil
}

func buildPayment(row domain.StagingRow) (domain.Payment, error) {
	p := domain.Payment{
		SourceAppName:     row.Value("sourceAppName"),
		ExternalID:        row.Value("externalPaymentId"),
		InvoiceExternalID: row.Value("externalDocumentId"),
		Method:            row.Value("paymentMethod"),
		MethodType:        row.Value("paymentMethodType"),
		ReferenceNo:       row.Value("paymentReferenceNo"),
		Notes:             row.Value("paymentNotes"),
		Status:            row.Value("paymentStatus"),
	}
	if p.ExternalID == "" {
		return p, errMissingExternalID
	}
	if p.InvoiceExternalID == "" {
		return p, errors.New("missing externalDocumentId")
	}

	var err error
	if p.Date, err = coerceTime("paymentDate", row.Value("paymentDate")); err != nil {
		return p, err
	}
	if p.Amount, err = coerceFloat("paymentAmount", row.Value("paymentAmount")); err != nil {
		return p, err
	}
	return p, nil
}

func buildInventoryPart(row domain.StagingRow) (domain.InventoryPart, error) {
	part := domain.InventoryPart{
		SourceAppName:      row.Value("sourceAppName"),
		ExternalID:         row.Value("externalPartId"),
		PartNumber:         row.Value("partNumber"),
		Description:        row.Value("partDescription"),
		Category:           row.Value("partCategory"),
		SupplierPartNumber: row.Value("supplierPartNumber"),
	}
	if part.ExternalID == "" {
		return part, errMissingExternalID
	}

	var err error
	if part.UnitCost, err = coerceFloat("unitCost", row.Value("unitCost")); err != nil {
		return part, err
	}
	if part.UnitPrice, err = coerceFloat("unitPrice", row.Value("unitPrice")); err != nil {
		return part, err
	}
	if part.QuantityOnHand, err = coerceInt("quantityOnHand", row.Value("quantityOnHand")); err != nil {
		return part, err
	}
	if part.ReorderLevel, err = coerceInt("reorderLevel", row.Value("reorderLevel")); err != nil {
		return part, err
	}
	if part.Active, err = coerceBool("isActive", row.Value("isActive")); err != nil {
		return part, err
	}
	return part, nil
}

func buildSupplier(row domain.StagingRow) (domain.Supplier, error) {
	s := domain.Supplier{
		SourceAppName:  row.Value("sourceAppName"),
		ExternalID:     row.Value("externalSupplierId"),
		Name:           row.Value("supplierName"),
		ContactPerson:  row.Value("contactPerson"),
		StreetAddress1: row.Value("streetAddress1"),
		City:           row.Value("city"),
		State:          row.Value("state"),
		ZipCode:        row.Value("zipCode"),
		Country:        row.Value("country"),
		Phone:          row.Value("phoneNumber"),
		Email:          row.Value("emailAddress"),
		PaymentTerms:   row.Value("paymentTerms"),
	}
	if s.ExternalID == "" {
		return s, errMissingExternalID
	}

	var err error
	if s.Active, err = coerceBool("isActive", row.Value("isActive")); err != nil {
		return s, err
	}
	return s, nil
}

// externalIDColumn names the column holding each entity type's own external
// id, for exception records on rows that fail before building.
func externalIDColumn(t domain.EntityType) string {
	switch t {
	case domain.EntityCustomer:
		return "externalCustomerId"
	case domain.EntityVehicle:
		return "externalVehicleId"
	case domain.EntityInvoice:
		return "externalDocumentId"
	case domain.EntityLineItem:
		return "externalDatalineId"
	case domain.EntityPayment:
		return "externalPaymentId"
	case domain.EntityInventoryPart:
		return "externalPartId"
	case domain.EntitySupplier:
		return "externalSupplierId"
	}
	return ""
}
