package domain

import "time"

// Production entity structs. Field sets follow the partner CSV contract;
// external identifiers keep their source spelling so the staging column
// mapping stays one-to-one. All production entities are keyed internally by a
// uuid resolved through the crosswalk, never by the external id itself.

// Customer is the root of the dependency chain.
type Customer struct {
	SourceAppName  string
	ExternalID     string
	FirstName      string
	LastName       string
	StreetAddress1 string
	StreetAddress2 string
	City           string
	State          string
	ZipCode        string
	Country        string
	ContactCell    string
	ContactEmail   string
	DefaultLaborRate *float64
	DoNotChargeTax   *bool
}

// Vehicle belongs to a Customer.
type Vehicle struct {
	SourceAppName      string
	ExternalID         string
	CustomerExternalID string
	Year               *int
	Make               string
	Model              string
	Engine             string
	VIN                string
	LicensePlate       string
	LicenseState       string
	FuelType           string
}

// Invoice belongs to a Customer and optionally references a Vehicle.
// Imported is stamped true exactly once, at creation through this pipeline.
type Invoice struct {
	SourceAppName      string
	ExternalID         string
	CustomerExternalID string
	VehicleExternalID  string
	CreatedOn          *time.Time
	UpdatedOn          *time.Time
	State              string
	ServiceTag         string
	MileageIn          *int
	MileageOut         *int
	ShopNote           string
	SubTotal           *float64
	Tax                *float64
	Total              *float64
	Imported           bool
}

// LineItem belongs to an Invoice and may reference a parent LineItem within
// the same load for hierarchical billing.
type LineItem struct {
	SourceAppName     string
	ExternalID        string
	InvoiceExternalID string
	ParentExternalID  string
	LineNumber        *int
	DatalineType      string
	DatalineName      string
	Description       string
	PartNumber        string
	Cost              *float64
	QuantityOrHours   *float64
	Subtotal          *float64
	Taxable           *bool
	Total             *float64
}

// Payment belongs to an Invoice.
type Payment struct {
	SourceAppName     string
	ExternalID        string
	InvoiceExternalID string
	Date              *time.Time
	Amount            *float64
	Method            string
	MethodType        string
	ReferenceNo       string
	Notes             string
	Status            string
}

// InventoryPart is reference data with no parent dependency.
type InventoryPart struct {
	SourceAppName      string
	ExternalID         string
	PartNumber         string
	Description        string
	Category           string
	UnitCost           *float64
	UnitPrice          *float64
	QuantityOnHand     *int
	ReorderLevel       *int
	SupplierPartNumber string
	Active             *bool
}

// Supplier is reference data with no parent dependency.
type Supplier struct {
	SourceAppName  string
	ExternalID     string
	Name           string
	ContactPerson  string
	StreetAddress1 string
	City           string
	State          string
	ZipCode        string
	Country        string
	Phone          string
	Email          string
	PaymentTerms   string
	Active         *bool
}
