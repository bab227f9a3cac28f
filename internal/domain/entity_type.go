package domain

// EntityType identifies one of the seven import entity types. The string
// value doubles as the staging tag and the base name of the source file.
type EntityType string

const (
	EntityCustomer      EntityType = "customers"
	EntityVehicle       EntityType = "vehicles"
	EntityInvoice       EntityType = "invoices"
	EntityLineItem      EntityType = "line_items"
	EntityPayment       EntityType = "payments"
	EntityInventoryPart EntityType = "inventory_parts"
	EntitySupplier      EntityType = "suppliers"
)

// DependencyChain returns the strictly ordered entity types. Each element
// may reference production rows created by the elements before it.
func DependencyChain() []EntityType {
	return []EntityType{EntityCustomer, EntityVehicle, EntityInvoice, EntityLineItem, EntityPayment}
}

// IndependentSet returns the entity types with no parent dependency. They
// may be processed concurrently with the chain and with each other.
func IndependentSet() []EntityType {
	return []EntityType{EntityInventoryPart, EntitySupplier}
}

// AllEntityTypes returns every entity type in reporting order.
func AllEntityTypes() []EntityType {
	return append(DependencyChain(), IndependentSet()...)
}

// FileName returns the source file name declared in the manifest for this
// entity type.
func (t EntityType) FileName() string {
	return string(t) + ".csv"
}
