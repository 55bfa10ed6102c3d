// Package transition defines the closed set of maintenance item statuses
// and the legal moves between them. Statuses carry the Arabic display
// strings shown on the shop floor; they double as the persisted values.
package transition

// Status is the physical location / readiness state of a maintenance item.
type Status string

const (
	// StatusAtCompany: the item is out at the repair company.
	StatusAtCompany Status = "موجودة في الشركة"
	// StatusInShop: in the shop, repaired, ready for delivery.
	StatusInShop Status = "موجودة في المحل وجاهزة للتسليم"
	// StatusInWarehouse: in the warehouse, repaired, ready for delivery.
	StatusInWarehouse Status = "موجودة في المخزن وجاهزة للتسليم"
	// StatusCustomerShop: reserved for customer pickup from the shop.
	StatusCustomerShop Status = "جاهزة للتسليم للزبون من المحل"
	// StatusCustomerWarehouse: reserved for customer pickup from the warehouse.
	StatusCustomerWarehouse Status = "جاهزة للتسليم للزبون من المخزن"
	// StatusDelivered: handed to the customer. Terminal.
	StatusDelivered Status = "تم التسليم للزبون"
)

// AllStatuses lists every valid status value.
var AllStatuses = []Status{
	StatusAtCompany,
	StatusInShop,
	StatusInWarehouse,
	StatusCustomerShop,
	StatusCustomerWarehouse,
	StatusDelivered,
}

// Valid reports whether s is one of the known statuses.
func Valid(s Status) bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Definition is one operator-selectable transition. AllowedFrom is never
// empty and next is total over AllowedFrom.
type Definition struct {
	ID    string
	Label string

	AllowedFrom []Status
	next        map[Status]Status
}

// IsLegal reports whether the transition may be applied to an item
// currently in status s. Pure membership test, no side effects.
func (d Definition) IsLegal(s Status) bool {
	_, ok := d.next[s]
	return ok
}

// Next returns the status the item moves to when the transition is applied
// from current. Callers must check IsLegal first; Next returns false for
// statuses outside the allowed set.
func (d Definition) Next(current Status) (Status, bool) {
	n, ok := d.next[current]
	return n, ok
}

// Transition IDs, stable across API and persisted history notes.
const (
	StoreToWarehouse   = "store_to_warehouse"
	CompanyToShop      = "company_to_shop"
	CompanyToWarehouse = "company_to_warehouse"
	SendToCompany      = "send_to_company"
	WarehouseToStore   = "warehouse_to_store"
	DeliverToCustomer  = "deliver_to_customer"
)

// catalog is the complete set of legal transitions. The two shop/warehouse
// moves branch on the matched current status so the "reserved for customer"
// variant survives the physical move.
var catalog = []Definition{
	{
		ID:          StoreToWarehouse,
		Label:       "نقل من المحل إلى المخزن",
		AllowedFrom: []Status{StatusInShop, StatusCustomerShop},
		next: map[Status]Status{
			StatusInShop:       StatusInWarehouse,
			StatusCustomerShop: StatusCustomerWarehouse,
		},
	},
	{
		ID:          CompanyToShop,
		Label:       "استلام من الشركة إلى المحل",
		AllowedFrom: []Status{StatusAtCompany},
		next: map[Status]Status{
			StatusAtCompany: StatusCustomerShop,
		},
	},
	{
		ID:          CompanyToWarehouse,
		Label:       "استلام من الشركة إلى المخزن",
		AllowedFrom: []Status{StatusAtCompany},
		next: map[Status]Status{
			StatusAtCompany: StatusCustomerWarehouse,
		},
	},
	{
		ID:          SendToCompany,
		Label:       "إرسال إلى الشركة",
		AllowedFrom: []Status{StatusInShop, StatusInWarehouse},
		next: map[Status]Status{
			StatusInShop:      StatusAtCompany,
			StatusInWarehouse: StatusAtCompany,
		},
	},
	{
		ID:          WarehouseToStore,
		Label:       "نقل من المخزن إلى المحل",
		AllowedFrom: []Status{StatusInWarehouse, StatusCustomerWarehouse},
		next: map[Status]Status{
			StatusInWarehouse:       StatusInShop,
			StatusCustomerWarehouse: StatusCustomerShop,
		},
	},
	{
		ID:          DeliverToCustomer,
		Label:       "تسليم للزبون",
		AllowedFrom: []Status{StatusCustomerShop, StatusCustomerWarehouse},
		next: map[Status]Status{
			StatusCustomerShop:      StatusDelivered,
			StatusCustomerWarehouse: StatusDelivered,
		},
	},
}

// Catalog returns the transitions in their fixed display order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a transition definition by its stable id.
func ByID(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
