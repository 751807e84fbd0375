package openrtb_ext

// ExtImpTriplelift defines the contract for bid.params of the triplelift bidder.
type ExtImpTriplelift struct {
	InventoryCode string   `json:"inventoryCode"`
	Floor         *float64 `json:"floor,omitempty"`
}
