package model

// Asset holds attributes of a hardware asset as returned by the FortiCare
// registration API (or a cached snapshot of it).
//
// nolint:govet // fieldalignment struct is easier to read in the current format
type Asset struct {
	// SerialNumber is the unique device identity key.
	SerialNumber string `json:"serialNumber"`

	// ProductModel classifies the device, eg. "FortiGate 100F".
	ProductModel string `json:"productModel"`

	Description string `json:"description"`

	// Entitlements are the support contract line items attached to the asset,
	// in the order the vendor API returned them.
	Entitlements []Entitlement `json:"entitlements"`
}

// Entitlement is a single support/service contract line item with its own
// expiration date.
type Entitlement struct {
	TypeDesc  string `json:"typeDesc"`
	LevelDesc string `json:"levelDesc"`

	// EndDate is the contract end date, ISO-8601 encoded, possibly carrying a
	// time component which is ignored.
	EndDate string `json:"endDate"`
}
