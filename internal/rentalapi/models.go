package rentalapi

// ContractSummary is an active rental contract as listed by the API
type ContractSummary struct {
	ID          string `json:"id"`
	RoomLabel   string `json:"room_label"`
	TenantLabel string `json:"tenant_name"`
	BranchLabel string `json:"branch_name"`
}

// ServiceInstance is a billable service attached to a contract.
// Readings and price are null when the API has no value yet.
type ServiceInstance struct {
	ID              string   `json:"id"`
	Name            string   `json:"service_name"`
	PreviousReading *float64 `json:"previous_reading"`
	CurrentReading  *float64 `json:"current_reading"`
	Price           *float64 `json:"price"`
}

// MeterReadingUpdate is a partial reading update; nil fields are omitted
// from the request and left unchanged server-side.
type MeterReadingUpdate struct {
	PreviousReading *float64 `json:"previous_reading,omitempty"`
	CurrentReading  *float64 `json:"current_reading,omitempty"`
}

// Empty reports whether the update carries no field at all.
func (u MeterReadingUpdate) Empty() bool {
	return u.PreviousReading == nil && u.CurrentReading == nil
}

// Report is a checkout inspection report. DamageDetails is an opaque
// JSON-encoded settlement document.
type Report struct {
	ID              string  `json:"id"`
	RequestID       string  `json:"request_id"`
	Description     string  `json:"description"`
	DamageDetails   string  `json:"damage_details"`
	TotalDamageCost float64 `json:"total_damage_cost"`
	ApprovalStatus  string  `json:"approval_status"`
}

// SaveReportRequest is the body of a report save
type SaveReportRequest struct {
	Description     string  `json:"description"`
	DamageDetails   string  `json:"damage_details"`
	TotalDamageCost float64 `json:"total_damage_cost"`
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

type itemEnvelope[T any] struct {
	Data T `json:"data"`
}
