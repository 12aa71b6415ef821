package domain

// ServiceResult is the uniform envelope returned by mutating
// orchestration operations. Expected business failures surface as
// error values, so a ServiceResult always describes a successful
// operation; the flag exists for wire compatibility with clients that
// branch on it.
type ServiceResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK builds a successful result with an optional payload.
func OK(message string, data any) *ServiceResult {
	return &ServiceResult{Success: true, Message: message, Data: data}
}

// AvailabilityInfo is the transient answer of a product availability
// check. It is consumed immediately and never persisted.
type AvailabilityInfo struct {
	ProductID    string `json:"product_id"`
	IsAvailable  bool   `json:"is_available"`
	CurrentPrice int64  `json:"current_price"`
}
