package dto

// ErrorResponse is the uniform failure body: a stable machine code in Error,
// a human explanation in Message.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type VerificationTokenResponse struct {
	Token        string `json:"token"`
	Instructions string `json:"instructions"`
}

type PaymentInfoResponse struct {
	DealID        int64  `json:"deal_id"`
	EscrowAddress string `json:"escrow_address"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
}

type DisputeResponse struct {
	Dispute  any `json:"dispute"`
	Evidence any `json:"evidence,omitempty"`
}
