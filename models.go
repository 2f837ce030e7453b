package main

const (
	orderStatusPendingPayment = "pending_payment"
	orderStatusPaid           = "paid"
)

type Order struct {
	ID              string
	ServiceID       string
	ClientID        string
	BoosterID       string
	Amount          int64
	Currency        string
	Status          string
	PaymentIntentID string
	StreamChannelID string
}

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
}

type Balance struct {
	Amount   int64  `json:"balance"`
	Currency string `json:"currency"`
}

type depositRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type orderPaymentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	PlatformFee     int64  `json:"platform_fee"`
}

type errorResponse struct {
	Error string `json:"error"`
}
