package models

type StartRequest struct {
	DisplayName string `json:"display_name"`
	Referrer    string `json:"referrer"`
}

type WithdrawAmountRequest struct {
	Amount string `json:"amount"`
}

type LoginRequest struct {
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}
