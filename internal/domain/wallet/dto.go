package wallet

import "github.com/shopspring/decimal"

type TransferRequest struct {
	Recipient   string          `json:"recipient" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description" validate:"omitempty,max=500"`
}

type RecipientResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Handle    string  `json:"handle"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
