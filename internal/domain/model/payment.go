package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"mpesa-subscription-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // STK push sent; awaiting gateway callback
	PaymentStatusCompleted PaymentStatus = "completed" // callback delivered ResultCode 0
	PaymentStatusFailed    PaymentStatus = "failed"    // callback delivered a non-zero result
	PaymentStatusCanceled  PaymentStatus = "canceled"  // no callback ever arrived; swept as stale
)

// PaymentRequest records one STK push and its eventual outcome. Rows are an
// audit trail and are never deleted; only the pending->terminal transition
// mutates them.
type PaymentRequest struct {
	ID             string
	UserID         string
	SubscriptionID *string // nil unless the push pays for a plan
	Amount         int64   // whole KSh, as charged at the gateway
	PhoneNumber    string
	// Gateway correlation identifiers, both globally unique.
	CheckoutRequestID string
	MerchantRequestID string
	ReceiptNumber     string // set only on completion; may be empty if the gateway omits it
	Status            PaymentStatus
	ResultCode        *int
	ResultDescription string
	TransactionDate   *time.Time
	Metadata          map[string]any // flattened callback items, schema-open
	Description       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ValidatePhoneNumber enforces the normalized international format the
// gateway accepts: "254" country code followed by nine digits.
func ValidatePhoneNumber(phone string) error {
	if len(phone) != 12 || phone[:3] != "254" {
		return domain.ErrInvalidPhoneNumber
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return domain.ErrInvalidPhoneNumber
		}
	}
	return nil
}

// NewPaymentRequest validates and constructs a pending payment record.
func NewPaymentRequest(userID, phone string, amount int64, checkoutID, merchantID, description string) (*PaymentRequest, error) {
	if userID == "" || checkoutID == "" || merchantID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if err := ValidatePhoneNumber(phone); err != nil {
		return nil, err
	}
	now := time.Now()
	return &PaymentRequest{
		ID:                ulid.Make().String(),
		UserID:            userID,
		Amount:            amount,
		PhoneNumber:       phone,
		CheckoutRequestID: checkoutID,
		MerchantRequestID: merchantID,
		Status:            PaymentStatusPending,
		Description:       description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (p *PaymentRequest) IsTerminal() bool {
	return p.Status != PaymentStatusPending
}

func (p *PaymentRequest) IsSuccessful() bool {
	return p.Status == PaymentStatusCompleted && p.ResultCode != nil && *p.ResultCode == 0
}
