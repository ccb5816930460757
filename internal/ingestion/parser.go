package ingestion

import (
	"strconv"
	"strings"

	"github.com/majisafe/bridge/internal/domain"
)

// ParseCommand parses a raw SMS payment command into a PaymentRequest.
//
// Expected format (case-insensitive, whitespace-separated):
//
//	PAY <amount> <currency> <pumpID>
//
// A *domain.ParseError is returned when the token count, keyword or
// amount do not match. Parsing has no side effects; currency support and
// minimum value are the validator's concern.
func ParseCommand(senderID, text string) (*domain.PaymentRequest, error) {
	parts := strings.Fields(strings.ToUpper(strings.TrimSpace(text)))
	if len(parts) != 4 {
		return nil, &domain.ParseError{
			Reason: "expected: PAY <amount> <currency> <pump>, e.g. PAY 5000 BIF PUMP001",
		}
	}
	if parts[0] != "PAY" {
		return nil, &domain.ParseError{
			Reason: "command must start with PAY",
		}
	}

	amount, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, &domain.ParseError{
			Reason: "amount is not a number: " + parts[1],
		}
	}
	if amount <= 0 {
		return nil, &domain.ParseError{
			Reason: "amount must be positive",
		}
	}

	return &domain.PaymentRequest{
		SenderID: senderID,
		Amount:   amount,
		Currency: parts[2],
		PumpID:   parts[3],
	}, nil
}
