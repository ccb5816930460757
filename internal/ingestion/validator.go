package ingestion

import (
	"fmt"
	"math"
	"strings"

	"github.com/majisafe/bridge/internal/currency"
	"github.com/majisafe/bridge/internal/domain"
)

// pumpIDPrefix is the required resource-identifier format.
const pumpIDPrefix = "PUMP"

// Validate checks a parsed payment against the rate table and the
// configured minimum settlement value. It is a pure function of its
// inputs and the static rate table.
//
// Failures come back as *domain.ValidationError:
//   - UnsupportedCurrency when the currency has no rate,
//   - InsufficientAmount when the converted value is below the minimum
//     (the detail includes the minimum expressed in the sender's own
//     currency so they can retry with a correct value),
//   - InvalidPump when the pump id does not carry the PUMP prefix.
func Validate(req *domain.PaymentRequest, minSettlement float64) (*domain.ValidatedPayment, error) {
	value, err := currency.ToSettlement(req.Amount, req.Currency)
	if err != nil {
		return nil, &domain.ValidationError{
			Kind: domain.UnsupportedCurrency,
			Detail: fmt.Sprintf("currency %s is not supported; use one of %s",
				req.Currency, strings.Join(currency.Supported(), ", ")),
		}
	}

	if value < minSettlement {
		// Reverse-compute the minimum through the same rate and round up,
		// so the suggested amount itself passes validation.
		minLocal, _ := currency.FromSettlement(minSettlement, req.Currency)
		return nil, &domain.ValidationError{
			Kind: domain.InsufficientAmount,
			Detail: fmt.Sprintf("amount too small: minimum is %.0f %s",
				math.Ceil(minLocal), req.Currency),
		}
	}

	if !strings.HasPrefix(req.PumpID, pumpIDPrefix) {
		return nil, &domain.ValidationError{
			Kind:   domain.InvalidPump,
			Detail: fmt.Sprintf("invalid pump id %q: must start with %s", req.PumpID, pumpIDPrefix),
		}
	}

	return &domain.ValidatedPayment{
		PaymentRequest:  *req,
		SettlementValue: value,
	}, nil
}
