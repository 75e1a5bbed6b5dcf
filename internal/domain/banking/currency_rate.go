package banking

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// RateSourceManual and RateSourceCentralBank are the non-bank rate sources.
// Bank-produced rates use the BankType as source.
const (
	RateSourceManual      = "manual"
	RateSourceCentralBank = "central_bank"
)

var errNonPositiveRate = errors.New("banking: buy rate must be positive")

// CurrencyRate is one daily rate per (currency, date, source).
// Rate follows the ledger convention of units of foreign currency per base unit (1 / buy rate).
type CurrencyRate struct {
	ID            uuid.UUID
	Currency      string
	Rate          decimal.Decimal
	BuyRate       decimal.Decimal
	EffectiveDate time.Time
	Source        string
	ConnectorID   *uuid.UUID
	UpdatedAt     time.Time
}

// NewBankCurrencyRate builds the rate a connector produced for today
func NewBankCurrencyRate(connector *BankConnector, remote RemoteRate, now time.Time) (*CurrencyRate, error) {
	code := strings.ToUpper(strings.TrimSpace(remote.Currency))
	if code == "" {
		return nil, shared.NewIngestError(shared.ErrData, "new currency rate", errors.New("banking: rate without currency"))
	}
	if !remote.BuyRate.IsPositive() {
		return nil, shared.NewIngestError(shared.ErrData, "new currency rate", errNonPositiveRate)
	}
	id := connector.ID
	return &CurrencyRate{
		ID:            uuid.New(),
		Currency:      code,
		Rate:          decimal.NewFromInt(1).DivRound(remote.BuyRate, 12),
		BuyRate:       remote.BuyRate,
		EffectiveDate: truncateDay(now),
		Source:        connector.BankType.String(),
		ConnectorID:   &id,
		UpdatedAt:     now,
	}, nil
}
