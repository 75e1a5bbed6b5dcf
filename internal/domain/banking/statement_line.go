package banking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// Direction is derived from the sign of the amount
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// BuildImportRef namespaces a vendor transaction id so it is globally unique
func BuildImportRef(bankType BankType, externalAccountID, txID string) string {
	return fmt.Sprintf("%s:%s:%s", bankType, externalAccountID, txID)
}

// StatementLine is an imported bank transaction. Lines are immutable once written.
type StatementLine struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Reference        string
	ValueDate        time.Time
	Amount           decimal.Decimal
	Direction        Direction
	Description      string
	CounterpartyName string
	CounterpartyIBAN string
	BalanceAfter     *decimal.Decimal
	PartnerID        *uuid.UUID
	BankImportRef    string
	CreatedAt        time.Time
}

// NewStatementLine builds a line for an account from a normalized transaction
func NewStatementLine(bankType BankType, account *BankAccount, tx RemoteTransaction, now time.Time) (*StatementLine, error) {
	txID := strings.TrimSpace(tx.TxID)
	if txID == "" {
		return nil, shared.NewIngestError(shared.ErrData, "new statement line", ErrMissingTransactionID)
	}
	valueDate := tx.ValueDate
	if valueDate.IsZero() {
		valueDate = now
	}
	direction := DirectionCredit
	if tx.Amount.IsNegative() {
		direction = DirectionDebit
	}
	return &StatementLine{
		ID:               uuid.New(),
		AccountID:        account.ID,
		Reference:        txID,
		ValueDate:        truncateDay(valueDate),
		Amount:           tx.Amount,
		Direction:        direction,
		Description:      strings.TrimSpace(tx.Description),
		CounterpartyName: strings.TrimSpace(tx.CounterpartyName),
		CounterpartyIBAN: NormalizeIBAN(tx.CounterpartyIBAN),
		BalanceAfter:     tx.BalanceAfter,
		BankImportRef:    BuildImportRef(bankType, account.ExternalAccountID, txID),
		CreatedAt:        now,
	}, nil
}

// AttachPartner sets the attributed partner
func (l *StatementLine) AttachPartner(id uuid.UUID) {
	l.PartnerID = &id
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
