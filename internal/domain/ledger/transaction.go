// Package ledger is the canonical transaction store: typed records produced
// by statement parsing, deduplicated on write, soft-deleted only.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types. Exactly one of Credit/Debit is nonzero and the type
// follows from which one.
const (
	TypeIncome  = "INCOME"
	TypeExpense = "EXPENSE"
)

// Transaction is one ledger row. Description is the cleaned narration; the
// original narration and source row survive in RawDescription and RawRow for
// reprocessing.
type Transaction struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"userId"`
	TransactionDate time.Time        `json:"transactionDate"`
	Description     string           `json:"description"`
	RawDescription  string           `json:"rawDescription,omitempty"`
	Debit           decimal.Decimal  `json:"debit"`
	Credit          decimal.Decimal  `json:"credit"`
	Balance         *decimal.Decimal `json:"balance,omitempty"`
	Type            string           `json:"type"`
	Category        string           `json:"category,omitempty"`
	Store           string           `json:"store,omitempty"`
	Person          string           `json:"person,omitempty"`
	VPA             string           `json:"vpa,omitempty"`
	TransferType    string           `json:"transferType,omitempty"`
	BankBranch      string           `json:"bankBranch,omitempty"`
	BankRef         string           `json:"bankRef,omitempty"`
	SelfTransfer    bool             `json:"selfTransfer,omitempty"`
	BankCode        string           `json:"bankCode,omitempty"`
	AccountNumber   string           `json:"accountNumber,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	RawRow          []string         `json:"rawRow,omitempty"`
	BalanceMismatch bool             `json:"balanceMismatch,omitempty"`
	CreatedAt       time.Time        `json:"createdAt,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt,omitempty"`
	DeletedAt       *time.Time       `json:"-"`
}

// Amount is the signed value of the transaction: credits positive, debits
// negative.
func (t Transaction) Amount() decimal.Decimal {
	return t.Credit.Sub(t.Debit)
}
