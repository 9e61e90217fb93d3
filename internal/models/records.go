package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCompleted
}

type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

type Market string

const (
	MarketCrypto Market = "crypto"
	MarketForex  Market = "forex"
)

type DocumentType string

const (
	DocumentIdCard        DocumentType = "id_card"
	DocumentPassport      DocumentType = "passport"
	DocumentDriverLicense DocumentType = "driver_license"
)

// Deposit is a user-reported incoming transfer awaiting review
type Deposit struct {
	Id         string          `json:"id"`
	UserId     string          `json:"userId"`
	UserName   string          `json:"userName"`
	UserEmail  string          `json:"userEmail"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	TxHash     string          `json:"txHash"`
	ProofImage string          `json:"proofImage,omitempty"`
	Status     Status          `json:"status"`
	AdminNote  string          `json:"adminNote"`
	CreatedAt  time.Time       `json:"createdAt"`
	ApprovedAt *time.Time      `json:"approvedAt"`
}

// Legs returns the balance changes applied when the deposit is approved.
func (d *Deposit) Legs() []Leg {
	return []Leg{{UserId: d.UserId, Asset: d.Currency, Amount: d.Amount, Kind: MovementDeposit, Ref: d.Id}}
}

// Withdrawal is a request to send funds to an external wallet
type Withdrawal struct {
	Id            string          `json:"id"`
	UserId        string          `json:"userId"`
	UserName      string          `json:"userName"`
	UserEmail     string          `json:"userEmail"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	WalletAddress string          `json:"walletAddress"`
	Status        Status          `json:"status"`
	AdminNote     string          `json:"adminNote"`
	CreatedAt     time.Time       `json:"createdAt"`
	ProcessedAt   *time.Time      `json:"processedAt"`
}

func (w *Withdrawal) Legs() []Leg {
	return []Leg{{UserId: w.UserId, Asset: w.Currency, Amount: w.Amount.Neg(), Kind: MovementWithdrawal, Ref: w.Id}}
}

// Trade is a buy or sell order priced at creation and executed by an admin
type Trade struct {
	Id         string          `json:"id"`
	UserId     string          `json:"userId"`
	UserName   string          `json:"userName"`
	UserEmail  string          `json:"userEmail"`
	Type       TradeType       `json:"type"`
	Market     Market          `json:"market"`
	Pair       string          `json:"pair"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	Fee        decimal.Decimal `json:"fee"`
	Status     Status          `json:"status"`
	AdminNote  string          `json:"adminNote"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExecutedAt *time.Time      `json:"executedAt"`
}

// SplitPair splits "BASE/QUOTE" into its two symbols.
func SplitPair(pair string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}

// Legs returns the two balance changes of an executed trade.
// Buy credits the base by amount and debits the quote by total; sell is the mirror.
func (t *Trade) Legs() []Leg {
	base, quote, ok := SplitPair(t.Pair)
	if !ok {
		return nil
	}
	baseAmt, quoteAmt := t.Amount, t.Total.Neg()
	if t.Type == TradeSell {
		baseAmt, quoteAmt = t.Amount.Neg(), t.Total
	}
	return []Leg{
		{UserId: t.UserId, Asset: base, Amount: baseAmt, Kind: MovementTrade, Ref: t.Id},
		{UserId: t.UserId, Asset: quote, Amount: quoteAmt, Kind: MovementTrade, Ref: t.Id},
	}
}

// KycRequest is an identity document submission
type KycRequest struct {
	Id             string       `json:"id"`
	UserId         string       `json:"userId"`
	UserName       string       `json:"userName"`
	UserEmail      string       `json:"userEmail"`
	DocumentType   DocumentType `json:"type"`
	DocumentNumber string       `json:"documentNumber"`
	FrontImage     string       `json:"frontImage,omitempty"`
	BackImage      string       `json:"backImage,omitempty"`
	Status         Status       `json:"status"`
	AdminNote      string       `json:"adminNote"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
