package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrNotPending             = errors.New("record is not pending")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrPendingKycExists       = errors.New("pending verification request already exists")
)

// CreateUserParams contains the fields for registering a user.
type CreateUserParams struct {
	Id           string
	Email        string
	PasswordHash string
	FullName     string
	Role         models.Role
	// Balances seeds opening balances; default assets not listed start at zero.
	Balances  models.Balances
	KycStatus models.KycStatus
	CreatedAt time.Time
}

// UserPatch lists the user fields an update may change. Nil fields are left alone.
type UserPatch struct {
	FullName     *string
	PasswordHash *string
	Role         *models.Role
}

// RecordFilter narrows a collection listing. Empty fields match everything.
type RecordFilter struct {
	UserId string
	Status models.Status
	Limit  int
	Offset int
}

// Matches applies the filter's user and status to one record.
func (f RecordFilter) Matches(userId string, status models.Status) bool {
	if f.UserId != "" && f.UserId != userId {
		return false
	}
	if f.Status != "" && f.Status != status {
		return false
	}
	return true
}

// SettleParams moves a pending record to its terminal state.
type SettleParams struct {
	Id        string
	Approve   bool
	AdminNote string
	At        time.Time
}

// BrokerStore defines the contract that every backend (SQLite, document, ...) must satisfy.
// Settle operations are compare-and-swap from pending and apply the record's balance
// legs in the same atomic step.
type BrokerStore interface {
	// --- Users ---
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	UpdateUser(ctx context.Context, userId string, patch UserPatch) (*models.User, error)

	// --- Balances ---
	GetBalances(ctx context.Context, userId string) (models.Balances, error)
	ListMovements(ctx context.Context, userId, asset string, limit, offset int) ([]models.BalanceMovement, error)
	ReconcileUserBalance(ctx context.Context, userId, asset string) error

	// --- Deposits ---
	InsertDeposit(ctx context.Context, d *models.Deposit) error
	ListDeposits(ctx context.Context, filter RecordFilter) ([]models.Deposit, error)
	GetDeposit(ctx context.Context, id string) (*models.Deposit, error)
	SettleDeposit(ctx context.Context, params SettleParams) (*models.Deposit, error)

	// --- Withdrawals ---
	InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error
	ListWithdrawals(ctx context.Context, filter RecordFilter) ([]models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	SettleWithdrawal(ctx context.Context, params SettleParams) (*models.Withdrawal, error)

	// --- Trades ---
	InsertTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context, filter RecordFilter) ([]models.Trade, error)
	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	SettleTrade(ctx context.Context, params SettleParams) (*models.Trade, error)

	// --- KYC ---
	InsertKycRequest(ctx context.Context, k *models.KycRequest) error
	ListKycRequests(ctx context.Context, filter RecordFilter) ([]models.KycRequest, error)
	GetKycRequest(ctx context.Context, id string) (*models.KycRequest, error)
	SettleKycRequest(ctx context.Context, params SettleParams) (*models.KycRequest, error)

	// --- Chat ---
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, userId string) ([]models.ChatMessage, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	MarkRead(ctx context.Context, userId string, reader models.Sender) (int, error)
	CountUnread(ctx context.Context, userId string, sender models.Sender) (int, error)

	// --- Sessions ---
	SaveSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// --- Lifecycle ---
	Close()
}

// Available returns the balance not reserved by pending withdrawals.
func Available(balance decimal.Decimal, pending []models.Withdrawal, currency string) decimal.Decimal {
	avail := balance
	for _, w := range pending {
		if w.Status == models.StatusPending && w.Currency == currency {
			avail = avail.Sub(w.Amount)
		}
	}
	return avail
}

// Page applies limit/offset to an already ordered slice.
func Page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SortConversations flattens a mailbox summary map, newest activity first.
func SortConversations(byUser map[string]*models.Conversation) []models.Conversation {
	out := make([]models.Conversation, 0, len(byUser))
	for _, c := range byUser {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastTimestamp.Equal(out[j].LastTimestamp) {
			return out[i].UserId < out[j].UserId
		}
		return out[i].LastTimestamp.After(out[j].LastTimestamp)
	})
	return out
}
