package docstore

import (
	"context"
	"fmt"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (d *document) userIndex(id string) int {
	for i := range d.Users {
		if d.Users[i].Id == id {
			return i
		}
	}
	return -1
}

// requireUser rejects records owned by an unknown user.
func (d *document) requireUser(id string) error {
	if d.userIndex(id) < 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func copyUser(u models.User) models.User {
	b := make(models.Balances, len(u.Balance))
	for k, v := range u.Balance {
		b[k] = v
	}
	u.Balance = b
	return u
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := s.view(func(doc *document) error {
		out = make([]models.User, 0, len(doc.Users))
		for _, u := range doc.Users {
			out = append(out, copyUser(u))
		}
		return nil
	})
	return out, err
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	var out models.User
	err := s.view(func(doc *document) error {
		i := doc.userIndex(userId)
		if i < 0 {
			return store.ErrNotFound
		}
		out = copyUser(doc.Users[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	var out models.User
	err := s.view(func(doc *document) error {
		for _, u := range doc.Users {
			if u.Email == email {
				out = copyUser(u)
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	if params.Id == "" {
		params.Id = uuid.New().String()
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now()
	}
	if params.Role == "" {
		params.Role = models.RoleUser
	}
	if params.KycStatus == "" {
		params.KycStatus = models.KycPending
	}
	email := models.NormalizeEmail(params.Email)
	at := params.CreatedAt.UTC()

	err := s.mutate(func(doc *document) error {
		for _, u := range doc.Users {
			if u.Email == email {
				return store.ErrDuplicateEmail
			}
		}
		doc.Users = append(doc.Users, models.User{
			Id:           params.Id,
			Email:        email,
			PasswordHash: params.PasswordHash,
			FullName:     params.FullName,
			Role:         params.Role,
			Balance:      models.ZeroBalances(),
			KycStatus:    params.KycStatus,
			CreatedAt:    at,
			UpdatedAt:    at,
		})
		for asset, amount := range params.Balances {
			if amount.IsZero() {
				doc.Users[len(doc.Users)-1].Balance[asset] = decimal.Zero
				continue
			}
			leg := models.Leg{UserId: params.Id, Asset: asset, Amount: amount, Kind: models.MovementOpening, Ref: params.Id}
			if err := doc.applyLeg(leg, at); err != nil {
				return fmt.Errorf("failed to seed %s balance: %w", asset, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User created",
		zap.String("id", params.Id),
		zap.String("email", email),
		zap.String("role", string(params.Role)))
	return s.GetUserById(ctx, params.Id)
}

func (s *Service) UpdateUser(ctx context.Context, userId string, patch store.UserPatch) (*models.User, error) {
	err := s.mutate(func(doc *document) error {
		i := doc.userIndex(userId)
		if i < 0 {
			return store.ErrNotFound
		}
		u := &doc.Users[i]
		if patch.FullName != nil {
			u.FullName = *patch.FullName
		}
		if patch.PasswordHash != nil {
			u.PasswordHash = *patch.PasswordHash
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserById(ctx, userId)
}

// applyLeg changes one user balance and appends the movement. Overdrafts are refused.
func (d *document) applyLeg(leg models.Leg, at time.Time) error {
	i := d.userIndex(leg.UserId)
	if i < 0 {
		return fmt.Errorf("user %s: %w", leg.UserId, store.ErrNotFound)
	}
	u := &d.Users[i]
	if u.Balance == nil {
		u.Balance = models.Balances{}
	}
	current := u.Balance.Get(leg.Asset)
	next := current.Add(leg.Amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: %s balance %s, needs %s", store.ErrInsufficientBalance, leg.Asset, current, leg.Amount.Neg())
	}
	u.Balance[leg.Asset] = next
	u.UpdatedAt = at

	d.Movements = append(d.Movements, models.BalanceMovement{
		Id:            uuid.New().String(),
		UserId:        leg.UserId,
		Asset:         leg.Asset,
		Kind:          leg.Kind,
		Amount:        leg.Amount,
		BalanceBefore: current,
		BalanceAfter:  next,
		Reference:     leg.Ref,
		CreatedAt:     at,
	})
	return nil
}

func (d *document) applyLegs(legs []models.Leg, at time.Time) error {
	for _, leg := range legs {
		if err := d.applyLeg(leg, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetBalances(ctx context.Context, userId string) (models.Balances, error) {
	u, err := s.GetUserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	return u.Balance, nil
}

// ListMovements returns movement history newest first
func (s *Service) ListMovements(ctx context.Context, userId, asset string, limit, offset int) ([]models.BalanceMovement, error) {
	var out []models.BalanceMovement
	err := s.view(func(doc *document) error {
		for i := len(doc.Movements) - 1; i >= 0; i-- {
			m := doc.Movements[i]
			if m.UserId == userId && (asset == "" || m.Asset == asset) {
				out = append(out, m)
			}
		}
		return nil
	})
	return store.Page(out, limit, offset), err
}

// ReconcileUserBalance verifies that the stored balance matches the sum of all movements
func (s *Service) ReconcileUserBalance(ctx context.Context, userId, asset string) error {
	return s.view(func(doc *document) error {
		i := doc.userIndex(userId)
		if i < 0 {
			return store.ErrNotFound
		}
		current := doc.Users[i].Balance.Get(asset)
		calculated := decimal.Zero
		for _, m := range doc.Movements {
			if m.UserId == userId && m.Asset == asset {
				calculated = calculated.Add(m.Amount)
			}
		}
		if !current.Equal(calculated) {
			zap.L().Error("Balance reconciliation failed",
				zap.String("user_id", userId),
				zap.String("asset", asset),
				zap.String("current_balance", current.String()),
				zap.String("calculated_balance", calculated.String()))
			return fmt.Errorf("balance mismatch: current=%s, calculated=%s", current, calculated)
		}
		return nil
	})
}
