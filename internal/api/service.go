/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brokerdesk-go/internal/auth"
	"brokerdesk-go/internal/chat"
	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
	"brokerdesk-go/internal/validation"

	"go.uber.org/zap"
)

// DefaultPageSize applies to list operations called without a limit.
const DefaultPageSize = 10

const maxConcurrentRetries = 3

// PriceSource provides the latest quotes used to price trades and portfolios.
type PriceSource interface {
	Snapshot() models.PriceSnapshot
}

// LedgerMirror receives committed transitions.
type LedgerMirror interface {
	MirrorDeposit(ctx context.Context, d *models.Deposit) error
	MirrorWithdrawal(ctx context.Context, w *models.Withdrawal) error
	MirrorTrade(ctx context.Context, t *models.Trade) error
}

// AddressResolver looks up company deposit addresses from custody.
type AddressResolver interface {
	DepositAddress(ctx context.Context, symbol, network string) (string, error)
}

// Deps wires the broker service. Store, Tokens and Prices are required.
type Deps struct {
	Store     store.BrokerStore
	Tokens    *auth.TokenIssuer
	Prices    PriceSource
	Assets    models.AssetCatalog
	Hub       *chat.Hub
	Mirror    LedgerMirror
	Addresses AddressResolver
	Metrics   *metrics.Metrics
}

// BrokerService runs every user and admin workflow against the store
type BrokerService struct {
	store     store.BrokerStore
	tokens    *auth.TokenIssuer
	prices    PriceSource
	assets    models.AssetCatalog
	hub       *chat.Hub
	mirror    LedgerMirror
	addresses AddressResolver
	metrics   *metrics.Metrics
	validate  *validation.Validator
	now       func() time.Time
}

func NewBrokerService(deps Deps) *BrokerService {
	if deps.Assets == nil {
		deps.Assets = models.DefaultAssetCatalog()
	}
	return &BrokerService{
		store:     deps.Store,
		tokens:    deps.Tokens,
		prices:    deps.Prices,
		assets:    deps.Assets,
		hub:       deps.Hub,
		mirror:    deps.Mirror,
		addresses: deps.Addresses,
		metrics:   deps.Metrics,
		validate:  validation.New(),
		now:       time.Now,
	}
}

func (s *BrokerService) HealthCheck(ctx context.Context) error {
	if _, err := s.store.ListUsers(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// retryConcurrent re-runs fn while the store reports a lost optimistic lock.
func retryConcurrent(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxConcurrentRetries; attempt++ {
		err = fn()
		if !errors.Is(err, store.ErrConcurrentModification) {
			return err
		}
		zap.L().Warn("Concurrent modification, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// actor loads the acting user so records carry the name and email snapshot.
func (s *BrokerService) actor(ctx context.Context, p models.Principal) (*models.User, error) {
	if p.UserId == "" {
		return nil, &Error{Code: CodeUnauthenticated, Message: "Not authenticated"}
	}
	u, err := s.store.GetUserById(ctx, p.UserId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &Error{Code: CodeUnauthenticated, Message: "Not authenticated", Err: err}
	}
	return u, err
}

func (s *BrokerService) countSubmission(kind string, err error) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	}
}

func (s *BrokerService) countTransition(kind string, approve bool, err error) {
	if s.metrics == nil {
		return
	}
	status := "rejected"
	if approve {
		status = "approved"
	}
	if err != nil {
		status = "error"
	}
	s.metrics.Transitions.WithLabelValues(kind, status).Inc()
}

// scope restricts a listing to the principal's own records unless they are an admin.
func scope(p models.Principal, filter store.RecordFilter) store.RecordFilter {
	if !p.IsAdmin() {
		filter.UserId = p.UserId
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	return filter
}

func requireUser(p models.Principal) error {
	if p.UserId == "" {
		return &Error{Code: CodeUnauthenticated, Message: "Not authenticated"}
	}
	return nil
}

func requireAdmin(p models.Principal) error {
	if err := requireUser(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return &Error{Code: CodeForbidden, Message: "Admin access required"}
	}
	return nil
}
