package api

import (
	"context"
	"strings"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type KycSubmission struct {
	DocumentType   models.DocumentType `json:"type" validate:"required,oneof=id_card passport driver_license"`
	DocumentNumber string              `json:"documentNumber" validate:"required"`
	FrontImage     string              `json:"frontImage,omitempty"`
	BackImage      string              `json:"backImage,omitempty"`
}

// SubmitKyc files a verification request; a user may have only one pending at a time.
func (s *BrokerService) SubmitKyc(ctx context.Context, p models.Principal, req KycSubmission) (*Result[models.KycRequest], error) {
	u, err := s.actor(ctx, p)
	if err != nil {
		return reject[models.KycRequest](err)
	}
	req.DocumentNumber = strings.TrimSpace(req.DocumentNumber)
	if err := s.validate.Struct(req); err != nil {
		return failWith[models.KycRequest](err, "", "Failed to submit KYC")
	}
	if strings.TrimSpace(req.FrontImage) == "" {
		return fail[models.KycRequest](CodeValidation, "Front image is required.", nil)
	}

	now := s.now().UTC()
	k := &models.KycRequest{
		Id:             uuid.New().String(),
		UserId:         u.Id,
		UserName:       u.FullName,
		UserEmail:      u.Email,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		FrontImage:     req.FrontImage,
		BackImage:      req.BackImage,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.store.InsertKycRequest(ctx, k)
	s.countSubmission("kyc", err)
	if err != nil {
		return failWith[models.KycRequest](err, "User not found", "Failed to submit KYC")
	}

	zap.L().Info("KYC request submitted",
		zap.String("kyc_id", k.Id),
		zap.String("user_id", k.UserId),
		zap.String("document_type", string(k.DocumentType)))
	return ok("KYC submitted successfully", k)
}

func (s *BrokerService) ListKycRequests(ctx context.Context, p models.Principal, filter store.RecordFilter) ([]models.KycRequest, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return s.store.ListKycRequests(ctx, scope(p, filter))
}

// UpdateKycStatus approves or rejects a pending request and the user's KYC status with it.
func (s *BrokerService) UpdateKycStatus(ctx context.Context, p models.Principal, id string, approve bool, note string) (*Result[models.KycRequest], error) {
	if err := requireAdmin(p); err != nil {
		return reject[models.KycRequest](err)
	}

	k, err := s.store.SettleKycRequest(ctx, store.SettleParams{Id: id, Approve: approve, AdminNote: note, At: s.now()})
	s.countTransition("kyc", approve, err)
	if err != nil {
		return failWith[models.KycRequest](err, "Request not found", "Failed to update request")
	}

	zap.L().Info("KYC request reviewed",
		zap.String("kyc_id", k.Id),
		zap.String("user_id", k.UserId),
		zap.String("admin_id", p.UserId),
		zap.String("status", string(k.Status)))
	return ok("KYC request "+string(k.Status), k)
}
