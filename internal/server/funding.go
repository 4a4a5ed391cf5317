package server

import (
	"context"
	"net/http"

	"needsmatch/pkg/types"

	"github.com/sirupsen/logrus"
)

// handleCheckout funds the whole basket or nothing. When a payment provider
// is configured the charge happens inside the checkout transaction, so a
// declined payment rolls the funding back.
func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req types.CheckoutRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode checkout request")
		return
	}

	if _, err := s.usersRepo.User(r.Context(), req.UserID); err != nil {
		s.handleError(w, r, err, "failed to fetch user")
		return
	}

	receipt, err := s.fundingRepo.Checkout(r.Context(), req.UserID, func(ctx context.Context, receipt *types.CheckoutReceipt) error {
		paymentID, err := s.charger.Charge(ctx, receipt)
		if err != nil {
			return err
		}
		receipt.PaymentID = paymentID
		return nil
	})
	if err != nil {
		s.handleError(w, r, err, "checkout failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    receipt.UserID,
		"records":    len(receipt.Records),
		"total":      receipt.Total.StringFixed(2),
		"payment_id": receipt.PaymentID,
	}).Info("checkout complete")

	s.created(w, r, "checkout complete", receipt)
}

func (s *Service) handleUserFunding(w http.ResponseWriter, r *http.Request) {
	entries, err := s.fundingRepo.FundingByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err, "failed to fetch funding for user")
		return
	}

	s.okList(w, r, entries, len(entries))
}

func (s *Service) handleNeedFunding(w http.ResponseWriter, r *http.Request) {
	entries, err := s.fundingRepo.FundingByNeed(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err, "failed to fetch funding for need")
		return
	}

	s.okList(w, r, entries, len(entries))
}

func (s *Service) handleAllFunding(w http.ResponseWriter, r *http.Request) {
	entries, err := s.fundingRepo.AllFunding(r.Context())
	if err != nil {
		s.handleError(w, r, err, "failed to fetch funding")
		return
	}

	s.okList(w, r, entries, len(entries))
}
