package server

import (
	"net/http"

	"needsmatch/internal/basket"
	"needsmatch/pkg/types"

	"github.com/sirupsen/logrus"
)

func (s *Service) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	if _, err := s.usersRepo.User(r.Context(), userID); err != nil {
		s.handleError(w, r, err, "failed to fetch user")
		return
	}

	entries, err := s.basketRepo.Basket(r.Context(), userID)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch basket")
		return
	}

	s.ok(w, r, &types.Basket{
		UserID: userID,
		Items:  entries,
		Total:  basket.Summarize(entries),
	})
}

func (s *Service) handleAddBasketItem(w http.ResponseWriter, r *http.Request) {
	var req types.AddBasketItemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode basket item")
		return
	}

	item, err := s.basketRepo.Add(r.Context(), req.UserID, req.NeedID, req.Quantity)
	if err != nil {
		s.handleError(w, r, err, "failed to add basket item")
		return
	}

	s.created(w, r, "added to basket", item)
}

func (s *Service) handleUpdateBasketItem(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateBasketItemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode basket update")
		return
	}

	item, err := s.basketRepo.SetQuantity(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		s.handleError(w, r, err, "failed to update basket item")
		return
	}

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "basket updated", Data: item})
}

// handleDeleteBasketItem answers with the line that was removed.
func (s *Service) handleDeleteBasketItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	item, err := s.basketRepo.Item(r.Context(), itemID)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch basket item")
		return
	}

	if err := s.basketRepo.Delete(r.Context(), itemID); err != nil {
		s.handleError(w, r, err, "failed to remove basket item")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": item.UserID,
		"need_id": item.NeedID,
	}).Debug("basket line removed")

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "removed from basket", Data: item})
}

func (s *Service) handleClearBasket(w http.ResponseWriter, r *http.Request) {
	removed, err := s.basketRepo.Clear(r.Context(), r.PathValue("userID"))
	if err != nil {
		s.handleError(w, r, err, "failed to clear basket")
		return
	}

	count := int(removed)
	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "basket cleared", Count: &count})
}
