package server

import (
	"net/http"
	"strings"
	"time"

	"needsmatch/internal/urgency"
	"needsmatch/pkg/types"
)

func (s *Service) handleListNeeds(w http.ResponseWriter, r *http.Request) {
	var filter types.NeedFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		s.handleError(w, r, types.NewValidationError("", "invalid query: %s", err.Error()), "invalid needs query")
		return
	}

	if err := validateNeedFilter(&filter); err != nil {
		s.handleError(w, r, err, "invalid needs query")
		return
	}
	if filter.Limit == 0 {
		filter.Limit = s.config.DefaultNeedLimit
	}

	now := s.now()
	needs, err := s.needsRepo.Needs(r.Context(), filter, now)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch needs")
		return
	}

	ranked := urgency.Rank(needs, filter.Sort, now)

	views := make([]*types.NeedView, 0, len(ranked))
	for _, rn := range ranked {
		view := needView(rn.Need, now)
		if filter.TimeSensitive && !view.TimeSensitive {
			continue
		}
		views = append(views, view)
		if filter.Limit > 0 && uint64(len(views)) >= filter.Limit {
			break
		}
	}

	s.okList(w, r, views, len(views))
}

func (s *Service) handleGetNeed(w http.ResponseWriter, r *http.Request) {
	need, err := s.needsRepo.Need(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err, "failed to fetch need")
		return
	}

	s.ok(w, r, needView(need, s.now()))
}

func (s *Service) handleCreateNeed(w http.ResponseWriter, r *http.Request) {
	var req types.CreateNeedRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode need")
		return
	}

	if req.UnitCost.IsNegative() {
		s.handleError(w, r, types.NewValidationError("unit_cost", "must not be negative"), "invalid need")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.handleError(w, r, types.NewValidationError("title", "is required"), "invalid need")
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = types.PriorityNormal
	}

	actor := actorFromContext(r.Context())
	need := &types.Need{
		ManagerID:       actor.ID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		UnitCost:        req.UnitCost.Round(2),
		Quantity:        req.Quantity,
		Priority:        priority,
		Category:        req.Category,
		OrgType:         req.OrgType,
		Deadline:        req.Deadline,
		Perishable:      req.Perishable,
		BundleTag:       emptyToNil(req.BundleTag),
		ServiceRequired: req.ServiceRequired,
	}

	if err := s.needsRepo.CreateNeed(r.Context(), need); err != nil {
		s.handleError(w, r, err, "failed to create need")
		return
	}

	s.logger.WithField("need_id", need.ID).WithField("manager_id", actor.ID).Info("need created")

	s.created(w, r, "need created", needView(need, s.now()))
}

func (s *Service) handleUpdateNeed(w http.ResponseWriter, r *http.Request) {
	needID := r.PathValue("id")

	var req types.UpdateNeedRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode need update")
		return
	}

	need, err := s.needsRepo.Need(r.Context(), needID)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch need")
		return
	}

	columns, err := applyNeedUpdate(need, &req)
	if err != nil {
		s.handleError(w, r, err, "invalid need update")
		return
	}

	if len(columns) > 0 {
		if err := s.needsRepo.UpdateNeed(r.Context(), needID, need, columns); err != nil {
			s.handleError(w, r, err, "failed to update need")
			return
		}
	}

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "need updated", Data: needView(need, s.now())})
}

func (s *Service) handleDeleteNeed(w http.ResponseWriter, r *http.Request) {
	needID := r.PathValue("id")

	if err := s.needsRepo.DeleteNeed(r.Context(), needID); err != nil {
		s.handleError(w, r, err, "failed to delete need")
		return
	}

	s.logger.WithField("need_id", needID).Info("need deleted")

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "need deleted"})
}

func needView(need *types.Need, now time.Time) *types.NeedView {
	return &types.NeedView{
		Need:          need,
		Remaining:     need.Remaining(),
		UrgencyScore:  urgency.Score(need, now),
		TimeSensitive: urgency.TimeSensitive(need, now),
	}
}

func validateNeedFilter(filter *types.NeedFilter) error {
	if filter.Priority != "" && !filter.Priority.Valid() {
		return types.NewValidationError("priority", "must be one of: urgent high normal")
	}
	if filter.Sort != "" && !urgency.ValidSort(filter.Sort) {
		return types.NewValidationError("sort", "must be one of: urgency deadline requests priority newest")
	}
	if filter.DueWithinDays != nil && *filter.DueWithinDays < 0 {
		return types.NewValidationError("due_within_days", "must not be negative")
	}
	return nil
}

// applyNeedUpdate copies the present fields of req onto need and returns the
// columns it touched.
func applyNeedUpdate(need *types.Need, req *types.UpdateNeedRequest) ([]string, error) {
	var columns []string

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, types.NewValidationError("title", "must not be blank")
		}
		need.Title = title
		columns = append(columns, "title")
	}
	if req.Description != nil {
		need.Description = *req.Description
		columns = append(columns, "description")
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, types.NewValidationError("unit_cost", "must not be negative")
		}
		need.UnitCost = req.UnitCost.Round(2)
		columns = append(columns, "unit_cost")
	}
	if req.Quantity != nil {
		if *req.Quantity < need.QuantityFulfilled {
			return nil, types.NewValidationError("quantity", "cannot be less than the %d already fulfilled", need.QuantityFulfilled)
		}
		need.Quantity = *req.Quantity
		columns = append(columns, "quantity")
	}
	if req.Priority != nil {
		need.Priority = *req.Priority
		columns = append(columns, "priority")
	}
	if req.Category != nil {
		need.Category = *req.Category
		columns = append(columns, "category")
	}
	if req.OrgType != nil {
		need.OrgType = *req.OrgType
		columns = append(columns, "org_type")
	}
	switch {
	case req.ClearDeadline:
		need.Deadline = nil
		columns = append(columns, "deadline")
	case req.Deadline != nil:
		need.Deadline = req.Deadline
		columns = append(columns, "deadline")
	}
	if req.Perishable != nil {
		need.Perishable = *req.Perishable
		columns = append(columns, "perishable")
	}
	if req.BundleTag != nil {
		need.BundleTag = emptyToNil(req.BundleTag)
		columns = append(columns, "bundle_tag")
	}
	if req.ServiceRequired != nil {
		need.ServiceRequired = *req.ServiceRequired
		columns = append(columns, "service_required")
	}
	return columns, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
