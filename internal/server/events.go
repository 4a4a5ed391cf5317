package server

import (
	"net/http"
	"strings"

	"needsmatch/internal/events"
	"needsmatch/pkg/types"

	"github.com/sirupsen/logrus"
)

func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.eventsRepo.Events(r.Context(), r.URL.Query().Get("need_id"))
	if err != nil {
		s.handleError(w, r, err, "failed to fetch events")
		return
	}

	s.okList(w, r, list, len(list))
}

func (s *Service) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	event, err := s.eventsRepo.Event(r.Context(), eventID)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch event")
		return
	}

	signups, err := s.eventsRepo.Signups(r.Context(), eventID)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch signups")
		return
	}

	s.ok(w, r, events.Detail(event, signups))
}

func (s *Service) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req types.CreateEventRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode event")
		return
	}

	if req.EndsAt != nil && req.EndsAt.Before(req.StartsAt) {
		s.handleError(w, r, types.NewValidationError("ends_at", "must not be before starts_at"), "invalid event")
		return
	}

	actor := actorFromContext(r.Context())
	event := &types.Event{
		NeedID:         req.NeedID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Location:       req.Location,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		VolunteerSlots: req.VolunteerSlots,
		CreatedBy:      actor.ID,
	}

	if err := s.eventsRepo.CreateEvent(r.Context(), event); err != nil {
		s.handleError(w, r, err, "failed to create event")
		return
	}

	s.logger.WithField("event_id", event.ID).WithField("need_id", event.NeedID).Info("event created")

	s.created(w, r, "event created", event)
}

func (s *Service) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	var req types.UpdateEventRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode event update")
		return
	}

	event, err := s.eventsRepo.Event(r.Context(), eventID)
	if err != nil {
		s.handleError(w, r, err, "failed to fetch event")
		return
	}

	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
		if event.Title == "" {
			s.handleError(w, r, types.NewValidationError("title", "must not be blank"), "invalid event update")
			return
		}
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.StartsAt != nil {
		event.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt
	}
	if req.VolunteerSlots != nil {
		event.VolunteerSlots = *req.VolunteerSlots
	}

	if event.EndsAt != nil && event.EndsAt.Before(event.StartsAt) {
		s.handleError(w, r, types.NewValidationError("ends_at", "must not be before starts_at"), "invalid event update")
		return
	}

	if err := s.eventsRepo.UpdateEvent(r.Context(), eventID, event); err != nil {
		s.handleError(w, r, err, "failed to update event")
		return
	}

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "event updated", Data: event})
}

func (s *Service) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	if err := s.eventsRepo.DeleteEvent(r.Context(), eventID); err != nil {
		s.handleError(w, r, err, "failed to delete event")
		return
	}

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "event deleted"})
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	var req types.SignupRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode signup")
		return
	}

	signup, err := s.eventsRepo.Signup(r.Context(), eventID, req.UserID)
	if err != nil {
		s.handleError(w, r, err, "failed to sign up")
		return
	}

	message := "signed up"
	if signup.Status == types.SignupStatusWaitlisted {
		message = "event is full, added to the waitlist"
	}

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: message, Data: signup})
}

func (s *Service) handleCancelSignup(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	var req types.SignupRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode cancellation")
		return
	}

	cancelled, promoted, err := s.eventsRepo.Cancel(r.Context(), eventID, req.UserID)
	if err != nil {
		s.handleError(w, r, err, "failed to cancel signup")
		return
	}

	if promoted != nil {
		s.logger.WithFields(logrus.Fields{
			"event_id": eventID,
			"user_id":  promoted.UserID,
		}).Info("waitlisted volunteer promoted")
	}

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "signup cancelled", Data: cancelled})
}
