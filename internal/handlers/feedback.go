package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/campushub/eventhub/internal/store"
	"github.com/google/uuid"
)

// SubmitFeedback handles POST /api/events/{id}/feedback
//
// Only confirmed participants of an ongoing or completed event with
// feedback enabled may submit, once each.
func (s *Server) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	if err := authorize(p, policy.SubmitFeedback, policy.Ownership{Self: true}); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	ev, err := s.Store.GetEvent(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ev.Feedback.Enabled {
		s.fail(w, r, apperr.Validation("feedback is not enabled for this event"))
		return
	}
	if ev.Status != models.EventOngoing && ev.Status != models.EventCompleted {
		s.fail(w, r, apperr.Validation("feedback opens once the event is under way"))
		return
	}
	var req models.FeedbackRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sessions, err := s.Store.ListSessionsByEvent(ctx, ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var trainers []string
	for _, ses := range sessions {
		if ses.TrainerName != "" && !slices.Contains(trainers, ses.TrainerName) {
			trainers = append(trainers, ses.TrainerName)
		}
	}

	var fb *models.Feedback
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		reg, err := tx.GetRegistrationFor(ctx, ev.ID, p.UserID)
		if apperr.Is(err, apperr.KindNotFound) || (err == nil && reg.Status != models.RegConfirmed) {
			return apperr.Forbidden("only confirmed participants can give feedback")
		}
		if err != nil {
			return err
		}
		if reg.FeedbackSubmitted {
			return apperr.Conflict("feedback", "feedback already submitted")
		}
		if req.Responses == nil {
			req.Responses = []models.FeedbackResponse{}
		}
		fb = &models.Feedback{
			ID:            uuid.NewString(),
			EventID:       ev.ID,
			UserID:        p.UserID,
			EventTitle:    ev.Title,
			UserName:      reg.UserName,
			TrainerNames:  trainers,
			Responses:     req.Responses,
			OverallRating: req.OverallRating,
			Comments:      strings.TrimSpace(req.Comments),
			SubmittedAt:   s.Now(),
		}
		if err := tx.InsertFeedback(ctx, fb); err != nil {
			return err
		}
		reg.FeedbackSubmitted = true
		return tx.UpdateRegistration(ctx, reg)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Engine.RecomputeEventStats(ctx, ev.ID); err != nil {
		s.Log.Warn("stats refresh after feedback failed", "event_id", ev.ID, "err", err)
	}
	created(w, "thank you for your feedback", fb)
}

// EventFeedback handles GET /api/events/{id}/feedback
func (s *Server) EventFeedback(w http.ResponseWriter, r *http.Request) {
	ev, err := s.loadEvent(r, "id", policy.ViewFeedback)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.Store.ListFeedbackByEvent(r.Context(), ev.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "feedback", map[string]any{"items": list, "summary": summarizeFeedback(list)})
}

// CheckFeedback handles GET /api/events/{id}/feedback/check and reports
// whether the caller already gave feedback for the event.
func (s *Server) CheckFeedback(w http.ResponseWriter, r *http.Request) {
	fb, err := s.Store.GetFeedbackFor(r.Context(), r.PathValue("id"), caller(r).UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		ok(w, "feedback status", map[string]any{"submitted": false})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, "feedback status", map[string]any{"submitted": true, "feedback": fb})
}
