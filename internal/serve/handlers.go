package serve

import (
	"errors"
	"net/http"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/lifecycle"
	"github.com/marcus/cadence/internal/models"
	"github.com/marcus/cadence/internal/registry"
	"github.com/marcus/cadence/internal/snapshot"
	"github.com/marcus/cadence/internal/transfer"
)

// IterationDTO is an iteration plus its derived status and parsed snapshot.
type IterationDTO struct {
	*models.Iteration
	Status   models.Status      `json:"status"`
	Snapshot *snapshot.Snapshot `json:"snapshot,omitempty"`
}

func toDTO(it *models.Iteration, now time.Time) (*IterationDTO, error) {
	dto := &IterationDTO{
		Iteration: it,
		Status:    models.ResolveStatus(it.StartAt, it.EndAt, now),
	}
	snap, ok, err := snapshot.Unmarshal(it.ProgressSnapshot)
	if err != nil {
		return nil, err
	}
	if ok {
		dto.Snapshot = &snap
	}
	return dto, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleListScopes(w http.ResponseWriter, r *http.Request) {
	scopes, err := s.db.ListScopes()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, scopes, http.StatusOK)
}

// handleListIterations backfills missing iterations for the scope, then
// classifies every row against one sampled now. The first call in a scope's
// lifetime creates the full run and is correspondingly slower.
func (s *Server) handleListIterations(w http.ResponseWriter, r *http.Request) {
	scopeID := r.PathValue("id")
	now := time.Now().UTC()

	iterations, err := s.registry.List(scopeID, registry.DefaultLookahead, now)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]*IterationDTO, 0, len(iterations))
	for _, it := range iterations {
		dto, err := toDTO(it, now)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		dtos = append(dtos, dto)
	}
	WriteSuccess(w, dtos, http.StatusOK)
}

func (s *Server) handleGetIteration(w http.ResponseWriter, r *http.Request) {
	it, err := s.db.GetIteration(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto, err := toDTO(it, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, dto, http.StatusOK)
}

func (s *Server) handleCreateIteration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, ErrValidation, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var startDate, endDate *time.Time
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			WriteError(w, ErrValidation, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		startDate = &t
	}
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			WriteError(w, ErrValidation, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		endDate = &t
	}

	it, err := s.registry.CreateManual(r.PathValue("id"), req.Title, startDate, endDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto, err := toDTO(it, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, dto, http.StatusCreated)
}

func (s *Server) handleAddItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, ErrValidation, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.ItemIDs) == 0 {
		WriteError(w, ErrValidation, "item_ids must not be empty", http.StatusBadRequest)
		return
	}

	moves, err := s.registry.AddItems(r.PathValue("id"), req.ItemIDs, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"moved": moves}, http.StatusOK)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	err := s.db.UnlinkMembership(r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"removed": true}, http.StatusOK)
}

// handleTransfer runs the carry-over protocol. The response is the flat
// success/error shape consumers expect; partial success is never reported.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScopeID       string `json:"scope_id"`
		DestinationID string `json:"destination_iteration_id"`
		ActorID       string `json:"actor_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, ErrValidation, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DestinationID == "" {
		WriteError(w, ErrValidation, "destination_iteration_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.transfer.Transfer(r.Context(), transfer.Request{
		ScopeID:       req.ScopeID,
		SourceID:      r.PathValue("id"),
		DestinationID: req.DestinationID,
		ActorID:       req.ActorID,
	}, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"success": true, "moved": result.Moved}, http.StatusOK)
}

func (s *Server) handleArchiveIteration(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.ArchiveIteration(r.PathValue("id"), time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"archived": true}, http.StatusOK)
}

func (s *Server) handleUnarchiveIteration(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.UnarchiveIteration(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]bool{"archived": false}, http.StatusOK)
}

// writeDomainError maps engine errors onto the envelope's error codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var srcErr *transfer.SourceNotCompletedError
	var destErr *transfer.DestinationClosedError
	var gateErr *lifecycle.ArchiveNotAllowedError

	switch {
	case errors.Is(err, db.ErrNotFound):
		WriteError(w, ErrNotFound, err.Error(), http.StatusNotFound)
	case errors.Is(err, db.ErrInvalidDateRange):
		WriteError(w, ErrValidation, err.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrDuplicateExternalID):
		WriteError(w, ErrConflict, err.Error(), http.StatusConflict)
	case errors.Is(err, registry.ErrIterationClosed):
		WriteError(w, ErrIterClosed, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &srcErr):
		WriteError(w, ErrSourceOpen, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &destErr):
		WriteError(w, ErrDestClosed, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &gateErr):
		WriteError(w, ErrArchiveGate, err.Error(), http.StatusUnprocessableEntity)
	default:
		WriteError(w, ErrInternal, err.Error(), http.StatusInternalServerError)
	}
}
