package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	assemblyerrors "bureausocial/contexts/governance/assembly-voting/domain/errors"
	assemblyhttp "bureausocial/contexts/governance/assembly-voting/transport/http"
	"bureausocial/internal/platform/identity"

	"github.com/go-chi/chi/v5"
)

const maxRequestBody = 1 << 20

func (s *Server) registerAssemblyVotingRoutes(r chi.Router) {
	r.Post("/members", s.handleCreateMember)
	r.Get("/members", s.handleListMembers)
	r.Get("/members/{memberID}", s.handleGetMember)
	r.Patch("/members/{memberID}", s.handleUpdateMember)
	r.Post("/members/{memberID}/deactivate", s.handleDeactivateMember)

	r.Post("/assemblies", s.handleCreateAssembly)
	r.Get("/assemblies", s.handleListAssemblies)
	r.Get("/assemblies/{assemblyID}", s.handleGetAssembly)
	r.Post("/assemblies/{assemblyID}/start", s.handleStartAssembly)
	r.Post("/assemblies/{assemblyID}/close", s.handleCloseAssembly)
	r.Post("/assemblies/{assemblyID}/minutes", s.handleGenerateMinutes)
	r.Post("/assemblies/{assemblyID}/items", s.handleCreateVotingItem)
	r.Get("/assemblies/{assemblyID}/items", s.handleListVotingItems)
	r.Post("/assemblies/{assemblyID}/delegations", s.handleCreateDelegation)
	r.Delete("/assemblies/{assemblyID}/delegations", s.handleRevokeDelegation)
	r.Get("/assemblies/{assemblyID}/delegations", s.handleDelegationsFor)

	r.Get("/items/{itemID}", s.handleGetVotingItem)
	r.Post("/items/{itemID}/open", s.handleOpenVotingItem)
	r.Post("/items/{itemID}/close", s.handleCloseVotingItem)
	r.Post("/items/{itemID}/votes", s.handleCastVote)
	r.Get("/items/{itemID}/results", s.handleResults)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req assemblyhttp.CreateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assembly.Handler.CreateMemberHandler(r.Context(), actorFrom(r), req)
	s.respond(w, http.StatusCreated, resp, err)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.ListMembersHandler(r.Context())
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.GetMemberHandler(r.Context(), chi.URLParam(r, "memberID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req assemblyhttp.UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assembly.Handler.UpdateMemberHandler(r.Context(), actorFrom(r), chi.URLParam(r, "memberID"), req)
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.DeactivateMemberHandler(r.Context(), actorFrom(r), chi.URLParam(r, "memberID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleCreateAssembly(w http.ResponseWriter, r *http.Request) {
	var req assemblyhttp.CreateAssemblyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assembly.Handler.CreateAssemblyHandler(r.Context(), actorFrom(r), req)
	s.respond(w, http.StatusCreated, resp, err)
}

func (s *Server) handleListAssemblies(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.ListAssembliesHandler(r.Context())
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleGetAssembly(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.GetAssemblyHandler(r.Context(), chi.URLParam(r, "assemblyID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleStartAssembly(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.StartAssemblyHandler(r.Context(), actorFrom(r), chi.URLParam(r, "assemblyID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleCloseAssembly(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.CloseAssemblyHandler(r.Context(), actorFrom(r), chi.URLParam(r, "assemblyID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleGenerateMinutes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.GenerateMinutesHandler(r.Context(), actorFrom(r), chi.URLParam(r, "assemblyID"))
	if err != nil {
		s.writeAssemblyDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Content)
}

func (s *Server) handleCreateVotingItem(w http.ResponseWriter, r *http.Request) {
	var req assemblyhttp.CreateVotingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assembly.Handler.CreateVotingItemHandler(r.Context(), actorFrom(r), chi.URLParam(r, "assemblyID"), req)
	s.respond(w, http.StatusCreated, resp, err)
}

func (s *Server) handleListVotingItems(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.ListVotingItemsHandler(r.Context(), chi.URLParam(r, "assemblyID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleCreateDelegation(w http.ResponseWriter, r *http.Request) {
	var req assemblyhttp.CreateDelegationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assembly.Handler.CreateDelegationHandler(r.Context(), actorFrom(r), chi.URLParam(r, "assemblyID"), req)
	s.respond(w, http.StatusCreated, resp, err)
}

func (s *Server) handleRevokeDelegation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.RevokeDelegationHandler(r.Context(), actorFrom(r), chi.URLParam(r, "assemblyID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleDelegationsFor(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.DelegationsForHandler(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "assemblyID"),
		r.URL.Query().Get("member_id"),
	)
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleGetVotingItem(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.GetVotingItemHandler(r.Context(), chi.URLParam(r, "itemID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleOpenVotingItem(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.OpenVotingItemHandler(r.Context(), actorFrom(r), chi.URLParam(r, "itemID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleCloseVotingItem(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.CloseVotingItemHandler(r.Context(), actorFrom(r), chi.URLParam(r, "itemID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req assemblyhttp.CastVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.assembly.Handler.CastVoteHandler(r.Context(), actorFrom(r), chi.URLParam(r, "itemID"), req)
	s.respond(w, http.StatusCreated, resp, err)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.assembly.Handler.ResultsHandler(r.Context(), chi.URLParam(r, "itemID"))
	s.respond(w, http.StatusOK, resp, err)
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		s.writeAssemblyDomainError(w, err)
		return
	}
	writeJSON(w, status, payload)
}

func (s *Server) writeAssemblyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assemblyerrors.ErrNotFound):
		writeAssemblyError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, assemblyerrors.ErrDuplicateVote):
		writeAssemblyError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, assemblyerrors.ErrItemNotOpen):
		writeAssemblyError(w, http.StatusConflict, "item_not_open", err.Error())
	case errors.Is(err, assemblyerrors.ErrNotEligible):
		writeAssemblyError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, assemblyerrors.ErrInvalidDelegation):
		writeAssemblyError(w, http.StatusUnprocessableEntity, "invalid_delegation", err.Error())
	case errors.Is(err, assemblyerrors.ErrAssemblyNotClosed):
		writeAssemblyError(w, http.StatusConflict, "assembly_not_closed", err.Error())
	case errors.Is(err, assemblyerrors.ErrInvalidTransition):
		writeAssemblyError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, assemblyerrors.ErrConflict):
		writeAssemblyError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, assemblyerrors.ErrForbidden):
		writeAssemblyError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, assemblyerrors.ErrInvalidInput):
		writeAssemblyError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		s.logger.Error("assembly request failed",
			"event", "http_assembly_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeAssemblyError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeIdentityError(w http.ResponseWriter, err error) {
	if errors.Is(err, identity.ErrMissingIdentity) {
		writeAssemblyError(w, http.StatusUnauthorized, "missing_user", "caller identity is required")
		return
	}
	writeAssemblyError(w, http.StatusUnauthorized, "invalid_token", "bearer token is invalid or expired")
}

func writeAssemblyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, assemblyhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeAssemblyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func actorFrom(r *http.Request) entities.Actor {
	principal, _ := identity.FromContext(r.Context())
	return entities.Actor{
		MemberID: principal.MemberID,
		IsAdmin:  principal.IsAdmin,
		IsBoard:  principal.IsBoard,
	}
}
