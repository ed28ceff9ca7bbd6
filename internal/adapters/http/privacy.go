package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"antygravity/internal/domain"
	"antygravity/internal/services/privacy"
	"antygravity/internal/workers/batchrunner"
)

func (s *Server) postCheck(w http.ResponseWriter, r *http.Request) {
	var version *string
	if err := queryParam(r, "policy_version", &version); err != nil {
		writeError(w, r, err)
		return
	}
	var d domain.AppDescriptor
	if err := decodeBody(r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	requested := ""
	if version != nil {
		requested = *version
	}

	ctx := r.Context()
	c, err := s.checker.Check(ctx, UserID(ctx), d, requested)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toCheckResponse(c))
	case errors.Is(err, domain.ErrNotSaved):
		// Scoring worked; the client still gets its result.
		writeJSON(w, http.StatusOK, toCheckResponse(c))
	case errors.Is(err, domain.ErrUnknownPolicyVersion) && requested == "":
		s.log.ErrorContext(ctx, "default policy version is not published", "err", err)
		writeError(w, r, &apiError{code: http.StatusInternalServerError, msg: "default policy unavailable"})
	default:
		writeError(w, r, err)
	}
}

func (s *Server) listChecks(w http.ResponseWriter, r *http.Request) {
	var (
		pkg           *string
		limit, offset *int
	)
	for name, dest := range map[string]any{"package_name": &pkg, "limit": &limit, "offset": &offset} {
		if err := queryParam(r, name, dest); err != nil {
			writeError(w, r, err)
			return
		}
	}
	var f domain.CheckFilter
	if pkg != nil {
		f.PackageName = *pkg
	}
	if limit != nil {
		if *limit < 1 {
			writeError(w, r, &apiError{code: http.StatusBadRequest, msg: "invalid query parameter", fields: map[string]string{"limit": "must be positive"}})
			return
		}
		f.Limit = *limit
	}
	if offset != nil {
		f.Offset = *offset
	}

	ctx := r.Context()
	checks, err := s.checker.List(ctx, UserID(ctx), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := checkListResponse{Results: make([]checkResponse, 0, len(checks)), Offset: f.Offset, Limit: f.Limit}
	for _, c := range checks {
		out.Results = append(out.Results, toCheckResponse(c))
	}
	if out.Limit == 0 {
		out.Limit = privacy.DefaultLimit
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCheck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	c, err := s.checker.Get(ctx, UserID(ctx), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckResponse(c))
}

func (s *Server) listPolicies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toPoliciesResponse(s.policies.Snapshot()))
}

func (s *Server) postBatch(w http.ResponseWriter, r *http.Request) {
	var (
		wait    *bool
		timeout *int
	)
	if err := queryParam(r, "wait", &wait); err != nil {
		writeError(w, r, err)
		return
	}
	if err := queryParam(r, "timeout", &timeout); err != nil {
		writeError(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	userID := UserID(ctx)
	id, err := s.batches.Enqueue(ctx, userID, req.PolicyVersion, req.Apps)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPolicyVersion) && req.PolicyVersion == "" {
			s.log.ErrorContext(ctx, "default policy version is not published", "err", err)
			err = &apiError{code: http.StatusInternalServerError, msg: "default policy unavailable"}
		}
		writeError(w, r, err)
		return
	}

	if wait == nil || !*wait {
		writeJSON(w, http.StatusAccepted, batchAcceptedResponse{BatchID: id, Status: domain.StatusQueued})
		return
	}

	d := s.MaxWait
	if timeout != nil && *timeout > 0 && time.Duration(*timeout)*time.Second < d {
		d = time.Duration(*timeout) * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	// A worker may have claimed the job already; fall through to the status.
	if err := batchrunner.ProcessInline(waitCtx, s.jobs, s.processor, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.WarnContext(ctx, "inline batch processing failed", "batch_id", id, "err", err)
	}
	s.writeBatch(w, r, userID, id)
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBatch(w, r, UserID(r.Context()), id)
}

func (s *Server) writeBatch(w http.ResponseWriter, r *http.Request, userID, id string) {
	ctx := r.Context()
	b, err := s.batches.Status(ctx, userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var checks []domain.PrivacyCheck
	if b.Status == domain.StatusCompleted {
		checks, err = s.checker.List(ctx, userID, domain.CheckFilter{BatchID: id, Limit: b.Total})
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toBatchResponse(b, checks))
}
