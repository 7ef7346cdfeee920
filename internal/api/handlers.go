package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/pkg/builder"
	"github.com/zoravur/sqlbind/pkg/datasource"
	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/session"
	"github.com/zoravur/sqlbind/pkg/sqllex"
	"github.com/zoravur/sqlbind/pkg/todb"
)

type op int

const (
	opInsert op = iota
	opUpdate
)

type handlers struct {
	s *session.Session
}

// ConvertRequest asks for sql to be rewritten. Style defaults to the
// session's own.
type ConvertRequest struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params"`
	Style  string         `json:"style,omitempty"`
}

// StatementResponse carries a converted statement. Params is a list or an
// object depending on the style.
type StatementResponse struct {
	SQL          string `json:"sql"`
	Style        string `json:"style"`
	Params       any    `json:"params"`
	RowsAffected *int64 `json:"rows_affected,omitempty"`
}

// WriteRequest is the body of the insert and update endpoints. Without
// Execute the statement is only built.
type WriteRequest struct {
	Data    map[string]any `json:"data"`
	Include []string       `json:"include,omitempty"`
	Exclude []string       `json:"exclude,omitempty"`
	Execute bool           `json:"execute,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.s.DB().PingContext(ctx); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	style := h.s.Style()
	if req.Style != "" {
		var err error
		if style, err = todb.ParseStyle(req.Style); err != nil {
			fail(w, r, err)
			return
		}
	}

	var (
		st  todb.Statement
		err error
	)
	if style == h.s.Style() {
		st, err = h.s.Convert(req.SQL, req.Params)
	} else {
		st, err = h.s.Converter().Convert(req.SQL, req.Params, style)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, statementResponse(st, style))
}

func (h *handlers) schema(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	rs, err := h.s.Builder().Schema(r.Context(), table)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, rs)
}

func (h *handlers) write(o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WriteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		table := chi.URLParam(r, "table")
		p := h.s.InsertInto(table)
		if o == opUpdate {
			p = h.s.Update(table)
		}
		if len(req.Include) > 0 {
			p.Including(req.Include...)
		}
		if len(req.Exclude) > 0 {
			p.Excluding(req.Exclude...)
		}

		st, err := p.Statement(r.Context(), req.Data)
		if err != nil {
			fail(w, r, err)
			return
		}
		resp := statementResponse(st, h.s.Style())
		if !req.Execute {
			respond(w, http.StatusOK, resp)
			return
		}

		res, err := h.s.ExecStatement(r.Context(), st)
		if err != nil {
			fail(w, r, err)
			return
		}
		if n, err := res.RowsAffected(); err == nil {
			resp.RowsAffected = &n
		}
		respond(w, http.StatusOK, resp)
	}
}

func statementResponse(st todb.Statement, style todb.Style) StatementResponse {
	resp := StatementResponse{SQL: st.SQL, Style: style.String()}
	if st.Params.Keyed() {
		resp.Params = st.Params.Map()
	} else {
		resp.Params = st.Params.List()
	}
	return resp
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		L(r.Context()).Error("request failed", zap.Error(err))
	}
	respond(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var lexErr *sqllex.LexError
	switch {
	case errors.As(err, &lexErr),
		errors.Is(err, todb.ErrMissingParameter),
		errors.Is(err, todb.ErrUnknownStyle),
		errors.Is(err, datasource.ErrUnsupported),
		errors.Is(err, builder.ErrIncompleteData),
		errors.Is(err, builder.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rowschema.ErrNoPrimaryKey):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
