package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *flowservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *flowservice.Service) *Handler {
	return &Handler{svc: svc}
}

// flowRoute splits the wildcard into the flow path and an optional trailing
// action, e.g. "radio/rx.flow.json/ops" yields ("radio/rx.flow.json", "ops").
// Encoded slashes from OpenAPI clients are accepted.
func flowRoute(r *http.Request) (path, action string) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	i := strings.LastIndex(raw, models.FlowExt)
	if i < 0 {
		return raw, ""
	}
	end := i + len(models.FlowExt)
	return raw[:end], strings.Trim(raw[end:], "/")
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	return body, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func notFoundAction(w http.ResponseWriter, action string) {
	writeJSON(w, http.StatusNotFound, errorBody("unknown action "+strconv.Quote(action)))
}

func (h *Handler) getFlowRoute(w http.ResponseWriter, r *http.Request) {
	switch _, action := flowRoute(r); action {
	case "":
		h.GetFlow(w, r)
	case "session":
		h.GetSession(w, r)
	case "validate":
		h.ValidateFlow(w, r)
	default:
		notFoundAction(w, action)
	}
}

func (h *Handler) postFlowRoute(w http.ResponseWriter, r *http.Request) {
	switch _, action := flowRoute(r); action {
	case "session":
		h.OpenSession(w, r)
	case "ops":
		h.ApplyOp(w, r)
	case "commit":
		h.CommitSession(w, r)
	case "move":
		h.MoveFlow(w, r)
	default:
		notFoundAction(w, action)
	}
}

func (h *Handler) deleteFlowRoute(w http.ResponseWriter, r *http.Request) {
	switch _, action := flowRoute(r); action {
	case "":
		h.DeleteFlow(w, r)
	case "session":
		h.CloseSession(w, r)
	default:
		notFoundAction(w, action)
	}
}

// ListFlows handles GET /flows.
//
//	@Summary		List flows with optional pagination
//	@Tags			flows
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(path, title, updated, size)
//	@Success		200		{object}	FlowListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows [get]
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, err, "list flows")
		return
	}
	if items == nil {
		items = []FlowListItem{}
	}
	writeJSON(w, http.StatusOK, FlowListResponse{Flows: items, Total: total})
}

// GetFlow handles GET /flows/*.
//
//	@Summary		Get a single flow by path
//	@Tags			flows
//	@Produce		json
//	@Param			path	path		string	true	"Flow path"
//	@Success		200		{object}	FlowDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path} [get]
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	flow, err := h.svc.Get(r.Context(), path)
	if err != nil {
		writeError(w, err, "get flow", slog.String("path", path))
		return
	}
	w.Header().Set("ETag", strconv.Quote(flow.Checksum))
	writeJSON(w, http.StatusOK, flow)
}

// CreateFlow handles POST /flows.
//
//	@Summary		Create a new flow
//	@Tags			flows
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFlowRequest	true	"Flow to create"
//	@Success		201		{object}	FlowDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows [post]
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc := req.Document
	if string(doc) == "null" {
		doc = nil
	}
	flow, err := h.svc.Create(r.Context(), req.Path, doc)
	if err != nil {
		writeError(w, err, "create flow", slog.String("path", req.Path))
		return
	}
	w.Header().Set("ETag", strconv.Quote(flow.Checksum))
	writeJSON(w, http.StatusCreated, flow)
}

// SaveFlow handles PUT /flows/*. The body is the flow document itself.
//
//	@Summary		Replace a flow document
//	@Tags			flows
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string	true	"Flow path"
//	@Param			If-Match	header		string	false	"Expected checksum"
//	@Success		200			{object}	FlowDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path} [put]
func (h *Handler) SaveFlow(w http.ResponseWriter, r *http.Request) {
	path, action := flowRoute(r)
	if action != "" {
		notFoundAction(w, action)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("document is required"))
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	flow, err := h.svc.Save(r.Context(), path, body, ifMatch)
	if err != nil {
		writeError(w, err, "save flow", slog.String("path", path))
		return
	}
	w.Header().Set("ETag", strconv.Quote(flow.Checksum))
	writeJSON(w, http.StatusOK, flow)
}

// DeleteFlow handles DELETE /flows/*.
//
//	@Summary		Delete a flow
//	@Tags			flows
//	@Param			path	path	string	true	"Flow path"
//	@Success		204		"Flow deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path} [delete]
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeError(w, err, "delete flow", slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveFlow handles POST /flows/*/move.
//
//	@Summary		Rename or move a flow
//	@Tags			flows
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string			true	"Flow path"
//	@Param			body	body		MoveFlowRequest	true	"Target path"
//	@Success		200		{object}	FlowDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/move [post]
func (h *Handler) MoveFlow(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	var req MoveFlowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("to is required"))
		return
	}
	flow, err := h.svc.Rename(r.Context(), path, req.To)
	if err != nil {
		writeError(w, err, "move flow", slog.String("from", path), slog.String("to", req.To))
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

// ValidateFlow handles GET /flows/*/validate. An open session is validated
// as edited; otherwise the stored document is.
//
//	@Summary		Check that every connection joins two live nodes
//	@Tags			flows
//	@Produce		json
//	@Param			path	path		string	true	"Flow path"
//	@Success		200		{object}	ValidateResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/validate [get]
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	valid, err := h.svc.Validate(r.Context(), path)
	if err != nil {
		writeError(w, err, "validate flow", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Path: path, Valid: valid})
}

// OpenSession handles POST /flows/*/session.
//
//	@Summary		Open an editing session
//	@Tags			sessions
//	@Produce		json
//	@Param			path	path		string	true	"Flow path"
//	@Success		200		{object}	flowservice.SessionState
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/session [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	st, err := h.svc.Open(r.Context(), path)
	if err != nil {
		writeError(w, err, "open session", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetSession handles GET /flows/*/session.
//
//	@Summary		Get the editing session state
//	@Tags			sessions
//	@Produce		json
//	@Param			path	path		string	true	"Flow path"
//	@Success		200		{object}	flowservice.SessionState
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/session [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	st, err := h.svc.State(r.Context(), path)
	if err != nil {
		writeError(w, err, "session state", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CloseSession handles DELETE /flows/*/session. Unsaved edits are dropped.
//
//	@Summary		Close an editing session
//	@Tags			sessions
//	@Param			path	path	string	true	"Flow path"
//	@Success		204		"Session closed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/session [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	if err := h.svc.CloseSession(r.Context(), path); err != nil {
		writeError(w, err, "close session", slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyOp handles POST /flows/*/ops.
//
//	@Summary		Apply an editing operation
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string			true	"Flow path"
//	@Param			body	body		flowservice.Op	true	"Operation"
//	@Success		200		{object}	flowservice.OpResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/ops [post]
func (h *Handler) ApplyOp(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	var op flowservice.Op
	if !decodeBody(w, r, &op) {
		return
	}
	if op.Op == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("op is required"))
		return
	}
	res, err := h.svc.Apply(r.Context(), path, op)
	if err != nil {
		writeError(w, err, "apply op", slog.String("path", path), slog.String("op", op.Op))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CommitSession handles POST /flows/*/commit.
//
//	@Summary		Write the session back to the workspace
//	@Tags			sessions
//	@Produce		json
//	@Param			path	path		string	true	"Flow path"
//	@Success		200		{object}	FlowDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/flows/{path}/commit [post]
func (h *Handler) CommitSession(w http.ResponseWriter, r *http.Request) {
	path, _ := flowRoute(r)
	flow, err := h.svc.Commit(r.Context(), path)
	if err != nil {
		writeError(w, err, "commit session", slog.String("path", path))
		return
	}
	w.Header().Set("ETag", strconv.Quote(flow.Checksum))
	writeJSON(w, http.StatusOK, flow)
}

// ListOps handles GET /ops.
//
//	@Summary		List the editing operation names
//	@Tags			sessions
//	@Produce		json
//	@Success		200	{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/ops [get]
func (h *Handler) ListOps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ops": flowservice.OpNames()})
}

// ListTemplates handles GET /templates.
//
//	@Summary		List node templates
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	map[string][]catalog.Template
//	@Security		BearerAuth
//	@Router			/templates [get]
func (h *Handler) ListTemplates(w http.ResponseWriter, _ *http.Request) {
	tmpls := h.svc.Templates()
	if tmpls == nil {
		writeJSON(w, http.StatusOK, map[string]any{"templates": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": tmpls})
}

// GetTemplate handles GET /templates/{typeID}. The response lists the flows
// using the type alongside the template.
//
//	@Summary		Get one node template
//	@Tags			catalog
//	@Produce		json
//	@Param			typeID	path		string	true	"Node type id"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/templates/{typeID} [get]
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	typeID := chi.URLParam(r, "typeID")
	tmpl, err := h.svc.Template(typeID)
	if err != nil {
		writeError(w, err, "get template", slog.String("type", typeID))
		return
	}
	used, err := h.svc.FlowsUsingType(r.Context(), typeID)
	if err != nil {
		writeError(w, err, "flows using type", slog.String("type", typeID))
		return
	}
	if used == nil {
		used = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"template": tmpl,
		"used_by":  used,
	})
}

// TypeUsage handles GET /node-types/usage.
//
//	@Summary		Node type usage across the workspace
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	map[string][]models.NodeUsage
//	@Security		BearerAuth
//	@Router			/node-types/usage [get]
func (h *Handler) TypeUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.svc.TypeUsage(r.Context())
	if err != nil {
		writeError(w, err, "type usage")
		return
	}
	if usage == nil {
		usage = []models.NodeUsage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": usage})
}

// Search handles GET /search.
//
//	@Summary		Search flows by title or node type
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string][]SearchResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": searchResults(results),
	})
}
