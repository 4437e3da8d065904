package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/acl"
	"docrag/database"
	docerr "docrag/errors"
	"docrag/llm"
	"docrag/retriever"
	"docrag/summarize"
	"docrag/templates"
	"docrag/web/middleware"
	"docrag/web/types"
)

// QueryDefaults carries the retrieval and LLM defaults the query endpoints
// fall back to when a request leaves them unset: the DOC_NUM / SIMILARITY /
// DEFAULT_LLMNAME configuration knobs plus the per-backend model map.
type QueryDefaults struct {
	Backend        llm.Kind
	ModelByBackend map[llm.Kind]string
	TopK           int
	ScoreThreshold float64
}

// QueryHandler binds spec.md §6's query/summarize endpoints to the
// Retriever (C5), LLM Router (C6), and Summarizer (C7), orchestrated per
// spec.md §4.10's top-level request flow.
type QueryHandler struct {
	store     *database.PostgresStore
	acl       *acl.Engine
	retriever *retriever.Retriever
	router    *llm.Router
	defaults  QueryDefaults
	templates *templates.Store
	logger    *zap.Logger
}

func NewQueryHandler(store *database.PostgresStore, aclEngine *acl.Engine, rtr *retriever.Retriever, router *llm.Router, defaults QueryDefaults, tmplStore *templates.Store, logger *zap.Logger) *QueryHandler {
	if defaults.TopK <= 0 {
		defaults.TopK = 5
	}
	if defaults.ScoreThreshold <= 0 {
		defaults.ScoreThreshold = 0.5
	}
	return &QueryHandler{store: store, acl: aclEngine, retriever: rtr, router: router, defaults: defaults, templates: tmplStore, logger: logger}
}

// resolveBackend maps an optional llm_name/llm_model request pair onto the
// configured defaults. An unrecognized llm_name is a validation error, not
// a silent fallback.
func (h *QueryHandler) resolveBackend(llmName, llmModel string) (llm.Kind, string, error) {
	backend := h.defaults.Backend
	if llmName != "" {
		kind, ok := llm.ParseKind(llmName)
		if !ok {
			return "", "", docerr.New(docerr.ValidationError, "unknown llm_name: "+llmName)
		}
		backend = kind
	}
	model := llmModel
	if model == "" {
		model = h.defaults.ModelByBackend[backend]
	}
	return backend, model, nil
}

// ProcessQuery implements POST /api/process_query. ragmode "RAG" (the
// default) retrieves context first, per spec.md §4.5; any other value is
// a passthrough call straight to the LLM Router, the supplemented
// non-RAG mode original_source/app.py's process_query also exposes.
func (h *QueryHandler) ProcessQuery(c *gin.Context) {
	var req types.ProcessQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "query and collections are required"))
		return
	}

	backend, model, err := h.resolveBackend(req.LLMName, req.LLMModel)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var hits []retriever.Hit
	searchMode := "all documents"
	if strings.EqualFold(req.RAGMode, "") || strings.EqualFold(req.RAGMode, "RAG") {
		for _, name := range req.Collections {
			col, err := h.collectionByName(c, name)
			if err != nil {
				respondError(c, h.logger, err)
				return
			}
			if !h.requireAccess(c, col, "read") {
				return
			}
		}

		var filters []retriever.SourceFilter
		if len(req.SelectSources) > 0 {
			searchMode = "selected documents"
			for _, ref := range req.SelectSources {
				filters = append(filters, retriever.SourceFilter{Collection: ref.Collection, Source: ref.Source})
			}
		}

		theta := req.ScoreThreshold
		if theta <= 0 {
			theta = h.defaults.ScoreThreshold
		}
		found, err := h.retriever.Query(c.Request.Context(), req.Collections, req.Query, filters, theta, h.defaults.TopK)
		if err != nil {
			respondError(c, h.logger, docerr.Wrap(docerr.Internal, "retrieval failed", err))
			return
		}
		hits = found
	}

	// A raw system_message always wins; otherwise fall back to whichever
	// template the caller has selected (spec.md §3's selected_name
	// pointer), and finally to no system prompt at all.
	systemPrompt := req.SystemMessage
	if systemPrompt == "" && h.templates != nil {
		if selected, ok, err := h.templates.Selected(middleware.UserID(c)); err == nil && ok {
			systemPrompt = selected.Message
		}
	}
	userPrompt := req.Query
	if len(hits) > 0 {
		var ctxBuilder strings.Builder
		for _, hit := range hits {
			fmt.Fprintf(&ctxBuilder, "[%s / %s p.%d]\n%s\n\n", hit.Collection, hit.Source, hit.Page, hit.Content)
		}
		userPrompt = fmt.Sprintf("Context:\n%s\nQuestion: %s", ctxBuilder.String(), req.Query)
	}

	resp, err := h.router.Complete(c.Request.Context(), llm.Request{
		Backend:      backend,
		Model:        model,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    1024,
		Temperature:  0.2,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	docs := make([]types.SearchDocumentsHit, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, types.SearchDocumentsHit{
			Content:  hit.Content,
			Metadata: map[string]any{"collection": hit.Collection, "source": hit.Source, "page": hit.Page},
			Score:    hit.Score,
		})
	}

	sourcesLabel := "all documents"
	if len(req.SelectSources) > 0 {
		names := make([]string, 0, len(req.SelectSources))
		for _, ref := range req.SelectSources {
			names = append(names, ref.Source)
		}
		sourcesLabel = strings.Join(names, ", ")
	}

	c.JSON(http.StatusOK, types.ProcessQueryResponse{
		Result: resp.Content,
		Metadata: map[string]any{
			"collections":   req.Collections,
			"sources":       sourcesLabel,
			"search_mode":   searchMode,
			"backend":       resp.Backend,
			"model":         resp.Model,
			"prompt_tokens": resp.Usage.PromptTokens,
		},
		Docs: docs,
	})
}

func (h *QueryHandler) collectionByName(c *gin.Context, name string) (database.Collection, error) {
	col, err := h.store.GetCollectionByName(c.Request.Context(), name)
	if err != nil {
		return database.Collection{}, docerr.Wrap(docerr.NotFound, "collection not found: "+name, err)
	}
	return col, nil
}

func (h *QueryHandler) requireAccess(c *gin.Context, col database.Collection, action string) bool {
	allowed, err := h.acl.Check(c.Request.Context(), middleware.UserID(c), col, action)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "check permission failed", err))
		return false
	}
	if !allowed {
		respondError(c, h.logger, docerr.New(docerr.Forbidden, "you do not have "+action+" access to collection "+col.Name))
		return false
	}
	return true
}

// SummarizePageContent implements POST /api/summarize-page-content (SSE):
// summarize a single page of a single source. Also accepts the same
// parameters in the query string so EventSource clients, which can only
// issue GETs, can use it too.
func (h *QueryHandler) SummarizePageContent(c *gin.Context) {
	var req types.PageContentRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_id, source, and page_num are required"))
			return
		}
	} else {
		req.CollectionID, _ = strconv.ParseInt(c.Query("collection_id"), 10, 64)
		req.Source = c.Query("source")
		req.PageNum, _ = strconv.Atoi(c.Query("page_num"))
	}
	if req.CollectionID == 0 || req.Source == "" || req.PageNum == 0 {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_id, source, and page_num are required"))
		return
	}

	backend, model, err := h.resolveBackend(c.Query("llm_name"), c.Query("llm_model"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	col, err := h.store.GetCollectionByID(c.Request.Context(), req.CollectionID)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.NotFound, "collection not found", err))
		return
	}
	if !h.requireAccess(c, col, "read") {
		return
	}

	h.streamSummary(c, summarize.New(h.store, h.router, backend, model),
		[]summarize.Target{{CollectionID: col.ID, Source: req.Source, Page: req.PageNum}})
}

// SummarizeSSE implements GET /api/summarize-sse?collections=&documents=&
// llm_name=&llm_model=: summarize every page of the named documents across
// the named collections.
func (h *QueryHandler) SummarizeSSE(c *gin.Context) {
	collections := splitListParam(c.QueryArray("collections"))
	documents := splitListParam(c.QueryArray("documents"))
	if len(collections) == 0 || len(documents) == 0 {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collections and documents are required"))
		return
	}

	backend, model, err := h.resolveBackend(c.Query("llm_name"), c.Query("llm_model"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var targets []summarize.Target
	for _, name := range collections {
		col, err := h.collectionByName(c, name)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if !h.requireAccess(c, col, "read") {
			return
		}

		sources, err := h.store.Sources(c.Request.Context(), col.ID, "")
		if err != nil {
			respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list sources failed", err))
			return
		}
		known := make(map[string]bool, len(sources))
		for _, s := range sources {
			known[s] = true
		}
		for _, doc := range documents {
			if known[doc] {
				targets = append(targets, summarize.Target{CollectionID: col.ID, Source: doc})
			}
		}
	}
	if len(targets) == 0 {
		respondError(c, h.logger, docerr.New(docerr.NotFound, "none of the requested documents exist in the requested collections"))
		return
	}

	h.streamSummary(c, summarize.New(h.store, h.router, backend, model), targets)
}

// splitListParam accepts both repeated query params and a single
// comma-separated value for list-shaped parameters.
func splitListParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, piece := range strings.Split(v, ",") {
			piece = strings.TrimSpace(piece)
			if piece != "" {
				out = append(out, piece)
			}
		}
	}
	return out
}

// streamSummary drains a Summarizer's event channel as SSE frames, per
// spec.md §9's Progress|Info|Error|Summary tagged event model.
func (h *QueryHandler) streamSummary(c *gin.Context, s *summarize.Summarizer, targets []summarize.Target) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events := s.Run(c.Request.Context(), targets)
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		value := ev.Text
		if value == "" {
			value = ev.Message
		}
		c.SSEvent(string(ev.Type), types.SSEEvent{
			Type:     string(ev.Type),
			Value:    value,
			Progress: float64(ev.Percent),
			Metadata: ev.Metadata,
		})
		return true
	})
}
