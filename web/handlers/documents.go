package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/acl"
	"docrag/database"
	docerr "docrag/errors"
	"docrag/extract"
	"docrag/ingest"
	"docrag/retriever"
	"docrag/utils"
	"docrag/web/middleware"
	"docrag/web/types"
)

// DocumentHandler binds spec.md §6's document-management endpoints to the
// Text Extractor (C1), Chunker+Ingestor (C4), Vector Store (C3), and
// Retriever (C5), enforcing ACL (C8) per spec.md §4.10's orchestrator step.
type DocumentHandler struct {
	store          *database.PostgresStore
	acl            *acl.Engine
	ingestor       *ingest.Ingestor
	retriever      *retriever.Retriever
	extractor      *extract.Extractor
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDocumentHandler(store *database.PostgresStore, aclEngine *acl.Engine, ingestor *ingest.Ingestor, rtr *retriever.Retriever, extractor *extract.Extractor, maxUploadBytes int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, acl: aclEngine, ingestor: ingestor, retriever: rtr, extractor: extractor, maxUploadBytes: maxUploadBytes, logger: logger}
}

func (h *DocumentHandler) collectionByName(c *gin.Context, name string) (database.Collection, error) {
	col, err := h.store.GetCollectionByName(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Collection{}, docerr.New(docerr.NotFound, "collection not found")
		}
		return database.Collection{}, docerr.Wrap(docerr.Internal, "lookup collection failed", err)
	}
	return col, nil
}

func (h *DocumentHandler) collectionByID(c *gin.Context, id int64) (database.Collection, error) {
	col, err := h.store.GetCollectionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Collection{}, docerr.New(docerr.NotFound, "collection not found")
		}
		return database.Collection{}, docerr.Wrap(docerr.Internal, "lookup collection failed", err)
	}
	return col, nil
}

// requireAccess checks action against the caller's effective permission on
// col, writing the 403/500 response itself when denied. Returns false when
// the handler should stop.
func (h *DocumentHandler) requireAccess(c *gin.Context, col database.Collection, action string) bool {
	allowed, err := h.acl.Check(c.Request.Context(), middleware.UserID(c), col, action)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "check permission failed", err))
		return false
	}
	if !allowed {
		respondError(c, h.logger, docerr.New(docerr.Forbidden, "you do not have "+action+" access to this collection"))
		return false
	}
	return true
}

// UploadAndEmbed implements POST /api/upload_and_embed (multipart: file,
// collection). Re-uploading an existing source replaces it, per spec.md
// §4.4's "re-ingestion is delete-by-source then fresh insert" rule.
func (h *DocumentHandler) UploadAndEmbed(c *gin.Context) {
	collectionName := c.PostForm("collection")
	if collectionName == "" {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection is required"))
		return
	}

	col, err := h.collectionByName(c, collectionName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireAccess(c, col, "write") {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "file is required"))
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "file exceeds the upload size limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "open uploaded file failed", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "read uploaded file failed", err))
		return
	}

	filename := utils.SanitizeFilename(fileHeader.Filename)
	pages, err := h.extractor.Extract(c.Request.Context(), filename, data)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.ingestor.Reingest(c.Request.Context(), col.ID, pages[0].Source, pages)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "ingest failed", err))
		return
	}

	c.JSON(http.StatusOK, types.UploadAndEmbedResponse{
		Success:      result.Stored > 0 || result.Failed == 0,
		ChunksStored: result.Stored,
		ChunksFailed: result.Failed,
	})
}

// CheckFileExists implements POST /api/check_file_exists.
func (h *DocumentHandler) CheckFileExists(c *gin.Context) {
	var req types.CheckFileExistsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection and filename are required"))
		return
	}

	col, err := h.collectionByName(c, req.Collection)
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
	exists := false
	for _, s := range sources {
		if s == req.Filename {
			exists = true
			break
		}
	}
	c.JSON(http.StatusOK, types.CheckFileExistsResponse{Exists: exists})
}

// DeleteSources implements POST /api/delete-sources.
func (h *DocumentHandler) DeleteSources(c *gin.Context) {
	var req types.DeleteSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "documents is required"))
		return
	}

	var successful, failed []types.SourceRef
	for _, doc := range req.Documents {
		ref := doc.Source
		col, err := h.collectionByID(c, ref.CollectionID)
		if err != nil {
			failed = append(failed, ref)
			continue
		}
		allowed, err := h.acl.Check(c.Request.Context(), middleware.UserID(c), col, "delete")
		if err != nil || !allowed {
			failed = append(failed, ref)
			continue
		}
		if _, err := h.store.DeleteBySource(c.Request.Context(), col.ID, ref.Source); err != nil {
			failed = append(failed, ref)
			continue
		}
		successful = append(successful, ref)
	}

	total := len(successful) + len(failed)
	rate := 1.0
	if total > 0 {
		rate = float64(len(successful)) / float64(total)
	}
	result := types.DeleteSourcesResult{Successful: successful, Failed: failed, SuccessRate: rate}

	status := http.StatusOK
	if len(failed) > 0 && len(successful) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"results": result})
}

// SearchDocuments implements GET /api/search-documents, a source-filtered
// hybrid search over one collection, grounded on RagSearch.py's
// search_keyword_collection(score_threshold=0.1).
func (h *DocumentHandler) SearchDocuments(c *gin.Context) {
	collectionName := c.Query("collection_name")
	query := c.Query("source_search")
	if collectionName == "" || query == "" {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_name and source_search are required"))
		return
	}
	limit := 5
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	col, err := h.collectionByName(c, collectionName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireAccess(c, col, "read") {
		return
	}

	hits, err := h.retriever.Query(c.Request.Context(), []string{collectionName}, query, nil, 0.1, limit)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "search failed", err))
		return
	}

	results := make([]types.SearchDocumentsHit, 0, len(hits))
	for _, hit := range hits {
		results = append(results, types.SearchDocumentsHit{
			Content: hit.Content,
			Metadata: map[string]any{
				"collection": hit.Collection,
				"source":     hit.Source,
				"page":       hit.Page,
			},
			Score: hit.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(results), "results": results})
}

// GetAllDocumentsSource implements GET /api/get-all-documents-source.
func (h *DocumentHandler) GetAllDocumentsSource(c *gin.Context) {
	names := c.QueryArray("collection_name[]")
	if len(names) == 0 {
		if single := c.Query("collection_name"); single != "" {
			names = []string{single}
		}
	}

	out := make(map[string]gin.H, len(names))
	for _, name := range names {
		col, err := h.collectionByName(c, name)
		if err != nil {
			out[name] = gin.H{"error": err.Error(), "sources": []string{}}
			continue
		}
		allowed, err := h.acl.Check(c.Request.Context(), middleware.UserID(c), col, "read")
		if err != nil || !allowed {
			out[name] = gin.H{"error": "forbidden", "sources": []string{}}
			continue
		}
		sources, err := h.store.Sources(c.Request.Context(), col.ID, "")
		if err != nil {
			out[name] = gin.H{"error": err.Error(), "sources": []string{}}
			continue
		}
		out[name] = gin.H{"sources": sources, "count": len(sources)}
	}
	c.JSON(http.StatusOK, gin.H{"collections": out})
}

// ViewCollection implements GET /api/view-collection.
func (h *DocumentHandler) ViewCollection(c *gin.Context) {
	collectionName := c.Query("collection_name")
	if collectionName == "" {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_name is required"))
		return
	}
	col, err := h.collectionByName(c, collectionName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireAccess(c, col, "read") {
		return
	}

	chunks, err := h.store.ViewCollectionPreview(c.Request.Context(), col.ID, 20)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "view collection failed", err))
		return
	}

	out := make([]gin.H, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, gin.H{"id": ch.ID, "content": ch.Content, "metadata": ch.Metadata, "created_at": ch.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"chunks": out})
}

// GetDocumentPages implements GET/POST /api/get-document-pages.
func (h *DocumentHandler) GetDocumentPages(c *gin.Context) {
	var req types.GetDocumentPagesRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_id and source are required"))
			return
		}
	} else {
		id, _ := strconv.ParseInt(c.Query("collection_id"), 10, 64)
		req.CollectionID = id
		req.Source = c.Query("source")
	}
	if req.CollectionID == 0 || req.Source == "" {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_id and source are required"))
		return
	}

	col, err := h.collectionByID(c, req.CollectionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireAccess(c, col, "read") {
		return
	}

	pages, err := h.store.Pages(c.Request.Context(), col.ID, req.Source)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "count pages failed", err))
		return
	}
	c.JSON(http.StatusOK, types.GetDocumentPagesResponse{Pages: pages})
}

// PageContent implements POST /api/page-content.
func (h *DocumentHandler) PageContent(c *gin.Context) {
	var req types.PageContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "collection_id, source, and page_num are required"))
		return
	}

	col, err := h.collectionByID(c, req.CollectionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireAccess(c, col, "read") {
		return
	}

	content, err := h.store.GetChunkByPage(c.Request.Context(), col.ID, req.Source, req.PageNum)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "get page content failed", err))
		return
	}
	c.JSON(http.StatusOK, types.PageContentResponse{Content: content})
}
