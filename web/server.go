package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/acl"
	"docrag/auth"
	"docrag/config"
	"docrag/database"
	"docrag/extract"
	"docrag/ingest"
	"docrag/llm"
	"docrag/retriever"
	"docrag/templates"
	"docrag/web/handlers"
	"docrag/web/middleware"
)

// Server wires the gin engine: every HTTP endpoint spec.md §6 names,
// grounded on the teacher's one-engine-one-route-table shape.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
	config *config.Config
	store  *database.PostgresStore
}

// Deps carries every component the route table needs to construct its
// handlers, so NewServer stays a plain wiring function.
type Deps struct {
	Store          *database.PostgresStore
	ACL            *acl.Engine
	Auth           *auth.Service
	Ingestor       *ingest.Ingestor
	Retriever      *retriever.Retriever
	Router         *llm.Router
	QueryDefaults  handlers.QueryDefaults
	MaxUploadBytes int64
	Templates      *templates.Store
	Extractor      *extract.Extractor
}

func NewServer(logger *zap.Logger, cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	server := &Server{
		router: router,
		logger: logger,
		config: cfg,
		store:  deps.Store,
	}
	server.setupRoutes(deps)
	return server
}

func (s *Server) setupRoutes(deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Store, s.logger)
	groupsHandler := handlers.NewGroupsHandler(deps.Store, s.logger)
	collectionsHandler := handlers.NewCollectionsHandler(deps.Store, deps.ACL, s.logger)
	documentsHandler := handlers.NewDocumentHandler(deps.Store, deps.ACL, deps.Ingestor, deps.Retriever, deps.Extractor, deps.MaxUploadBytes, s.logger)
	queryHandler := handlers.NewQueryHandler(deps.Store, deps.ACL, deps.Retriever, deps.Router, deps.QueryDefaults, deps.Templates, s.logger)
	templateHandler := handlers.NewTemplateHandler(deps.Templates, s.logger)

	limiter := middleware.NewUserRateLimiter(
		s.config.RateLimitMessagesPerMin,
		s.config.RateLimitBurstSize,
	)

	api := s.router.Group("/api")

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(deps.Auth, s.logger))
	authed.Use(middleware.RateLimit(limiter))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/check-auth", authHandler.CheckAuth)
		authed.POST("/auth/change-password", authHandler.ChangePassword)

		authed.POST("/create-collection", collectionsHandler.Create)
		authed.GET("/list-collections", collectionsHandler.List)
		authed.GET("/collections", collectionsHandler.ListForUser)
		authed.POST("/delete-collection", collectionsHandler.Delete)

		authed.POST("/upload_and_embed", documentsHandler.UploadAndEmbed)
		authed.POST("/check_file_exists", documentsHandler.CheckFileExists)
		authed.POST("/delete-sources", documentsHandler.DeleteSources)
		authed.GET("/search-documents", documentsHandler.SearchDocuments)
		authed.GET("/get-all-documents-source", documentsHandler.GetAllDocumentsSource)
		authed.GET("/view-collection", documentsHandler.ViewCollection)
		authed.GET("/get-document-pages", documentsHandler.GetDocumentPages)
		authed.POST("/get-document-pages", documentsHandler.GetDocumentPages)
		authed.POST("/page-content", documentsHandler.PageContent)

		authed.POST("/summarize-page-content", queryHandler.SummarizePageContent)
		authed.GET("/summarize-page-content", queryHandler.SummarizePageContent)
		authed.GET("/summarize-sse", queryHandler.SummarizeSSE)
		authed.POST("/process_query", queryHandler.ProcessQuery)

		authed.GET("/system-messages", templateHandler.ListTemplates)
		authed.POST("/system-messages", templateHandler.SaveTemplate)
		authed.POST("/system-messages/select", templateHandler.SelectTemplate)
		authed.POST("/system-messages/delete", templateHandler.DeleteTemplate)

		admin := authed.Group("")
		admin.Use(middleware.RequireAdmin(deps.Store))
		{
			admin.GET("/groups", groupsHandler.ListGroups)
			admin.POST("/groups/create", groupsHandler.CreateGroup)
			admin.POST("/groups/update", groupsHandler.UpdateGroup)
			admin.POST("/groups/delete", groupsHandler.DeleteGroup)
			admin.POST("/groups/groupusers", groupsHandler.GroupUsers)
			admin.POST("/users/grouplist", groupsHandler.UserGroupList)
			admin.POST("/users/savegroups", groupsHandler.SaveGroups)
			admin.POST("/users/assigngroup", groupsHandler.AssignGroup)
			admin.DELETE("/users/deletegroup", groupsHandler.RemoveGroup)
		}
	}
}

// Start runs the server until ctx is canceled, then shuts it down
// gracefully, matching the teacher's web/server.go Start shape.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
