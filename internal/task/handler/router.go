package handler

import (
	"net/http"
	"strings"

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter engine with the global middleware chain and all routes.
// metrics may be nil.
func NewRouter(h *Handlers, cfg *config.Config, logger *zap.Logger, metrics middleware.MetricRecorder) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	r.Use(middleware.RequestID())
	if metrics != nil {
		r.Use(middleware.Performance(metrics))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse/"})))

	RegisterRoutes(r, h, cfg)
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handlers, cfg *config.Config) {
	r.GET("/health", h.Health.Live)
	r.GET("/health/live", h.Health.Live)
	r.GET("/health/ready", h.Health.Ready)

	if cfg.Server.UploadDir != "" {
		r.Static("/uploads", cfg.Server.UploadDir)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, Response{Code: 40400, Message: "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	admin := middleware.RequireRole(middleware.AdminRole)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/version", h.Health.Version)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// token may come from ?token= since EventSource cannot set headers
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authorized.GET("/auth/me", h.Auth.Me)

			users := authorized.Group("/users")
			{
				users.GET("", h.User.List)
				users.GET("/:id", h.User.Get)
				users.POST("", admin, h.User.Create)
				users.PUT("/:id", admin, h.User.Update)
				users.POST("/:id/disable", admin, h.User.Disable)
				users.POST("/:id/enable", admin, h.User.Enable)
				users.PUT("/:id/departments", admin, h.User.AssignDepartments)
				users.PUT("/:id/roles", admin, h.User.AssignRoles)
			}

			authorized.GET("/departments", h.Directory.ListDepartments)
			authorized.POST("/departments", admin, h.Directory.CreateDepartment)
			authorized.GET("/roles", h.Directory.ListRoles)
			authorized.POST("/roles", admin, h.Directory.CreateRole)

			customers := authorized.Group("/customers")
			{
				customers.GET("", h.Customer.List)
				customers.POST("", middleware.RequirePermission("CREATE"), h.Customer.Create)
				customers.POST("/import", middleware.RequirePermission("CREATE"), h.Customer.Import)
				customers.GET("/:id", h.Customer.Get)
				customers.PUT("/:id", middleware.RequirePermission("UPDATE"), h.Customer.Update)
				customers.DELETE("/:id", middleware.RequirePermission("DELETE"), h.Customer.Delete)
			}
			authorized.GET("/parent-companies", h.Customer.ListParentCompanies)
			authorized.POST("/parent-companies", middleware.RequirePermission("CREATE"), h.Customer.CreateParentCompany)

			// templates: reads are open to every user, writes need ADMIN
			taskTemplates := authorized.Group("/task-templates")
			{
				taskTemplates.GET("", h.Template.ListTaskTemplates)
				taskTemplates.GET("/:id", h.Template.GetTaskTemplate)
				taskTemplates.GET("/:id/graph", h.Template.GetTaskTemplateGraph)
				taskTemplates.POST("", admin, h.Template.CreateTaskTemplate)
				taskTemplates.PUT("/:id", admin, h.Template.UpdateTaskTemplate)
				taskTemplates.DELETE("/:id", admin, h.Template.DeleteTaskTemplate)
				taskTemplates.POST("/:id/fn-templates/:childId", admin, h.Template.AttachFnTemplate)
				taskTemplates.DELETE("/:id/fn-templates/:childId", admin, h.Template.DetachFnTemplate)
			}

			fnTemplates := authorized.Group("/fn-templates")
			{
				fnTemplates.GET("", h.Template.ListFnTemplates)
				fnTemplates.GET("/:id", h.Template.GetFnTemplate)
				fnTemplates.POST("", admin, h.Template.CreateFnTemplate)
				fnTemplates.PUT("/:id", admin, h.Template.UpdateFnTemplate)
				fnTemplates.DELETE("/:id", admin, h.Template.DeleteFnTemplate)
				fnTemplates.POST("/:id/field-templates/:childId", admin, h.Template.AttachFieldTemplate)
				fnTemplates.DELETE("/:id/field-templates/:childId", admin, h.Template.DetachFieldTemplate)
			}

			fieldTemplates := authorized.Group("/field-templates")
			{
				fieldTemplates.GET("", h.Template.ListFieldTemplates)
				fieldTemplates.GET("/:id", h.Template.GetFieldTemplate)
				fieldTemplates.POST("", admin, h.Template.CreateFieldTemplate)
				fieldTemplates.PUT("/:id", admin, h.Template.UpdateFieldTemplate)
				fieldTemplates.DELETE("/:id", admin, h.Template.DeleteFieldTemplate)
				fieldTemplates.POST("/:id/input-templates/:childId", admin, h.Template.AttachInputTemplate)
				fieldTemplates.DELETE("/:id/input-templates/:childId", admin, h.Template.DetachInputTemplate)
			}

			inputTemplates := authorized.Group("/input-templates")
			{
				inputTemplates.GET("", h.Template.ListInputTemplates)
				inputTemplates.GET("/:id", h.Template.GetInputTemplate)
				inputTemplates.POST("", admin, h.Template.CreateInputTemplate)
				inputTemplates.PUT("/:id", admin, h.Template.UpdateInputTemplate)
				inputTemplates.DELETE("/:id", admin, h.Template.DeleteInputTemplate)
			}

			dropdownItems := authorized.Group("/dropdown-items")
			{
				dropdownItems.GET("", h.Template.ListDropdownItems)
				dropdownItems.GET("/:id", h.Template.GetDropdownItem)
				dropdownItems.POST("", admin, h.Template.CreateDropdownItem)
				dropdownItems.PUT("/:id", admin, h.Template.UpdateDropdownItem)
				dropdownItems.DELETE("/:id", admin, h.Template.DeleteDropdownItem)
			}

			dropdownTemplates := authorized.Group("/dropdown-templates")
			{
				dropdownTemplates.GET("", h.Template.ListDropdownTemplates)
				dropdownTemplates.POST("", admin, h.Template.CreateDropdownTemplate)
				dropdownTemplates.DELETE("/:id", admin, h.Template.DeleteDropdownTemplate)
			}

			metadataTemplates := authorized.Group("/metadata-templates")
			{
				metadataTemplates.GET("", h.Template.ListMetadataTemplates)
				metadataTemplates.GET("/:id", h.Template.GetMetadataTemplate)
				metadataTemplates.POST("", admin, h.Template.CreateMetadataTemplate)
				metadataTemplates.DELETE("/:id", admin, h.Template.DeleteMetadataTemplate)
			}

			actions := authorized.Group("/conditional-actions")
			{
				actions.GET("", h.Template.ListConditionalActions)
				actions.GET("/:id", h.Template.GetConditionalAction)
				actions.POST("", admin, h.Template.CreateConditionalAction)
				actions.DELETE("/:id", admin, h.Template.DeleteConditionalAction)
			}

			tasks := authorized.Group("/tasks")
			{
				tasks.GET("", h.Task.List)
				tasks.POST("", h.Task.Create)
				tasks.GET("/:id", h.Task.Get)
				tasks.PUT("/:id", h.Task.Update)
				tasks.POST("/:id/close", h.Task.Close)
				tasks.POST("/:id/archive", h.Task.Archive)
			}
			authorized.PUT("/fn-instances/:id", h.Task.UpdateFnInstance)
			authorized.POST("/fn-instances/:id/close", h.Task.CloseFnInstance)
			authorized.POST("/field-instances/:id/close", h.Task.CloseFieldInstance)
			authorized.PUT("/input-instances/:id/value", h.Task.SetInputValue)

			authorized.POST("/uploads", h.Upload.Upload)

			an := authorized.Group("/analytics")
			{
				an.GET("/activities", h.Analytics.ListActivities)
				an.GET("/activities/export", h.Analytics.ExportActivities)
				an.GET("/statistics", h.Analytics.ListStatistics)
				an.GET("/statistics/:type", h.Analytics.StatisticsByType)
				an.GET("/performance", h.Analytics.ListPerformance)
				an.GET("/performance/average/*operation", h.Analytics.AverageDuration)
				an.GET("/performance/slowest", h.Analytics.SlowestOperations)
				an.GET("/performance/error-rate/*operation", h.Analytics.ErrorRate)
				an.GET("/jobs", admin, h.Analytics.ListJobs)
				an.POST("/jobs/:name/run", admin, h.Analytics.RunJob)
			}
		}
	}
}
