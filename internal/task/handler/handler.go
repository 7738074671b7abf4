package handler

import (
	"errors"
	"strconv"

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/shared/scheduler"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	analytics "github.com/datachef-lab/taskify-backend/internal/analytics/service"
)

// Handlers handler set
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Directory *DirectoryHandler
	Customer  *CustomerHandler
	Template  *TemplateHandler
	Task      *TaskHandler
	Upload    *UploadHandler
	SSE       *SSEHandler
	Analytics *AnalyticsHandler
	Health    *HealthHandler
}

func NewHandlers(svc *service.Services, an *analytics.Services, sched *scheduler.Scheduler, hub *sse.Hub, db *gorm.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth, an.Activity),
		User:      NewUserHandler(svc.User),
		Directory: NewDirectoryHandler(svc.Directory),
		Customer:  NewCustomerHandler(svc.Customer, an.Activity),
		Template:  NewTemplateHandler(svc.Template),
		Task:      NewTaskHandler(svc.Task),
		Upload:    NewUploadHandler(svc.Upload, cfg.Server.MaxUploadSize),
		SSE:       NewSSEHandler(hub),
		Analytics: NewAnalyticsHandler(an, sched, logger),
		Health:    NewHealthHandler(db),
	}
}

// Response envelope
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse paginated list
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// List writes items with pagination info
func List(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// Error the HTTP status is code/100
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleError maps service error kinds onto the envelope
func HandleError(c *gin.Context, err error) {
	var (
		notFound *service.NotFoundError
		invalid  *service.ValidationError
		conflict *service.ConflictError
		config   *service.ConfigurationError
	)
	switch {
	case errors.As(err, &invalid):
		BadRequest(c, invalid.Error())
	case errors.As(err, &notFound), service.IsNotFound(err):
		NotFound(c, err.Error())
	case errors.As(err, &conflict):
		Conflict(c, conflict.Error())
	case errors.As(err, &config):
		Error(c, 42200, config.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		Unauthorized(c, err.Error())
	default:
		_ = c.Error(err)
		InternalError(c, "internal server error")
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// queryBool parses an optional boolean query parameter
func queryBool(c *gin.Context, key string) (bool, bool) {
	v := c.Query(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
