package handler

import (
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
)

// TaskHandler task, function, field and input instances
type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// List GET /api/v1/tasks
// Filters: customer_id, assignee_id, task_template_id, created_by_id,
// priority, status (open|closed), archived, keyword
func (h *TaskHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]interface{}{}
	for _, key := range []string{"customer_id", "assignee_id", "task_template_id", "created_by_id", "priority", "status", "keyword"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}
	if archived, ok := queryBool(c, "archived"); ok {
		filters["archived"] = archived
	}
	if c.Query("mine") == "true" {
		filters["assignee_id"] = GetUserID(c)
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// Create POST /api/v1/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req service.InstantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.CreatedByID = GetUserID(c)

	task, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, task)
}

// Get GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, task)
}

// Update PUT /api/v1/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, task)
}

// Close POST /api/v1/tasks/:id/close
func (h *TaskHandler) Close(c *gin.Context) {
	task, err := h.svc.Close(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, task)
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

// Archive POST /api/v1/tasks/:id/archive
// Body {"archived": false} restores; an empty body archives.
func (h *TaskHandler) Archive(c *gin.Context) {
	var req archiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	archived := true
	if req.Archived != nil {
		archived = *req.Archived
	}

	task, err := h.svc.Archive(c.Request.Context(), c.Param("id"), GetUserID(c), archived)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, task)
}

// UpdateFnInstance PUT /api/v1/fn-instances/:id
func (h *TaskHandler) UpdateFnInstance(c *gin.Context) {
	var req service.UpdateFnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	fn, err := h.svc.UpdateFnInstance(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, fn)
}

// CloseFnInstance POST /api/v1/fn-instances/:id/close
func (h *TaskHandler) CloseFnInstance(c *gin.Context) {
	var req service.CloseFnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	result, err := h.svc.CloseFnInstance(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// CloseFieldInstance POST /api/v1/field-instances/:id/close
func (h *TaskHandler) CloseFieldInstance(c *gin.Context) {
	field, err := h.svc.CloseFieldInstance(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, field)
}

// SetInputValue PUT /api/v1/input-instances/:id/value
// The value write commits even when some actions fail; failures are listed
// in results with status "failed".
func (h *TaskHandler) SetInputValue(c *gin.Context) {
	var req service.SetValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.svc.SetInputValue(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}
