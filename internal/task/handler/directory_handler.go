package handler

import (
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
)

// DirectoryHandler departments and roles
type DirectoryHandler struct {
	svc *service.DirectoryService
}

func NewDirectoryHandler(svc *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{svc: svc}
}

// ListDepartments GET /api/v1/departments
func (h *DirectoryHandler) ListDepartments(c *gin.Context) {
	items, err := h.svc.ListDepartments(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateDepartment POST /api/v1/departments
func (h *DirectoryHandler) CreateDepartment(c *gin.Context) {
	var req service.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	dept, err := h.svc.CreateDepartment(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, dept)
}

// ListRoles GET /api/v1/roles?department_id=
func (h *DirectoryHandler) ListRoles(c *gin.Context) {
	items, err := h.svc.ListRoles(c.Request.Context(), c.Query("department_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateRole POST /api/v1/roles
func (h *DirectoryHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, err := h.svc.CreateRole(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, role)
}
