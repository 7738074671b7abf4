package handler

import (
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
)

// TemplateHandler template administration
type TemplateHandler struct {
	svc *service.TemplateService
}

func NewTemplateHandler(svc *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// ---- task templates ----

// ListTaskTemplates GET /api/v1/task-templates?keyword=
func (h *TemplateHandler) ListTaskTemplates(c *gin.Context) {
	items, err := h.svc.ListTaskTemplates(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateTaskTemplate POST /api/v1/task-templates
func (h *TemplateHandler) CreateTaskTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.CreateTaskTemplate(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, t)
}

// GetTaskTemplate GET /api/v1/task-templates/:id
func (h *TemplateHandler) GetTaskTemplate(c *gin.Context) {
	t, err := h.svc.GetTaskTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// UpdateTaskTemplate PUT /api/v1/task-templates/:id
func (h *TemplateHandler) UpdateTaskTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateTaskTemplate(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// DeleteTaskTemplate DELETE /api/v1/task-templates/:id
func (h *TemplateHandler) DeleteTaskTemplate(c *gin.Context) {
	if err := h.svc.DeleteTaskTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// GetTaskTemplateGraph GET /api/v1/task-templates/:id/graph
func (h *TemplateHandler) GetTaskTemplateGraph(c *gin.Context) {
	g, err := h.svc.GetTaskTemplateGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, g)
}

// AttachFnTemplate POST /api/v1/task-templates/:id/fn-templates/:childId
func (h *TemplateHandler) AttachFnTemplate(c *gin.Context) {
	req, ok := bindAttach(c)
	if !ok {
		return
	}
	link, err := h.svc.AttachFnTemplate(c.Request.Context(), c.Param("id"), c.Param("childId"), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, link)
}

// DetachFnTemplate DELETE /api/v1/task-templates/:id/fn-templates/:childId
func (h *TemplateHandler) DetachFnTemplate(c *gin.Context) {
	if err := h.svc.DetachFnTemplate(c.Request.Context(), c.Param("id"), c.Param("childId")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ---- fn templates ----

// ListFnTemplates GET /api/v1/fn-templates?keyword=
func (h *TemplateHandler) ListFnTemplates(c *gin.Context) {
	items, err := h.svc.ListFnTemplates(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateFnTemplate POST /api/v1/fn-templates
func (h *TemplateHandler) CreateFnTemplate(c *gin.Context) {
	var req service.FnTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.CreateFnTemplate(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, t)
}

// GetFnTemplate GET /api/v1/fn-templates/:id
func (h *TemplateHandler) GetFnTemplate(c *gin.Context) {
	t, err := h.svc.GetFnTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// UpdateFnTemplate PUT /api/v1/fn-templates/:id
func (h *TemplateHandler) UpdateFnTemplate(c *gin.Context) {
	var req service.FnTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateFnTemplate(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// DeleteFnTemplate DELETE /api/v1/fn-templates/:id
func (h *TemplateHandler) DeleteFnTemplate(c *gin.Context) {
	if err := h.svc.DeleteFnTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachFieldTemplate POST /api/v1/fn-templates/:id/field-templates/:childId
func (h *TemplateHandler) AttachFieldTemplate(c *gin.Context) {
	req, ok := bindAttach(c)
	if !ok {
		return
	}
	link, err := h.svc.AttachFieldTemplate(c.Request.Context(), c.Param("id"), c.Param("childId"), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, link)
}

// DetachFieldTemplate DELETE /api/v1/fn-templates/:id/field-templates/:childId
func (h *TemplateHandler) DetachFieldTemplate(c *gin.Context) {
	if err := h.svc.DetachFieldTemplate(c.Request.Context(), c.Param("id"), c.Param("childId")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ---- field templates ----

// ListFieldTemplates GET /api/v1/field-templates?keyword=
func (h *TemplateHandler) ListFieldTemplates(c *gin.Context) {
	items, err := h.svc.ListFieldTemplates(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateFieldTemplate POST /api/v1/field-templates
func (h *TemplateHandler) CreateFieldTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.CreateFieldTemplate(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, t)
}

// GetFieldTemplate GET /api/v1/field-templates/:id
func (h *TemplateHandler) GetFieldTemplate(c *gin.Context) {
	t, err := h.svc.GetFieldTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// UpdateFieldTemplate PUT /api/v1/field-templates/:id
func (h *TemplateHandler) UpdateFieldTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateFieldTemplate(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// DeleteFieldTemplate DELETE /api/v1/field-templates/:id
func (h *TemplateHandler) DeleteFieldTemplate(c *gin.Context) {
	if err := h.svc.DeleteFieldTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachInputTemplate POST /api/v1/field-templates/:id/input-templates/:childId
func (h *TemplateHandler) AttachInputTemplate(c *gin.Context) {
	req, ok := bindAttach(c)
	if !ok {
		return
	}
	link, err := h.svc.AttachInputTemplate(c.Request.Context(), c.Param("id"), c.Param("childId"), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, link)
}

// DetachInputTemplate DELETE /api/v1/field-templates/:id/input-templates/:childId
func (h *TemplateHandler) DetachInputTemplate(c *gin.Context) {
	if err := h.svc.DetachInputTemplate(c.Request.Context(), c.Param("id"), c.Param("childId")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ---- input templates ----

// ListInputTemplates GET /api/v1/input-templates?keyword=
func (h *TemplateHandler) ListInputTemplates(c *gin.Context) {
	items, err := h.svc.ListInputTemplates(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateInputTemplate POST /api/v1/input-templates
func (h *TemplateHandler) CreateInputTemplate(c *gin.Context) {
	var req service.InputTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.CreateInputTemplate(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, t)
}

// GetInputTemplate GET /api/v1/input-templates/:id
func (h *TemplateHandler) GetInputTemplate(c *gin.Context) {
	t, err := h.svc.GetInputTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// UpdateInputTemplate PUT /api/v1/input-templates/:id
func (h *TemplateHandler) UpdateInputTemplate(c *gin.Context) {
	var req service.InputTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateInputTemplate(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, t)
}

// DeleteInputTemplate DELETE /api/v1/input-templates/:id
func (h *TemplateHandler) DeleteInputTemplate(c *gin.Context) {
	if err := h.svc.DeleteInputTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ---- dropdowns ----

type dropdownItemRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListDropdownItems GET /api/v1/dropdown-items?keyword=
func (h *TemplateHandler) ListDropdownItems(c *gin.Context) {
	items, err := h.svc.ListDropdownItems(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateDropdownItem POST /api/v1/dropdown-items
func (h *TemplateHandler) CreateDropdownItem(c *gin.Context) {
	var req dropdownItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item, err := h.svc.CreateDropdownItem(c.Request.Context(), req.Name)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, item)
}

// GetDropdownItem GET /api/v1/dropdown-items/:id
func (h *TemplateHandler) GetDropdownItem(c *gin.Context) {
	item, err := h.svc.GetDropdownItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, item)
}

// UpdateDropdownItem PUT /api/v1/dropdown-items/:id
func (h *TemplateHandler) UpdateDropdownItem(c *gin.Context) {
	var req dropdownItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item, err := h.svc.UpdateDropdownItem(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, item)
}

// DeleteDropdownItem DELETE /api/v1/dropdown-items/:id
func (h *TemplateHandler) DeleteDropdownItem(c *gin.Context) {
	if err := h.svc.DeleteDropdownItem(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ListDropdownTemplates GET /api/v1/dropdown-templates?owner=task|fn|input&owner_id=
func (h *TemplateHandler) ListDropdownTemplates(c *gin.Context) {
	items, err := h.svc.ListDropdownTemplates(c.Request.Context(), c.Query("owner"), c.Query("owner_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateDropdownTemplate POST /api/v1/dropdown-templates
func (h *TemplateHandler) CreateDropdownTemplate(c *gin.Context) {
	var req service.DropdownTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.svc.CreateDropdownTemplate(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, d)
}

// DeleteDropdownTemplate DELETE /api/v1/dropdown-templates/:id
func (h *TemplateHandler) DeleteDropdownTemplate(c *gin.Context) {
	if err := h.svc.DeleteDropdownTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ---- metadata templates ----

// ListMetadataTemplates GET /api/v1/metadata-templates?owner=task|fn|field|input&owner_id=
func (h *TemplateHandler) ListMetadataTemplates(c *gin.Context) {
	items, err := h.svc.ListMetadataTemplates(c.Request.Context(), c.Query("owner"), c.Query("owner_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// GetMetadataTemplate GET /api/v1/metadata-templates/:id
func (h *TemplateHandler) GetMetadataTemplate(c *gin.Context) {
	m, err := h.svc.GetMetadataTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, m)
}

// CreateMetadataTemplate POST /api/v1/metadata-templates
func (h *TemplateHandler) CreateMetadataTemplate(c *gin.Context) {
	var req service.MetadataTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.CreateMetadataTemplate(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, m)
}

// DeleteMetadataTemplate DELETE /api/v1/metadata-templates/:id
func (h *TemplateHandler) DeleteMetadataTemplate(c *gin.Context) {
	if err := h.svc.DeleteMetadataTemplate(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ---- conditional actions ----

// ListConditionalActions GET /api/v1/conditional-actions?input_template_id=
func (h *TemplateHandler) ListConditionalActions(c *gin.Context) {
	items, err := h.svc.ListConditionalActions(c.Request.Context(), c.Query("input_template_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// CreateConditionalAction POST /api/v1/conditional-actions
func (h *TemplateHandler) CreateConditionalAction(c *gin.Context) {
	var req service.ConditionalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.CreateConditionalAction(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, a)
}

// GetConditionalAction GET /api/v1/conditional-actions/:id
func (h *TemplateHandler) GetConditionalAction(c *gin.Context) {
	a, err := h.svc.GetConditionalAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, a)
}

// DeleteConditionalAction DELETE /api/v1/conditional-actions/:id
func (h *TemplateHandler) DeleteConditionalAction(c *gin.Context) {
	if err := h.svc.DeleteConditionalAction(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// bindAttach reads the optional attach body
func bindAttach(c *gin.Context) (*service.AttachRequest, bool) {
	req := &service.AttachRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			BadRequest(c, "invalid request: "+err.Error())
			return nil, false
		}
	}
	return req, true
}
