package handler

import (
	"fmt"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CustomerHandler customers and parent companies
type CustomerHandler struct {
	svc        *service.CustomerService
	activities service.ActivityRecorder
}

func NewCustomerHandler(svc *service.CustomerService, activities service.ActivityRecorder) *CustomerHandler {
	return &CustomerHandler{svc: svc, activities: activities}
}

// List GET /api/v1/customers?keyword=&parent_company_id=&disabled=
func (h *CustomerHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]interface{}{
		"keyword":           c.Query("keyword"),
		"parent_company_id": c.Query("parent_company_id"),
	}
	if disabled, ok := queryBool(c, "disabled"); ok {
		filters["disabled"] = disabled
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// Create POST /api/v1/customers
func (h *CustomerHandler) Create(c *gin.Context) {
	var req service.CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	customer, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.record(c, aentity.ActivityCreate, customer.ID, "customer created: "+customer.Name, nil)
	Created(c, customer)
}

// Get GET /api/v1/customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	customer, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, customer)
}

// Update PUT /api/v1/customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	var req service.CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	customer, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.record(c, aentity.ActivityUpdate, customer.ID, "customer updated: "+customer.Name, nil)
	Success(c, customer)
}

// Delete DELETE /api/v1/customers/:id
// Customers are referenced by task instances, so delete only disables.
func (h *CustomerHandler) Delete(c *gin.Context) {
	customer, err := h.svc.SetDisabled(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.record(c, aentity.ActivityDelete, customer.ID, "customer disabled: "+customer.Name, nil)
	Success(c, customer)
}

// Import POST /api/v1/customers/import (multipart field "file", .xlsx or .csv)
func (h *CustomerHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		BadRequest(c, "cannot read file: "+err.Error())
		return
	}
	defer f.Close()

	result, err := h.svc.Import(c.Request.Context(), fh.Filename, f)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.record(c, aentity.ActivityImport, "",
		fmt.Sprintf("customer import %s: %d created, %d failed", fh.Filename, result.Created, result.Failed),
		map[string]interface{}{"filename": fh.Filename, "created": result.Created, "failed": result.Failed})
	Success(c, result)
}

// ListParentCompanies GET /api/v1/parent-companies
func (h *CustomerHandler) ListParentCompanies(c *gin.Context) {
	items, err := h.svc.ListParentCompanies(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

type parentCompanyRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// CreateParentCompany POST /api/v1/parent-companies
func (h *CustomerHandler) CreateParentCompany(c *gin.Context) {
	var req parentCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.CreateParentCompany(c.Request.Context(), req.Name)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, p)
}

func (h *CustomerHandler) record(c *gin.Context, t aentity.ActivityType, entityID, desc string, details map[string]interface{}) {
	if h.activities == nil {
		return
	}
	log := &aentity.ActivityLog{
		ID:           uuid.New().String(),
		ActivityType: t,
		EntityType:   aentity.EntityCustomer,
		EntityID:     entityID,
		UserID:       GetUserID(c),
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		Description:  desc,
	}
	if details != nil {
		log.Details = aentity.MarshalJSONValue(details)
	}
	h.activities.LogAsync(log)
}
