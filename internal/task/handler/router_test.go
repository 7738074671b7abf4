package handler

import (
	"net/http"
	"testing"

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/datachef-lab/taskify-backend/internal/task/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	arepo "github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	analytics "github.com/datachef-lab/taskify-backend/internal/analytics/service"
)

type apiEnv struct {
	router *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	admin  *entity.User
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.NewTestConfig()
	cfg.Server.UploadDir = t.TempDir()

	repos := repository.NewRepositories(db)
	an := analytics.NewServices(arepo.NewRepositories(db), repos.Instance, zap.NewNop())
	t.Cleanup(an.Wait)

	hub := sse.NewHub(zap.NewNop())
	svc := service.NewServices(repos, service.Deps{
		DB:         db,
		Config:     cfg,
		Activities: an.Activity,
		Hub:        hub,
		Logger:     zap.NewNop(),
	})

	gin.SetMode(gin.TestMode)
	h := NewHandlers(svc, an, nil, hub, db, cfg, zap.NewNop())
	r := NewRouter(h, cfg, zap.NewNop(), nil)

	return &apiEnv{
		router: r,
		db:     db,
		cfg:    cfg,
		admin:  testutil.SeedUser(t, db, "Admin", "admin@taskify.test", "s3cret-pass", true),
	}
}

// call runs the request and decodes data into out when the status matches
func (e *apiEnv) call(t *testing.T, method, path string, body interface{}, token string, status int, out interface{}) {
	t.Helper()
	w := testutil.DoRequest(e.router, method, path, body, token)
	require.Equal(t, status, w.Code, w.Body.String())
	if out != nil {
		testutil.DecodeData(t, w, out)
	}
}

type idResponse struct {
	ID string `json:"id"`
}

func TestAuth_LoginAndMe(t *testing.T) {
	env := setupAPI(t)

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	env.call(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "admin@taskify.test", "password": "s3cret-pass"}, "", http.StatusOK, &login)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, env.admin.ID, login.User.ID)

	var me idResponse
	env.call(t, http.MethodGet, "/api/v1/auth/me", nil, login.AccessToken, http.StatusOK, &me)
	assert.Equal(t, env.admin.ID, me.ID)

	// a refresh token is not an access token
	env.call(t, http.MethodGet, "/api/v1/auth/me", nil, login.RefreshToken, http.StatusUnauthorized, nil)

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	env.call(t, http.MethodPost, "/api/v1/auth/refresh",
		map[string]string{"refresh_token": login.RefreshToken}, "", http.StatusOK, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)

	w := testutil.DoRequest(env.router, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "admin@taskify.test", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, float64(40100), testutil.ParseResponse(w)["code"])
}

func TestRoutes_AccessControl(t *testing.T) {
	env := setupAPI(t)
	member := testutil.SeedUser(t, env.db, "Member", "member@taskify.test", "pass-1234", false)
	memberToken := testutil.MemberToken(member.ID)

	env.call(t, http.MethodGet, "/api/v1/task-templates", nil, "", http.StatusUnauthorized, nil)
	env.call(t, http.MethodGet, "/api/v1/task-templates", nil, memberToken, http.StatusOK, nil)
	env.call(t, http.MethodPost, "/api/v1/task-templates", map[string]string{"name": "x"}, memberToken, http.StatusForbidden, nil)
	env.call(t, http.MethodPost, "/api/v1/customers", map[string]string{"name": "x"}, memberToken, http.StatusForbidden, nil)
	env.call(t, http.MethodPost, "/api/v1/analytics/jobs/dailyStatistics/run", nil, memberToken, http.StatusForbidden, nil)

	adminToken := testutil.AdminToken(env.admin.ID)
	env.call(t, http.MethodPost, "/api/v1/task-templates", map[string]string{"name": "Install Survey"}, adminToken, http.StatusCreated, nil)

	w := testutil.DoRequest(env.router, http.MethodGet, "/api/v1/nowhere", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(40400), testutil.ParseResponse(w)["code"])
}

func TestRoutes_TaskFlow(t *testing.T) {
	env := setupAPI(t)
	token := testutil.AdminToken(env.admin.ID)

	create := func(path string, body interface{}) string {
		var out idResponse
		env.call(t, http.MethodPost, path, body, token, http.StatusCreated, &out)
		require.NotEmpty(t, out.ID)
		return out.ID
	}

	taskTpl := create("/api/v1/task-templates", map[string]string{"name": "Install Survey"})
	fnTpl := create("/api/v1/fn-templates", map[string]interface{}{"name": "Site Check"})
	fieldTpl := create("/api/v1/field-templates", map[string]string{"name": "Measurements"})
	voltage := create("/api/v1/input-templates", map[string]interface{}{
		"name": "Voltage", "type": "NUMBER", "condition": "GREATER_THAN", "comparison_value": "240",
	})
	safety := create("/api/v1/input-templates", map[string]interface{}{"name": "Safety Notes", "type": "TEXT"})

	env.call(t, http.MethodPost, "/api/v1/task-templates/"+taskTpl+"/fn-templates/"+fnTpl, nil, token, http.StatusCreated, nil)
	env.call(t, http.MethodPost, "/api/v1/fn-templates/"+fnTpl+"/field-templates/"+fieldTpl, nil, token, http.StatusCreated, nil)
	env.call(t, http.MethodPost, "/api/v1/field-templates/"+fieldTpl+"/input-templates/"+voltage, nil, token, http.StatusCreated, nil)
	env.call(t, http.MethodPost, "/api/v1/field-templates/"+fieldTpl+"/input-templates/"+voltage, nil, token, http.StatusConflict, nil)

	create("/api/v1/conditional-actions", map[string]interface{}{
		"input_template_id":  voltage,
		"name":               "Add safety notes",
		"type":               "ADD_DYNAMIC_INPUT",
		"target_template_id": safety,
	})
	customer := create("/api/v1/customers", map[string]string{"name": "Acme Solar"})

	taskID := create("/api/v1/tasks", map[string]string{
		"task_template_id": taskTpl,
		"customer_id":      customer,
		"assignee_id":      env.admin.ID,
	})

	var task entity.TaskInstance
	env.call(t, http.MethodGet, "/api/v1/tasks/"+taskID, nil, token, http.StatusOK, &task)
	require.Len(t, task.FnInstances, 1)
	require.Len(t, task.FnInstances[0].FieldInstances, 1)
	inputs := task.FnInstances[0].FieldInstances[0].InputInstances
	require.Len(t, inputs, 1)

	var result struct {
		TaskID  string `json:"task_id"`
		Results []struct {
			ActionName string `json:"actionName"`
			Status     string `json:"status"`
		} `json:"results"`
	}
	env.call(t, http.MethodPut, "/api/v1/input-instances/"+inputs[0].ID+"/value",
		map[string]interface{}{"value": 250}, token, http.StatusOK, &result)
	assert.Equal(t, taskID, result.TaskID)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "applied", result.Results[0].Status)
	assert.Equal(t, "Add safety notes", result.Results[0].ActionName)

	env.call(t, http.MethodGet, "/api/v1/tasks/"+taskID, nil, token, http.StatusOK, &task)
	assert.Len(t, task.FnInstances[0].FieldInstances[0].InputInstances, 2)

	env.call(t, http.MethodPost, "/api/v1/fn-instances/"+task.FnInstances[0].ID+"/close", nil, token, http.StatusOK, nil)
	env.call(t, http.MethodPut, "/api/v1/input-instances/"+inputs[0].ID+"/value",
		map[string]interface{}{"value": 1}, token, http.StatusConflict, nil)

	env.call(t, http.MethodGet, "/api/v1/tasks/does-not-exist", nil, token, http.StatusNotFound, nil)
	env.call(t, http.MethodPost, "/api/v1/tasks", map[string]string{"task_template_id": taskTpl}, token, http.StatusBadRequest, nil)

	var list struct {
		Items      []entity.TaskInstance `json:"items"`
		Pagination Pagination            `json:"pagination"`
	}
	env.call(t, http.MethodGet, "/api/v1/tasks?mine=true", nil, token, http.StatusOK, &list)
	assert.Equal(t, 1, list.Pagination.Total)
}

func TestHealth(t *testing.T) {
	env := setupAPI(t)

	env.call(t, http.MethodGet, "/health/live", nil, "", http.StatusOK, nil)
	env.call(t, http.MethodGet, "/health/ready", nil, "", http.StatusOK, nil)
	env.call(t, http.MethodGet, "/api/v1/version", nil, "", http.StatusOK, nil)
}
