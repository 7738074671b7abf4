package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/middleware"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
)

const JWTSecret = "taskify-test-secret"

var dbSeq atomic.Int64

// SetupTestDB opens a private in-memory sqlite database with every table
// migrated. One connection keeps the database alive and serializes writers.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	models := append(entity.Models(), aentity.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// NewTestConfig config with a fixed JWT secret and no external services
func NewTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			Mode:           "test",
			MaxUploadSize:  1 << 20,
			AllowedOrigins: []string{"*"},
		},
		JWT: config.JWTConfig{
			Secret:             JWTSecret,
			AccessTokenExpire:  time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "taskify-test",
		},
		Scheduler: config.SchedulerConfig{ActivityRetentionDays: 90},
	}
}

func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup API group behind the JWT middleware
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken signs an access token the JWT middleware accepts
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   "taskify-test",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTSecret))
	return token
}

// AdminToken token for an ADMIN user with id userID
func AdminToken(userID string) string {
	return GenerateTestToken(userID, "Test Admin", "admin@test.com", []string{"ADMIN"}, []string{"ALL"})
}

// MemberToken token for a plain member with id userID
func MemberToken(userID string) string {
	return GenerateTestToken(userID, "Test Member", "member@test.com", []string{"MEMBER"}, []string{"READ"})
}

// DoRequest runs a JSON request against the router
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes the envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// DecodeData decodes the envelope's data field into v
func DecodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (body %s)", err, w.Body.String())
	}
}

// SeedUser creates a user with the given password
func SeedUser(t *testing.T, db *gorm.DB, name, email, password string, admin bool) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &entity.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      admin,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func SeedCustomer(t *testing.T, db *gorm.DB, name string) *entity.Customer {
	t.Helper()
	c := &entity.Customer{ID: uuid.New().String(), Name: name}
	if err := db.Omit("ParentCompany").Create(c).Error; err != nil {
		t.Fatalf("Failed to seed customer: %v", err)
	}
	return c
}

// Builder seeds template graphs
type Builder struct {
	t  *testing.T
	db *gorm.DB
}

func NewBuilder(t *testing.T, db *gorm.DB) *Builder {
	return &Builder{t: t, db: db}
}

func (b *Builder) create(v interface{}) {
	b.t.Helper()
	if err := b.db.Create(v).Error; err != nil {
		b.t.Fatalf("seed %T: %v", v, err)
	}
}

func (b *Builder) Task(name string) *entity.TaskTemplate {
	t := &entity.TaskTemplate{ID: uuid.New().String(), Name: name}
	b.create(t)
	return t
}

func (b *Builder) Fn(name string) *entity.FnTemplate {
	f := &entity.FnTemplate{ID: uuid.New().String(), Name: name, Department: entity.DepartmentService, Type: entity.FnTypeNormal}
	b.create(f)
	return f
}

// FollowUp sets next as the declared follow-up of fn
func (b *Builder) FollowUp(fn, next *entity.FnTemplate) {
	b.t.Helper()
	id := next.ID
	fn.NextFollowUpFnTemplateID = &id
	if err := b.db.Model(fn).Update("next_follow_up_fn_template_id", id).Error; err != nil {
		b.t.Fatalf("set follow-up: %v", err)
	}
}

// Choice marks fn as a choice function
func (b *Builder) Choice(fn *entity.FnTemplate) {
	b.t.Helper()
	fn.IsChoice = true
	if err := b.db.Model(fn).Update("is_choice", true).Error; err != nil {
		b.t.Fatalf("set choice: %v", err)
	}
}

func (b *Builder) Field(name string) *entity.FieldTemplate {
	f := &entity.FieldTemplate{ID: uuid.New().String(), Name: name}
	b.create(f)
	return f
}

func (b *Builder) Input(name string, typ entity.InputType) *entity.InputTemplate {
	in := &entity.InputTemplate{ID: uuid.New().String(), Name: name, Type: typ}
	b.create(in)
	return in
}

// ConditionalInput input carrying a trigger condition
func (b *Builder) ConditionalInput(name string, typ entity.InputType, cond entity.Condition, comparison string) *entity.InputTemplate {
	in := &entity.InputTemplate{ID: uuid.New().String(), Name: name, Type: typ, Condition: &cond, ComparisonValue: &comparison}
	b.create(in)
	return in
}

func (b *Builder) AttachFn(task *entity.TaskTemplate, fn *entity.FnTemplate, sort int) {
	b.create(&entity.TaskTemplateFnTemplate{TaskTemplateID: task.ID, FnTemplateID: fn.ID, SortOrder: sort})
}

func (b *Builder) AttachField(fn *entity.FnTemplate, field *entity.FieldTemplate, sort int) {
	b.create(&entity.FnTemplateFieldTemplate{FnTemplateID: fn.ID, FieldTemplateID: field.ID, SortOrder: sort})
}

func (b *Builder) AttachInput(field *entity.FieldTemplate, input *entity.InputTemplate, sort int) {
	b.create(&entity.FieldTemplateInputTemplate{FieldTemplateID: field.ID, InputTemplateID: input.ID, SortOrder: sort})
}

// Action stores a conditional action built through the validating constructor
func (b *Builder) Action(spec entity.ConditionalActionSpec) *entity.ConditionalAction {
	b.t.Helper()
	a, err := entity.NewConditionalAction(spec)
	if err != nil {
		b.t.Fatalf("build conditional action: %v", err)
	}
	b.create(a)
	return a
}

// Metadata stores m with a fresh id; set exactly one owner id on it
func (b *Builder) Metadata(m entity.MetadataTemplate) *entity.MetadataTemplate {
	m.ID = uuid.New().String()
	b.create(&m)
	return &m
}
