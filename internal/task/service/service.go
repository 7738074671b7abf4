package service

import (
	"context"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/shared/notify"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActivityRecorder audit sink
type ActivityRecorder interface {
	Log(ctx context.Context, a *aentity.ActivityLog) error
	LogAsync(a *aentity.ActivityLog)
}

// Notifier delivers NOTIFY_USERS events
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Deps collaborators shared by the task services
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Config     *config.Config
	Activities ActivityRecorder
	Notifier   Notifier
	Hub        *sse.Hub
	Logger     *zap.Logger
}

// Services task domain services
type Services struct {
	Auth      *AuthService
	User      *UserService
	Directory *DirectoryService
	Customer  *CustomerService
	Template  *TemplateService
	Engine    *Engine
	Evaluator *Evaluator
	Task      *TaskService
	Upload    *UploadService
}

func NewServices(repos *repository.Repositories, deps Deps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var minioClient *minio.Client
	if deps.Config.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(deps.Config.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(deps.Config.MinIO.AccessKey, deps.Config.MinIO.SecretKey, ""),
			Secure: deps.Config.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio disabled, falling back to local uploads", zap.Error(err))
			minioClient = nil
		}
	}

	engine := NewEngine(deps.DB, logger)
	evaluator := NewEvaluator(deps.DB, engine, deps.Notifier, deps.Activities, logger)

	return &Services{
		Auth:      NewAuthService(repos.User, deps.Redis, deps.Config),
		User:      NewUserService(repos.User, repos.Role),
		Directory: NewDirectoryService(repos.Department, repos.Role),
		Customer:  NewCustomerService(repos.Customer),
		Template:  NewTemplateService(repos.Template, repos.ConditionalAction, repos.User),
		Engine:    engine,
		Evaluator: evaluator,
		Task:      NewTaskService(repos, engine, evaluator, deps.Activities, deps.Hub, logger),
		Upload:    NewUploadService(minioClient, deps.Config.MinIO.Bucket, deps.Config.Server.UploadDir),
	}
}
