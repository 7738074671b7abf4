package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const codeAttempts = 5

// Engine turns template graphs into task instances
type Engine struct {
	db       *gorm.DB
	logger   *zap.Logger
	now      func() time.Time
	countFns func(*repository.InstanceRepository, context.Context, string, string) (int64, error)
}

func NewEngine(db *gorm.DB, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		logger:   logger,
		now:      time.Now,
		countFns: (*repository.InstanceRepository).CountFnByTemplate,
	}
}

// InstantiateRequest opens a task template for a customer
type InstantiateRequest struct {
	TaskTemplateID string          `json:"task_template_id" binding:"required"`
	CustomerID     string          `json:"customer_id" binding:"required"`
	AssigneeID     string          `json:"assignee_id" binding:"required"`
	CreatedByID    string          `json:"-"`
	Priority       entity.Priority `json:"priority"`
	Remarks        string          `json:"remarks"`
}

// Instantiate copies the template graph into a new task instance. Functions
// that are the follow-up of another attached function are left for
// CreateFollowUp. Everything is written in one transaction; a dangling
// template reference rolls it all back.
func (e *Engine) Instantiate(ctx context.Context, req *InstantiateRequest) (*entity.TaskInstance, error) {
	for field, v := range map[string]string{
		"task_template_id": req.TaskTemplateID,
		"customer_id":      req.CustomerID,
		"assignee_id":      req.AssigneeID,
		"created_by_id":    req.CreatedByID,
	} {
		if v == "" {
			return nil, invalid(field, "is required")
		}
	}
	priority := req.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}
	if !priority.Valid() {
		return nil, invalid("priority", "unknown priority %q", req.Priority)
	}

	var task *entity.TaskInstance
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		templates := repository.NewTemplateRepository(tx)
		instances := repository.NewInstanceRepository(tx)
		users := repository.NewUserRepository(tx)

		graph, err := templates.LoadGraph(ctx, req.TaskTemplateID)
		if err != nil {
			return lookup(err, "task template", req.TaskTemplateID)
		}
		if _, err := repository.NewCustomerRepository(tx).FindByID(ctx, req.CustomerID); err != nil {
			return lookup(err, "customer", req.CustomerID)
		}
		for _, uid := range uniqueStrings([]string{req.AssigneeID, req.CreatedByID}) {
			ok, err := users.Exists(ctx, uid)
			if err != nil {
				return err
			}
			if !ok {
				return notFound("user", uid)
			}
		}

		task = &entity.TaskInstance{
			ID:             uuid.New().String(),
			TaskTemplateID: graph.Task.ID,
			CustomerID:     req.CustomerID,
			Priority:       priority,
			CreatedByID:    req.CreatedByID,
			AssigneeID:     req.AssigneeID,
			Remarks:        req.Remarks,
		}
		if err := e.createTask(ctx, tx, task); err != nil {
			return err
		}

		if err := instances.LinkDropdowns(ctx, taskDropdownLinks(task.ID, graph.Dropdowns)); err != nil {
			return fmt.Errorf("link task dropdowns: %w", err)
		}

		deferred := followUpTargets(graph)
		var created []entity.FnNode
		for _, node := range graph.Fns {
			if deferred[node.Template.ID] {
				continue
			}
			if _, err := createFnTree(ctx, instances, task, &node, node.SortOrder, nil, req.CreatedByID); err != nil {
				return err
			}
			created = append(created, node)
		}
		return linkMetadata(ctx, tx, task, created)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("task instantiated",
		zap.String("task_id", task.ID),
		zap.String("code", task.Code),
		zap.String("task_template_id", task.TaskTemplateID))
	return task, nil
}

// createTask allocates the next code, retrying when a concurrent writer took it
func (e *Engine) createTask(ctx context.Context, tx *gorm.DB, task *entity.TaskInstance) error {
	instances := repository.NewInstanceRepository(tx)
	now := e.now()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := instances.NextCode(ctx, now)
		if err != nil {
			return fmt.Errorf("allocate task code: %w", err)
		}
		task.Code = code
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repository.NewInstanceRepository(sp).CreateTask(ctx, task)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("create task instance: %w", err)
		}
	}
	return conflict("could not allocate a task code")
}

// followUpTargets attached functions named as the follow-up of another
// attached function
func followUpTargets(graph *entity.TemplateGraph) map[string]bool {
	attached := make(map[string]bool, len(graph.Fns))
	for _, node := range graph.Fns {
		attached[node.Template.ID] = true
	}
	targets := make(map[string]bool)
	for _, node := range graph.Fns {
		next := node.Template.NextFollowUpFnTemplateID
		if next != nil && *next != node.Template.ID && attached[*next] {
			targets[*next] = true
		}
	}
	return targets
}

// createFnTree writes one function instance with its fields, inputs and dropdown links
func createFnTree(ctx context.Context, instances *repository.InstanceRepository, task *entity.TaskInstance, node *entity.FnNode, sortOrder int, predecessorID *string, createdBy string) (*entity.FnInstance, error) {
	fn := &entity.FnInstance{
		ID:                      uuid.New().String(),
		TaskInstanceID:          task.ID,
		FnTemplateID:            node.Template.ID,
		PredecessorFnInstanceID: predecessorID,
		SortOrder:               sortOrder,
		CreatedByID:             createdBy,
	}
	if predecessorID != nil {
		key := entity.FollowUpKeyLazy
		fn.FollowUpKey = &key
	}
	if next := node.Template.NextFollowUpFnTemplateID; next != nil && *next != "" {
		v := *next
		fn.NextFollowUpFnTemplateID = &v
	}
	if err := instances.CreateFn(ctx, fn); err != nil {
		return nil, fmt.Errorf("create fn instance: %w", err)
	}
	if err := instances.LinkDropdowns(ctx, fnDropdownLinks(fn.ID, node.Dropdowns)); err != nil {
		return nil, fmt.Errorf("link fn dropdowns: %w", err)
	}

	for _, fieldNode := range node.Fields {
		field := &entity.FieldInstance{
			ID:              uuid.New().String(),
			TaskInstanceID:  task.ID,
			FnInstanceID:    fn.ID,
			FieldTemplateID: fieldNode.Template.ID,
			SortOrder:       fieldNode.SortOrder,
		}
		if err := instances.CreateField(ctx, field); err != nil {
			return nil, fmt.Errorf("create field instance: %w", err)
		}
		for _, inputNode := range fieldNode.Inputs {
			input := &entity.InputInstance{
				ID:              uuid.New().String(),
				TaskInstanceID:  task.ID,
				FieldInstanceID: field.ID,
				InputTemplateID: inputNode.Template.ID,
				SortOrder:       inputNode.SortOrder,
				CreatedByID:     createdBy,
			}
			if err := instances.CreateInput(ctx, input); err != nil {
				return nil, fmt.Errorf("create input instance: %w", err)
			}
			if err := instances.LinkDropdowns(ctx, inputDropdownLinks(input.ID, inputNode.Dropdowns)); err != nil {
				return nil, fmt.Errorf("link input dropdowns: %w", err)
			}
		}
	}
	return fn, nil
}

// linkMetadata creates the metadata instances owned by the task template or
// by any template under nodes
func linkMetadata(ctx context.Context, tx *gorm.DB, task *entity.TaskInstance, nodes []entity.FnNode) error {
	var fnIDs, fieldIDs, inputIDs []string
	for _, node := range nodes {
		fnIDs = append(fnIDs, node.Template.ID)
		for _, field := range node.Fields {
			fieldIDs = append(fieldIDs, field.Template.ID)
			for _, input := range field.Inputs {
				inputIDs = append(inputIDs, input.Template.ID)
			}
		}
	}
	templates, err := repository.NewTemplateRepository(tx).MetadataTemplatesFor(ctx, task.TaskTemplateID,
		uniqueStrings(fnIDs), uniqueStrings(fieldIDs), uniqueStrings(inputIDs))
	if err != nil {
		return fmt.Errorf("load metadata templates: %w", err)
	}
	rows := make([]entity.MetadataInstance, len(templates))
	for i, m := range templates {
		rows[i] = entity.MetadataInstance{
			ID:                 uuid.New().String(),
			MetadataTemplateID: m.ID,
			TaskInstanceID:     task.ID,
		}
	}
	if err := repository.NewInstanceRepository(tx).LinkMetadata(ctx, rows); err != nil {
		return fmt.Errorf("create metadata instances: %w", err)
	}
	return nil
}

// FollowUpOptions function templates a closing function may continue with.
// Choice functions may pick their declared follow-up or any attached
// function held back as a follow-up; others get only the declared one.
func (e *Engine) FollowUpOptions(ctx context.Context, tx *gorm.DB, fn *entity.FnInstance) ([]string, error) {
	templates := repository.NewTemplateRepository(tx)
	tpl, err := templates.FindFnTemplate(ctx, fn.FnTemplateID)
	if err != nil {
		return nil, lookup(err, "fn template", fn.FnTemplateID)
	}

	var options []string
	if fn.NextFollowUpFnTemplateID != nil && *fn.NextFollowUpFnTemplateID != "" {
		options = append(options, *fn.NextFollowUpFnTemplateID)
	}
	if !tpl.IsChoice {
		return options, nil
	}

	task, err := repository.NewInstanceRepository(tx).FindTask(ctx, fn.TaskInstanceID)
	if err != nil {
		return nil, lookup(err, "task instance", fn.TaskInstanceID)
	}
	attached, err := templates.AttachedFnTemplates(ctx, task.TaskTemplateID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(attached))
	for _, a := range attached {
		ids[a.ID] = true
	}
	for _, a := range attached {
		if a.NextFollowUpFnTemplateID == nil {
			continue
		}
		next := *a.NextFollowUpFnTemplateID
		if ids[next] && next != fn.FnTemplateID {
			options = append(options, next)
		}
	}
	return uniqueStrings(options), nil
}

// CreateFollowUp instantiates the follow-up of a function that has just
// closed. It runs inside the caller's transaction and is a no-op when the
// function already has a follow-up, declares none, or the follow-up
// template already has an instance in the task. A concurrent writer that
// wins the race for the same template makes this call a no-op too. chosen
// selects the branch of a choice function and must be one of FollowUpOptions.
func (e *Engine) CreateFollowUp(ctx context.Context, tx *gorm.DB, fn *entity.FnInstance, chosen, userID string) (*entity.FnInstance, error) {
	instances := repository.NewInstanceRepository(tx)

	done, err := instances.HasFollowUp(ctx, fn.ID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}

	options, err := e.FollowUpOptions(ctx, tx, fn)
	if err != nil {
		return nil, err
	}
	target := ""
	switch {
	case chosen != "":
		for _, o := range options {
			if o == chosen {
				target = chosen
			}
		}
		if target == "" {
			return nil, invalid("next_fn_template_id", "%s is not a follow-up option of this function", chosen)
		}
	case fn.NextFollowUpFnTemplateID != nil:
		target = *fn.NextFollowUpFnTemplateID
	}
	if target == "" {
		return nil, nil
	}

	count, err := e.countFns(instances, ctx, fn.TaskInstanceID, target)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	node, err := repository.NewTemplateRepository(tx).LoadFnNode(ctx, target)
	if err != nil {
		return nil, lookup(err, "fn template", target)
	}
	task, err := instances.FindTask(ctx, fn.TaskInstanceID)
	if err != nil {
		return nil, lookup(err, "task instance", fn.TaskInstanceID)
	}
	maxOrder, err := instances.MaxFnSortOrder(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	predecessor := fn.ID
	var created *entity.FnInstance
	err = tx.Transaction(func(sp *gorm.DB) error {
		var err error
		created, err = createFnTree(ctx, repository.NewInstanceRepository(sp), task, node, maxOrder+1, &predecessor, userID)
		if err != nil {
			return err
		}
		return linkMetadata(ctx, sp, task, []entity.FnNode{*node})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		e.logger.Info("follow-up already instantiated",
			zap.String("task_id", task.ID),
			zap.String("fn_template_id", target))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.logger.Info("follow-up instantiated",
		zap.String("task_id", task.ID),
		zap.String("predecessor_id", fn.ID),
		zap.String("fn_template_id", target))
	return created, nil
}

func taskDropdownLinks(taskID string, dropdowns []entity.DropdownTemplate) interface{} {
	if len(dropdowns) == 0 {
		return nil
	}
	links := make([]entity.TaskInstanceDropdownTemplate, len(dropdowns))
	for i, d := range dropdowns {
		links[i] = entity.TaskInstanceDropdownTemplate{TaskInstanceID: taskID, DropdownTemplateID: d.ID}
	}
	return &links
}

func fnDropdownLinks(fnID string, dropdowns []entity.DropdownTemplate) interface{} {
	if len(dropdowns) == 0 {
		return nil
	}
	links := make([]entity.FnInstanceDropdownTemplate, len(dropdowns))
	for i, d := range dropdowns {
		links[i] = entity.FnInstanceDropdownTemplate{FnInstanceID: fnID, DropdownTemplateID: d.ID}
	}
	return &links
}

func inputDropdownLinks(inputID string, dropdowns []entity.DropdownTemplate) interface{} {
	if len(dropdowns) == 0 {
		return nil
	}
	links := make([]entity.InputInstanceDropdownTemplate, len(dropdowns))
	for i, d := range dropdowns {
		links[i] = entity.InputInstanceDropdownTemplate{InputInstanceID: inputID, DropdownTemplateID: d.ID}
	}
	return &links
}
