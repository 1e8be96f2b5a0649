package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/taskhub/task-auth-service/internal/api/dto"
	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/service"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

// TasksHandler exposes task endpoints.
type TasksHandler struct {
	tasks *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(tasks *service.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// Create handles POST /api/tasks/new. The caller becomes the owner.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	var req dto.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	task, err := h.tasks.CreateTask(c.UserContext(), principal.Subject, req.Name, req.Done)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// Get handles GET /api/tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	task, err := h.tasks.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// ListAll handles GET /api/tasks/all_tasks.
func (h *TasksHandler) ListAll(c *fiber.Ctx) error {
	return h.list(c, nil, nil)
}

// ListDone handles GET /api/tasks/done.
func (h *TasksHandler) ListDone(c *fiber.Ctx) error {
	return h.list(c, nil, boolPtr(true))
}

// ListUndone handles GET /api/tasks/undone.
func (h *TasksHandler) ListUndone(c *fiber.Ctx) error {
	return h.list(c, nil, boolPtr(false))
}

// ListByUser handles GET /api/tasks/all_tasks/:userId.
func (h *TasksHandler) ListByUser(c *fiber.Ctx) error {
	return h.list(c, userParam(c), nil)
}

// ListDoneByUser handles GET /api/tasks/all_done_tasks/:userId.
func (h *TasksHandler) ListDoneByUser(c *fiber.Ctx) error {
	return h.list(c, userParam(c), boolPtr(true))
}

// ListUndoneByUser handles GET /api/tasks/all_undone_tasks/:userId.
func (h *TasksHandler) ListUndoneByUser(c *fiber.Ctx) error {
	return h.list(c, userParam(c), boolPtr(false))
}

func (h *TasksHandler) list(c *fiber.Ctx, userID *string, done *bool) error {
	page, err := h.tasks.ListTasks(c.UserContext(), service.TaskQuery{
		UserID: userID,
		Done:   done,
		Page:   c.QueryInt("page", 0),
		Size:   c.QueryInt("size", 20),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewPageResponse(page, dto.NewTaskResponse))
}

// Update handles PUT /api/tasks/admin/update/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	var req dto.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	task, err := h.tasks.UpdateTask(c.UserContext(), actor(c), c.Params("id"), req.Name, req.Done)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// MarkDone handles PUT /api/tasks/admin/:id.
func (h *TasksHandler) MarkDone(c *fiber.Ctx) error {
	task, err := h.tasks.MarkDone(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskResponse(task)})
}

// Delete handles DELETE /api/tasks/admin/delete/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	if err := h.tasks.DeleteTask(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func actor(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.Subject
	}
	return ""
}

func userParam(c *fiber.Ctx) *string {
	id := strings.Clone(c.Params("userId"))
	return &id
}

func boolPtr(v bool) *bool {
	return &v
}
