package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/taskhub/task-auth-service/internal/domain"
)

// TaskFilter narrows task listings. Nil fields are not filtered on.
type TaskFilter struct {
	UserID *string
	Done   *bool
	Limit  int
	Offset int
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)
}

type taskRepository struct {
	db DBTX
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepository{db: db}
}

const taskSelect = `
        SELECT t.id, t.name, t.done, t.user_id, u.username, t.created_at, t.updated_at
        FROM tasks t
        JOIN users u ON u.id = t.user_id`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (name, done, user_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, task.Name, task.Done, task.UserID).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET name=$1, done=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query, task.Name, task.Done, task.ID).Scan(&task.UpdatedAt)
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.QueryRow(ctx, taskSelect+` WHERE t.id=$1`, id).Scan(
		&task.ID,
		&task.Name,
		&task.Done,
		&task.UserID,
		&task.Username,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	query, args := buildTaskListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	where, args := taskWhere(filter)
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks t WHERE `+where, args...).Scan(&n)
	return n, err
}

// taskWhere renders filter as a WHERE clause over the tasks alias t so that
// status and owner filtering run in the database against the indexes.
func taskWhere(filter TaskFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("t.user_id=$%d", len(args)))
	}
	if filter.Done != nil {
		args = append(args, *filter.Done)
		clauses = append(clauses, fmt.Sprintf("t.done=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func buildTaskListQuery(filter TaskFilter) (string, []any) {
	where, args := taskWhere(filter)
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at, t.id LIMIT $%d OFFSET $%d`,
		taskSelect, where, len(args)-1, len(args))
	return query, args
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	result := []domain.Task{}
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(
			&task.ID,
			&task.Name,
			&task.Done,
			&task.UserID,
			&task.Username,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
