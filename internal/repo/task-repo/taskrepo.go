package taskrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

const taskColumns = `id, task_type, title, description, reward, channel_id, target_value, is_active, created_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID, &task.Type, &task.Title, &task.Description, &task.Reward,
		&task.ChannelID, &task.TargetValue, &task.IsActive, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *Repository) FindByID(ctx context.Context, taskID int) (*domain.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE id = $1
    `
	task, err := scanTask(r.db.QueryRow(ctx, query, taskID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find task", zap.Error(err))
		return nil, err
	}
	return task, nil
}

func (r *Repository) list(ctx context.Context, query string) ([]domain.Task, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		zap.L().Error("failed to fetch tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			zap.L().Error("failed to scan task row", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]domain.Task, error) {
	return r.list(ctx, `
        SELECT `+taskColumns+`
        FROM tasks
        WHERE is_active
        ORDER BY created_at
    `)
}

func (r *Repository) List(ctx context.Context) ([]domain.Task, error) {
	return r.list(ctx, `
        SELECT `+taskColumns+`
        FROM tasks
        ORDER BY created_at DESC
    `)
}

func (r *Repository) HasCompletion(ctx context.Context, userID int64, taskID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM task_completions WHERE user_id = $1 AND task_id = $2
        )
    `
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, taskID).Scan(&exists); err != nil {
		zap.L().Error("failed to check task completion", zap.Error(err))
		return false, err
	}
	return exists, nil
}

func (r *Repository) CreateCompletion(ctx context.Context, userID int64, taskID int) error {
	query := `
		INSERT INTO task_completions (user_id, task_id)
		VALUES ($1, $2)
	`
	if _, err := r.db.Exec(ctx, query, userID, taskID); err != nil {
		zap.L().Error("failed to create task completion", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) CompletedTaskIDs(ctx context.Context, userID int64) (map[int]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT task_id FROM task_completions WHERE user_id = $1`, userID)
	if err != nil {
		zap.L().Error("failed to fetch completed tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	completed := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			zap.L().Error("failed to scan completion row", zap.Error(err))
			return nil, err
		}
		completed[id] = struct{}{}
	}

	return completed, nil
}

func (r *Repository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	query := `
		INSERT INTO tasks (task_type, title, description, reward, channel_id, target_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		task.Type, task.Title, task.Description, task.Reward, task.ChannelID, task.TargetValue,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		zap.L().Error("can't save task", zap.Error(err))
		return nil, err
	}
	task.IsActive = true
	return task, nil
}

func (r *Repository) SetActive(ctx context.Context, taskID int, active bool) error {
	query := `
		UPDATE tasks
		SET is_active = $1
		WHERE id = $2
	`
	if _, err := r.db.Exec(ctx, query, active, taskID); err != nil {
		zap.L().Error("failed to toggle task", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, taskID int) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM task_completions WHERE task_id = $1`, taskID); err != nil {
		zap.L().Error("failed to delete task completions", zap.Error(err))
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		zap.L().Error("failed to delete task", zap.Error(err))
		return err
	}
	return nil
}
