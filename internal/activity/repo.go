package activity

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Append(ctx context.Context, l *Log) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(l).Error
}

// ListByJob 单个任务的历史（按时间倒序）。
func (r *Repo) ListByJob(ctx context.Context, jobID string) ([]Log, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var logs []Log
	if err := db.Where("job_id = ?", jobID).Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// ListRecent 全局动态（限定条数，按时间倒序）。
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Log, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []Log
	if err := db.Order("timestamp DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// DeleteAll 清空全部审计记录（仅管理员批量操作，不提供单条删除）。
func (r *Repo) DeleteAll(ctx context.Context) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	res := db.Where("1 = 1").Delete(&Log{})
	return res.RowsAffected, res.Error
}
