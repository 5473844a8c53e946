package job

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, j *Job) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// List 按角色范围列出任务，按申请时间倒序。
func (r *Repo) List(ctx context.Context, actor Principal, opts ListOptions) ([]Job, error) {
	var jobs []Job
	err := r.db.WithContext(ctx).
		Scopes(Scope(actor, opts)).
		Order("request_date DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateFields 对单条任务做一次多字段更新。状态、指派等组合变更
// 必须走同一次更新落库，避免读到"有司机没车辆"的中间态。
func (r *Repo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Job{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListUpdatedSince 自水位时间以来发生变更、且在该操作者可见范围内
// 的任务，供轮询推送使用。闭区间查询：与水位同刻的变更也会带出，
// 由调用方按 id 去重，避免时间戳精度内的第二次变更被跳过。
func (r *Repo) ListUpdatedSince(ctx context.Context, actor Principal, opts ListOptions, since time.Time) ([]Job, error) {
	var jobs []Job
	err := r.db.WithContext(ctx).
		Scopes(Scope(actor, opts)).
		Where("updated_at >= ?", since).
		Order("updated_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListArchivedBefore 归档任务中 (completion_date ?? request_date) 早于
// cutoff 的部分，供保留期清扫使用。
func (r *Repo) ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	var jobs []Job
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusArchived).
		Where("COALESCE(completion_date, request_date) < ?", cutoff).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListArchived 全部归档任务。
func (r *Repo) ListArchived(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := r.db.WithContext(ctx).Where("status = ?", StatusArchived).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListAll 无范围限制的全量任务，仅供管理员导出/顾问侧使用。
func (r *Repo) ListAll(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := r.db.WithContext(ctx).Order("request_date DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
