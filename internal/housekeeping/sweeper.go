// Package housekeeping 后台例行任务：归档保留期清理与司机可用性
// 每日重置。属于尽力而为的维护动作，失败只记日志，绝不影响主流程。
package housekeeping

import (
	"context"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/common/config"
	"github.com/ChakraFleet/ChakraFleet/internal/common/logger"
	"github.com/robfig/cron/v3"
)

// JobPurger 归档清理能力。
type JobPurger interface {
	PurgeExpiredArchived(ctx context.Context, cutoff time.Time) (int, error)
}

// DriverResetter 司机可用性重置能力。
type DriverResetter interface {
	ResetAllDriverAvailability(ctx context.Context) (int64, error)
}

// Sweeper 按 cron 表达式调度两项例行任务。
type Sweeper struct {
	cfg     config.HousekeepingConfig
	purger  JobPurger
	drivers DriverResetter
	log     logger.Logger
	cron    *cron.Cron
}

func NewSweeper(cfg config.HousekeepingConfig, purger JobPurger, drivers DriverResetter, log logger.Logger) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		purger:  purger,
		drivers: drivers,
		log:     log,
		cron:    cron.New(),
	}
}

// Start 注册并启动调度。表达式解析失败视为配置错误返回。
func (s *Sweeper) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("housekeeping disabled by config")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.PurgeSpec, s.runPurge); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ResetSpec, s.runDriverReset); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithFields(map[string]interface{}{
		"purge_spec": s.cfg.PurgeSpec,
		"reset_spec": s.cfg.ResetSpec,
	}).Info("housekeeping scheduler started")
	return nil
}

// Stop 停止调度并等待在跑的任务结束。
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RetentionCutoff 归档保留期截止点：完成（或申请）早于该时刻的
// 归档任务会被清掉。
func (s *Sweeper) RetentionCutoff(now time.Time) time.Time {
	months := s.cfg.RetentionMonths
	if months <= 0 {
		months = 2
	}
	return now.AddDate(0, -months, 0)
}

func (s *Sweeper) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := s.RetentionCutoff(time.Now())
	purged, err := s.purger.PurgeExpiredArchived(ctx, cutoff)
	if err != nil {
		s.log.Warnf("archived job purge failed: %v", err)
		return
	}
	if purged > 0 {
		s.log.Infof("purged %d archived jobs past retention window", purged)
	}
}

func (s *Sweeper) runDriverReset() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.drivers.ResetAllDriverAvailability(ctx)
	if err != nil {
		s.log.Warnf("driver availability reset failed: %v", err)
		return
	}
	if n > 0 {
		s.log.Infof("reset availability for %d drivers", n)
	}
}
