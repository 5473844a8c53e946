package activity

import (
	"context"
	"strings"

	"github.com/ChakraFleet/ChakraFleet/internal/common/logger"
	"github.com/google/uuid"
)

// Recorder 审计写入器。
// Record 为尽力而为：审计写失败只记日志，绝不让它撤销所描述的主变更。
type Recorder struct {
	repo *Repo
	log  logger.Logger
}

func NewRecorder(repo *Repo, log logger.Logger) *Recorder {
	return &Recorder{repo: repo, log: log}
}

// Record 追加一条审计记录（服务端时间戳）。
func (r *Recorder) Record(ctx context.Context, jobID, actorID, activityType, description string) {
	if r == nil || r.repo == nil {
		return
	}
	l := &Log{
		ID:           uuid.NewString(),
		JobID:        strings.TrimSpace(jobID),
		UserID:       strings.TrimSpace(actorID),
		ActivityType: activityType,
		Description:  description,
	}
	if err := r.repo.Append(ctx, l); err != nil && r.log != nil {
		r.log.WithFields(map[string]interface{}{
			"job_id":        l.JobID,
			"activity_type": activityType,
		}).Warnf("failed to append activity log: %v", err)
	}
}
