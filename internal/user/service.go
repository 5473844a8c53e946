package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/common/auth"
	"github.com/ChakraFleet/ChakraFleet/internal/common/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityRecorder 审计回调（尽力而为，由 activity 包实现）。
type ActivityRecorder interface {
	Record(ctx context.Context, jobID, actorID, activityType, description string)
}

// Service 封装用户领域的核心用例（注册/登录/档案/司机可用性），不依赖 HTTP。
type Service struct {
	repo     *Repo
	authCfg  config.AuthConfig
	recorder ActivityRecorder
}

func NewService(repo *Repo, authCfg config.AuthConfig, recorder ActivityRecorder) *Service {
	return &Service{repo: repo, authCfg: authCfg, recorder: recorder}
}

// RegisterInput 注册入参。
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Role         Role
	AvatarURL    string
	Availability bool // 仅 Driver 有效
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, fmt.Errorf("name/email/password required")
	}
	if !ValidRole(in.Role) {
		return nil, fmt.Errorf("invalid role: %s", in.Role)
	}

	// check existence
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already exists")
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         in.Role,
		AvatarURL:    strings.TrimSpace(in.AvatarURL),
	}
	if u.Role == RoleDriver {
		u.Availability = in.Availability
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, "", u.ID, "User Registration",
			fmt.Sprintf("User %s registered with role %s", u.Name, u.Role))
	}
	return u, nil
}

// Login 校验凭证并签发 access token。
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, time.Time, error) {
	if s == nil || s.repo == nil {
		return nil, "", time.Time{}, fmt.Errorf("service not initialized")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", time.Time{}, fmt.Errorf("email/password required")
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err == gorm.ErrRecordNotFound {
		return nil, "", time.Time{}, fmt.Errorf("invalid credentials")
	}
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if !VerifyPassword(password, u.PasswordSalt, u.PasswordHash) {
		return nil, "", time.Time{}, fmt.Errorf("invalid credentials")
	}

	ttl := time.Duration(s.authCfg.TokenTTLHours) * time.Hour
	token, exp, err := auth.GenerateAccessToken(s.authCfg, u.ID, []string{string(u.Role)}, ttl)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return u, token, exp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.repo.FindByID(ctx, strings.TrimSpace(id))
}

// ProfileUpdate 个人档案可自助修改的字段（nil 表示不变）。
type ProfileUpdate struct {
	Name            *string
	AvatarURL       *string
	CurrentLocation *string // 仅 Driver
	Availability    *bool   // 仅 Driver
}

// UpdateProfile 本人或管理员更新档案。
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		fields["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.AvatarURL != nil {
		fields["avatar_url"] = strings.TrimSpace(*upd.AvatarURL)
	}
	// availability / current_location 对非司机角色无意义，直接忽略
	if u.IsDriver() {
		if upd.CurrentLocation != nil {
			fields["current_location"] = strings.TrimSpace(*upd.CurrentLocation)
		}
		if upd.Availability != nil {
			fields["availability"] = *upd.Availability
		}
	}
	if len(fields) == 0 {
		return u, nil
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetAvailability 管理员切换司机可用性。
func (s *Service) SetAvailability(ctx context.Context, actorID, driverID string, available bool) error {
	u, err := s.Get(ctx, driverID)
	if err != nil {
		return err
	}
	if !u.IsDriver() {
		return fmt.Errorf("user %s is not a driver", driverID)
	}
	if err := s.repo.UpdateFields(ctx, driverID, map[string]any{"availability": available}); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Record(ctx, "", actorID, "Driver Availability",
			fmt.Sprintf("Driver %s availability set to %t", u.Name, available))
	}
	return nil
}

// Delete 管理员删除用户（不可删除自己）。
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return fmt.Errorf("cannot delete yourself")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Record(ctx, "", actorID, "User Deletion",
			fmt.Sprintf("User %s (%s) deleted", u.Name, u.Email))
	}
	return nil
}

// ResetAllDrivers 将全部司机重置为可用。
func (s *Service) ResetAllDrivers(ctx context.Context, actorID string) (int64, error) {
	n, err := s.repo.ResetAllDriverAvailability(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.recorder != nil {
		s.recorder.Record(ctx, "", actorID, "Driver Availability Reset",
			fmt.Sprintf("%d drivers marked available", n))
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, role Role, offset, limit int) ([]User, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	return s.repo.List(ctx, role, offset, limit)
}
