package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/internal/repository"
	"cryptolearn-backend/pkg/utils"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// sortable user columns, keyed by the name clients send
var userSortColumns = map[string]string{
	"username":  "username",
	"email":     "email",
	"createdAt": "created_at",
	"id":        "id",
	"roles":     "username",
}

type UserService struct {
	userRepo  UserRepository
	roleRepo  RoleRepository
	auditRepo AuditRepository
	log       *slog.Logger
}

func NewUserService(userRepo UserRepository, roleRepo RoleRepository, auditRepo AuditRepository, log *slog.Logger) *UserService {
	return &UserService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		log:       log,
	}
}

// UpdateProfileInput holds optional profile changes; nil fields stay as they are.
type UpdateProfileInput struct {
	Username *string
	Email    *string
}

// ProfileUpdate is the outcome of UpdateProfile. When IdentityChanged is set
// the caller's access token names the old username and must be re-issued.
type ProfileUpdate struct {
	Profile         UserProfile
	IdentityChanged bool
	User            *models.User
}

type AdminUpdateInput struct {
	Username    *string
	Email       *string
	Roles       []string // nil leaves roles unchanged
	Enabled     *bool
	NewPassword *string
}

type PageRequest struct {
	Page int
	Size int
	Sort string // "field" or "field,asc|desc"
}

func (s *UserService) loadUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// GetProfile returns the profile of userID
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*UserProfile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := NewUserProfile(user)
	return &profile, nil
}

// UpdateProfile changes the username and/or email of userID
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*ProfileUpdate, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	identityChanged, err := s.applyIdentity(ctx, user, in.Username, in.Email)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user, false); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, identityTaken(ctx, s.userRepo, changedName(user, identityChanged))
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	recordAudit(ctx, s.auditRepo, s.log, user.ID, models.AuditProfileUpdate, fmt.Sprintf("User %s updated profile", user.Username))

	return &ProfileUpdate{
		Profile:         NewUserProfile(user),
		IdentityChanged: identityChanged,
		User:            user,
	}, nil
}

// applyIdentity sets a new username/email on user after checking they are free.
// It reports whether the username changed.
func (s *UserService) applyIdentity(ctx context.Context, user *models.User, username, email *string) (bool, error) {
	usernameChanged := false

	if username != nil {
		name := strings.TrimSpace(*username)
		if name != "" && name != user.Username {
			taken, err := s.userRepo.ExistsByUsername(ctx, name)
			if err != nil {
				return false, fmt.Errorf("check username: %w", err)
			}
			if taken {
				return false, ErrUsernameTaken
			}
			user.Username = name
			usernameChanged = true
		}
	}

	if email != nil {
		addr := strings.TrimSpace(*email)
		if addr != "" && !strings.EqualFold(addr, user.Email) {
			taken, err := s.userRepo.ExistsByEmail(ctx, addr)
			if err != nil {
				return false, fmt.Errorf("check email: %w", err)
			}
			if taken {
				return false, ErrEmailTaken
			}
			user.Email = addr
		}
	}

	return usernameChanged, nil
}

// identityTaken works out which unique field a rejected write collided on,
// for writes that lost a race with the ExistsBy checks. username is empty
// when the write did not change it.
func identityTaken(ctx context.Context, users UserRepository, username string) error {
	if username != "" {
		if taken, err := users.ExistsByUsername(ctx, username); err == nil && taken {
			return ErrUsernameTaken
		}
	}
	return ErrEmailTaken
}

func changedName(user *models.User, renamed bool) string {
	if renamed {
		return user.Username
	}
	return ""
}

// ChangePassword replaces the password of userID after checking the current one
func (s *UserService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !utils.ComparePassword(user.PasswordHash, currentPassword) {
		return ErrPasswordMismatch
	}
	if utils.ComparePassword(user.PasswordHash, newPassword) {
		return ErrSamePassword
	}
	if !utils.IsPasswordComplex(newPassword) {
		return ErrWeakPassword
	}

	passwordHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	recordAudit(ctx, s.auditRepo, s.log, user.ID, models.AuditPasswordChange, "Password changed")
	return nil
}

// DeleteAccount deletes targetID on behalf of actor. Anyone may delete
// themselves; administrators may also delete non-administrators.
func (s *UserService) DeleteAccount(ctx context.Context, actor *models.User, targetID uint) error {
	if actor.ID != targetID {
		if !actor.HasRole(models.RoleAdmin) {
			return ErrCannotDeleteOthers
		}
		target, err := s.loadUser(ctx, targetID)
		if err != nil {
			return err
		}
		if target.HasRole(models.RoleAdmin) {
			return ErrCannotDeleteAdmin
		}
	}

	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.log.Info("user deleted", "user_id", targetID, "actor_id", actor.ID)
	recordAudit(ctx, s.auditRepo, s.log, actor.ID, models.AuditUserDeleted, fmt.Sprintf("User %d deleted", targetID))
	return nil
}

// AdminDeleteUser is DeleteAccount restricted to administrators
func (s *UserService) AdminDeleteUser(ctx context.Context, actor *models.User, targetID uint) error {
	if !actor.HasRole(models.RoleAdmin) {
		return ErrAdminRequired
	}
	return s.DeleteAccount(ctx, actor, targetID)
}

// ListUsers returns one page of users
func (s *UserService) ListUsers(ctx context.Context, req PageRequest) (*Page[UserProfile], error) {
	page, size := req.Page, req.Size
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page > math.MaxInt32/size {
		return nil, ErrPageOutOfRange
	}

	users, total, err := s.userRepo.List(ctx, page*size, size, parseUserSort(req.Sort))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	profiles := make([]UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, NewUserProfile(&users[i]))
	}
	return newPage(profiles, page, size, total), nil
}

// parseUserSort turns "field,dir" into an ORDER BY clause over a whitelisted column
func parseUserSort(sort string) string {
	field, dir, _ := strings.Cut(strings.TrimSpace(sort), ",")

	column, ok := userSortColumns[strings.TrimSpace(field)]
	if !ok {
		column = "username"
	}

	direction := "asc"
	if strings.EqualFold(strings.TrimSpace(dir), "desc") {
		direction = "desc"
	}
	return column + " " + direction
}

// AdminUpdateUser applies an administrator's edit to targetID
func (s *UserService) AdminUpdateUser(ctx context.Context, actor *models.User, targetID uint, in AdminUpdateInput) (*UserProfile, error) {
	if !actor.HasRole(models.RoleAdmin) {
		return nil, ErrAdminRequired
	}

	target, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	self := actor.ID == target.ID
	if !self && target.HasRole(models.RoleAdmin) {
		return nil, ErrCannotModifyAdmin
	}

	renamed, err := s.applyIdentity(ctx, target, in.Username, in.Email)
	if err != nil {
		return nil, err
	}

	replaceRoles := false
	if in.Roles != nil {
		roles, err := s.resolveRoles(ctx, in.Roles)
		if err != nil {
			return nil, err
		}
		if !sameRoles(target.Roles, roles) {
			if self {
				return nil, ErrCannotChangeOwnRoles
			}
			target.Roles = roles
			replaceRoles = true
		}
	}

	if in.Enabled != nil {
		if self && !*in.Enabled {
			return nil, ErrCannotDisableSelf
		}
		target.Enabled = *in.Enabled
	}

	if in.NewPassword != nil && strings.TrimSpace(*in.NewPassword) != "" {
		if self {
			return nil, ErrCannotSetOwnPassword
		}
		if !utils.IsPasswordComplex(*in.NewPassword) {
			return nil, ErrWeakPassword
		}
		passwordHash, err := utils.HashPassword(*in.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		target.PasswordHash = passwordHash
	}

	if err := s.userRepo.Update(ctx, target, replaceRoles); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, identityTaken(ctx, s.userRepo, changedName(target, renamed))
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	recordAudit(ctx, s.auditRepo, s.log, actor.ID, models.AuditAdminUpdateUser, fmt.Sprintf("Admin updated user %d", target.ID))

	profile := NewUserProfile(target)
	return &profile, nil
}

func (s *UserService) resolveRoles(ctx context.Context, names []string) ([]models.Role, error) {
	if len(names) == 0 {
		return nil, ErrRolesRequired
	}

	seen := make(map[models.RoleName]bool, len(names))
	roles := make([]models.Role, 0, len(names))
	for _, raw := range names {
		name, err := models.ParseRoleName(raw)
		if err != nil {
			return nil, ErrRoleNotFound
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		role, err := s.roleRepo.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRoleNotFound
			}
			return nil, fmt.Errorf("load role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

func sameRoles(a, b []models.Role) bool {
	set := make(map[models.RoleName]bool, len(a))
	for _, r := range a {
		set[r.Name] = true
	}
	if len(set) != len(b) {
		return false
	}
	for _, r := range b {
		if !set[r.Name] {
			return false
		}
	}
	return true
}
