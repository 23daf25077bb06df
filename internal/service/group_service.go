package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	appErrors "github.com/santiagoarielv98/sistema-gestion-academica/pkg/errors"
)

type groupRepository interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	EnsureGroup(ctx context.Context, name string) (string, error)
	ReplacePermissions(ctx context.Context, groupID string, permissions []models.GroupPermission) error
}

// defaultGroupPermissions maps each built-in group to its resource grants.
// Administrators are handled by role, not permission rows.
var defaultGroupPermissions = map[string][]models.GroupPermission{
	models.GroupAdministrators: nil,
	models.GroupStudents: {
		{Resource: "courses", Action: "read"},
		{Resource: "enrollments", Action: "read"},
		{Resource: "enrollments", Action: "create"},
		{Resource: "enrollments", Action: "withdraw"},
	},
	models.GroupTeachers: {
		{Resource: "courses", Action: "read"},
		{Resource: "students", Action: "read"},
		{Resource: "enrollments", Action: "read"},
	},
	models.GroupProctors: {
		{Resource: "courses", Action: "read"},
		{Resource: "students", Action: "read"},
		{Resource: "enrollments", Action: "read"},
		{Resource: "reports", Action: "read"},
	},
	models.GroupGuests: {
		{Resource: "courses", Action: "read"},
	},
}

// GroupService manages the built-in role groups and their permission sets.
type GroupService struct {
	repo   groupRepository
	logger *zap.Logger
}

// NewGroupService creates a new group service instance.
func NewGroupService(repo groupRepository, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, logger: logger}
}

// List returns every group.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Seed ensures the built-in groups exist with their default permissions.
// The operation is idempotent and safe to run on every deploy.
func (s *GroupService) Seed(ctx context.Context) error {
	for _, name := range []string{
		models.GroupAdministrators,
		models.GroupStudents,
		models.GroupTeachers,
		models.GroupProctors,
		models.GroupGuests,
	} {
		groupID, err := s.repo.EnsureGroup(ctx, name)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure group "+name)
		}
		if err := s.repo.ReplacePermissions(ctx, groupID, defaultGroupPermissions[name]); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set permissions for "+name)
		}
		s.logger.Info("group seeded", zap.String("group", name))
	}
	return nil
}
