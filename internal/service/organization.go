package service

import (
	"context"
	"errors"

	"github.com/chatrelay/relay/internal/models"
	"github.com/chatrelay/relay/internal/repository"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrNotOwner             = errors.New("only organization owners can do this")
)

const (
	RoleOwner         = "owner"
	RoleAdministrator = "administrator"
	RoleDeveloper     = "developer"
)

type OrganizationService struct {
	repository *repository.OrganizationRepository
}

func NewOrganizationService(repo *repository.OrganizationRepository) *OrganizationService {
	return &OrganizationService{repository: repo}
}

// Create makes a new organization on the free tier with the creator as
// owner.
func (s *OrganizationService) Create(ctx context.Context, name, userID string) (*models.Organization, error) {
	org := &models.Organization{
		Name:             name,
		SubscriptionTier: "free",
	}

	if err := s.repository.Create(ctx, org); err != nil {
		return nil, err
	}

	member := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         userID,
		Role:           RoleOwner,
	}

	if err := s.repository.CreateMember(ctx, member); err != nil {
		return nil, err
	}

	return org, nil
}

// ListForUser returns the user's organizations along with their role in
// each.
func (s *OrganizationService) ListForUser(ctx context.Context, userID string) ([]models.Organization, map[string]string, error) {
	memberships, err := s.repository.FindMemberships(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(memberships))
	roles := make(map[string]string, len(memberships))
	for _, membership := range memberships {
		id := membership.OrganizationID.String()
		ids = append(ids, id)
		roles[id] = membership.Role
	}

	if len(ids) == 0 {
		return nil, roles, nil
	}

	orgs, err := s.repository.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	return orgs, roles, nil
}

// Delete removes an organization; only owners may do so.
func (s *OrganizationService) Delete(ctx context.Context, organizationID, userID string) error {
	memberships, err := s.repository.FindMemberships(ctx, userID)
	if err != nil {
		return err
	}

	isOwner := false
	for _, membership := range memberships {
		if membership.OrganizationID.String() == organizationID && membership.Role == RoleOwner {
			isOwner = true
			break
		}
	}

	if !isOwner {
		return ErrNotOwner
	}

	return s.repository.Delete(ctx, organizationID)
}

func (s *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	org, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationNotFound
	}
	return org, nil
}
