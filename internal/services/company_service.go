package services

import (
	"context"
	"fmt"
	"strings"

	"cashplan/internal/core"
	"cashplan/internal/storage"

	"github.com/google/uuid"
)

// CompanyService manages tenants, their members and bank accounts.
type CompanyService struct {
	storage *storage.SQLiteRepository
	now     Clock
}

func NewCompanyService(storage *storage.SQLiteRepository) *CompanyService {
	return &CompanyService{storage: storage, now: systemClock}
}

// RequireMember returns Forbidden unless userID belongs to companyID.
func (s *CompanyService) RequireMember(ctx context.Context, companyID, userID string) (core.Role, error) {
	return requireMember(ctx, s.storage, companyID, userID)
}

func requireMember(ctx context.Context, store *storage.SQLiteRepository, companyID, userID string) (core.Role, error) {
	role, err := store.MemberRole(ctx, companyID, userID)
	if core.IsKind(err, core.KindNotFound) {
		return "", core.Forbidden("not a member of this company")
	}
	return role, err
}

func (s *CompanyService) CreateCompany(ctx context.Context, userID, name string) (core.Company, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateName("name", name); err != nil {
		return core.Company{}, err
	}
	c := core.Company{ID: uuid.NewString(), Name: name, Role: core.RoleOwner, CreatedAt: s.now()}
	if err := s.storage.CreateCompany(ctx, c, userID); err != nil {
		return core.Company{}, fmt.Errorf("create company: %w", err)
	}
	return c, nil
}

func (s *CompanyService) ListCompanies(ctx context.Context, userID string) ([]core.Company, error) {
	return s.storage.ListCompaniesForUser(ctx, userID)
}

func (s *CompanyService) GetCompany(ctx context.Context, userID, companyID string) (core.Company, error) {
	if _, err := s.RequireMember(ctx, companyID, userID); err != nil {
		return core.Company{}, err
	}
	return s.storage.GetCompanyForUser(ctx, companyID, userID)
}

// AddMember lets an owner add another user.
func (s *CompanyService) AddMember(ctx context.Context, userID, companyID, memberID string, role core.Role) error {
	callerRole, err := s.RequireMember(ctx, companyID, userID)
	if err != nil {
		return err
	}
	if callerRole != core.RoleOwner {
		return core.Forbidden("only owners can add members")
	}
	var fe core.FieldErrors
	if strings.TrimSpace(memberID) == "" {
		fe.Add("user_id", "user_id is required")
	}
	if role == "" {
		role = core.RoleMember
	}
	if role != core.RoleOwner && role != core.RoleMember {
		fe.Add("role", "role must be owner or member")
	}
	if err := fe.Err("invalid member"); err != nil {
		return err
	}
	return s.storage.AddMember(ctx, companyID, strings.TrimSpace(memberID), role, s.now())
}

func (s *CompanyService) CreateAccount(ctx context.Context, userID, companyID, name, currency string) (core.Account, error) {
	if _, err := s.RequireMember(ctx, companyID, userID); err != nil {
		return core.Account{}, err
	}
	var fe core.FieldErrors
	name = strings.TrimSpace(name)
	if err := core.ValidateName("name", name); err != nil {
		fe.Add("name", "name is required and must be at most 120 characters")
	}
	cur, err := core.NormalizeCurrency(currency)
	if err != nil {
		fe.Add("currency", err.Error())
	}
	if err := fe.Err("invalid account"); err != nil {
		return core.Account{}, err
	}

	a := core.Account{ID: uuid.NewString(), CompanyID: companyID, Name: name, Currency: cur, CreatedAt: s.now()}
	if err := s.storage.CreateAccount(ctx, a); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (s *CompanyService) ListAccounts(ctx context.Context, userID, companyID string) ([]core.Account, error) {
	if _, err := s.RequireMember(ctx, companyID, userID); err != nil {
		return nil, err
	}
	return s.storage.ListAccounts(ctx, companyID)
}

// ListAuditEvents returns the events recorded by the worker for a company.
func (s *CompanyService) ListAuditEvents(ctx context.Context, userID, companyID string, page core.Page) (core.PageResult[core.AuditEvent], error) {
	if _, err := s.RequireMember(ctx, companyID, userID); err != nil {
		return core.PageResult[core.AuditEvent]{}, err
	}
	return s.storage.ListAuditEvents(ctx, companyID, page)
}
