package project

import (
	"context"
	"fmt"

	"github.com/erp/chemstock/internal/application/common"
	"github.com/erp/chemstock/internal/domain/project"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
)

// ProjectService manages drilling projects and their reagent budgets
type ProjectService struct {
	client  *apiclient.Client
	confirm common.Confirmer
}

// NewProjectService creates a new ProjectService
func NewProjectService(client *apiclient.Client, confirm common.Confirmer) *ProjectService {
	return &ProjectService{client: client, confirm: confirm}
}

// List returns projects, restricted to one facility when facilityID > 0
func (s *ProjectService) List(ctx context.Context, facilityID int64) ([]project.Project, error) {
	return apiclient.GetList[project.Project](ctx, s.client, "/projects/", facilityQuery(facilityID))
}

// Get returns one project
func (s *ProjectService) Get(ctx context.Context, id int64) (*project.Project, error) {
	var p project.Project
	if err := s.client.Get(ctx, projectPath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create adds a project. Incomplete budget lines are dropped.
func (s *ProjectService) Create(ctx context.Context, req ProjectRequest) (*project.Project, error) {
	if err := prepareProject(&req); err != nil {
		return nil, err
	}
	var p project.Project
	if err := s.client.Post(ctx, "/projects/", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update replaces a project with req
func (s *ProjectService) Update(ctx context.Context, id int64, req ProjectRequest) (*project.Project, error) {
	if err := prepareProject(&req); err != nil {
		return nil, err
	}
	var p project.Project
	if err := s.client.Put(ctx, projectPath(id), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a project after confirmation
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if err := common.RequireConfirmation(ctx, s.confirm, "Вы уверены, что хотите удалить этот проект?"); err != nil {
		return err
	}
	return s.client.Delete(ctx, projectPath(id))
}

func prepareProject(req *ProjectRequest) error {
	if err := common.Validate(req); err != nil {
		return err
	}
	if err := checkPeriod(req.StartDate, req.EndDate); err != nil {
		return err
	}
	if req.Status == "" {
		req.Status = project.StatusPlanned
	}
	lines := project.CompleteBudgetLines(req.BudgetLines)
	for i := range lines {
		lines[i].ID = 0
		lines[i].ChemicalName = ""
	}
	req.BudgetLines = lines
	return nil
}

func projectPath(id int64) string {
	return fmt.Sprintf("/projects/%d/", id)
}
