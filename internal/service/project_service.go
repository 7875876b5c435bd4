package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"taskflow/internal/ids"
	"taskflow/internal/models"
	"taskflow/internal/policy"
	"taskflow/internal/repository"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type ProjectService struct {
	projects ProjectStore
	opts     options
	log      zerolog.Logger
}

func NewProjectService(projects ProjectStore, log zerolog.Logger, opts ...Option) *ProjectService {
	return &ProjectService{
		projects: projects,
		opts:     buildOptions(opts),
		log:      log,
	}
}

type ProjectInput struct {
	Name        string
	Description string
	Color       string
}

type ProjectPatch struct {
	Name        *string
	Description *string
	Color       *string
}

func (s *ProjectService) List(ctx context.Context, caller models.Identity) ([]models.Project, error) {
	if !policy.Decide(caller, policy.ProjectRead, policy.Target{}).Permitted() {
		return nil, ErrForbidden
	}
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, caller models.Identity, id string) (models.Project, error) {
	if !policy.Decide(caller, policy.ProjectRead, policy.Target{}).Permitted() {
		return models.Project{}, ErrForbidden
	}
	project, err := s.projects.GetByID(ctx, id)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return models.Project{}, ErrNotFound
	}
	return project, err
}

func (s *ProjectService) Create(ctx context.Context, caller models.Identity, input ProjectInput) (models.Project, error) {
	if !policy.Decide(caller, policy.ProjectWrite, policy.Target{}).Permitted() {
		return models.Project{}, ErrForbidden
	}
	name, err := validProjectName(input.Name)
	if err != nil {
		return models.Project{}, err
	}
	color, err := validColor(input.Color)
	if err != nil {
		return models.Project{}, err
	}

	creator := caller.UserID
	now := s.opts.now()
	project := models.Project{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       color,
		CreatedBy:   &creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return models.Project{}, err
	}
	s.log.Info().Str("project_id", project.ID).Str("created_by", creator).Msg("project created")
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, caller models.Identity, id string, patch ProjectPatch) (models.Project, error) {
	if !policy.Decide(caller, policy.ProjectWrite, policy.Target{}).Permitted() {
		return models.Project{}, ErrForbidden
	}
	if patch.Name == nil && patch.Description == nil && patch.Color == nil {
		return models.Project{}, validationf("no fields to update")
	}

	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	if patch.Name != nil {
		if project.Name, err = validProjectName(*patch.Name); err != nil {
			return models.Project{}, err
		}
	}
	if patch.Description != nil {
		project.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Color != nil {
		if project.Color, err = validColor(*patch.Color); err != nil {
			return models.Project{}, err
		}
	}
	project.UpdatedAt = s.opts.now()

	if err := s.projects.Update(ctx, project); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return project, nil
}

// Delete removes the project; its tasks keep existing without one.
func (s *ProjectService) Delete(ctx context.Context, caller models.Identity, id string) error {
	if !policy.Decide(caller, policy.ProjectWrite, policy.Target{}).Permitted() {
		return ErrForbidden
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.log.Info().Str("project_id", id).Str("deleted_by", caller.UserID).Msg("project deleted")
	return nil
}

func validProjectName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", validationf("project name is required")
	}
	if len(name) > 100 {
		return "", validationf("project name must be at most 100 characters")
	}
	return name, nil
}

func validColor(raw string) (string, error) {
	color := strings.TrimSpace(raw)
	if color == "" {
		return models.DefaultProjectColor, nil
	}
	if !hexColor.MatchString(color) {
		return "", validationf("color must be a hex value like #667eea")
	}
	return strings.ToLower(color), nil
}
