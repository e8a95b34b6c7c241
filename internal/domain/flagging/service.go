package flagging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve maps (testCode, gender) to the governing active config, or
// (nil, nil) when no rule applies.
//
// An active general config always wins, regardless of the gender supplied;
// that precedence is policy, not an accident. Only when no general rule
// exists does the caller's gender select among gender-specific configs, with
// the highest version winning.
func (s *Service) Resolve(ctx context.Context, testCode, gender string) (*FlaggingConfig, error) {
	if testCode == "" {
		return nil, fmt.Errorf("test code is required")
	}

	configs, err := s.repo.ListActiveByCode(ctx, testCode)
	if err != nil {
		return nil, err
	}

	var general, specific []*FlaggingConfig
	for _, c := range configs {
		if c.IsGeneral() {
			general = append(general, c)
		} else {
			specific = append(specific, c)
		}
	}

	if len(general) > 0 {
		return highestVersion(general), nil
	}

	if gender == "" {
		return nil, nil
	}

	var matching []*FlaggingConfig
	for _, c := range specific {
		if strings.EqualFold(*c.Gender, gender) {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}
	return highestVersion(matching), nil
}

func highestVersion(configs []*FlaggingConfig) *FlaggingConfig {
	best := configs[0]
	for _, c := range configs[1:] {
		if c.Version > best.Version {
			best = c
		}
	}
	return best
}

func (s *Service) Create(ctx context.Context, cfg *FlaggingConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return s.repo.Create(ctx, cfg)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*FlaggingConfig, error) {
	return s.repo.GetByID(ctx, id)
}

// Supersede replaces the active config for (test code, gender) with a new
// version; the old version is deactivated, never edited.
func (s *Service) Supersede(ctx context.Context, cfg *FlaggingConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return s.repo.Supersede(ctx, cfg)
}

func validateConfig(cfg *FlaggingConfig) error {
	if cfg.TestCode == "" {
		return fmt.Errorf("test code is required")
	}
	if cfg.MaxValue < cfg.MinValue {
		return fmt.Errorf("max value %g below min value %g", cfg.MaxValue, cfg.MinValue)
	}
	return nil
}
