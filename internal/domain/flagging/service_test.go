package flagging

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	configs []*FlaggingConfig
}

func (m *mockRepo) Create(_ context.Context, cfg *FlaggingConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	m.configs = append(m.configs, cfg)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*FlaggingConfig, error) {
	for _, c := range m.configs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) ListActiveByCode(_ context.Context, testCode string) ([]*FlaggingConfig, error) {
	var out []*FlaggingConfig
	for _, c := range m.configs {
		if c.TestCode == testCode && c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepo) Supersede(_ context.Context, cfg *FlaggingConfig) error {
	maxVersion := 0
	for _, c := range m.configs {
		if c.TestCode != cfg.TestCode {
			continue
		}
		sameScope := (c.Gender == nil && cfg.Gender == nil) ||
			(c.Gender != nil && cfg.Gender != nil && *c.Gender == *cfg.Gender)
		if !sameScope {
			continue
		}
		if c.Version > maxVersion {
			maxVersion = c.Version
		}
		c.Active = false
	}
	cfg.ID = uuid.New()
	cfg.Version = maxVersion + 1
	cfg.Active = true
	m.configs = append(m.configs, cfg)
	return nil
}

func strptr(s string) *string { return &s }

func cfg(code string, gender *string, version int, active bool) *FlaggingConfig {
	return &FlaggingConfig{
		ID:       uuid.New(),
		TestCode: code,
		Gender:   gender,
		Version:  version,
		Active:   active,
		MinValue: 4.0,
		MaxValue: 10.0,
	}
}

func TestResolveGeneralOutranksGenderSpecific(t *testing.T) {
	repo := &mockRepo{}
	general := cfg("WBC", nil, 1, true)
	repo.configs = append(repo.configs,
		general,
		cfg("WBC", strptr("female"), 7, true),
		cfg("WBC", strptr("male"), 5, true),
	)
	svc := NewService(repo)

	for _, gender := range []string{"", "female", "male", "unknown"} {
		got, err := svc.Resolve(context.Background(), "WBC", gender)
		if err != nil {
			t.Fatalf("resolve(WBC, %q): %v", gender, err)
		}
		if got == nil || got.ID != general.ID {
			t.Errorf("resolve(WBC, %q): expected the general config", gender)
		}
	}
}

func TestResolveGenderSpecificNeedsGender(t *testing.T) {
	repo := &mockRepo{}
	female := cfg("HGB", strptr("female"), 2, true)
	repo.configs = append(repo.configs,
		cfg("HGB", strptr("female"), 1, true),
		female,
		cfg("HGB", strptr("male"), 3, true),
	)
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), "HGB", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Error("expected not-found without a gender and no general config")
	}

	got, err = svc.Resolve(context.Background(), "HGB", "female")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != female.ID {
		t.Error("expected highest-version active female config")
	}
}

func TestResolveIgnoresInactive(t *testing.T) {
	repo := &mockRepo{}
	repo.configs = append(repo.configs,
		cfg("PLT", nil, 9, false),
		cfg("PLT", strptr("male"), 1, true),
	)
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), "PLT", "male")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.Gender == nil || *got.Gender != "male" {
		t.Error("inactive general config must not outrank active specific one")
	}
}

func TestResolveUnknownCode(t *testing.T) {
	svc := NewService(&mockRepo{})
	got, err := svc.Resolve(context.Background(), "XYZ", "female")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Error("expected not-found for unknown test code")
	}
}

func TestResolveTieBrokenByVersion(t *testing.T) {
	repo := &mockRepo{}
	v3 := cfg("RBC", nil, 3, true)
	repo.configs = append(repo.configs, cfg("RBC", nil, 1, true), v3, cfg("RBC", nil, 2, true))
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), "RBC", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.Version != 3 {
		t.Errorf("expected version 3, got %+v", got)
	}
}

func TestSupersedeBumpsVersionAndDeactivates(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	first := &FlaggingConfig{TestCode: "WBC", MinValue: 4, MaxValue: 10}
	if err := svc.Supersede(context.Background(), first); err != nil {
		t.Fatalf("supersede: %v", err)
	}
	second := &FlaggingConfig{TestCode: "WBC", MinValue: 4.5, MaxValue: 11}
	if err := svc.Supersede(context.Background(), second); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	if second.Version != 2 {
		t.Errorf("version = %d, want 2", second.Version)
	}

	active, _ := repo.ListActiveByCode(context.Background(), "WBC")
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("expected only the new version active, got %d active", len(active))
	}
}

func TestClassify(t *testing.T) {
	c := &FlaggingConfig{MinValue: 4.0, MaxValue: 10.0}
	if got := c.Classify(3.0); got != "Low" {
		t.Errorf("Classify(3.0) = %s", got)
	}
	if got := c.Classify(11.0); got != "High" {
		t.Errorf("Classify(11.0) = %s", got)
	}
	if got := c.Classify(7.0); got != "Normal" {
		t.Errorf("Classify(7.0) = %s", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(&mockRepo{})
	if err := svc.Create(context.Background(), &FlaggingConfig{MinValue: 1, MaxValue: 2}); err == nil {
		t.Error("expected error for missing test code")
	}
	if err := svc.Create(context.Background(), &FlaggingConfig{TestCode: "WBC", MinValue: 5, MaxValue: 2}); err == nil {
		t.Error("expected error for inverted range")
	}
}
