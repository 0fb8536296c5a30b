package usecase

import (
	"context"
	"testing"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

func TestReloadProviders(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.repo.settings = []entity.ProviderSetting{
		{Name: "pinpoint", Enabled: true, Priority: 10},
		{Name: "smtp", Enabled: true, Priority: 5},
	}

	// Act
	if err := f.uc.ReloadProviders(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	// Assert
	f.deliverer.mu.Lock()
	defer f.deliverer.mu.Unlock()

	if len(f.deliverer.reloaded) != 1 {
		t.Fatalf("expected one reload, got %d", len(f.deliverer.reloaded))
	}
	if got := f.deliverer.reloaded[0]; len(got) != 2 || got[0].Name != "pinpoint" {
		t.Fatalf("expected settings passed through in order, got %+v", got)
	}
}
