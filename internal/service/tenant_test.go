package service

import (
	"context"
	"testing"

	"github.com/blipee-dev/agentcore/internal/domain/tenant"
)

func TestTenantCreate(t *testing.T) {
	svc := NewTenantService(newMockStore())

	tn, err := svc.Create(context.Background(), tenant.CreateRequest{Name: "Acme Corp", Slug: "acme-corp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.Slug != "acme-corp" || !tn.Enabled {
		t.Fatalf("unexpected tenant: %+v", tn)
	}
}

func TestTenantCreateValidation(t *testing.T) {
	svc := NewTenantService(newMockStore())

	cases := []tenant.CreateRequest{
		{Name: "", Slug: "acme"},
		{Name: "Acme", Slug: ""},
		{Name: "Acme", Slug: "UPPER"},
		{Name: "Acme", Slug: "a"},
		{Name: "Acme", Slug: "-leading"},
		{Name: "Acme", Slug: "trailing-"},
	}
	for _, req := range cases {
		if _, err := svc.Create(context.Background(), req); err == nil {
			t.Errorf("Create(%+v): expected error, got nil", req)
		}
	}
}

func TestTenantUpdateSettings(t *testing.T) {
	store := newMockStore()
	store.tenants = []tenant.Tenant{{ID: "tn-1", Name: "Acme", Enabled: true}}
	svc := NewTenantService(store)

	tn, err := svc.Update(context.Background(), "tn-1", tenant.UpdateRequest{
		Settings: &tenant.Settings{LowThreshold: 0.2, HighThreshold: 0.7},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.Settings.LowThreshold != 0.2 || tn.Settings.HighThreshold != 0.7 {
		t.Fatalf("settings not applied: %+v", tn.Settings)
	}
}

func TestTenantUpdateRejectsBadThresholds(t *testing.T) {
	store := newMockStore()
	store.tenants = []tenant.Tenant{{ID: "tn-1", Name: "Acme", Enabled: true}}
	svc := NewTenantService(store)

	bad := []tenant.Settings{
		{LowThreshold: 0.7, HighThreshold: 0.2},
		{LowThreshold: -0.1, HighThreshold: 0.5},
		{LowThreshold: 0.5, HighThreshold: 1.5},
		{LowThreshold: 0.5, HighThreshold: 0.5},
	}
	for _, s := range bad {
		settings := s
		if _, err := svc.Update(context.Background(), "tn-1", tenant.UpdateRequest{Settings: &settings}); err == nil {
			t.Errorf("Update(%+v): expected error, got nil", s)
		}
	}
}

func TestTenantUpdateZeroSettingsMeansDefaults(t *testing.T) {
	store := newMockStore()
	store.tenants = []tenant.Tenant{{ID: "tn-1", Name: "Acme", Enabled: true}}
	svc := NewTenantService(store)

	// Both thresholds zero clears the override back to the default policy.
	if _, err := svc.Update(context.Background(), "tn-1", tenant.UpdateRequest{Settings: &tenant.Settings{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTenantDisable(t *testing.T) {
	store := newMockStore()
	store.tenants = []tenant.Tenant{{ID: "tn-1", Name: "Acme", Enabled: true}}
	svc := NewTenantService(store)

	off := false
	tn, err := svc.Update(context.Background(), "tn-1", tenant.UpdateRequest{Enabled: &off})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tn.Enabled {
		t.Fatal("expected tenant disabled")
	}
}
