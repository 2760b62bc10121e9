package repository

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	"github.com/spec-kit/thelewala-agent/internal/persistence"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := persistence.RunSQLiteMigrations(context.Background(), db, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLiteSubscriptionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSubscriptionRepository(newTestDB(t))

	rec := &domain.SubscriptionRecord{VendorID: "v1", Name: "Fresh Veg", SubscribedAtLocalDate: "2024-03-01"}
	added, err := repo.Insert(ctx, domain.RoleCustomer, rec)
	if err != nil || !added {
		t.Fatalf("Insert = %v, %v", added, err)
	}
	if rec.ID == "" {
		t.Fatalf("expected generated id")
	}

	dup := &domain.SubscriptionRecord{VendorID: "v1", Name: "Other", SubscribedAtLocalDate: "2024-03-02"}
	added, err = repo.Insert(ctx, domain.RoleCustomer, dup)
	if err != nil || added {
		t.Fatalf("duplicate Insert = %v, %v; want false, nil", added, err)
	}

	// same vendor under another role is a separate ledger
	if added, _ := repo.Insert(ctx, domain.RoleVendor, &domain.SubscriptionRecord{VendorID: "v1", SubscribedAtLocalDate: "2024-03-01"}); !added {
		t.Fatalf("expected insert under vendor role")
	}

	list, err := repo.List(ctx, domain.RoleCustomer)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Fresh Veg" || list[0].SubscribedAtLocalDate != "2024-03-01" {
		t.Fatalf("unexpected list %+v", list)
	}

	if ok, err := repo.Exists(ctx, domain.RoleCustomer, "v1"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if ok, _ := repo.Exists(ctx, domain.RoleCustomer, "v2"); ok {
		t.Fatalf("v2 should not exist")
	}

	if removed, err := repo.Delete(ctx, domain.RoleCustomer, "v2"); err != nil || removed {
		t.Fatalf("Delete absent = %v, %v", removed, err)
	}
	if removed, err := repo.Delete(ctx, domain.RoleCustomer, "v1"); err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}

	n, err := repo.Clear(ctx, domain.RoleVendor)
	if err != nil || n != 1 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
	list, _ = repo.List(ctx, domain.RoleVendor)
	if len(list) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(list))
	}
}
