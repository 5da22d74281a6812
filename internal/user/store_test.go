package user

import (
	"context"
	"errors"
	"testing"

	"github.com/eleven-am/civic311/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestUserDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(setupTestUserDB(t))
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestStore_Migrate(t *testing.T) {
	db := setupTestUserDB(t)
	store := NewStore(db)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table'").Scan(&tables)
	found := false
	for _, table := range tables {
		if table == "users" {
			found = true
			break
		}
	}
	if !found {
		t.Error("users table should exist after migration")
	}
}

func TestStore_Create(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *User
		wantErr error
	}{
		{
			name: "create user with uid",
			user: &User{
				UID:          "user_test123",
				Email:        "test@example.com",
				PasswordHash: "hash",
			},
		},
		{
			name: "create user without uid",
			user: &User{
				Email:        "Second@Example.com ",
				PasswordHash: "hash",
			},
		},
		{
			name: "duplicate email differing in case",
			user: &User{
				Email:        "TEST@example.com",
				PasswordHash: "hash",
			},
			wantErr: shared.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Create(ctx, tt.user)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.user.UID == "" {
				t.Error("uid should be generated if not provided")
			}
		})
	}
}

func TestStore_GetByEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: "find@example.com", DisplayName: "Finder", PasswordHash: "hash"}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.GetByEmail(ctx, "  FIND@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.UID != u.UID {
		t.Errorf("expected uid %s, got %s", u.UID, got.UID)
	}

	_, err = store.GetByEmail(ctx, "missing@example.com")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetByUIDAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: "gone@example.com", PasswordHash: "hash"}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := store.GetByUID(ctx, u.UID); err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if err := store.Delete(ctx, u.UID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByUID(ctx, u.UID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, u.UID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
