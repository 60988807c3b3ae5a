package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

func TestProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	p := createTestProduct(t, db, "tafsir-ibn-kathir", 1000)
	if p.ID == 0 {
		t.Fatal("Create did not set ID")
	}
	if p.CreatedAt.IsZero() {
		t.Error("Create did not set CreatedAt")
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Price != 1000 || got.Slug != "tafsir-ibn-kathir" {
		t.Errorf("product = %+v", got)
	}

	dup := &models.Product{ShopSlug: "books", Name: "Dup", Slug: "tafsir-ibn-kathir", Price: 1}
	if err := repo.Create(ctx, dup); !errors.Is(err, repository.ErrDuplicateKey) {
		t.Errorf("duplicate slug error = %v, want ErrDuplicateKey", err)
	}

	inactive := &models.Product{ShopSlug: "attar", Name: "Oud", Slug: "oud", Price: 500}
	if err := repo.Create(ctx, inactive); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, inactive.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByID(inactive) error = %v, want ErrNotFound", err)
	}

	createTestProduct(t, db, "prayer-mat", 2500)

	books, err := repo.ListActive(ctx, "books")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(books) != 2 || books[0].ID != p.ID {
		t.Errorf("ListActive(books) = %+v, want 2 products ordered by id", books)
	}

	attar, err := repo.ListActive(ctx, "attar")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(attar) != 0 {
		t.Errorf("ListActive(attar) = %d products, want 0", len(attar))
	}

	if err := repo.Create(ctx, &models.Product{ShopSlug: "books", Name: "x", Slug: "neg", Price: -1}); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("negative price error = %v, want ErrInvalidInput", err)
	}
}

func TestCartRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()

	first := createTestProduct(t, db, "first", 1000)
	second := createTestProduct(t, db, "second", 250)

	if err := repo.SetQuantity(ctx, "user-1", first.ID, 1); err != nil {
		t.Fatalf("SetQuantity failed: %v", err)
	}
	if err := repo.SetQuantity(ctx, "user-1", second.ID, 3); err != nil {
		t.Fatalf("SetQuantity failed: %v", err)
	}
	if err := repo.SetQuantity(ctx, "user-1", first.ID, 2); err != nil {
		t.Fatalf("SetQuantity update failed: %v", err)
	}

	items, err := repo.GetItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ProductID != first.ID || items[0].Quantity != 2 || items[0].Price != 1000 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Name != second.Name {
		t.Errorf("items[1].Name = %q, want %q", items[1].Name, second.Name)
	}

	if err := repo.SetQuantity(ctx, "user-1", first.ID, 0); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("zero quantity error = %v, want ErrInvalidInput", err)
	}

	if err := repo.RemoveItem(ctx, "user-1", second.ID); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if err := repo.RemoveItem(ctx, "user-1", second.ID); err != nil {
		t.Errorf("RemoveItem of missing line failed: %v", err)
	}

	items, err = repo.GetItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}

	if err := repo.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	items, err = repo.GetItems(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) after Clear = %d, want 0", len(items))
	}
}
