package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFindOrCreateSaveDefaults(t *testing.T) {
	s := openTestStore(t)

	sv, err := s.FindOrCreateSave("u1", "Chez Gopher", 100, 20)
	if err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}
	if sv.Treasury != 100 || sv.Satisfaction != 20 {
		t.Fatalf("initial economy: %+v", sv)
	}
	if len(sv.Inventory) != 0 || len(sv.LearnedRecipes) != 0 {
		t.Fatalf("initial save not empty: %+v", sv)
	}

	// Second call must not reset an existing save.
	if _, err := s.ApplySettlement("u1", 50, 1, nil); err != nil {
		t.Fatalf("ApplySettlement: %v", err)
	}
	sv, err = s.FindOrCreateSave("u1", "Chez Gopher", 100, 20)
	if err != nil {
		t.Fatalf("FindOrCreateSave again: %v", err)
	}
	if sv.Treasury != 150 || sv.Satisfaction != 21 {
		t.Fatalf("existing save clobbered: %+v", sv)
	}
}

func TestApplySettlementUnguarded(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindOrCreateSave("u1", "", 10, 0); err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}

	sv, err := s.ApplySettlement("u1", -25, -12, nil)
	if err != nil {
		t.Fatalf("ApplySettlement: %v", err)
	}
	if sv.Treasury != -15 || sv.Satisfaction != -12 {
		t.Fatalf("settlement must allow negative values: %+v", sv)
	}
}

func TestApplySettlementInventoryDeltas(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindOrCreateSave("u1", "", 100, 20); err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}
	if _, err := s.PurchaseIngredient("u1", "stock", 2, 1); err != nil {
		t.Fatalf("PurchaseIngredient: %v", err)
	}

	sv, err := s.ApplySettlement("u1", 10, 1, map[string]int{"stock": -2})
	if err != nil {
		t.Fatalf("ApplySettlement: %v", err)
	}
	if sv.Inventory["stock"] != 0 {
		t.Fatalf("stock should be fully consumed: %+v", sv.Inventory)
	}
	if _, present := sv.Inventory["stock"]; present {
		t.Fatalf("zero quantities should be dropped from inventory")
	}
	if sv.Treasury != 108 {
		t.Fatalf("treasury = %d, want 108 (100 - 2 + 10)", sv.Treasury)
	}
}

func TestPurchaseGuardedByTreasury(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindOrCreateSave("u1", "", 5, 20); err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}

	if _, err := s.PurchaseIngredient("u1", "steak", 2, 3); !errors.Is(err, ErrInsufficientTreasury) {
		t.Fatalf("expected ErrInsufficientTreasury, got %v", err)
	}

	sv, err := s.GetSave("u1")
	if err != nil {
		t.Fatalf("GetSave: %v", err)
	}
	if sv.Treasury != 5 || len(sv.Inventory) != 0 {
		t.Fatalf("failed purchase must not mutate the save: %+v", sv)
	}

	sv, err = s.PurchaseIngredient("u1", "tomato", 2, 2)
	if err != nil {
		t.Fatalf("PurchaseIngredient: %v", err)
	}
	if sv.Treasury != 1 || sv.Inventory["tomato"] != 2 {
		t.Fatalf("purchase not applied: %+v", sv)
	}
}

func TestDebitInventoryGuarded(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindOrCreateSave("u1", "", 100, 20); err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}
	if _, err := s.PurchaseIngredient("u1", "tomato", 1, 1); err != nil {
		t.Fatalf("PurchaseIngredient: %v", err)
	}

	if _, err := s.DebitInventory("u1", map[string]int{"tomato": 1, "cheese": 1}); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	sv, _ := s.GetSave("u1")
	if sv.Inventory["tomato"] != 1 {
		t.Fatalf("failed debit must leave inventory untouched: %+v", sv.Inventory)
	}

	if _, err := s.DebitInventory("u1", map[string]int{"tomato": 1}); err != nil {
		t.Fatalf("DebitInventory: %v", err)
	}
}

func TestLearnRecipeIdempotent(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindOrCreateSave("u1", "", 100, 20); err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}

	if _, err := s.LearnRecipe("u1", "pizza"); err != nil {
		t.Fatalf("LearnRecipe: %v", err)
	}
	sv, err := s.LearnRecipe("u1", "pizza")
	if err != nil {
		t.Fatalf("LearnRecipe twice: %v", err)
	}
	if len(sv.LearnedRecipes) != 1 || sv.LearnedRecipes[0] != "pizza" {
		t.Fatalf("learned recipes: %+v", sv.LearnedRecipes)
	}
}

func TestResetSavePurgesEverything(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.FindOrCreateSave("u1", "", 100, 20); err != nil {
		t.Fatalf("FindOrCreateSave: %v", err)
	}
	if _, err := s.PurchaseIngredient("u1", "tomato", 3, 1); err != nil {
		t.Fatalf("PurchaseIngredient: %v", err)
	}
	if _, err := s.LearnRecipe("u1", "pizza"); err != nil {
		t.Fatalf("LearnRecipe: %v", err)
	}
	if err := s.AppendTransaction(Transaction{UserID: "u1", Kind: TxOrderServed, Category: CategoryIncome, Amount: 18}); err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}

	sv, err := s.ResetSave("u1", 100, 20)
	if err != nil {
		t.Fatalf("ResetSave: %v", err)
	}
	if sv.Treasury != 100 || sv.Satisfaction != 20 || len(sv.Inventory) != 0 || len(sv.LearnedRecipes) != 0 {
		t.Fatalf("reset incomplete: %+v", sv)
	}
	txs, err := s.Transactions("u1", 10)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("transactions not purged: %d left", len(txs))
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	for i, kind := range []string{TxBuyIngredient, TxOrderServed, TxOrderTimeout} {
		err := s.AppendTransaction(Transaction{
			UserID:   "u1",
			Kind:     kind,
			Category: CategoryExpense,
			Amount:   -i,
			Metadata: map[string]any{"n": i},
		})
		if err != nil {
			t.Fatalf("AppendTransaction: %v", err)
		}
	}

	txs, err := s.Transactions("u1", 2)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("limit not applied: %d", len(txs))
	}
	if txs[0].Kind != TxOrderTimeout || txs[1].Kind != TxOrderServed {
		t.Fatalf("wrong order: %s, %s", txs[0].Kind, txs[1].Kind)
	}
}

func TestCreateUserAndLookup(t *testing.T) {
	s := openTestStore(t)

	u, err := s.CreateUser("Chez Gopher", "a@b.c", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated user id")
	}

	if _, err := s.CreateUser("Other", "a@b.c", "hash2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.UserByEmail("a@b.c")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if got.ID != u.ID || got.RestaurantName != "Chez Gopher" {
		t.Fatalf("lookup mismatch: %+v", got)
	}

	if _, err := s.UserByEmail("missing@b.c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
