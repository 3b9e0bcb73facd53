package game

import (
	"testing"

	"gastrochef/internal/store"
	"gastrochef/internal/tuning"
)

func TestSettlementTable(t *testing.T) {
	tune := tuning.Defaults()

	cases := []struct {
		name string
		got  Settlement
		want Settlement
	}{
		{
			name: "serve success",
			got:  ServeSettlement(18, tune),
			want: Settlement{TreasuryDelta: 18, SatisfactionDelta: 1, Kind: store.TxOrderServed, Category: store.CategoryIncome, Amount: 18},
		},
		{
			name: "order expiration",
			got:  TimeoutSettlement(tune),
			want: Settlement{TreasuryDelta: -8, SatisfactionDelta: -10, Kind: store.TxOrderTimeout, Category: store.CategoryExpense, Amount: -8},
		},
		{
			name: "ingredient purchase",
			got:  PurchaseSettlement(3, 4),
			want: Settlement{TreasuryDelta: -12, SatisfactionDelta: 0, Kind: store.TxBuyIngredient, Category: store.CategoryExpense, Amount: -12},
		},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, tc.got, tc.want)
		}
	}
}

func TestIsGameOver(t *testing.T) {
	cases := []struct {
		treasury, satisfaction int
		want                   bool
	}{
		{100, 20, false},
		{0, 0, false},
		{-1, 20, true},
		{100, -1, true},
		{-5, -5, true},
	}
	for _, tc := range cases {
		if got := IsGameOver(tc.treasury, tc.satisfaction); got != tc.want {
			t.Fatalf("IsGameOver(%d, %d) = %v, want %v", tc.treasury, tc.satisfaction, got, tc.want)
		}
	}
}
