package game

import (
	"gastrochef/internal/store"
	"gastrochef/internal/tuning"
)

// Settlement is the economy mutation and transaction classification for one
// ledger event, computed before anything is persisted.
type Settlement struct {
	TreasuryDelta     int
	SatisfactionDelta int
	Kind              string
	Category          string
	Amount            int
}

func ServeSettlement(salePrice int, t tuning.Tuning) Settlement {
	return Settlement{
		TreasuryDelta:     salePrice,
		SatisfactionDelta: t.ServeSatisfactionBonus,
		Kind:              store.TxOrderServed,
		Category:          store.CategoryIncome,
		Amount:            salePrice,
	}
}

func TimeoutSettlement(t tuning.Tuning) Settlement {
	return Settlement{
		TreasuryDelta:     -t.TimeoutTreasuryPenalty,
		SatisfactionDelta: -t.TimeoutSatisfactionPenalty,
		Kind:              store.TxOrderTimeout,
		Category:          store.CategoryExpense,
		Amount:            -t.TimeoutTreasuryPenalty,
	}
}

func PurchaseSettlement(unitPrice, quantity int) Settlement {
	cost := unitPrice * quantity
	return Settlement{
		TreasuryDelta: -cost,
		Kind:          store.TxBuyIngredient,
		Category:      store.CategoryExpense,
		Amount:        -cost,
	}
}

// IsGameOver reports whether the economy reached its terminal condition.
func IsGameOver(treasury, satisfaction int) bool {
	return treasury < 0 || satisfaction < 0
}
