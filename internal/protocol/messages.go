package protocol

// NEW_ORDER (server -> client): a timed request to cook one recipe.
type NewOrderMsg struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	RecipeID  string `json:"recipeId"`
	Recipe    string `json:"recipe"`
	SalePrice int    `json:"salePrice"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

// ORDER_SUCCESS (server -> client): settlement of a served order.
type OrderSuccessMsg struct {
	Type         string `json:"type"`
	Satisfaction int    `json:"satisfaction"`
	Treasury     int    `json:"treasury"`
	Amount       int    `json:"amount"`
}

// ORDER_FAILED (server -> client). Satisfaction/treasury are omitted for
// failures that did not touch the economy (e.g. serving with no active order).
type OrderFailedMsg struct {
	Type         string `json:"type"`
	Satisfaction *int   `json:"satisfaction,omitempty"`
	Treasury     *int   `json:"treasury,omitempty"`
	Message      string `json:"message"`
}

// ECONOMY_UPDATE (server -> client): a fresh treasury/satisfaction snapshot,
// or an out-of-band informational notice when Message is set.
type EconomyUpdateMsg struct {
	Type         string `json:"type"`
	Treasury     *int   `json:"treasury,omitempty"`
	Satisfaction *int   `json:"satisfaction,omitempty"`
	Message      string `json:"message,omitempty"`
}

// GAME_OVER (server -> client): the economy went terminal and the save was
// reset to its initial state.
type GameOverMsg struct {
	Type string `json:"type"`
}

func NewOrder(id int64, recipeID, recipeName string, salePrice int, expiresAt int64) NewOrderMsg {
	return NewOrderMsg{Type: TypeNewOrder, ID: id, RecipeID: recipeID, Recipe: recipeName, SalePrice: salePrice, ExpiresAt: expiresAt}
}

func OrderSuccess(satisfaction, treasury, amount int) OrderSuccessMsg {
	return OrderSuccessMsg{Type: TypeOrderSuccess, Satisfaction: satisfaction, Treasury: treasury, Amount: amount}
}

func OrderFailed(message string) OrderFailedMsg {
	return OrderFailedMsg{Type: TypeOrderFailed, Message: message}
}

func OrderFailedEconomy(satisfaction, treasury int, message string) OrderFailedMsg {
	return OrderFailedMsg{Type: TypeOrderFailed, Satisfaction: &satisfaction, Treasury: &treasury, Message: message}
}

func EconomySnapshot(treasury, satisfaction int) EconomyUpdateMsg {
	return EconomyUpdateMsg{Type: TypeEconomyUpdate, Treasury: &treasury, Satisfaction: &satisfaction}
}

func EconomyNotice(message string) EconomyUpdateMsg {
	return EconomyUpdateMsg{Type: TypeEconomyUpdate, Message: message}
}

func GameOver() GameOverMsg {
	return GameOverMsg{Type: TypeGameOver}
}
