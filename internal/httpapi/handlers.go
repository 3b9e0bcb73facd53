package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gastrochef/internal/auth"
	"gastrochef/internal/game"
	"gastrochef/internal/journal"
	"gastrochef/internal/store"
)

type registerRequest struct {
	RestaurantName string `json:"restaurantName"`
	Email          string `json:"email"`
	Password       string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	req.RestaurantName = strings.TrimSpace(req.RestaurantName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.RestaurantName == "" || !validEmail(req.Email) || len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Restaurant name, valid email and a password of at least 6 characters are required.")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	if _, err := s.store.CreateUser(req.RestaurantName, req.Email, hash); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email already used.")
			return
		}
		s.log.Printf("register: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Account created."})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	u, err := s.store.UserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	ttl := time.Duration(s.tune.TokenTTLHours) * time.Hour
	token, err := s.auth.Mint(u.ID, u.RestaurantName, ttl, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":          token,
		"restaurantName": u.RestaurantName,
	})
}

func (s *Server) handleIngredients(w http.ResponseWriter, _ *http.Request) {
	out := make([]map[string]any, 0, len(s.catalog.Ingredients()))
	for _, ing := range s.catalog.Ingredients() {
		out = append(out, map[string]any{"id": ing.ID, "name": ing.Name, "price": ing.Price})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": out})
}

func (s *Server) handleRecipes(w http.ResponseWriter, _ *http.Request) {
	out := make([]map[string]any, 0, len(s.catalog.Recipes()))
	for _, rec := range s.catalog.Recipes() {
		out = append(out, map[string]any{"id": rec.ID, "name": rec.Name, "salePrice": rec.SalePrice})
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": out})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	sv, err := s.store.FindOrCreateSave(c.UserID, c.RestaurantName, s.tune.InitialTreasury, s.tune.InitialSatisfaction)
	if err != nil {
		s.log.Printf("save: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	writeJSON(w, http.StatusOK, s.saveResponse(sv))
}

func (s *Server) saveResponse(sv store.Save) map[string]any {
	learned := make([]map[string]any, 0, len(sv.LearnedRecipes))
	for _, id := range sv.LearnedRecipes {
		rec, ok := s.catalog.Recipe(id)
		if !ok {
			continue
		}
		reqs := make([]map[string]any, 0, len(rec.Ingredients))
		for _, req := range rec.Ingredients {
			reqs = append(reqs, map[string]any{"ingredientId": req.IngredientID, "quantity": req.Quantity})
		}
		learned = append(learned, map[string]any{
			"id":          rec.ID,
			"name":        rec.Name,
			"salePrice":   rec.SalePrice,
			"ingredients": reqs,
		})
	}
	inv := sv.Inventory
	if inv == nil {
		inv = map[string]int{}
	}
	return map[string]any{
		"restaurantName": sv.RestaurantName,
		"treasury":       sv.Treasury,
		"satisfaction":   sv.Satisfaction,
		"inventory":      inv,
		"learnedRecipes": learned,
	}
}

type buyRequest struct {
	IngredientID string `json:"ingredientId"`
	Quantity     int    `json:"quantity"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	var req buyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "Quantity must be positive.")
		return
	}
	ing, ok := s.catalog.Ingredient(req.IngredientID)
	if !ok {
		writeError(w, http.StatusNotFound, "Ingredient not found.")
		return
	}
	if _, err := s.store.FindOrCreateSave(c.UserID, c.RestaurantName, s.tune.InitialTreasury, s.tune.InitialSatisfaction); err != nil {
		s.log.Printf("buy: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	sv, err := s.store.PurchaseIngredient(c.UserID, ing.ID, req.Quantity, ing.Price)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientTreasury) {
			writeError(w, http.StatusBadRequest, "Not enough treasury.")
			return
		}
		s.log.Printf("buy: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	st := game.PurchaseSettlement(ing.Price, req.Quantity)
	meta := map[string]any{
		"ingredientId": ing.ID,
		"ingredient":   ing.Name,
		"quantity":     req.Quantity,
		"unitPrice":    ing.Price,
	}
	s.recordTransaction(c.UserID, st, meta)
	writeJSON(w, http.StatusOK, map[string]any{
		"treasury":     sv.Treasury,
		"ingredientId": ing.ID,
		"quantity":     sv.Inventory[ing.ID],
	})
}

type experimentRequest struct {
	Ingredients []string `json:"ingredients"`
}

func (s *Server) handleExperiment(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	var req experimentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	ids := dedupe(req.Ingredients)
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "Pick at least one ingredient.")
		return
	}
	quantities := make(map[string]int, len(ids))
	for _, id := range ids {
		if _, ok := s.catalog.Ingredient(id); !ok {
			writeError(w, http.StatusNotFound, "Ingredient not found.")
			return
		}
		quantities[id] = 1
	}
	if _, err := s.store.FindOrCreateSave(c.UserID, c.RestaurantName, s.tune.InitialTreasury, s.tune.InitialSatisfaction); err != nil {
		s.log.Printf("experiment: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	if _, err := s.store.DebitInventory(c.UserID, quantities); err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			writeError(w, http.StatusBadRequest, "Not enough stock for this experiment.")
			return
		}
		s.log.Printf("experiment: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	meta := map[string]any{"ingredients": ids}
	rec, matched := s.catalog.MatchExact(ids)
	if matched {
		if _, err := s.store.LearnRecipe(c.UserID, rec.ID); err != nil {
			s.log.Printf("experiment: %v", err)
			writeError(w, http.StatusInternalServerError, "Service error.")
			return
		}
		meta["recipeId"] = rec.ID
		meta["recipeName"] = rec.Name
	}
	s.recordTransaction(c.UserID, game.Settlement{
		Kind:     store.TxLabExperiment,
		Category: store.CategoryExpense,
		Amount:   0,
	}, meta)
	if !matched {
		writeJSON(w, http.StatusOK, map[string]any{"recipe": nil, "message": "The experiment produced nothing edible."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recipe":  map[string]any{"id": rec.ID, "name": rec.Name, "salePrice": rec.SalePrice},
		"message": "New recipe discovered: " + rec.Name + "!",
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	sv, err := s.store.FindOrCreateSave(c.UserID, c.RestaurantName, s.tune.InitialTreasury, s.tune.InitialSatisfaction)
	if err != nil {
		s.log.Printf("overview: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	txs, err := s.store.Transactions(c.UserID, 100)
	if err != nil {
		s.log.Printf("overview: %v", err)
		writeError(w, http.StatusInternalServerError, "Service error.")
		return
	}
	stock := make([]map[string]any, 0, len(s.catalog.Ingredients()))
	for _, ing := range s.catalog.Ingredients() {
		stock = append(stock, map[string]any{
			"id":       ing.ID,
			"name":     ing.Name,
			"price":    ing.Price,
			"quantity": sv.Inventory[ing.ID],
		})
	}
	txOut := make([]map[string]any, 0, len(txs))
	for _, t := range txs {
		txOut = append(txOut, map[string]any{
			"kind":      t.Kind,
			"category":  t.Category,
			"amount":    t.Amount,
			"metadata":  t.Metadata,
			"createdAt": t.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"treasury":     sv.Treasury,
		"satisfaction": sv.Satisfaction,
		"stock":        stock,
		"transactions": txOut,
		"margins":      recipeMargins(txs),
	})
}

// recipeMargins aggregates the ORDER_SERVED rows by dish, producing per-recipe
// sales counts, revenue, ingredient cost and net profit.
func recipeMargins(txs []store.Transaction) []map[string]any {
	type agg struct {
		name    string
		price   int
		count   int
		revenue int
		cost    int
	}
	byRecipe := map[string]*agg{}
	var order []string
	for _, t := range txs {
		if t.Kind != store.TxOrderServed {
			continue
		}
		id, _ := t.Metadata["recipeId"].(string)
		name, _ := t.Metadata["recipeName"].(string)
		if id == "" {
			continue
		}
		a := byRecipe[id]
		if a == nil {
			a = &agg{name: name, price: int(numField(t.Metadata, "salePrice"))}
			byRecipe[id] = a
			order = append(order, id)
		}
		a.count++
		a.revenue += int(numField(t.Metadata, "salePrice"))
		a.cost += int(numField(t.Metadata, "ingredientCost"))
	}
	out := make([]map[string]any, 0, len(order))
	for _, id := range order {
		a := byRecipe[id]
		net := a.revenue - a.cost
		perDish := 0
		if a.count > 0 {
			perDish = net / a.count
		}
		out = append(out, map[string]any{
			"recipeId":      id,
			"recipeName":    a.name,
			"salePrice":     a.price,
			"dishesSold":    a.count,
			"revenue":       a.revenue,
			"cost":          a.cost,
			"netProfit":     net,
			"marginPerDish": perDish,
		})
	}
	return out
}

func (s *Server) recordTransaction(userID string, st game.Settlement, meta map[string]any) {
	err := s.store.AppendTransaction(store.Transaction{
		UserID:   userID,
		Kind:     st.Kind,
		Category: st.Category,
		Amount:   st.Amount,
		Metadata: meta,
	})
	if err != nil {
		s.log.Printf("transaction %s: %v", st.Kind, err)
	}
	if s.journal != nil {
		err := s.journal.Append(journal.Entry{
			Time:     time.Now().UTC().Format(time.RFC3339Nano),
			UserID:   userID,
			Kind:     st.Kind,
			Amount:   st.Amount,
			Metadata: meta,
		})
		if err != nil {
			s.log.Printf("journal %s: %v", st.Kind, err)
		}
	}
}

// numField reads a numeric metadata value. JSON round-trips numbers as
// float64, but entries written in-process may still hold ints.
func numField(meta map[string]any, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
