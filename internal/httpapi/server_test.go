package httpapi

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gastrochef/internal/auth"
	"gastrochef/internal/catalog"
	"gastrochef/internal/store"
	"gastrochef/internal/tuning"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Ingredient{
			{ID: "tomato", Name: "Tomato", Price: 2},
			{ID: "dough", Name: "Dough", Price: 3},
			{ID: "cheese", Name: "Cheese", Price: 4},
		},
		[]catalog.Recipe{
			{ID: "pizza", Name: "Margherita Pizza", SalePrice: 18, Ingredients: []catalog.Requirement{
				{IngredientID: "dough", Quantity: 1},
				{IngredientID: "tomato", Quantity: 1},
				{IngredientID: "cheese", Quantity: 1},
			}},
		},
	)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func newTestServer(t *testing.T) (*Server, *store.Store, *auth.TokenAuthority) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	authority, err := auth.NewTokenAuthority("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	logger := log.New(testWriter{t}, "", 0)
	srv := New(st, testCatalog(t), authority, tuning.Defaults(), nil, logger)
	return srv, st, authority
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimSpace(p)))
	return len(p), nil
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func registerAndLogin(t *testing.T, srv *Server) string {
	t.Helper()
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]any{
		"restaurantName": "Chez Test",
		"email":          "chef@example.com",
		"password":       "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", rec.Code)
	}
	rec, out := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "chef@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", rec.Code)
	}
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token")
	}
	return token
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	srv, _, _ := newTestServer(t)
	registerAndLogin(t, srv)
	rec, out := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]any{
		"restaurantName": "Copy Cat",
		"email":          "chef@example.com",
		"password":       "secret1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if out["message"] != "Email already used." {
		t.Fatalf("message = %q", out["message"])
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, _, _ := newTestServer(t)
	registerAndLogin(t, srv)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "chef@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/api/save", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSaveIsCreatedOnFirstRead(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	rec, out := doJSON(t, srv, http.MethodGet, "/api/save", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if out["treasury"].(float64) != 100 || out["satisfaction"].(float64) != 20 {
		t.Fatalf("fresh save = %v/%v, want 100/20", out["treasury"], out["satisfaction"])
	}
	if out["restaurantName"] != "Chez Test" {
		t.Fatalf("restaurantName = %q", out["restaurantName"])
	}
}

func TestBuyDebitsTreasuryAndCreditsStock(t *testing.T) {
	srv, st, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	rec, out := doJSON(t, srv, http.MethodPost, "/api/economy/buy", token, map[string]any{
		"ingredientId": "tomato",
		"quantity":     3,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	if out["treasury"].(float64) != 94 {
		t.Fatalf("treasury = %v, want 94", out["treasury"])
	}
	if out["quantity"].(float64) != 3 {
		t.Fatalf("quantity = %v, want 3", out["quantity"])
	}

	u, err := st.UserByEmail("chef@example.com")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	txs, err := st.Transactions(u.ID, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Kind != store.TxBuyIngredient || txs[0].Amount != -6 {
		t.Fatalf("transactions = %+v", txs)
	}
}

func TestBuyRejectsWhenTreasuryShort(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	rec, out := doJSON(t, srv, http.MethodPost, "/api/economy/buy", token, map[string]any{
		"ingredientId": "cheese",
		"quantity":     100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out["message"] != "Not enough treasury." {
		t.Fatalf("message = %q", out["message"])
	}
}

func TestBuyUnknownIngredient(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/economy/buy", token, map[string]any{
		"ingredientId": "unobtainium",
		"quantity":     1,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestExperimentLearnsMatchingRecipe(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	for _, id := range []string{"dough", "tomato", "cheese"} {
		rec, _ := doJSON(t, srv, http.MethodPost, "/api/economy/buy", token, map[string]any{
			"ingredientId": id, "quantity": 1,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("buy %s: status %d", id, rec.Code)
		}
	}
	rec, out := doJSON(t, srv, http.MethodPost, "/api/lab/experiment", token, map[string]any{
		"ingredients": []string{"dough", "tomato", "cheese"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, out)
	}
	recipe, ok := out["recipe"].(map[string]any)
	if !ok || recipe["id"] != "pizza" {
		t.Fatalf("recipe = %v, want pizza", out["recipe"])
	}

	_, save := doJSON(t, srv, http.MethodGet, "/api/save", token, nil)
	learned, _ := save["learnedRecipes"].([]any)
	if len(learned) != 1 {
		t.Fatalf("learnedRecipes = %v, want 1 entry", save["learnedRecipes"])
	}
	inv, _ := save["inventory"].(map[string]any)
	if len(inv) != 0 {
		t.Fatalf("inventory = %v, want consumed", inv)
	}
}

func TestExperimentWithNoMatchConsumesStock(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/economy/buy", token, map[string]any{
		"ingredientId": "tomato", "quantity": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: status %d", rec.Code)
	}
	rec, out := doJSON(t, srv, http.MethodPost, "/api/lab/experiment", token, map[string]any{
		"ingredients": []string{"tomato"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["recipe"] != nil {
		t.Fatalf("recipe = %v, want null", out["recipe"])
	}
	_, save := doJSON(t, srv, http.MethodGet, "/api/save", token, nil)
	inv, _ := save["inventory"].(map[string]any)
	if inv["tomato"].(float64) != 1 {
		t.Fatalf("tomato stock = %v, want 1", inv["tomato"])
	}
}

func TestExperimentRejectsWhenStockShort(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	rec, out := doJSON(t, srv, http.MethodPost, "/api/lab/experiment", token, map[string]any{
		"ingredients": []string{"tomato"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out["message"] != "Not enough stock for this experiment." {
		t.Fatalf("message = %q", out["message"])
	}
}

func TestOverviewComputesRecipeMargins(t *testing.T) {
	srv, st, _ := newTestServer(t)
	token := registerAndLogin(t, srv)
	u, err := st.UserByEmail("chef@example.com")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	for i := 0; i < 2; i++ {
		err := st.AppendTransaction(store.Transaction{
			UserID:   u.ID,
			Kind:     store.TxOrderServed,
			Category: store.CategoryIncome,
			Amount:   18,
			Metadata: map[string]any{
				"recipeId":       "pizza",
				"recipeName":     "Margherita Pizza",
				"salePrice":      18,
				"ingredientCost": 9,
			},
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rec, out := doJSON(t, srv, http.MethodGet, "/api/economy/overview", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	margins, _ := out["margins"].([]any)
	if len(margins) != 1 {
		t.Fatalf("margins = %v, want 1 entry", out["margins"])
	}
	m := margins[0].(map[string]any)
	if m["dishesSold"].(float64) != 2 {
		t.Fatalf("dishesSold = %v, want 2", m["dishesSold"])
	}
	if m["revenue"].(float64) != 36 || m["cost"].(float64) != 18 {
		t.Fatalf("revenue/cost = %v/%v, want 36/18", m["revenue"], m["cost"])
	}
	if m["netProfit"].(float64) != 18 || m["marginPerDish"].(float64) != 9 {
		t.Fatalf("netProfit/marginPerDish = %v/%v, want 18/9", m["netProfit"], m["marginPerDish"])
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, out := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Fatalf("healthz = %d %v", rec.Code, out)
	}
}
