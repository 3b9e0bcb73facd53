package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrEmailTaken           = errors.New("email already used")
	ErrInsufficientTreasury = errors.New("insufficient treasury")
	ErrInsufficientStock    = errors.New("insufficient stock")
)

// Store owns the per-user save records and the append-only transaction log.
// A single connection keeps all mutations serialized; each mutation runs in
// one SQL transaction so a save row is never observed half-updated.
type Store struct {
	db *sql.DB
}

type User struct {
	ID             string
	RestaurantName string
	Email          string
	PasswordHash   string
}

type Save struct {
	UserID         string
	RestaurantName string
	Treasury       int
	Satisfaction   int
	Inventory      map[string]int
	LearnedRecipes []string
}

type Transaction struct {
	ID        int64
	UserID    string
	Kind      string
	Category  string
	Amount    int
	Metadata  map[string]any
	CreatedAt time.Time
}

// Transaction kinds and categories.
const (
	TxBuyIngredient = "BUY_INGREDIENT"
	TxOrderServed   = "ORDER_SERVED"
	TxOrderTimeout  = "ORDER_TIMEOUT"
	TxLabExperiment = "LAB_EXPERIMENT"

	CategoryIncome  = "income"
	CategoryExpense = "expense"
)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			restaurant_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			user_id TEXT PRIMARY KEY,
			restaurant_name TEXT NOT NULL,
			treasury INTEGER NOT NULL,
			satisfaction INTEGER NOT NULL,
			inventory TEXT NOT NULL DEFAULT '{}',
			learned_recipes TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			category TEXT NOT NULL,
			amount INTEGER NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC);`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// --- users ---

func (s *Store) CreateUser(restaurantName, email, passwordHash string) (User, error) {
	u := User{
		ID:             uuid.NewString(),
		RestaurantName: restaurantName,
		Email:          email,
		PasswordHash:   passwordHash,
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, restaurant_name, email, password_hash, created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.RestaurantName, u.Email, u.PasswordHash, nowUTC(),
	)
	if err != nil {
		var exists int
		if scanErr := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE email=?`, email).Scan(&exists); scanErr == nil && exists > 0 {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) UserByEmail(email string) (User, error) {
	var u User
	row := s.db.QueryRow(`SELECT id, restaurant_name, email, password_hash FROM users WHERE email=?`, email)
	if err := row.Scan(&u.ID, &u.RestaurantName, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Users lists all accounts ordered by restaurant name. Admin tooling only.
func (s *Store) Users() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, restaurant_name, email, password_hash FROM users ORDER BY restaurant_name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.RestaurantName, &u.Email, &u.PasswordHash); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- saves ---

// FindOrCreateSave returns the user's save, creating one with the given
// initial economy when none exists yet.
func (s *Store) FindOrCreateSave(userID, restaurantName string, initialTreasury, initialSatisfaction int) (Save, error) {
	if restaurantName == "" {
		restaurantName = "My Restaurant"
	}
	_, err := s.db.Exec(
		`INSERT INTO saves (user_id, restaurant_name, treasury, satisfaction, inventory, learned_recipes, updated_at)
		 VALUES (?,?,?,?,'{}','[]',?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, restaurantName, initialTreasury, initialSatisfaction, nowUTC(),
	)
	if err != nil {
		return Save{}, err
	}
	return s.GetSave(userID)
}

func (s *Store) GetSave(userID string) (Save, error) {
	var (
		sv      Save
		invJSON string
		lrJSON  string
	)
	row := s.db.QueryRow(`SELECT user_id, restaurant_name, treasury, satisfaction, inventory, learned_recipes FROM saves WHERE user_id=?`, userID)
	if err := row.Scan(&sv.UserID, &sv.RestaurantName, &sv.Treasury, &sv.Satisfaction, &invJSON, &lrJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Save{}, ErrNotFound
		}
		return Save{}, err
	}
	if err := json.Unmarshal([]byte(invJSON), &sv.Inventory); err != nil {
		return Save{}, fmt.Errorf("save %s: inventory: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(lrJSON), &sv.LearnedRecipes); err != nil {
		return Save{}, fmt.Errorf("save %s: learned_recipes: %w", userID, err)
	}
	if sv.Inventory == nil {
		sv.Inventory = map[string]int{}
	}
	return sv, nil
}

// ApplySettlement applies treasury/satisfaction deltas and inventory deltas
// as one atomic update and returns the resulting save. The deltas are not
// guarded: a momentarily negative treasury is legal until the game-over
// check runs.
func (s *Store) ApplySettlement(userID string, treasuryDelta, satisfactionDelta int, inventoryDeltas map[string]int) (Save, error) {
	var out Save
	err := s.withTx(func(tx *sql.Tx) error {
		sv, err := getSaveTx(tx, userID)
		if err != nil {
			return err
		}
		sv.Treasury += treasuryDelta
		sv.Satisfaction += satisfactionDelta
		for id, d := range inventoryDeltas {
			sv.Inventory[id] += d
			if sv.Inventory[id] <= 0 {
				delete(sv.Inventory, id)
			}
		}
		if err := putSaveTx(tx, sv); err != nil {
			return err
		}
		out = sv
		return nil
	})
	return out, err
}

// PurchaseIngredient debits the treasury and credits inventory, guarded so
// the treasury never goes below zero from a purchase. Mirrors the buy
// endpoint's conditional update.
func (s *Store) PurchaseIngredient(userID, ingredientID string, quantity, unitPrice int) (Save, error) {
	cost := unitPrice * quantity
	var out Save
	err := s.withTx(func(tx *sql.Tx) error {
		sv, err := getSaveTx(tx, userID)
		if err != nil {
			return err
		}
		if sv.Treasury < cost {
			return ErrInsufficientTreasury
		}
		sv.Treasury -= cost
		sv.Inventory[ingredientID] += quantity
		if err := putSaveTx(tx, sv); err != nil {
			return err
		}
		out = sv
		return nil
	})
	return out, err
}

// DebitInventory removes the given quantities, failing without any change if
// any ingredient is short. Lab experiments consume stock through this.
func (s *Store) DebitInventory(userID string, quantities map[string]int) (Save, error) {
	var out Save
	err := s.withTx(func(tx *sql.Tx) error {
		sv, err := getSaveTx(tx, userID)
		if err != nil {
			return err
		}
		for id, q := range quantities {
			if sv.Inventory[id] < q {
				return ErrInsufficientStock
			}
		}
		for id, q := range quantities {
			sv.Inventory[id] -= q
			if sv.Inventory[id] <= 0 {
				delete(sv.Inventory, id)
			}
		}
		if err := putSaveTx(tx, sv); err != nil {
			return err
		}
		out = sv
		return nil
	})
	return out, err
}

func (s *Store) LearnRecipe(userID, recipeID string) (Save, error) {
	var out Save
	err := s.withTx(func(tx *sql.Tx) error {
		sv, err := getSaveTx(tx, userID)
		if err != nil {
			return err
		}
		for _, id := range sv.LearnedRecipes {
			if id == recipeID {
				out = sv
				return nil
			}
		}
		sv.LearnedRecipes = append(sv.LearnedRecipes, recipeID)
		if err := putSaveTx(tx, sv); err != nil {
			return err
		}
		out = sv
		return nil
	})
	return out, err
}

// ResetSave restores the save to its initial state and purges the user's
// transaction history. Destructive on purpose: this is the game-over path.
func (s *Store) ResetSave(userID string, initialTreasury, initialSatisfaction int) (Save, error) {
	var out Save
	err := s.withTx(func(tx *sql.Tx) error {
		sv, err := getSaveTx(tx, userID)
		if err != nil {
			return err
		}
		sv.Treasury = initialTreasury
		sv.Satisfaction = initialSatisfaction
		sv.Inventory = map[string]int{}
		sv.LearnedRecipes = []string{}
		if err := putSaveTx(tx, sv); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM transactions WHERE user_id=?`, userID); err != nil {
			return err
		}
		out = sv
		return nil
	})
	return out, err
}

// --- transactions ---

func (s *Store) AppendTransaction(t Transaction) error {
	meta := t.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO transactions (user_id, kind, category, amount, metadata, created_at) VALUES (?,?,?,?,?,?)`,
		t.UserID, t.Kind, t.Category, t.Amount, string(metaJSON), nowUTC(),
	)
	return err
}

func (s *Store) Transactions(userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, kind, category, amount, metadata, created_at
		 FROM transactions WHERE user_id=? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t        Transaction
			metaJSON string
			created  string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Category, &t.Amount, &metaJSON, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
			return nil, fmt.Errorf("transaction %d: metadata: %w", t.ID, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.CreatedAt = ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) PurgeTransactions(userID string) error {
	_, err := s.db.Exec(`DELETE FROM transactions WHERE user_id=?`, userID)
	return err
}

// --- internals ---

func (s *Store) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func getSaveTx(tx *sql.Tx, userID string) (Save, error) {
	var (
		sv      Save
		invJSON string
		lrJSON  string
	)
	row := tx.QueryRow(`SELECT user_id, restaurant_name, treasury, satisfaction, inventory, learned_recipes FROM saves WHERE user_id=?`, userID)
	if err := row.Scan(&sv.UserID, &sv.RestaurantName, &sv.Treasury, &sv.Satisfaction, &invJSON, &lrJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Save{}, ErrNotFound
		}
		return Save{}, err
	}
	if err := json.Unmarshal([]byte(invJSON), &sv.Inventory); err != nil {
		return Save{}, err
	}
	if err := json.Unmarshal([]byte(lrJSON), &sv.LearnedRecipes); err != nil {
		return Save{}, err
	}
	if sv.Inventory == nil {
		sv.Inventory = map[string]int{}
	}
	return sv, nil
}

func putSaveTx(tx *sql.Tx, sv Save) error {
	invJSON, err := json.Marshal(sv.Inventory)
	if err != nil {
		return err
	}
	lr := sv.LearnedRecipes
	if lr == nil {
		lr = []string{}
	}
	lrJSON, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`UPDATE saves SET treasury=?, satisfaction=?, inventory=?, learned_recipes=?, updated_at=? WHERE user_id=?`,
		sv.Treasury, sv.Satisfaction, string(invJSON), string(lrJSON), nowUTC(), sv.UserID,
	)
	return err
}
