package game

import (
	"math/rand"
	"sync"
	"time"

	"gastrochef/internal/catalog"
	"gastrochef/internal/metrics"
	"gastrochef/internal/protocol"
	"gastrochef/internal/store"
)

// Order is a time-boxed request to produce one recipe. At most one live
// order exists per session; it is owned by the session loop goroutine.
type Order struct {
	ID         int64
	RecipeID   string
	RecipeName string
	SalePrice  int
	ExpiresAt  time.Time
}

type cmdKind int

const (
	cmdServe cmdKind = iota + 1
	cmdPause
	cmdResume
	cmdTick
	cmdExpire
)

type command struct {
	kind    cmdKind
	orderID int64 // cmdExpire only
}

// Session drives one user's order lifecycle. All timer callbacks and
// client-initiated events funnel through a single command channel drained by
// one goroutine, so handlers for the same session never run concurrently.
type Session struct {
	userID         string
	restaurantName string

	e    *Engine
	conn Conn

	cmds chan command
	quit chan struct{}
	done chan struct{}

	stopOnce sync.Once

	// Loop-owned state. Never touched outside run().
	current     *Order
	timeout     Timer
	ticker      Timer
	paused      bool
	pickCounter int
	lastOrderID int64
	rng         *rand.Rand
}

func newSession(e *Engine, userID, restaurantName string, conn Conn) *Session {
	return &Session{
		userID:         userID,
		restaurantName: restaurantName,
		e:              e,
		conn:           conn,
		cmds:           make(chan command, 16),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
		rng:            rand.New(rand.NewSource(e.clock.Now().UnixNano())),
	}
}

func (s *Session) UserID() string { return s.userID }

// Serve, Pause and Resume are called from the transport; they enqueue work
// for the session loop and return immediately.
func (s *Session) Serve()  { s.post(command{kind: cmdServe}) }
func (s *Session) Pause()  { s.post(command{kind: cmdPause}) }
func (s *Session) Resume() { s.post(command{kind: cmdResume}) }

func (s *Session) post(c command) {
	select {
	case s.cmds <- c:
	case <-s.quit:
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) run() {
	defer close(s.done)

	if sv, err := s.e.store.GetSave(s.userID); err == nil {
		s.conn.Send(protocol.EconomySnapshot(sv.Treasury, sv.Satisfaction))
	} else {
		s.e.log.Printf("session %s: boot snapshot: %v", s.userID, err)
	}

	s.emitOrder()
	s.armTicker()

	for {
		select {
		case <-s.quit:
			s.cancelTimeout()
			if s.ticker != nil {
				s.ticker.Stop()
			}
			return
		case c := <-s.cmds:
			switch c.kind {
			case cmdServe:
				s.handleServe()
			case cmdPause:
				s.handlePause()
			case cmdResume:
				s.handleResume()
			case cmdTick:
				s.emitOrder()
				s.armTicker()
			case cmdExpire:
				s.handleExpire(c.orderID)
			}
		}
	}
}

func (s *Session) armTicker() {
	s.ticker = s.e.clock.AfterFunc(s.e.tune.OrderInterval(), func() {
		s.post(command{kind: cmdTick})
	})
}

func (s *Session) armTimeout(orderID int64, d time.Duration) {
	s.cancelTimeout()
	s.timeout = s.e.clock.AfterFunc(d, func() {
		s.post(command{kind: cmdExpire, orderID: orderID})
	})
}

func (s *Session) cancelTimeout() {
	if s.timeout != nil {
		s.timeout.Stop()
		s.timeout = nil
	}
}

// emitOrder offers a new order when the session is active and idle. A newly
// emitted order supersedes any prior one, so at most one timeout is armed.
func (s *Session) emitOrder() {
	if s.paused || s.current != nil {
		return
	}

	sv, err := s.e.store.GetSave(s.userID)
	if err != nil {
		s.e.log.Printf("session %s: emit: %v", s.userID, err)
		return
	}

	recipe, ok := s.pickRecipe(sv.LearnedRecipes)
	if !ok {
		return
	}

	now := s.e.clock.Now()
	id := now.UnixMilli()
	if id <= s.lastOrderID {
		id = s.lastOrderID + 1
	}
	s.lastOrderID = id

	o := &Order{
		ID:         id,
		RecipeID:   recipe.ID,
		RecipeName: recipe.Name,
		SalePrice:  recipe.SalePrice,
		ExpiresAt:  now.Add(s.e.tune.OrderTTL()),
	}
	s.current = o
	s.armTimeout(o.ID, s.e.tune.OrderTTL())

	s.conn.Send(protocol.NewOrder(o.ID, o.RecipeID, o.RecipeName, o.SalePrice, o.ExpiresAt.UnixMilli()))
	s.e.metrics.OrdersEmitted.Inc()
}

func (s *Session) pickRecipe(learned []string) (catalog.Recipe, bool) {
	all := s.e.catalog.Recipes()
	if len(all) == 0 {
		return catalog.Recipe{}, false
	}

	learnedSet := make(map[string]bool, len(learned))
	for _, id := range learned {
		learnedSet[id] = true
	}
	var known, unknown []catalog.Recipe
	for _, r := range all {
		if learnedSet[r.ID] {
			known = append(known, r)
		} else {
			unknown = append(unknown, r)
		}
	}

	useKnown, next := PickKnown(s.pickCounter, len(known), len(unknown), s.e.tune.PickCycleLength)
	s.pickCounter = next

	pool := unknown
	if useKnown {
		pool = known
	}
	return pool[s.rng.Intn(len(pool))], true
}

func (s *Session) handlePause() {
	s.paused = true
	s.cancelTimeout()
	s.current = nil
}

func (s *Session) handleResume() {
	s.paused = false
	s.emitOrder()
}

func (s *Session) handleServe() {
	if s.current == nil {
		s.conn.Send(protocol.OrderFailed(protocol.MsgNoActiveOrder))
		s.e.metrics.OrdersRejected.WithLabelValues(metrics.ReasonNoActiveOrder).Inc()
		return
	}

	o := s.current
	// The timeout must be dead before the settlement store call goes out, so
	// a slow write can never race an already-firing expiry.
	s.cancelTimeout()

	recipe, ok := s.e.catalog.Recipe(o.RecipeID)
	if !ok {
		s.current = nil
		s.conn.Send(protocol.OrderFailed(protocol.MsgRecipeNotFound))
		s.e.metrics.OrdersRejected.WithLabelValues(metrics.ReasonRecipeNotFound).Inc()
		return
	}

	sv, err := s.e.store.GetSave(s.userID)
	if err != nil {
		s.e.log.Printf("session %s: serve: %v", s.userID, err)
		s.rearm(o)
		s.conn.Send(protocol.OrderFailed(protocol.MsgServiceError))
		s.e.metrics.OrdersRejected.WithLabelValues(metrics.ReasonPersistence).Inc()
		return
	}

	for _, req := range recipe.Ingredients {
		if sv.Inventory[req.IngredientID] < req.Quantity {
			// Nothing is mutated; the order stays live with its original
			// deadline so the player is not penalized twice for one clock.
			s.rearm(o)
			s.conn.Send(protocol.OrderFailedEconomy(sv.Satisfaction, sv.Treasury, protocol.MsgInsufficientStock))
			s.e.metrics.OrdersRejected.WithLabelValues(metrics.ReasonInsufficientStock).Inc()
			return
		}
	}

	deltas := make(map[string]int, len(recipe.Ingredients))
	ingredientCost := 0
	for _, req := range recipe.Ingredients {
		deltas[req.IngredientID] -= req.Quantity
		if ing, ok := s.e.catalog.Ingredient(req.IngredientID); ok {
			ingredientCost += ing.Price * req.Quantity
		}
	}

	settle := ServeSettlement(recipe.SalePrice, s.e.tune)
	updated, err := s.e.store.ApplySettlement(s.userID, settle.TreasuryDelta, settle.SatisfactionDelta, deltas)
	if err != nil {
		s.e.log.Printf("session %s: settle: %v", s.userID, err)
		s.rearm(o)
		s.conn.Send(protocol.OrderFailed(protocol.MsgServiceError))
		s.e.metrics.OrdersRejected.WithLabelValues(metrics.ReasonPersistence).Inc()
		return
	}
	s.current = nil

	meta := map[string]any{
		"recipeId":       recipe.ID,
		"recipeName":     recipe.Name,
		"salePrice":      recipe.SalePrice,
		"ingredientCost": ingredientCost,
	}
	if err := s.e.store.AppendTransaction(store.Transaction{
		UserID:   s.userID,
		Kind:     settle.Kind,
		Category: settle.Category,
		Amount:   settle.Amount,
		Metadata: meta,
	}); err != nil {
		s.e.log.Printf("session %s: record settlement: %v", s.userID, err)
	}
	s.e.journalEntry(s.userID, settle.Kind, settle.Amount, meta)

	s.conn.Send(protocol.OrderSuccess(updated.Satisfaction, updated.Treasury, settle.Amount))
	s.e.metrics.OrdersServed.Inc()

	if s.checkGameOver(updated) {
		return
	}
	s.conn.Send(protocol.EconomySnapshot(updated.Treasury, updated.Satisfaction))
}

// rearm restores the order's timeout with whatever time it has left.
func (s *Session) rearm(o *Order) {
	s.current = o
	remaining := o.ExpiresAt.Sub(s.e.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	s.armTimeout(o.ID, remaining)
}

func (s *Session) handleExpire(orderID int64) {
	// A resolved or superseded order's timeout is a no-op; so is an expiry
	// that fires into a paused session.
	if s.current == nil || s.current.ID != orderID || s.paused {
		return
	}
	o := s.current
	s.timeout = nil

	settle := TimeoutSettlement(s.e.tune)
	updated, err := s.e.store.ApplySettlement(s.userID, settle.TreasuryDelta, settle.SatisfactionDelta, nil)
	if err != nil {
		s.e.log.Printf("session %s: expire: %v", s.userID, err)
		s.current = nil
		s.conn.Send(protocol.OrderFailed(protocol.MsgServiceError))
		return
	}
	s.current = nil

	meta := map[string]any{
		"recipeId":   o.RecipeID,
		"recipeName": o.RecipeName,
	}
	if err := s.e.store.AppendTransaction(store.Transaction{
		UserID:   s.userID,
		Kind:     settle.Kind,
		Category: settle.Category,
		Amount:   settle.Amount,
		Metadata: meta,
	}); err != nil {
		s.e.log.Printf("session %s: record timeout: %v", s.userID, err)
	}
	s.e.journalEntry(s.userID, settle.Kind, settle.Amount, meta)

	s.conn.Send(protocol.OrderFailedEconomy(updated.Satisfaction, updated.Treasury, protocol.MsgOrderExpired))
	s.e.metrics.OrdersExpired.Inc()

	s.checkGameOver(updated)
}

// checkGameOver resets the save when the economy went terminal. Reset happens
// before the client is told, so a reconnect observes the fresh state.
func (s *Session) checkGameOver(sv store.Save) bool {
	if !IsGameOver(sv.Treasury, sv.Satisfaction) {
		return false
	}

	s.cancelTimeout()
	s.current = nil

	reset, err := s.e.store.ResetSave(s.userID, s.e.tune.InitialTreasury, s.e.tune.InitialSatisfaction)
	if err != nil {
		s.e.log.Printf("session %s: reset: %v", s.userID, err)
		s.conn.Send(protocol.OrderFailed(protocol.MsgServiceError))
		return true
	}

	s.conn.Send(protocol.EconomySnapshot(reset.Treasury, reset.Satisfaction))
	s.conn.Send(protocol.GameOver())
	s.e.metrics.GameOvers.Inc()
	return true
}
