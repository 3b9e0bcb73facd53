package game

import (
	"fmt"
	"log"
	"sync"

	"gastrochef/internal/catalog"
	"gastrochef/internal/journal"
	"gastrochef/internal/metrics"
	"gastrochef/internal/protocol"
	"gastrochef/internal/store"
	"gastrochef/internal/tuning"
)

// Conn is the transport side of a session: an outbound message queue the
// engine pushes protocol messages into. Send must not block the caller.
type Conn interface {
	Send(v any)
	Close()
}

// Journal receives an audit entry for every economy mutation the engine
// makes. May be nil-implemented; errors are logged, not propagated.
type Journal interface {
	Append(e journal.Entry) error
}

type EngineConfig struct {
	Store   *store.Store
	Catalog *catalog.Catalog
	Tuning  tuning.Tuning
	Clock   Clock
	Metrics *metrics.Metrics
	Journal Journal
	Log     *log.Logger
}

// Engine owns the session registry: at most one live Session per user id.
// Admitting a user who already has a session notifies and force-closes the
// previous connection before the new session starts.
type Engine struct {
	store    *store.Store
	catalog  *catalog.Catalog
	tune     tuning.Tuning
	clock    Clock
	metrics  *metrics.Metrics
	journal  Journal
	log      *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("engine: catalog is required")
	}
	if cfg.Metrics == nil {
		return nil, fmt.Errorf("engine: metrics is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = NewClock()
	}
	if cfg.Log == nil {
		cfg.Log = log.Default()
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		store:    cfg.Store,
		catalog:  cfg.Catalog,
		tune:     cfg.Tuning,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		journal:  cfg.Journal,
		log:      cfg.Log,
		sessions: make(map[string]*Session),
	}, nil
}

// Admit registers a session for the user, evicting any previous one, and
// starts its order loop. The returned session is already running.
func (e *Engine) Admit(userID, restaurantName string, conn Conn) (*Session, error) {
	if _, err := e.store.FindOrCreateSave(userID, restaurantName, e.tune.InitialTreasury, e.tune.InitialSatisfaction); err != nil {
		return nil, fmt.Errorf("admit %s: %w", userID, err)
	}

	s := newSession(e, userID, restaurantName, conn)

	e.mu.Lock()
	prev := e.sessions[userID]
	e.sessions[userID] = s
	e.mu.Unlock()

	if prev != nil {
		prev.conn.Send(protocol.EconomyNotice(protocol.MsgSessionReplaced))
		prev.conn.Close()
		prev.stop()
	} else {
		e.metrics.SessionsActive.Inc()
	}

	go s.run()
	return s, nil
}

// Release tears the session down, but only if it is still the registered one
// for its user. A stale disconnect must not destroy a newer session.
func (e *Engine) Release(s *Session) {
	if s == nil {
		return
	}
	e.mu.Lock()
	owned := e.sessions[s.userID] == s
	if owned {
		delete(e.sessions, s.userID)
	}
	e.mu.Unlock()

	if owned {
		e.metrics.SessionsActive.Dec()
	}
	s.stop()
}

func (e *Engine) journalEntry(userID, kind string, amount int, meta map[string]any) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(journal.Entry{UserID: userID, Kind: kind, Amount: amount, Metadata: meta}); err != nil {
		e.log.Printf("journal: %v", err)
	}
}
