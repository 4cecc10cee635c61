package cart

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/lock"
)

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ManagerConfig configures NewManager.
type ManagerConfig struct {
	// Namespace prefixes lock keys; it defaults to "cart".
	Namespace string
	Service   *Service
	// Locker defaults to an in-process lock.
	Locker  Locker
	LockTTL time.Duration
	Now     func() time.Time
	NewID   func() string
	Logger  zerolog.Logger
}

// Manager is the session keyed cart registry.
type Manager struct {
	ns      string
	svc     *Service
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger

	mu        sync.RWMutex
	bySession map[string]*Cart
	byID      map[string]*Cart
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		ns:        cfg.Namespace,
		svc:       cfg.Service,
		locker:    cfg.Locker,
		lockTTL:   cfg.LockTTL,
		now:       cfg.Now,
		newID:     cfg.NewID,
		logger:    cfg.Logger,
		bySession: make(map[string]*Cart),
		byID:      make(map[string]*Cart),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.locker == nil {
		m.locker = &lock.Local{}
	}
	if m.ns == "" {
		m.ns = "cart"
	}
	if m.lockTTL <= 0 {
		m.lockTTL = 10 * time.Second
	}
	return m
}

// Service returns the mutation service used by the manager.
func (m *Manager) Service() *Service { return m.svc }

func sessionKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrSessionRequired
	}
	return key, nil
}

// Find returns the active cart bound to key. It does not take the session
// lock; callers outside Do and View must not read the cart's contents.
func (m *Manager) Find(key string) (*Cart, error) {
	key, err := sessionKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bySession[key]
	if !ok || !c.IsActive() {
		return nil, ErrNotFound
	}
	return c, nil
}

// Get returns a cart by id regardless of its session binding.
func (m *Manager) Get(cartID string) (*Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// FindOrCreate returns the active cart bound to key, creating one when the
// session has none or its cart is finished.
func (m *Manager) FindOrCreate(key string) (*Cart, error) {
	key, err := sessionKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.bySession[key]; ok && c.IsActive() {
		return c, nil
	}
	c := New(m.newID(), key, m.now())
	m.bySession[key] = c
	m.byID[c.ID] = c
	m.logger.Debug().Str("cart_id", c.ID).Msg("cart_created")
	return c, nil
}

// Do runs fn on the session cart while holding the session lock.
func (m *Manager) Do(ctx context.Context, key string, fn func(context.Context, *Cart) error) error {
	key, err := sessionKey(key)
	if err != nil {
		return err
	}
	return m.withLock(ctx, key, func(ctx context.Context) error {
		c, err := m.FindOrCreate(key)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	})
}

// View runs fn on the active session cart while holding the session lock.
// Unlike Do it never creates a cart.
func (m *Manager) View(ctx context.Context, key string, fn func(context.Context, *Cart) error) error {
	key, err := sessionKey(key)
	if err != nil {
		return err
	}
	return m.withLock(ctx, key, func(ctx context.Context) error {
		c, err := m.Find(key)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	})
}

// Complete turns the session cart into an order and unbinds the session,
// so the next mutation starts a fresh cart.
func (m *Manager) Complete(ctx context.Context, key string) (*Order, error) {
	var order *Order
	err := m.View(ctx, key, func(ctx context.Context, c *Cart) error {
		var err error
		if order, err = m.svc.Complete(ctx, c); err != nil {
			return err
		}
		m.Forget(c.SessionKey)
		m.logger.Info().Str("cart_id", c.ID).Str("order_id", order.ID).Msg("cart_completed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Close abandons the session cart under the session lock.
func (m *Manager) Close(ctx context.Context, key string) error {
	key, err := sessionKey(key)
	if err != nil {
		return err
	}
	return m.withLock(ctx, key, func(context.Context) error { return m.Destroy(key) })
}

func (m *Manager) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	return m.locker.WithLock(ctx, m.ns+":"+key, m.lockTTL, fn)
}

// withLocks holds every key, taken in sorted order so two merges of the
// same pair cannot deadlock.
func (m *Manager) withLocks(ctx context.Context, keys []string, fn func(context.Context) error) error {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)
	var hold func(ctx context.Context, i int) error
	hold = func(ctx context.Context, i int) error {
		if i == len(keys) {
			return fn(ctx)
		}
		return m.withLock(ctx, keys[i], func(ctx context.Context) error { return hold(ctx, i+1) })
	}
	return hold(ctx, 0)
}

// Merge moves the cart of previousKey into the cart of key and destroys
// the previous one.
func (m *Manager) Merge(ctx context.Context, key, previousKey string) (*Cart, []string, error) {
	key, err := sessionKey(key)
	if err != nil {
		return nil, nil, err
	}
	previousKey, err = sessionKey(previousKey)
	if err != nil {
		return nil, nil, err
	}
	var (
		merged   *Cart
		warnings []string
	)
	err = m.withLocks(ctx, []string{key, previousKey}, func(ctx context.Context) error {
		c, err := m.FindOrCreate(key)
		if err != nil {
			return err
		}
		merged = c
		if previousKey == key {
			return nil
		}
		prev, err := m.Find(previousKey)
		if err != nil {
			return nil
		}
		warnings, err = m.svc.MergeInto(ctx, c, prev)
		if err != nil {
			return err
		}
		m.logger.Info().Str("cart_id", c.ID).Str("merged_cart_id", prev.ID).Msg("cart_merged")
		return m.Destroy(previousKey)
	})
	if err != nil {
		return nil, warnings, err
	}
	return merged, warnings, nil
}

// Destroy abandons the cart of key and drops it from the registry. It does
// not take the session lock; see Close.
func (m *Manager) Destroy(key string) error {
	key, err := sessionKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.bySession[key]
	if !ok {
		return ErrNotFound
	}
	delete(m.bySession, key)
	delete(m.byID, c.ID)
	if c.State != StateCompleted {
		c.State = StateAbandoned
	}
	return nil
}

// Forget unbinds key from its cart. The cart stays reachable by id.
func (m *Manager) Forget(key string) {
	key = strings.TrimSpace(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySession, key)
}
