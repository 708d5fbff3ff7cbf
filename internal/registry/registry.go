// Package registry is the durable catalog of channel definitions. It is the
// only writer of channel records and flushes every mutation to its store
// before the mutation becomes visible.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gregriff/vogo/relay/internal/crypto"
	"github.com/gregriff/vogo/relay/internal/schemas"
	"github.com/gregriff/vogo/relay/internal/store"
)

var (
	ErrNameRequired    = errors.New("channel name required")
	ErrChannelNotFound = errors.New("channel not found")
	ErrPersistence     = errors.New("channel registry could not be persisted")
)

// MaxCapacity bounds the seats of a single channel.
const MaxCapacity = 50

// seeded on first start; a corrupt store is replaced by the first one only
var defaultChannels = []string{"General", "Music", "Games"}

// CreateParams are the inputs of Create. MaxUsers <= 0 selects the default
// capacity and values above MaxCapacity are clamped.
type CreateParams struct {
	Name     string
	MaxUsers int
	Password string
}

// Patch lists the fields Update may change. Nil pointers and an unset
// Password leave the field as it is.
type Patch struct {
	Name     *string
	MaxUsers *float64
	Password schemas.OptionalString
}

type Registry struct {
	mu       sync.RWMutex
	channels []schemas.Channel
	index    map[string]int

	store           store.Store
	defaultCapacity int
	log             *slog.Logger
	rand            io.Reader
	now             func() time.Time
}

type Option func(*Registry)

// WithRandom replaces the randomness used for placeholder ids and collision suffixes.
func WithRandom(r io.Reader) Option {
	return func(reg *Registry) { reg.rand = r }
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(reg *Registry) { reg.now = now }
}

// New loads the registry from s, seeding it when s is empty, fails to load or
// does not hold valid JSON.
func New(ctx context.Context, s store.Store, defaultCapacity int, log *slog.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		index:           make(map[string]int),
		store:           s,
		defaultCapacity: defaultCapacity,
		log:             log,
		rand:            crypto.Reader,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load(ctx context.Context) error {
	data, err := r.store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Info("no channel registry found, seeding defaults", "channels", len(defaultChannels))
		return r.seed(ctx, defaultChannels)
	}
	if err != nil {
		r.log.Error("channel registry could not be read, reseeding", "error", err)
		return r.seed(ctx, defaultChannels[:1])
	}

	var loaded []schemas.Channel
	if err := json.Unmarshal(data, &loaded); err != nil {
		r.log.Error("channel registry is unreadable, discarding it", "error", err)
		return r.seed(ctx, defaultChannels[:1])
	}
	if loaded == nil {
		r.log.Info("stored channel registry is null, seeding defaults", "channels", len(defaultChannels))
		return r.seed(ctx, defaultChannels)
	}

	dirty := false
	channels := make([]schemas.Channel, 0, len(loaded))
	index := make(map[string]int, len(loaded))
	for _, ch := range loaded {
		if ch.ID == "" {
			r.log.Warn("dropping stored channel without id", "name", ch.Name)
			dirty = true
			continue
		}
		if _, dup := index[ch.ID]; dup {
			r.log.Warn("dropping duplicate stored channel", "id", ch.ID)
			dirty = true
			continue
		}
		if migrated, changed, err := migrateSecret(ch); err != nil {
			return fmt.Errorf("error hashing stored passphrase of %s: %w", ch.ID, err)
		} else if changed {
			r.log.Info("hashed legacy plaintext passphrase", "id", ch.ID)
			ch, dirty = migrated, true
		}
		index[ch.ID] = len(channels)
		channels = append(channels, ch)
	}

	if dirty {
		if err := r.persist(ctx, channels); err != nil {
			return err
		}
	}
	r.channels, r.index = channels, index
	r.log.Info("channel registry loaded", "channels", len(channels))
	return nil
}

// migrateSecret hashes passphrases written by releases that stored them verbatim.
func migrateSecret(ch schemas.Channel) (schemas.Channel, bool, error) {
	switch {
	case !ch.HasPassword && ch.PasswordHash != "":
		ch.PasswordHash = ""
		return ch, true, nil
	case ch.HasPassword && ch.PasswordHash == "":
		ch.HasPassword = false
		return ch, true, nil
	case ch.HasPassword && !crypto.IsHashed(ch.PasswordHash):
		hashed, err := crypto.HashPassphrase(ch.PasswordHash)
		if err != nil {
			return ch, false, err
		}
		ch.PasswordHash = hashed
		return ch, true, nil
	}
	return ch, false, nil
}

func (r *Registry) seed(ctx context.Context, names []string) error {
	r.channels = nil
	r.index = make(map[string]int)

	channels := make([]schemas.Channel, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		id := r.uniqueID(name, index)
		index[id] = len(channels)
		channels = append(channels, schemas.Channel{
			ID:        id,
			Name:      name,
			MaxUsers:  r.defaultCapacity,
			CreatedAt: r.now().UTC(),
		})
	}
	if err := r.persist(ctx, channels); err != nil {
		return err
	}
	r.channels, r.index = channels, index
	return nil
}

// List returns every channel in insertion order.
func (r *Registry) List() []schemas.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.channels)
}

// Get returns the channel with the given id.
func (r *Registry) Get(id string) (schemas.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return schemas.Channel{}, false
	}
	return r.channels[i], true
}

// DefaultCapacity is the capacity of channels created without one.
func (r *Registry) DefaultCapacity() int {
	return r.defaultCapacity
}

// Create adds a channel and persists the registry before returning it.
func (r *Registry) Create(ctx context.Context, p CreateParams) (schemas.Channel, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return schemas.Channel{}, ErrNameRequired
	}

	ch := schemas.Channel{
		Name:      name,
		MaxUsers:  p.MaxUsers,
		CreatedAt: r.now().UTC(),
	}
	if ch.MaxUsers <= 0 {
		ch.MaxUsers = r.defaultCapacity
	}
	ch.MaxUsers = min(ch.MaxUsers, MaxCapacity)
	if p.Password != "" {
		hashed, err := crypto.HashPassphrase(p.Password)
		if err != nil {
			return schemas.Channel{}, fmt.Errorf("error hashing passphrase: %w", err)
		}
		ch.HasPassword, ch.PasswordHash = true, hashed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ch.ID = r.uniqueID(name, r.index)
	next := append(slices.Clone(r.channels), ch)
	if err := r.persist(ctx, next); err != nil {
		return schemas.Channel{}, err
	}
	r.channels = next
	r.index[ch.ID] = len(next) - 1

	r.log.Info("channel created", "id", ch.ID, "max_users", ch.MaxUsers, "has_password", ch.HasPassword)
	return ch, nil
}

// Update applies the fields present in p to channel id and persists the registry.
func (r *Registry) Update(ctx context.Context, id string, p Patch) (schemas.Channel, error) {
	var hashed string
	if p.Password.Set && p.Password.Value != "" {
		var err error
		if hashed, err = crypto.HashPassphrase(p.Password.Value); err != nil {
			return schemas.Channel{}, fmt.Errorf("error hashing passphrase: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return schemas.Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}

	ch := r.channels[i]
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != "" {
			ch.Name = name
		}
	}
	if p.MaxUsers != nil {
		if v := *p.MaxUsers; !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 1 {
			ch.MaxUsers = int(min(v, MaxCapacity))
		}
	}
	if p.Password.Set {
		ch.HasPassword, ch.PasswordHash = hashed != "", hashed
	}

	next := slices.Clone(r.channels)
	next[i] = ch
	if err := r.persist(ctx, next); err != nil {
		return schemas.Channel{}, err
	}
	r.channels = next

	r.log.Info("channel updated", "id", ch.ID, "max_users", ch.MaxUsers, "has_password", ch.HasPassword)
	return ch, nil
}

// uniqueID slugifies name and appends random suffixes until the id is free in taken.
func (r *Registry) uniqueID(name string, taken map[string]int) string {
	base := Slugify(name, r.rand)
	id := base
	for {
		if _, exists := taken[id]; !exists {
			return id
		}
		id = base + "-" + crypto.SlugSuffix(r.rand)
	}
}

func (r *Registry) persist(ctx context.Context, channels []schemas.Channel) error {
	if channels == nil {
		channels = []schemas.Channel{}
	}
	data, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := r.store.Save(ctx, data); err != nil {
		r.log.Error("channel registry write failed", "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
