// Package identity maps external caller identities onto internal PocketBase
// user records and builds the ownership filters that scope every data tool.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
)

const (
	domain = "identity"

	// EmailDomain is the reserved domain of synthetic user emails.
	EmailDomain = "users.mcp.invalid"

	passwordBytes = 32
)

// Config selects where internal users live.
type Config struct {
	UsersCollection string
	LookupField     string
	CacheSize       int
	CacheTTL        time.Duration
}

// Resolver performs get-or-create of internal users.
// It is safe for concurrent use.
type Resolver struct {
	client  pocketbase.Client
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
	cache   *expirable.LRU[string, string]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver. Empty collection or field names fall back
// to "users" and "external_id".
func NewResolver(client pocketbase.Client, cfg Config, opts ...Option) *Resolver {
	if cfg.UsersCollection == "" {
		cfg.UsersCollection = "users"
	}
	if cfg.LookupField == "" {
		cfg.LookupField = "external_id"
	}
	r := &Resolver{
		client: client,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	if cfg.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the id of the internal user bound to callerID, creating
// the user on first sight. Concurrent calls for the same callerID share one
// lookup and at most one create; the shared work is not cancelled when one
// of the waiting callers gives up.
func (r *Resolver) Resolve(ctx context.Context, callerID string) (string, error) {
	if strings.TrimSpace(callerID) == "" {
		return "", internalerrors.New(domain, "Resolve", internalerrors.ErrValidation,
			fmt.Errorf("user_id is required"))
	}

	if r.cache != nil {
		if uid, ok := r.cache.Get(callerID); ok {
			return uid, nil
		}
	}

	v, err, _ := r.group.Do(callerID, func() (any, error) {
		return r.getOrCreate(context.WithoutCancel(ctx), callerID)
	})
	if err != nil {
		return "", err
	}
	uid := v.(string)
	if r.cache != nil {
		r.cache.Add(callerID, uid)
	}
	return uid, nil
}

// Forget drops callerID from the cache, if any.
func (r *Resolver) Forget(callerID string) {
	if r.cache != nil {
		r.cache.Remove(callerID)
	}
}

func (r *Resolver) getOrCreate(ctx context.Context, callerID string) (string, error) {
	rec, err := r.client.GetFirstListItem(ctx, r.cfg.UsersCollection, Eq(r.cfg.LookupField, callerID))
	if err == nil {
		if id := rec.ID(); id != "" {
			return id, nil
		}
		return "", internalerrors.New(domain, "Resolve", internalerrors.ErrBackend,
			fmt.Errorf("user record without id"))
	}
	if !pocketbase.IsNotFound(err) {
		return "", internalerrors.New(domain, "Resolve", internalerrors.ErrBackend, err).
			WithContext("identity", callerID)
	}

	password, err := randomPassword()
	if err != nil {
		return "", internalerrors.New(domain, "Resolve", internalerrors.ErrInternal, err)
	}
	created, err := r.client.Create(ctx, r.cfg.UsersCollection, map[string]any{
		r.cfg.LookupField: callerID,
		"email":           SyntheticEmail(callerID),
		"emailVisibility": false,
		"password":        password,
		"passwordConfirm": password,
		"verified":        true,
	})
	if err != nil {
		// Another process may have won the create; the synthetic email is
		// unique, so its record is what the lookup now finds.
		if rec, lookupErr := r.client.GetFirstListItem(ctx, r.cfg.UsersCollection, Eq(r.cfg.LookupField, callerID)); lookupErr == nil && rec.ID() != "" {
			r.logger.Debug("user created concurrently elsewhere", zap.String("user_record", rec.ID()))
			return rec.ID(), nil
		}
		return "", internalerrors.New(domain, "Resolve", internalerrors.ErrBackend, err).
			WithContext("identity", callerID)
	}
	id := created.ID()
	if id == "" {
		return "", internalerrors.New(domain, "Resolve", internalerrors.ErrBackend,
			fmt.Errorf("created user record without id"))
	}

	r.metrics.IdentityProvisioned()
	r.logger.Info("provisioned internal user",
		zap.String("collection", r.cfg.UsersCollection),
		zap.String("user_record", id),
	)
	return id, nil
}

// SyntheticEmail derives the deterministic placeholder email for callerID.
func SyntheticEmail(callerID string) string {
	sum := sha256.Sum256([]byte(callerID))
	return "mcp-" + hex.EncodeToString(sum[:])[:24] + "@" + EmailDomain
}

func randomPassword() (string, error) {
	b := make([]byte, passwordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(b), nil
}
