// Package identity provisions customer accounts for anonymous checkouts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/redis/go-redis/v9"
)

// Directory is the account backend.
type Directory interface {
	LookupUID(ctx context.Context, email string) (string, bool, error)
	Create(ctx context.Context, email, displayName string) (string, error)
	SetupLink(ctx context.Context, email string) (string, error)
}

// ErrAccountExists is returned by Directory.Create when the email raced another create.
var ErrAccountExists = errors.New("account already exists")

type FirebaseDirectory struct {
	client *auth.Client
}

func NewFirebaseDirectory(client *auth.Client) *FirebaseDirectory {
	return &FirebaseDirectory{client: client}
}

func (d *FirebaseDirectory) LookupUID(ctx context.Context, email string) (string, bool, error) {
	user, err := d.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return user.UID, true, nil
}

func (d *FirebaseDirectory) Create(ctx context.Context, email, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		EmailVerified(false).
		Disabled(false)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	user, err := d.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", ErrAccountExists
		}
		return "", err
	}
	return user.UID, nil
}

func (d *FirebaseDirectory) SetupLink(ctx context.Context, email string) (string, error) {
	return d.client.PasswordResetLink(ctx, email)
}

type Provider struct {
	dir Directory
	rdb *redis.Client
	ttl time.Duration
}

// NewProvider wraps dir with a per-email uid cache. A nil rdb disables the cache.
func NewProvider(dir Directory, rdb *redis.Client) *Provider {
	return &Provider{dir: dir, rdb: rdb, ttl: 24 * time.Hour}
}

func cacheKey(email string) string {
	return "identity:email:" + email
}

// EnsureUser returns the uid for email, creating the account when none exists.
// created is true only for the call that created it.
func (p *Provider) EnsureUser(ctx context.Context, email, displayName string) (uid string, created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false, errors.New("identity: empty email")
	}

	if p.rdb != nil {
		cached, err := p.rdb.Get(ctx, cacheKey(email)).Result()
		if err == nil && cached != "" {
			return cached, false, nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("[Identity] cache read failed: %s\n", err.Error())
		}
	}

	uid, found, err := p.dir.LookupUID(ctx, email)
	if err != nil {
		return "", false, fmt.Errorf("identity lookup: %w", err)
	}
	if !found {
		uid, err = p.dir.Create(ctx, email, displayName)
		switch {
		case errors.Is(err, ErrAccountExists):
			if uid, found, err = p.dir.LookupUID(ctx, email); err != nil || !found {
				return "", false, fmt.Errorf("identity lookup after conflict: %w", errors.Join(err, ErrAccountExists))
			}
		case err != nil:
			return "", false, fmt.Errorf("identity create: %w", err)
		default:
			created = true
			log.Printf("[Identity] created account %s\n", uid)
		}
	}

	if p.rdb != nil {
		if err := p.rdb.SetNX(ctx, cacheKey(email), uid, p.ttl).Err(); err != nil {
			log.Printf("[Identity] cache write failed: %s\n", err.Error())
		}
	}
	return uid, created, nil
}

func (p *Provider) SetupLink(ctx context.Context, email string) (string, error) {
	return p.dir.SetupLink(ctx, strings.ToLower(strings.TrimSpace(email)))
}
