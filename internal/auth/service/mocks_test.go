package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
	authrepo "github.com/AlibekovAA/personal-manager/backend/internal/auth/repository"
	userdomain "github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/personal-manager/backend/internal/user/repository"
)

type mockIDGenerator struct {
	newIDFunc func() (string, error)
	seq       atomic.Int64
}

func (m *mockIDGenerator) NewID() (string, error) {
	if m.newIDFunc != nil {
		return m.newIDFunc()
	}
	return fmt.Sprintf("id-%d", m.seq.Add(1)), nil
}

// fakeHasher stores "hashed:<password>". Hashes prefixed "legacy:" report
// that they need a rehash.
type fakeHasher struct {
	verifyCalls atomic.Int64
	hashErr     error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(hash, password string) bool {
	h.verifyCalls.Add(1)
	return hash == "hashed:"+password || hash == "legacy:"+password
}

func (h *fakeHasher) NeedsRehash(hash string) bool {
	return strings.HasPrefix(hash, "legacy:")
}

var errPoolExhausted = errors.New("no free connection: held by an open transaction")

// singleConn stands in for a pool with one connection. Acquiring it while a
// transaction holds it fails instead of blocking until a timeout.
type singleConn struct {
	held atomic.Bool
}

func (c *singleConn) acquire() error {
	if c != nil && c.held.Load() {
		return errPoolExhausted
	}
	return nil
}

type memUserRepo struct {
	mu          sync.Mutex
	users       map[userdomain.ID]userdomain.User
	conn        *singleConn
	findErr     error
	updateCalls int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[userdomain.ID]userdomain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user userdomain.User) error {
	if err := r.conn.acquire(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == userdomain.NormalizeEmail(user.Email) {
			return userrepo.ErrEmailAlreadyExists
		}
	}
	user.Email = userdomain.NormalizeEmail(user.Email)
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (userdomain.User, error) {
	if err := r.conn.acquire(); err != nil {
		return userdomain.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return userdomain.User{}, r.findErr
	}
	for _, u := range r.users {
		if u.Email == userdomain.NormalizeEmail(email) {
			return u, nil
		}
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id userdomain.ID) (userdomain.User, error) {
	if err := r.conn.acquire(); err != nil {
		return userdomain.User{}, err
	}
	return r.lookup(id)
}

func (r *memUserRepo) lookup(id userdomain.ID) (userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return userdomain.User{}, userrepo.ErrUserNotFound
	}
	return u, nil
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, id userdomain.ID, hash string) error {
	if err := r.conn.acquire(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return userrepo.ErrUserNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	r.updateCalls++
	return nil
}

// memRefreshRepo serializes transactions behind one mutex and applies a
// transaction's writes only when fn returns nil. Users are read from the
// shared user repo without acquiring its connection, like a query on the
// transaction's own connection.
type memRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]authdomain.RefreshToken
	users  *memUserRepo
	conn   *singleConn
}

func newMemRefreshRepo(users *memUserRepo) *memRefreshRepo {
	return &memRefreshRepo{tokens: make(map[string]authdomain.RefreshToken), users: users}
}

func (r *memRefreshRepo) Create(_ context.Context, token authdomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.RawToken = ""
	r.tokens[token.ID] = token
	return nil
}

func (r *memRefreshRepo) FindByTokenHash(_ context.Context, hash string) (authdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return authdomain.RefreshToken{}, authrepo.ErrRefreshTokenNotFound
}

func (r *memRefreshRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[id]; ok && !t.Revoked {
		revoke(&t, at)
		r.tokens[id] = t
	}
	return nil
}

func (r *memRefreshRepo) RevokeByTokenHash(_ context.Context, hash string, at time.Time) (authdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tokens {
		if t.TokenHash == hash && !t.Revoked {
			revoke(&t, at)
			r.tokens[id] = t
			return t, nil
		}
	}
	return authdomain.RefreshToken{}, authrepo.ErrRefreshTokenNotFound
}

func (r *memRefreshRepo) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tokens {
		if t.UserID == userID && !t.Revoked {
			revoke(&t, at)
			r.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func revokeExcess(tokens map[string]authdomain.RefreshToken, userID string, keep int, now time.Time) int64 {
	var active []authdomain.RefreshToken
	for _, t := range tokens {
		if t.UserID == userID && t.ActiveAt(now) {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	var n int64
	for i := keep; i < len(active); i++ {
		t := active[i]
		revoke(&t, now)
		tokens[t.ID] = t
		n++
	}
	return n
}

func (r *memRefreshRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tokens {
		if !t.ExpiresAt.After(before) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r *memRefreshRepo) WithTx(ctx context.Context, fn func(context.Context, authrepo.RefreshTokenTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		r.conn.held.Store(true)
		defer r.conn.held.Store(false)
	}

	staged := make(map[string]authdomain.RefreshToken, len(r.tokens))
	for id, t := range r.tokens {
		staged[id] = t
	}
	if err := fn(ctx, &memRefreshTx{tokens: staged, users: r.users}); err != nil {
		return err
	}
	r.tokens = staged
	return nil
}

func (r *memRefreshRepo) activeFor(userID string, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.ActiveAt(now) {
			n++
		}
	}
	return n
}

func (r *memRefreshRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

type memRefreshTx struct {
	tokens map[string]authdomain.RefreshToken
	users  *memUserRepo
}

// LockUserSessions is a no-op: WithTx already runs one transaction at a time.
func (tx *memRefreshTx) LockUserSessions(context.Context, string) error {
	return nil
}

func (tx *memRefreshTx) RevokeExcessByUserID(_ context.Context, userID string, keep int, now time.Time) (int64, error) {
	return revokeExcess(tx.tokens, userID, keep, now), nil
}

func (tx *memRefreshTx) FindUser(_ context.Context, userID string) (userdomain.User, error) {
	if tx.users == nil {
		return userdomain.User{}, userrepo.ErrUserNotFound
	}
	return tx.users.lookup(userdomain.ID(userID))
}

func (tx *memRefreshTx) RevokeActiveByTokenHash(_ context.Context, hash string, now time.Time) (authdomain.RefreshToken, error) {
	for id, t := range tx.tokens {
		if t.TokenHash == hash && t.ActiveAt(now) {
			revoke(&t, now)
			tx.tokens[id] = t
			return t, nil
		}
	}
	return authdomain.RefreshToken{}, authrepo.ErrRefreshTokenNotFound
}

func (tx *memRefreshTx) Create(_ context.Context, token authdomain.RefreshToken) error {
	token.RawToken = ""
	tx.tokens[token.ID] = token
	return nil
}

func revoke(t *authdomain.RefreshToken, at time.Time) {
	t.Revoked = true
	revokedAt := at
	t.RevokedAt = &revokedAt
}
