package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users     map[string]string
	creates   int
	createErr error
}

func (f *fakeDirectory) LookupUID(_ context.Context, email string) (string, bool, error) {
	uid, ok := f.users[email]
	return uid, ok, nil
}

func (f *fakeDirectory) Create(_ context.Context, email, _ string) (string, error) {
	f.creates++
	if f.createErr != nil {
		return "", f.createErr
	}
	uid := "uid-" + email
	f.users[email] = uid
	return uid, nil
}

func (f *fakeDirectory) SetupLink(_ context.Context, email string) (string, error) {
	return "https://auth.example.com/reset?email=" + email, nil
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	dir := &fakeDirectory{users: map[string]string{}}
	p := NewProvider(dir, nil)

	uid, created, err := p.EnsureUser(context.Background(), " Guest@Example.com ", "Guest")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "uid-guest@example.com", uid)

	again, created, err := p.EnsureUser(context.Background(), "guest@example.com", "Guest")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uid, again)
	assert.Equal(t, 1, dir.creates)
}

func TestEnsureUserCreateRace(t *testing.T) {
	dir := &fakeDirectory{users: map[string]string{}}
	dir.createErr = ErrAccountExists
	p := NewProvider(dir, nil)

	_, _, err := p.EnsureUser(context.Background(), "racer@example.com", "")
	assert.ErrorIs(t, err, ErrAccountExists)

	dir.users["racer@example.com"] = "uid-other"
	uid, created, err := p.EnsureUser(context.Background(), "racer@example.com", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "uid-other", uid)
}

func TestEnsureUserCreateFailure(t *testing.T) {
	dir := &fakeDirectory{users: map[string]string{}, createErr: errors.New("quota exceeded")}
	p := NewProvider(dir, nil)

	_, _, err := p.EnsureUser(context.Background(), "guest@example.com", "")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestEnsureUserCache(t *testing.T) {
	dir := &fakeDirectory{users: map[string]string{}}
	rdb, mock := redismock.NewClientMock()
	p := NewProvider(dir, rdb)

	mock.ExpectGet("identity:email:guest@example.com").RedisNil()
	mock.ExpectSetNX("identity:email:guest@example.com", "uid-guest@example.com", 24*time.Hour).SetVal(true)
	mock.ExpectGet("identity:email:guest@example.com").SetVal("uid-guest@example.com")

	_, _, err := p.EnsureUser(context.Background(), "guest@example.com", "")
	require.NoError(t, err)

	dir.users = map[string]string{}
	uid, created, err := p.EnsureUser(context.Background(), "guest@example.com", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "uid-guest@example.com", uid)
	assert.Equal(t, 1, dir.creates)
	assert.NoError(t, mock.ExpectationsWereMet())
}
