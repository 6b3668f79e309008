package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cryptolearn-backend/internal/logging"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrontend = "http://localhost:3000/"

func setupResetService(t *testing.T) (*PasswordResetService, *memDB, *recordingSender, *clock) {
	t.Helper()
	db := newMemDB()
	sender := &recordingSender{}
	clk := newClock()
	svc := NewPasswordResetService(
		fakeUserRepo{db}, fakeResetRepo{db}, fakeAuditRepo{db},
		sender, testResetTTL, testFrontend, nil, logging.Discard(),
	)
	svc.now = clk.Now
	return svc, db, sender, clk
}

// tokenFromMail extracts the reset token from the link in a reset email.
func tokenFromMail(t *testing.T, body string) string {
	t.Helper()
	const marker = "/reset-password/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "reset link missing from body: %s", body)
	rest := body[i+len(marker):]
	if j := strings.IndexAny(rest, "\n "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func TestRequestReset_UnknownAccount(t *testing.T) {
	svc, db, sender, _ := setupResetService(t)

	require.NoError(t, svc.RequestReset(context.Background(), "ghost"))
	svc.Wait()

	assert.Empty(t, sender.messages())
	assert.Empty(t, db.resets)
}

func TestRequestReset_ByUsernameAndEmail(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
	}{
		{"username", "alice"},
		{"email", "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, sender, _ := setupResetService(t)
			user := db.addUser(t, "alice", true, models.RoleUser)

			require.NoError(t, svc.RequestReset(context.Background(), tt.identifier))
			svc.Wait()

			msgs := sender.messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, "alice@example.com", msgs[0].To)
			assert.Contains(t, msgs[0].Body, "http://localhost:3000/reset-password/")

			token := tokenFromMail(t, msgs[0].Body)
			tokens := db.resetTokensFor(user.ID)
			require.Len(t, tokens, 1)
			assert.Equal(t, utils.HashToken(token), tokens[0].TokenHash)
		})
	}
}

func TestRequestReset_SameResponseForKnownAndUnknown(t *testing.T) {
	svc, db, _, _ := setupResetService(t)
	db.addUser(t, "alice", true, models.RoleUser)

	errKnown := svc.RequestReset(context.Background(), "alice")
	errUnknown := svc.RequestReset(context.Background(), "nobody")
	svc.Wait()

	assert.Equal(t, errKnown, errUnknown)
	assert.NoError(t, errKnown)
}

func TestRequestReset_ReplacesPreviousToken(t *testing.T) {
	svc, db, sender, _ := setupResetService(t)
	user := db.addUser(t, "alice", true, models.RoleUser)
	ctx := context.Background()

	require.NoError(t, svc.RequestReset(ctx, "alice"))
	require.NoError(t, svc.RequestReset(ctx, "alice"))
	svc.Wait()

	assert.Len(t, db.resetTokensFor(user.ID), 1)

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	tokens := map[string]bool{}
	for _, m := range msgs {
		tokens[tokenFromMail(t, m.Body)] = true
	}
	live := 0
	for tok := range tokens {
		if _, err := svc.Validate(ctx, tok); err == nil {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestRequestReset_FailuresAreSwallowed(t *testing.T) {
	t.Run("mail", func(t *testing.T) {
		svc, db, sender, _ := setupResetService(t)
		sender.err = errSMTPDown
		db.addUser(t, "alice", true, models.RoleUser)

		assert.NoError(t, svc.RequestReset(context.Background(), "alice"))
		svc.Wait()
	})

	t.Run("token storage", func(t *testing.T) {
		svc, db, sender, _ := setupResetService(t)
		db.replaceResetErr = errors.New("deadlock")
		db.addUser(t, "alice", true, models.RoleUser)

		assert.NoError(t, svc.RequestReset(context.Background(), "alice"))
		svc.Wait()
		assert.Empty(t, sender.messages())
	})
}

func requestToken(t *testing.T, svc *PasswordResetService, sender *recordingSender, identifier string) string {
	t.Helper()
	require.NoError(t, svc.RequestReset(context.Background(), identifier))
	svc.Wait()
	msgs := sender.messages()
	require.NotEmpty(t, msgs)
	return tokenFromMail(t, msgs[len(msgs)-1].Body)
}

func TestValidate_BeforeAndAfterTTL(t *testing.T) {
	svc, db, sender, clk := setupResetService(t)
	user := db.addUser(t, "alice", true, models.RoleUser)
	ctx := context.Background()

	token := requestToken(t, svc, sender, "alice")

	owner, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, owner.ID)

	clk.Advance(testResetTTL + 1)

	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrResetTokenExpired)
	assert.ErrorIs(t, err, ErrTokenRejected)
	assert.Len(t, db.resetTokensFor(user.ID), 1, "expired token must not be deleted by validate")
}

func TestValidate_UnknownToken(t *testing.T) {
	svc, _, _, _ := setupResetService(t)

	_, err := svc.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsume_Idempotent(t *testing.T) {
	svc, db, sender, _ := setupResetService(t)
	user := db.addUser(t, "alice", true, models.RoleUser)
	ctx := context.Background()

	token := requestToken(t, svc, sender, "alice")

	require.NoError(t, svc.Consume(ctx, token))
	assert.Empty(t, db.resetTokensFor(user.ID))
	assert.NoError(t, svc.Consume(ctx, token))
}

func TestResetPassword(t *testing.T) {
	svc, db, sender, _ := setupResetService(t)
	user := db.addUser(t, "alice", true, models.RoleUser)
	ctx := context.Background()

	token := requestToken(t, svc, sender, "alice")

	err := svc.ResetPassword(ctx, token, "weak")
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.Len(t, db.resetTokensFor(user.ID), 1)

	require.NoError(t, svc.ResetPassword(ctx, token, "N3w!Password"))
	assert.True(t, utils.ComparePassword(db.user(user.ID).PasswordHash, "N3w!Password"))
	assert.Empty(t, db.resetTokensFor(user.ID))
	assert.Contains(t, db.audits, models.AuditPasswordReset)

	err = svc.ResetPassword(ctx, token, "An0ther!Password")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestResetPassword_Expired(t *testing.T) {
	svc, db, sender, clk := setupResetService(t)
	user := db.addUser(t, "alice", true, models.RoleUser)
	original := db.user(user.ID).PasswordHash

	token := requestToken(t, svc, sender, "alice")
	clk.Advance(2 * testResetTTL)

	err := svc.ResetPassword(context.Background(), token, "N3w!Password")
	assert.ErrorIs(t, err, ErrResetTokenExpired)
	assert.Equal(t, original, db.user(user.ID).PasswordHash)
	assert.Empty(t, db.resetTokensFor(user.ID), "expired token is dropped once a reset is attempted")

	err = svc.ResetPassword(context.Background(), token, "N3w!Password")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}
