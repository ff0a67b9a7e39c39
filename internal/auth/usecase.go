package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"

	"chat/infrastructure"
	"chat/infrastructure/connection"
	"chat/internal/auth/accounts"
	"chat/internal/models"
)

// PasswordMinEntropyBits is enforced only when strong passwords are on.
const PasswordMinEntropyBits = 30

// StateTTL bounds how long a started OAuth redirect stays valid.
const StateTTL = 10 * time.Minute

// StateStore remembers which provider an OAuth state was issued for.
type StateStore interface {
	SaveState(ctx context.Context, state, provider string, ttl time.Duration) error
	// TakeState returns the provider for state and forgets it. An unknown
	// state yields an empty provider.
	TakeState(ctx context.Context, state string) (string, error)
}

// Users is the part of the user store sign-in flows need.
type Users interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	CreateIfMissing(ctx context.Context, user *models.User) (bool, error)
}

type Presence interface {
	SetPresence(ctx context.Context, id string, status models.Status) error
}

type Mailer interface {
	SendWelcomeEmail(to, username string) error
}

type UseCase struct {
	repo            Repository
	users           Users
	presence        Presence
	tokens          *connection.Tokens
	identities      Identities
	states          StateStore
	mailer          Mailer
	strongPasswords bool
	now             func() time.Time
}

func NewUseCase(
	repo Repository,
	users Users,
	presence Presence,
	tokens *connection.Tokens,
	identities Identities,
	states StateStore,
	mailer Mailer,
	strongPasswords bool,
) *UseCase {
	return &UseCase{
		repo:            repo,
		users:           users,
		presence:        presence,
		tokens:          tokens,
		identities:      identities,
		states:          states,
		mailer:          mailer,
		strongPasswords: strongPasswords,
		now:             time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (uc *UseCase) validatePassword(password string) error {
	if err := models.ValidatePassword(password); err != nil {
		return err
	}
	if !uc.strongPasswords {
		return nil
	}
	if err := passwordvalidator.Validate(password, PasswordMinEntropyBits); err != nil {
		return infrastructure.Validation("password is not strong enough: %v", err)
	}
	return nil
}

// SignUp creates the account and its online user record, then greets the
// user by email in the background.
func (uc *UseCase) SignUp(ctx context.Context, email, password, username, displayName string) (*models.User, *connection.AuthTokens, error) {
	email = normalizeEmail(email)
	if err := models.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := uc.validatePassword(password); err != nil {
		return nil, nil, err
	}
	if err := models.ValidateUsername(username); err != nil {
		return nil, nil, err
	}
	if err := models.ValidateDisplayName(displayName); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	now := uc.now()
	id := uuid.NewString()
	account := &accounts.Account{
		ID:           id,
		Provider:     accounts.ProviderPassword,
		Subject:      email,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	user := &models.User{
		ID:          id,
		Email:       email,
		Username:    username,
		DisplayName: displayName,
		Status:      models.StatusOnline,
		LastSeen:    models.Millis(now),
		CreatedAt:   models.Millis(now),
	}
	if err := uc.repo.CreateAccount(ctx, account, user); err != nil {
		return nil, nil, err
	}

	infrastructure.Detach(ctx, "welcome email", func(context.Context) error {
		return uc.mailer.SendWelcomeEmail(email, displayName)
	})

	tokens, err := uc.tokens.Issue(id)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// SignIn checks the credentials. The user record is left alone.
func (uc *UseCase) SignIn(ctx context.Context, email, password string) (*models.User, *connection.AuthTokens, error) {
	account, err := uc.repo.AccountByIdentity(ctx, accounts.ProviderPassword, normalizeEmail(email))
	if errors.Is(err, infrastructure.ErrAccountNotFound) {
		return nil, nil, infrastructure.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, nil, infrastructure.ErrInvalidCredentials
	}

	user, err := uc.users.GetByID(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := uc.tokens.Issue(account.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// SignOut always succeeds. Going offline is attempted in the background.
func (uc *UseCase) SignOut(ctx context.Context, userID string) error {
	infrastructure.Detach(ctx, "sign-out presence", func(ctx context.Context) error {
		return uc.presence.SetPresence(ctx, userID, models.StatusOffline)
	})
	return nil
}

func (uc *UseCase) Refresh(refreshToken string) (*connection.AuthTokens, error) {
	return uc.tokens.Refresh(refreshToken)
}

// Authenticate resolves an access token to its user.
func (uc *UseCase) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := uc.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return uc.users.GetByID(ctx, userID)
}

// BeginOAuth starts a redirect sign-in and returns where to send the browser.
func (uc *UseCase) BeginOAuth(ctx context.Context, provider string) (string, error) {
	state, err := infrastructure.GenerateState()
	if err != nil {
		return "", err
	}
	url, err := uc.identities.AuthCodeURL(provider, state)
	if err != nil {
		return "", err
	}
	if err := uc.states.SaveState(ctx, state, provider, StateTTL); err != nil {
		return "", infrastructure.Unavailable("save oauth state", err)
	}
	return url, nil
}

// HandleRedirect completes a redirect sign-in. Without a pending redirect it
// does nothing and returns nil values. The user record is created on the
// first redirect only; later ones leave it as it is.
func (uc *UseCase) HandleRedirect(ctx context.Context, state, code string) (*models.User, *connection.AuthTokens, error) {
	if state == "" || code == "" {
		return nil, nil, nil
	}
	provider, err := uc.states.TakeState(ctx, state)
	if err != nil {
		return nil, nil, infrastructure.Unavailable("read oauth state", err)
	}
	if provider == "" {
		return nil, nil, nil
	}

	profile, err := uc.identities.Exchange(ctx, provider, code)
	if err != nil {
		return nil, nil, err
	}

	now := uc.now()
	account, err := uc.repo.EnsureAccount(ctx, &accounts.Account{
		ID:        uuid.NewString(),
		Provider:  provider,
		Subject:   profile.Subject,
		Email:     normalizeEmail(profile.Email),
		CreatedAt: now,
	})
	if err != nil {
		return nil, nil, err
	}

	username := models.DeriveUsername(profile.Email)
	created, err := uc.users.CreateIfMissing(ctx, &models.User{
		ID:          account.ID,
		Email:       account.Email,
		Username:    username,
		DisplayName: models.DeriveDisplayName(profile.DisplayName, username),
		AvatarURL:   profile.PhotoURL,
		Status:      models.StatusOnline,
		LastSeen:    models.Millis(now),
		CreatedAt:   models.Millis(now),
	})
	if err != nil {
		return nil, nil, err
	}
	if !created {
		if err := uc.presence.SetPresence(ctx, account.ID, models.StatusOnline); err != nil {
			slog.WarnContext(ctx, "failed to mark user online", "user_id", account.ID, "error", err)
		}
	}

	user, err := uc.users.GetByID(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := uc.tokens.Issue(account.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}
