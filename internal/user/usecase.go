package user

import (
	"context"
	"io"
	"log/slog"
	"time"

	"chat/infrastructure"
	"chat/internal/avatar"
	"chat/internal/models"
)

type AccountUseCase struct {
	userRepo   Repository
	compressor *avatar.Compressor
	now        func() time.Time
}

func NewUserAccountUseCase(userRepo Repository, compressor *avatar.Compressor) *AccountUseCase {
	return &AccountUseCase{
		userRepo:   userRepo,
		compressor: compressor,
		now:        time.Now,
	}
}

func (uc *AccountUseCase) GetUser(ctx context.Context, id string) (*models.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

func (uc *AccountUseCase) ListUsers(ctx context.Context) ([]*models.User, error) {
	return uc.userRepo.ListAll(ctx)
}

// UpdateProfile changes the fields that are set; nil leaves a field as is.
func (uc *AccountUseCase) UpdateProfile(ctx context.Context, id string, displayName, username *string) (*models.User, error) {
	if displayName != nil {
		if err := models.ValidateDisplayName(*displayName); err != nil {
			return nil, err
		}
	}
	if username != nil {
		if err := models.ValidateUsername(*username); err != nil {
			return nil, err
		}
	}

	return uc.userRepo.Update(ctx, id, func(u *models.User) error {
		if displayName != nil {
			u.DisplayName = *displayName
		}
		if username != nil {
			u.Username = *username
		}
		return nil
	})
}

// SetPresence records status and stamps lastSeen with the current time.
func (uc *AccountUseCase) SetPresence(ctx context.Context, id string, status models.Status) error {
	if err := models.ValidateStatus(status); err != nil {
		return err
	}
	_, err := uc.userRepo.Update(ctx, id, func(u *models.User) error {
		u.Status = status
		u.LastSeen = models.Millis(uc.now())
		return nil
	})
	return err
}

// UploadAvatar stores image as the user's avatar. The previous avatar stays
// in place when the image cannot be compressed under the budget.
func (uc *AccountUseCase) UploadAvatar(ctx context.Context, id string, image io.Reader) (*models.User, error) {
	url, err := uc.compressor.Compress(image)
	if err != nil {
		slog.InfoContext(ctx, "avatar rejected", "user_id", id, "error", err)
		return nil, err
	}

	return uc.userRepo.Update(ctx, id, func(u *models.User) error {
		u.AvatarURL = url
		return nil
	})
}

// OnlineUserIDs lists users whose presence is online.
func (uc *AccountUseCase) OnlineUserIDs(ctx context.Context) ([]string, error) {
	ids, err := uc.userRepo.OnlineUserIDs(ctx)
	if err != nil {
		return nil, infrastructure.Unavailable("online users", err)
	}
	return ids, nil
}
