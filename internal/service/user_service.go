package service

import (
	"context"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
)

// UserService handles wallet-based authentication and user lookups
type UserService struct {
	users      UserStore
	activities ActivityStore
	chainID    types.ChainID
	logger     *logging.Logger
}

// NewUserService creates a new user service
func NewUserService(users UserStore, activities ActivityStore, chainID types.ChainID, logger *logging.Logger) *UserService {
	return &UserService{
		users:      users,
		activities: activities,
		chainID:    chainID,
		logger:     logger,
	}
}

// AuthResult is the outcome of a wallet authentication
type AuthResult struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

// Authenticate signs a wallet in, creating the user on first sight.
// There are no passwords; holding the wallet is the credential.
func (s *UserService) Authenticate(ctx context.Context, walletAddress, username string) (*AuthResult, error) {
	if !ledger.ValidAddress(walletAddress) {
		return nil, errors.NewInvalidAddressError(walletAddress)
	}

	user, created, err := s.users.GetOrCreate(ctx, walletAddress, username)
	if err != nil {
		return nil, err
	}

	activityType := types.ActivitySignIn
	if created {
		activityType = types.ActivityWalletConnected
	}
	activity := &models.Activity{
		UserID:        user.UserID,
		WalletAddress: user.WalletAddress,
		Type:          activityType,
		Timestamp:     nowUTC(),
		BlockchainData: &models.BlockchainData{
			ChainID: s.chainID.NumericChainID(),
			Network: s.chainID.Network(),
		},
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		// The activity log is advisory; never fail a sign-in over it
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to record sign-in activity")
	}

	s.logger.WithFields(map[string]interface{}{
		"userId":  user.UserID,
		"created": created,
	}).Info("Wallet authenticated")

	return &AuthResult{User: user, Created: created}, nil
}

// GetByWalletAddress returns the user for a wallet address
func (s *UserService) GetByWalletAddress(ctx context.Context, walletAddress string) (*models.User, error) {
	if !ledger.ValidAddress(walletAddress) {
		return nil, errors.NewInvalidAddressError(walletAddress)
	}
	return s.users.GetByWalletAddress(ctx, walletAddress)
}

// List returns users ordered by most recent activity
func (s *UserService) List(ctx context.Context, page, limit int) ([]*models.User, types.Pagination, error) {
	return s.users.List(ctx, page, limit)
}
