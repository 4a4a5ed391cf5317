package seed

import (
	"context"
	"fmt"

	"needsmatch/internal/store"
	"needsmatch/pkg/types"

	"github.com/sirupsen/logrus"
)

var helperUsernames = []string{"ava", "liam", "noah", "mia", "elijah", "olivia"}

// SeedUsers registers the manager account and a handful of helpers. Login
// is an upsert, so running it again only refreshes roles.
func SeedUsers(ctx context.Context, userRepo *store.UserRepository, managerUsername string) (manager *types.User, helpers []*types.User, err error) {
	manager, err = userRepo.Login(ctx, managerUsername, types.RoleManager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to seed manager %s: %w", managerUsername, err)
	}

	helpers = make([]*types.User, 0, len(helperUsernames))
	for _, username := range helperUsernames {
		if username == managerUsername {
			continue
		}

		user, err := userRepo.Login(ctx, username, types.RoleHelper)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed helper %s: %w", username, err)
		}
		helpers = append(helpers, user)
	}

	logrus.WithField("manager", manager.Username).WithField("helpers", len(helpers)).Info("users seeded")
	return manager, helpers, nil
}
