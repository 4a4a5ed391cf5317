package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userTableName = "users"

var userColumns = utils.StructTagValues(types.User{})

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) User(ctx context.Context, userID string) (*types.User, error) {
	query, args, err := psql().
		Select(userColumns...).
		From(userTableName).
		Where(sq.Eq{"id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user query: %w", err)
	}

	var user types.User
	err = pgxscan.Get(ctx, r.pool, &user, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

// Login returns the user with username, registering it first if it has
// never been seen. The role is rewritten on every login so a change of the
// configured manager username takes effect immediately.
func (r *UserRepository) Login(ctx context.Context, username string, role types.Role) (*types.User, error) {
	now := time.Now()
	username = strings.TrimSpace(username)

	query, args, err := psql().
		Insert(userTableName).
		Columns("id", "username", "role", "created_at", "updated_at").
		Values(utils.NanoID(), username, role, now, now).
		Suffix("ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate login user query: %w", err)
	}

	var user types.User
	err = pgxscan.Get(ctx, r.pool, &user, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to login user %s: %w", username, err)
	}

	return &user, nil
}
