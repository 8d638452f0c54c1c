package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wiregram/wiregram-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.Code, error) {
	query := `INSERT INTO users (id, telegram_id, name, tag, admin, lang_code)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	cmd, err := r.db.Exec(ctx, query,
		model.DeriveUserID(user.TelegramID), user.TelegramID, user.Name, user.Tag, user.Admin, user.LangCode,
	)
	if err != nil {
		return classify(err)
	}

	return insCode(cmd.RowsAffected()), nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	var user model.User
	query := `SELECT id, telegram_id, name, tag, admin, lang_code
			  FROM users WHERE telegram_id = $1`

	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&user.ID, &user.TelegramID, &user.Name, &user.Tag, &user.Admin, &user.LangCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by telegram id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) AdminIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT telegram_id FROM users WHERE admin`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read admin ids: %w", err)
	}

	return ids, nil
}

func (r *UserRepository) SetAdmin(ctx context.Context, telegramID int64, admin bool) (model.Code, error) {
	query := `UPDATE users SET admin = $2 WHERE telegram_id = $1`

	cmd, err := r.db.Exec(ctx, query, telegramID, admin)
	if err != nil {
		return classify(err)
	}

	return updCode(cmd.RowsAffected()), nil
}
