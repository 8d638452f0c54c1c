package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wiregram/wiregram-server/internal/model"
)

var _ model.AccessStore = (*AccessRepository)(nil)

// errNoPendingRequest aborts the grant transaction when the request
// delete matched nothing.
var errNoPendingRequest = errors.New("no pending access request")

type AccessRepository struct {
	db *Connection
}

func NewAccessRepository(db *Connection) *AccessRepository {
	return &AccessRepository{
		db: db,
	}
}

// CreateRequest relies on the primary key for de-duplication: a second
// pending request for the same (user, access name) derives the same id
// and comes back as a unique violation, with no check-then-insert race.
func (r *AccessRepository) CreateRequest(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	query := `INSERT INTO access_requests (id, user_id, access_name)
			  VALUES ($1, $2, $3)`

	cmd, err := r.db.Exec(ctx, query, model.DeriveAccessID(userID, accessName), userID, accessName)
	if err != nil {
		return classify(err)
	}

	return insCode(cmd.RowsAffected()), nil
}

func (r *AccessRepository) GetRequest(ctx context.Context, userID uuid.UUID, accessName string) (model.AccessRequest, error) {
	var req model.AccessRequest
	query := `SELECT id, user_id, access_name, created_at
			  FROM access_requests WHERE user_id = $1 AND access_name = $2`

	err := r.db.QueryRow(ctx, query, userID, accessName).Scan(
		&req.ID, &req.UserID, &req.AccessName, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AccessRequest{}, model.ErrNotFound
		}
		return model.AccessRequest{}, fmt.Errorf("failed to get access request: %w", err)
	}

	return req, nil
}

func (r *AccessRepository) ListRequests(ctx context.Context, accessName string, limit int) ([]model.PendingRequest, error) {
	query := `SELECT u.telegram_id, u.tag, ar.access_name, ar.created_at
			  FROM access_requests ar
			  JOIN users u ON u.id = ar.user_id
			  WHERE ar.access_name = $1
			  ORDER BY ar.created_at
			  LIMIT $2`

	rows, err := r.db.Query(ctx, query, accessName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select access requests: %w", err)
	}
	defer rows.Close()

	var reqs []model.PendingRequest
	for rows.Next() {
		var req model.PendingRequest
		if err := rows.Scan(&req.TelegramID, &req.Tag, &req.AccessName, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read access requests: %w", err)
	}

	return reqs, nil
}

func (r *AccessRepository) DeleteRequest(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	query := `DELETE FROM access_requests WHERE user_id = $1 AND access_name = $2`

	cmd, err := r.db.Exec(ctx, query, userID, accessName)
	if err != nil {
		return classify(err)
	}

	return delCode(cmd.RowsAffected()), nil
}

// Grant consumes the pending request and writes the grant in a single
// transaction. The delete gates the grant: zero rows deleted means no
// request was pending and nothing else runs, so a replayed approval
// cannot extend access without a fresh request. The upsert resets the
// window from now; renewals do not stack.
func (r *AccessRepository) Grant(ctx context.Context, userID uuid.UUID, accessName string, validTo time.Time) (model.Code, error) {
	code := model.CodeSuccess
	err := r.db.RunInTx(ctx, func(tx pgx.Tx) error {
		del, err := tx.Exec(ctx, `DELETE FROM access_requests WHERE user_id = $1 AND access_name = $2`,
			userID, accessName)
		if err != nil {
			return err
		}
		if del.RowsAffected() == 0 {
			return errNoPendingRequest
		}

		ins, err := tx.Exec(ctx, `INSERT INTO accesses (id, user_id, access_name, valid_from, valid_to)
				  VALUES ($1, $2, $3, now(), $4)
				  ON CONFLICT (id, access_name) DO UPDATE SET valid_from = now(), valid_to = $4`,
			model.DeriveAccessID(userID, accessName), userID, accessName, validTo)
		if err != nil {
			return err
		}
		code = insCode(ins.RowsAffected())
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoPendingRequest) {
			return model.CodeNotFound, nil
		}
		return classify(err)
	}

	return code, nil
}

func (r *AccessRepository) Get(ctx context.Context, userID uuid.UUID, accessName string) (model.Access, error) {
	var access model.Access
	query := `SELECT id, user_id, access_name, valid_from, valid_to
			  FROM accesses WHERE user_id = $1 AND access_name = $2`

	err := r.db.QueryRow(ctx, query, userID, accessName).Scan(
		&access.ID, &access.UserID, &access.AccessName, &access.ValidFrom, &access.ValidTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Access{}, model.ErrNotFound
		}
		return model.Access{}, fmt.Errorf("failed to get access: %w", err)
	}

	return access, nil
}

// Block keeps the row but moves both bounds into the past, leaving the
// grant inactive and auditable.
func (r *AccessRepository) Block(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	query := `UPDATE accesses SET valid_from = $3, valid_to = $4
			  WHERE user_id = $1 AND access_name = $2`

	cmd, err := r.db.Exec(ctx, query, userID, accessName, model.BlockedFrom, model.BlockedTo)
	if err != nil {
		return classify(err)
	}

	return updCode(cmd.RowsAffected()), nil
}

func (r *AccessRepository) Delete(ctx context.Context, userID uuid.UUID, accessName string) (model.Code, error) {
	query := `DELETE FROM accesses WHERE user_id = $1 AND access_name = $2`

	cmd, err := r.db.Exec(ctx, query, userID, accessName)
	if err != nil {
		return classify(err)
	}

	return delCode(cmd.RowsAffected()), nil
}
