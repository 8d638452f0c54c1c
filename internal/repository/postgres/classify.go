package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wiregram/wiregram-server/internal/model"
)

// classify maps a backing-store error to a return code. Constraint
// violations are expected contention and never surface as raw errors;
// anything else is a database error the caller logs and propagates.
func classify(err error) (model.Code, error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return model.CodeUniqueViolation, nil
		case pgerrcode.ForeignKeyViolation:
			return model.CodeForeignKeyViolation, nil
		}
	}
	return model.CodeDatabaseError, err
}

func insCode(rows int64) model.Code {
	if rows > 0 {
		return model.CodeSuccess
	}
	return model.CodeNoRowsInserted
}

func updCode(rows int64) model.Code {
	if rows > 0 {
		return model.CodeSuccess
	}
	return model.CodeNotFound
}

func delCode(rows int64) model.Code {
	if rows > 0 {
		return model.CodeSuccess
	}
	return model.CodeNotFound
}
