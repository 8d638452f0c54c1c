package model

// Code is the closed set of outcomes every mutating store operation
// resolves to. Expected contention (duplicate insert, missing row) is a
// Code, not an error; only truly unexpected failures carry an error
// alongside CodeDatabaseError.
type Code int

const (
	CodeSuccess Code = iota
	CodeUniqueViolation
	CodeForeignKeyViolation
	CodeNotFound
	CodeNoRowsInserted
	CodeDatabaseError
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeUniqueViolation:
		return "UNIQUE_VIOLATION"
	case CodeForeignKeyViolation:
		return "FOREIGN_KEY_VIOLATION"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeNoRowsInserted:
		return "NO_ROWS_INSERTED"
	case CodeDatabaseError:
		return "DATABASE_ERROR"
	default:
		return "UNKNOWN"
	}
}
