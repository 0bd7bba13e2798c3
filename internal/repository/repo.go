package repository

// rowsIter abstracts pgx.Rows so scan helpers can be tested without a live
// connection.
type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
