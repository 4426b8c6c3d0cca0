package helpers

import "gorm.io/gorm"

// WrapTxAndCommit executes fn within a transaction. When tx is nil a new transaction is
// started and committed if fn succeeds, or rolled back if it fails. When tx is provided
// the caller owns the transaction and fn simply runs inside it.
//
// Type Parameters:
//   - T: The return type of the function
//
// Parameters:
//   - fn: The function to execute within the transaction
//   - db: The database connection
//   - tx: An optional existing transaction (can be nil)
//
// Returns:
//   - T: The result from the executed function
//   - error: The error from fn, or from beginning or committing the transaction
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (T, error) {
	exists := tx != nil

	if !exists {
		tx = db.Begin()
		if tx.Error != nil {
			var zero T
			return zero, tx.Error
		}
	}

	res, err := fn(tx)

	if err != nil && !exists {
		tx.Rollback()
	}
	if err == nil && !exists {
		if cerr := tx.Commit().Error; cerr != nil {
			return res, cerr
		}
	}
	return res, err
}
