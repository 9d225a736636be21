package storage

import (
	"database/sql/driver"
	"fmt"

	"modernc.org/sqlite"

	"smartcollections/internal/textnorm"
)

// fold(x) applies the same Unicode case folding as the matcher, so value
// filters and person search agree with in-memory matching on non-ASCII
// letters. SQLite's lower() and LIKE only fold ASCII.
func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("fold", 1, foldFunc); err != nil {
		panic(fmt.Sprintf("register fold: %v", err))
	}
}

func foldFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return textnorm.Fold(v), nil
	case []byte:
		return textnorm.Fold(string(v)), nil
	default:
		return v, nil
	}
}
