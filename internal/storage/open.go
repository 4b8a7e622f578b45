package storage

import "fmt"

// Open returns the store selected by driver ("file" or "sqlite") and a
// function releasing it.
func Open(driver, dataDir, sqlitePath string) (Store, func() error, error) {
	switch driver {
	case "", "file":
		s, err := NewFileStore(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case "sqlite":
		s, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}
