package utils

import (
	"fmt"
	"sync"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

var dbConfig *Config

var sharedDb = struct {
	sync.Mutex
	db *gorm.DB
}{}

// DbOpen returns a database connection object by opening one based
// on the configuration
func DbOpen() (*gorm.DB, error) {
	switch dbConfig.DbDriver {
	case "sqlite3":
		db, err := gorm.Open("sqlite3", dbConfig.DbName)
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer, and every connection to ":memory:"
		// would otherwise see its own empty database.
		db.DB().SetMaxOpenConns(1)
		return db, nil
	case "mysql", "":
		connstr := fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			dbConfig.DbUser, dbConfig.DbPassword, dbConfig.DbHost, dbConfig.DbName)
		return gorm.Open("mysql", connstr)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbConfig.DbDriver)
	}
}

// GetDB returns the process wide database handle, opening it on first use.
// The handle is safe for concurrent use.
func GetDB() *gorm.DB {
	sharedDb.Lock()
	defer sharedDb.Unlock()

	if sharedDb.db != nil {
		return sharedDb.db
	}

	db, err := DbOpen()
	if err != nil {
		Logger.Fatalf("Failed opening database. Error: %+v", err)
	}
	sharedDb.db = db
	return db
}

// CloseDB closes the shared handle. The next GetDB call opens a fresh one.
func CloseDB() error {
	sharedDb.Lock()
	defer sharedDb.Unlock()

	if sharedDb.db == nil {
		return nil
	}
	err := sharedDb.db.Close()
	sharedDb.db = nil
	return err
}

func initDbHelper(config *Config) {
	dbConfig = config
}
