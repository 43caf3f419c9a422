// Package models handles everything between the database and the API.
// All business logic is written in this package, so the user of this
// package does not need to take care of race conditions in updating
// the data.
package models

import (
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/quotes"
	"github.com/delta/finance-server/utils"
)

var logger *logrus.Entry
var getDB = utils.GetDB
var config *utils.Config
var priceOracle quotes.Oracle

// Init configures the models package
func Init(conf *utils.Config, oracle quotes.Oracle) {
	logger = utils.Logger.WithFields(logrus.Fields{
		"module": "models",
	})

	config = conf
	priceOracle = oracle
}

// Migrate creates or updates the users and transactions tables
func Migrate() error {
	var l = logger.WithFields(logrus.Fields{
		"method": "Migrate",
	})

	l.Infof("Attempting")

	db := getDB()

	if err := db.AutoMigrate(&User{}, &Transaction{}).Error; err != nil {
		l.Errorf("AutoMigrate failed: %+v", err)
		return err
	}

	if db.Dialect().GetName() == "mysql" {
		if err := migrateMysql(db); err != nil {
			l.Errorf("Failed: %+v", err)
			return err
		}
	}

	l.Infof("Done")

	return nil
}

// migrateMysql adds what AutoMigrate can't express portably: the ledger's
// foreign key, and a binary collation so usernames compare case-sensitively.
func migrateMysql(db *gorm.DB) error {
	if err := db.Exec("ALTER TABLE users MODIFY username VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL").Error; err != nil {
		return err
	}

	var fkCount int
	row := db.Raw("SELECT COUNT(*) FROM information_schema.TABLE_CONSTRAINTS "+
		"WHERE CONSTRAINT_SCHEMA = DATABASE() AND TABLE_NAME = 'transactions' AND CONSTRAINT_TYPE = 'FOREIGN KEY'").Row()
	if err := row.Scan(&fkCount); err != nil {
		return err
	}
	if fkCount > 0 {
		return nil
	}

	return db.Model(&Transaction{}).AddForeignKey("user_id", "users(id)", "RESTRICT", "RESTRICT").Error
}
