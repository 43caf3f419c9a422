package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// MinTopUp is the smallest amount of cash a user can add at once
const MinTopUp = 50

var (
	UnauthorizedError      = errors.New("invalid username and/or password")
	AlreadyRegisteredError = errors.New("Username already exists")
	PasswordPolicyError    = errors.New("Password must contain at least one letter and one number")
	PasswordMismatchError  = errors.New("Passwords don't match")
	UserNotFoundError      = errors.New("Invalid userId.")
)

var (
	passwordLetter = regexp.MustCompile(`[A-Za-z]`)
	passwordDigit  = regexp.MustCompile(`[0-9]`)
)

// bcryptCost is lowered by the tests
var bcryptCost = bcrypt.DefaultCost

// User models the User object.
type User struct {
	Id       uint32          `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Username string          `gorm:"column:username;type:varchar(255);unique;not null" json:"username"`
	Hash     string          `gorm:"column:hash;not null" json:"-"`
	Cash     decimal.Decimal `gorm:"column:cash;type:decimal(20,4);not null" json:"cash"`
}

// User.TableName() is for letting Gorm know the correct table name.
func (User) TableName() string {
	return "users"
}

//
// List of errors
//

// MissingFieldError is returned when a required form field is empty
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("Missing %s", e.Field)
}

// TopUpTooSmallError is returned when a top up is below MinTopUp
type TopUpTooSmallError struct{}

func (e TopUpTooSmallError) Error() string {
	return fmt.Sprintf("minimal top up is $%d", MinTopUp)
}

// InvalidTopUpError is returned when the top up amount is not a whole number
type InvalidTopUpError struct{}

func (e InvalidTopUpError) Error() string {
	return "top up must be a number"
}

//
// Private stuff
//

// userLocks is used to synchronize writes to a User's data.
// userLocks.m stores the lock for each user.
// Access to userLocks itself is synchronized via a Mutex.
var userLocks = struct {
	sync.Mutex
	m map[uint32]*sync.Mutex
}{m: make(map[uint32]*sync.Mutex)}

// getUserExclusively gets a user by his id.
// The method returns a channel and a pointer to a freshly loaded user object.
// The callee is guaranteed that no other writer touches the user until he
// closes the channel.
func getUserExclusively(id uint32) (chan struct{}, *User, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":   "getUserExclusively",
		"param_id": id,
	})

	l.Debugf("Attempting")

	userLocks.Lock()
	lock, ok := userLocks.m[id]
	if !ok {
		lock = &sync.Mutex{}
		userLocks.m[id] = lock
	}
	userLocks.Unlock()

	lock.Lock()
	l.Debugf("Locked user")

	u := &User{}
	if result := getDB().First(u, id); result.Error != nil {
		lock.Unlock()
		if result.RecordNotFound() {
			l.Errorf("Attempted to get non-existing user")
			return nil, nil, UserNotFoundError
		}
		l.Errorf("Error in loading user from database: '%s'", result.Error)
		return nil, nil, result.Error
	}

	ch := make(chan struct{})
	go func() {
		<-ch
		lock.Unlock()
		l.Debugf("Lock released")
	}()

	return ch, u, nil
}

// updateCash sets the cash of the user inside tx
func updateCash(tx *gorm.DB, user *User, cash decimal.Decimal) error {
	result := tx.Model(&User{}).Where("id = ?", user.Id).Update("cash", cash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("updating cash of user %d touched %d rows", user.Id, result.RowsAffected)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against when the username doesn't exist, so that a
// failed login takes the same time whichever field was wrong.
var dummyHash = struct {
	sync.Once
	hash string
}{}

func getDummyHash() string {
	dummyHash.Do(func() {
		dummyHash.hash, _ = hashPassword("dummy password 0")
	})
	return dummyHash.hash
}

// validateNewPassword checks presence, policy and confirmation, in that order
func validateNewPassword(password, confirmation string) error {
	if password == "" {
		return MissingFieldError{Field: "password"}
	}
	if !passwordLetter.MatchString(password) || !passwordDigit.MatchString(password) {
		return PasswordPolicyError
	}
	if confirmation != password {
		return PasswordMismatchError
	}
	return nil
}

func usernameTaken(db *gorm.DB, username string) (bool, error) {
	var count int
	if err := db.Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

//
// Methods
//

// RegisterUser creates a user with the configured starting cash.
//
// Possible outcomes:
//  1. The user is created and returned
//  2. MissingFieldError, AlreadyRegisteredError, PasswordPolicyError or PasswordMismatchError
//  3. Other error is returned (e.g. if the database is unreachable)
func RegisterUser(username, password, confirmation string) (*User, error) {
	username = strings.TrimSpace(username)

	var l = logger.WithFields(logrus.Fields{
		"method":         "RegisterUser",
		"param_username": username,
	})

	l.Infof("Attempting to register user")

	if username == "" {
		return nil, MissingFieldError{Field: "username"}
	}

	db := getDB()

	taken, err := usernameTaken(db, username)
	if err != nil {
		l.Errorf("Failed checking username: %+v", err)
		return nil, err
	}
	if taken {
		l.Debugf("Username already exists")
		return nil, AlreadyRegisteredError
	}

	if err := validateNewPassword(password, confirmation); err != nil {
		l.Debugf("Rejected password: %s", err)
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		l.Errorf("Failed hashing password: %+v", err)
		return nil, err
	}

	u := &User{
		Username: username,
		Hash:     hash,
		Cash:     config.StartingCash.Round(moneyScale),
	}

	if err := db.Create(u).Error; err != nil {
		// lost a race against a concurrent registration of the same name
		if taken, _ := usernameTaken(db, username); taken {
			return nil, AlreadyRegisteredError
		}
		l.Errorf("Failed: %+v", err)
		return nil, err
	}

	l.Infof("Created user %d", u.Id)

	return u, nil
}

// Login returns the user if username exists and the password matches.
// Every credential failure is reported as UnauthorizedError.
func Login(username, password string) (*User, error) {
	username = strings.TrimSpace(username)

	var l = logger.WithFields(logrus.Fields{
		"method":         "Login",
		"param_username": username,
	})

	l.Infof("Attempting to login user")

	if username == "" {
		return nil, MissingFieldError{Field: "username"}
	}
	if password == "" {
		return nil, MissingFieldError{Field: "password"}
	}

	db := getDB()

	var users []*User
	if err := db.Where("username = ?", username).Limit(2).Find(&users).Error; err != nil {
		l.Errorf("Failed loading user: %+v", err)
		return nil, err
	}

	if len(users) != 1 {
		checkPasswordHash(password, getDummyHash())
		l.Debugf("Found %d users", len(users))
		return nil, UnauthorizedError
	}

	if !checkPasswordHash(password, users[0].Hash) {
		l.Debugf("Wrong password")
		return nil, UnauthorizedError
	}

	l.Infof("Logged in user %d", users[0].Id)

	return users[0], nil
}

// ChangePassword replaces the user's password. The new password follows the
// registration rules.
func ChangePassword(userId uint32, password, confirmation string) error {
	var l = logger.WithFields(logrus.Fields{
		"method":       "ChangePassword",
		"param_userId": userId,
	})

	l.Infof("ChangePassword requested")

	if err := validateNewPassword(password, confirmation); err != nil {
		l.Debugf("Rejected password: %s", err)
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		l.Errorf("Failed hashing password: %+v", err)
		return err
	}

	ch, user, err := getUserExclusively(userId)
	if err != nil {
		l.Errorf("Errored: %+v", err)
		return err
	}
	defer close(ch)

	if err := getDB().Model(user).Update("hash", hash).Error; err != nil {
		l.Errorf("Failed updating hash: %+v", err)
		return err
	}

	l.Infof("Changed password")

	return nil
}

// ParseTopUp parses a top up amount coming from a form
func ParseTopUp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, MissingFieldError{Field: "top up amount"}
	}
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, InvalidTopUpError{}
	}
	return amount, nil
}

// TopUp adds cash to the user's balance. amount must be at least MinTopUp.
func TopUp(userId uint32, amount int64) (*User, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":       "TopUp",
		"param_userId": userId,
		"param_amount": amount,
	})

	l.Infof("TopUp requested")

	if amount < MinTopUp {
		l.Debugf("Below minimum")
		return nil, TopUpTooSmallError{}
	}

	ch, user, err := getUserExclusively(userId)
	if err != nil {
		l.Errorf("Errored: %+v", err)
		return nil, err
	}
	defer close(ch)

	newCash := user.Cash.Add(decimal.NewFromInt(amount))
	if err := updateCash(getDB(), user, newCash); err != nil {
		l.Errorf("Failed updating cash: %+v", err)
		return nil, err
	}
	user.Cash = newCash

	l.Infof("Added %d. User now has %s", amount, user.Cash)

	return user, nil
}

// GetUserCopy gets a copy of user by his id.
func GetUserCopy(id uint32) (User, error) {
	return findUser(getDB(), id)
}

func findUser(db *gorm.DB, id uint32) (User, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":   "findUser",
		"param_id": id,
	})

	l.Debugf("Attempting")

	var u User
	if result := db.First(&u, id); result.Error != nil {
		if result.RecordNotFound() {
			l.Errorf("Attempted to get non-existing user")
			return User{}, UserNotFoundError
		}
		return User{}, result.Error
	}

	return u, nil
}
