package state

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrBadName        = errors.New("invalid player name")
	ErrBadCredentials = errors.New("name is taken")
)

const MAX_NAME_LENGTH = 15

type Entity struct {
	ID uint `gorm:"primaryKey"`
}

type User struct {
	Entity

	Name string `gorm:"unique;not null;size:15"`
	// sha256 of the token the player first joined with
	TokenHash string `gorm:"size:64"`
	Created   time.Time
	LastSeen  time.Time
	Joins     uint
}

func InitDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, err
	}

	return db, nil
}

// Accounts remembers which token each player name belongs to. The first
// player to use a name claims it.
type Accounts struct {
	db *gorm.DB
}

func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{db: db}
}

func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MAX_NAME_LENGTH {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return name, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (a *Accounts) Authenticate(ctx context.Context, name, token string) (*User, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}

	db := a.db.WithContext(ctx)
	hash := hashToken(token)
	now := time.Now()

	var user User
	err = db.Where(&User{Name: name}).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			Name:      name,
			TokenHash: hash,
			Created:   now,
			LastSeen:  now,
			Joins:     1,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("could not create user %s: %w", name, err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(user.TokenHash), []byte(hash)) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrBadCredentials, name)
	}

	user.LastSeen = now
	user.Joins++
	if err := db.Save(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (a *Accounts) Get(ctx context.Context, name string) (*User, error) {
	var user User
	err := a.db.WithContext(ctx).Where(&User{Name: name}).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
