package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"branchchat/model"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAnonymous       = errors.New("user is not anonymous")
)

// guestPlanSpan keeps the guest subscription open indefinitely.
const guestPlanSpan = 100 * 365 * 24 * time.Hour

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	UserExists(ctx context.Context, username string, email string) bool
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByUID(ctx context.Context, uid string) (*model.User, error)
	UpgradeUser(ctx context.Context, uid string, username string, email string, passwordHash string) error
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
}

type UserService struct {
	store       UserStore
	tokens      *TokenService
	guestPlanID string
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewUserService(store UserStore, tokens *TokenService, guestPlanID string, logger logrus.FieldLogger) *UserService {
	return &UserService{store: store, tokens: tokens, guestPlanID: guestPlanID, logger: logger, now: time.Now}
}

type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Guest creates an anonymous identity on the guest plan and returns its token.
func (service *UserService) Guest(ctx context.Context) (*model.User, string, error) {
	user := &model.User{IsAnonymous: true}
	if err := service.store.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}
	if err := service.subscribeGuest(ctx, user.UID); err != nil {
		return nil, "", err
	}
	token, err := service.tokens.CreateToken(user.UID)
	if err != nil {
		return nil, "", err
	}
	service.logger.Infof("guest user %s created", user.UID)
	return user, token.AccessToken, nil
}

func (service *UserService) Register(ctx context.Context, input Credentials) (*model.User, error) {
	// 唯一性检查
	if service.store.UserExists(ctx, input.Username, input.Email) {
		return nil, ErrUserExists
	}

	// 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username: &input.Username,
		Password: string(hashedPassword),
	}
	if input.Email != "" {
		user.Email = &input.Email
	}
	if err := service.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := service.subscribeGuest(ctx, user.UID); err != nil {
		return nil, err
	}
	return user, nil
}

func (service *UserService) Login(ctx context.Context, input Credentials) (string, error) {
	// 验证用户名和密码
	registeredUser, err := service.store.GetUserByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(registeredUser.Password), []byte(input.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// 生成会话令牌
	token, err := service.tokens.CreateToken(registeredUser.UID)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Upgrade turns the anonymous user uid into a registered account. The uid is
// kept, so every message and subscription stays with it.
func (service *UserService) Upgrade(ctx context.Context, uid string, input Credentials) error {
	user, err := service.store.GetUserByUID(ctx, uid)
	if err != nil {
		return err
	}
	if !user.IsAnonymous {
		return ErrNotAnonymous
	}
	if service.store.UserExists(ctx, input.Username, input.Email) {
		return ErrUserExists
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return service.store.UpgradeUser(ctx, uid, input.Username, input.Email, string(hashedPassword))
}

func (service *UserService) subscribeGuest(ctx context.Context, uid string) error {
	now := service.now()
	return service.store.CreateSubscription(ctx, &model.Subscription{
		UserUID:    uid,
		PlanID:     service.guestPlanID,
		ActionName: model.SubscriptionCreated,
		StartedAt:  now,
		EndAt:      now.Add(guestPlanSpan),
		CreatedAt:  now,
	})
}
