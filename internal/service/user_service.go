package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/repository"
	"recipe-book-go/pkg/hash"
	"recipe-book-go/pkg/log"
	"recipe-book-go/pkg/token"
)

// RegisterRequest 是用户注册的入参。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginResponse 是登录成功后的返回结果。
type LoginResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user"`
}

// UserService 接口定义了用户注册、登录和令牌相关的操作。
type UserService interface {
	Register(req RegisterRequest) (*model.User, error)
	Login(email, password string) (*LoginResponse, error)
	RefreshToken(refreshToken string) (string, error)
	GetProfile(userID uint) (*model.User, error)
}

type userService struct {
	userRepo           repository.UserRepository
	jwtManager         *token.JWTManager
	allowedEmailDomain string
}

// NewUserService 创建一个新的 UserService 实例。
// allowedEmailDomain 为空时不限制注册邮箱的域名。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, allowedEmailDomain string) UserService {
	return &userService{
		userRepo:           userRepo,
		jwtManager:         jwtManager,
		allowedEmailDomain: allowedEmailDomain,
	}
}

// Register 注册一个新用户。邮箱域名不在白名单内时拒绝，
// 身份验证通过但准入不通过，与“未登录”是不同的错误。
func (s *userService) Register(req RegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if s.allowedEmailDomain != "" && !strings.HasSuffix(email, "@"+s.allowedEmailDomain) {
		return nil, fmt.Errorf("%w: 邮箱域名不在允许范围内", apperr.ErrForbidden)
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, fmt.Errorf("%w: 邮箱已被注册", apperr.ErrValidation)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Username: req.Username,
		Email:    email,
		Password: hashed,
		Role:     "USER",
	}
	if err := s.userRepo.Create(user); err != nil {
		log.Errorf("[UserService] 创建用户失败: email=%s, error: %v", email, err)
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return user, nil
}

// Login 校验邮箱和密码，成功后签发访问令牌和刷新令牌。
// 用户不存在与密码错误返回同一个错误，不向外暴露区别。
func (s *userService) Login(email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 邮箱或密码错误", apperr.ErrValidation)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}

	if !hash.CheckPassword(password, user.Password) {
		return nil, fmt.Errorf("%w: 邮箱或密码错误", apperr.ErrValidation)
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("签发访问令牌失败: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("签发刷新令牌失败: %w", err)
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// RefreshToken 用合法的刷新令牌换取新的访问令牌。
func (s *userService) RefreshToken(refreshToken string) (string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: 刷新令牌无效", apperr.ErrValidation)
	}
	return s.jwtManager.GenerateToken(claims.UserID, claims.Email, claims.Role)
}

// GetProfile 返回当前用户的资料。
func (s *userService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFoundOrNotPermitted
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return user, nil
}
