package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/pkg/token"
)

type fakeUserRepo struct {
	byEmail map[string]*model.User
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(user *model.User) error {
	user.ID = f.nextID
	f.nextID++
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) FindByID(userID uint) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newUserServiceFixture(allowedDomain string) (*fakeUserRepo, UserService) {
	repo := newFakeUserRepo()
	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	return repo, NewUserService(repo, jwtManager, allowedDomain)
}

func TestRegisterDomainGate(t *testing.T) {
	t.Run("白名单域名之外的邮箱被拒绝", func(t *testing.T) {
		_, svc := newUserServiceFixture("example.com")
		_, err := svc.Register(RegisterRequest{
			Username: "eve", Email: "eve@evil.org", Password: "secret1",
		})
		assert.True(t, errors.Is(err, apperr.ErrForbidden))
	})

	t.Run("域名限制为空时不做限制", func(t *testing.T) {
		_, svc := newUserServiceFixture("")
		user, err := svc.Register(RegisterRequest{
			Username: "eve", Email: "eve@anywhere.org", Password: "secret1",
		})
		require.NoError(t, err)
		assert.Equal(t, "eve@anywhere.org", user.Email)
	})

	t.Run("邮箱归一化为小写后参与校验", func(t *testing.T) {
		repo, svc := newUserServiceFixture("example.com")
		user, err := svc.Register(RegisterRequest{
			Username: "alice", Email: "Alice@Example.com", Password: "secret1",
		})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Contains(t, repo.byEmail, "alice@example.com")
	})
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	_, svc := newUserServiceFixture("")
	_, err := svc.Register(RegisterRequest{Username: "a", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(RegisterRequest{Username: "b", Email: "a@x.com", Password: "secret1"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRegisterHashesPassword(t *testing.T) {
	repo, svc := newUserServiceFixture("")
	_, err := svc.Register(RegisterRequest{Username: "a", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", repo.byEmail["a@x.com"].Password)
}

func TestLogin(t *testing.T) {
	_, svc := newUserServiceFixture("")
	_, err := svc.Register(RegisterRequest{Username: "a", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	t.Run("正确凭据返回令牌对", func(t *testing.T) {
		resp, err := svc.Login("a@x.com", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, "a@x.com", resp.User.Email)
	})

	t.Run("密码错误与用户不存在返回同一个错误", func(t *testing.T) {
		_, errWrongPass := svc.Login("a@x.com", "wrong")
		_, errNoUser := svc.Login("nobody@x.com", "secret1")
		assert.True(t, errors.Is(errWrongPass, apperr.ErrValidation))
		assert.True(t, errors.Is(errNoUser, apperr.ErrValidation))
		assert.Equal(t, errWrongPass.Error(), errNoUser.Error())
	})
}

func TestRefreshToken(t *testing.T) {
	_, svc := newUserServiceFixture("")
	_, err := svc.Register(RegisterRequest{Username: "a", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	resp, err := svc.Login("a@x.com", "secret1")
	require.NoError(t, err)

	accessToken, err := svc.RefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)

	_, err = svc.RefreshToken("garbage")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
