package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/query"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 每个测试用独立命名的内存库，cache=shared 让 GORM 连接池共享同一份数据
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Recipe{}))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB) (alice, bob *model.User) {
	t.Helper()
	alice = &model.User{Username: "alice", Email: "alice@example.com", Password: "x", Role: "USER"}
	bob = &model.User{Username: "bob", Email: "bob@example.com", Password: "x", Role: "USER"}
	require.NoError(t, db.Create(alice).Error)
	require.NoError(t, db.Create(bob).Error)
	return alice, bob
}

func seedRecipe(t *testing.T, repo RecipeRepository, title, cuisine string, isPublic bool, ownerID uint) *model.Recipe {
	t.Helper()
	r := &model.Recipe{
		Title:           title,
		Description:     title + " description",
		Ingredients:     "ingredients of " + title,
		Steps:           "steps of " + title,
		Cuisine:         cuisine,
		IsPublic:        isPublic,
		CreatedByUserID: ownerID,
	}
	require.NoError(t, repo.Create(r))
	return r
}

func TestListVisibility(t *testing.T) {
	db := newTestDB(t)
	alice, bob := seedUsers(t, db)
	repo := NewRecipeRepository(db)

	seedRecipe(t, repo, "Apple Pie", "American", true, alice.ID)
	seedRecipe(t, repo, "Banana Bread", "American", false, alice.ID)
	seedRecipe(t, repo, "Carrot Soup", "French", true, bob.ID)

	t.Run("私有菜谱只有所有者可见", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, result.Total)

		result, err = repo.List(query.ListQuery{}, bob.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, result.Total)
		for _, item := range result.Items {
			assert.NotEqual(t, "Banana Bread", item.Title)
		}
	})

	t.Run("可见性谓词不受过滤参数影响", func(t *testing.T) {
		// bob 明确按 is_public=false 过滤，也拿不到别人的私有菜谱
		result, err := repo.List(query.ListQuery{
			Filters: map[string]interface{}{"is_public": false},
		}, bob.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, result.Total)
		assert.Empty(t, result.Items)
	})

	t.Run("列表行带所有者邮箱", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{
			Filters: map[string]interface{}{"title": "Carrot Soup"},
		}, alice.ID)
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "bob@example.com", result.Items[0].CreatedByUserEmail)
	})
}

func TestListFiltersAndSearch(t *testing.T) {
	db := newTestDB(t)
	alice, _ := seedUsers(t, db)
	repo := NewRecipeRepository(db)

	seedRecipe(t, repo, "Apple Pie", "American", true, alice.ID)
	seedRecipe(t, repo, "Banana Bread", "American", true, alice.ID)
	seedRecipe(t, repo, "Carrot Soup", "French", true, alice.ID)

	t.Run("等值过滤", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{
			Filters: map[string]interface{}{"cuisine": "American"},
		}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, result.Total)
	})

	t.Run("白名单之外的过滤键不影响结果", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{
			Filters: map[string]interface{}{"description": "nonexistent", "bogus": 1},
		}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, result.Total)
	})

	t.Run("子串搜索覆盖正文列", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{Search: "steps of Carrot"}, alice.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, result.Total)
		assert.Equal(t, "Carrot Soup", result.Items[0].Title)
	})

	t.Run("搜索词里的通配符按字面匹配", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{Search: "100%"}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, result.Total)

		// '%' 若未被转义，"C%p" 会意外匹配 Carrot Soup
		result, err = repo.List(query.ListQuery{Search: "C%p"}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, result.Total)
	})

	t.Run("无匹配行不是错误", func(t *testing.T) {
		result, err := repo.List(query.ListQuery{Search: "zzz"}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, result.Total)
		assert.Empty(t, result.Items)
	})

	t.Run("非法排序列在存储访问前被拒绝", func(t *testing.T) {
		_, err := repo.List(query.ListQuery{SortBy: "evil"}, alice.ID)
		assert.True(t, errors.Is(err, apperr.ErrInvalidSortColumn))
	})
}

func TestListPaginationStability(t *testing.T) {
	db := newTestDB(t)
	alice, _ := seedUsers(t, db)
	repo := NewRecipeRepository(db)

	// 标题全部相同，排序键完全并列，分页稳定性只能靠兜底排序保证
	for i := 0; i < 25; i++ {
		seedRecipe(t, repo, "Same Title", fmt.Sprintf("Cuisine %02d", i), true, alice.ID)
	}

	all, err := repo.List(query.ListQuery{SortBy: "title", PageSize: 100}, alice.ID)
	require.NoError(t, err)
	require.EqualValues(t, 25, all.Total)

	var paged []model.RecipeListItem
	for page := 1; page <= 3; page++ {
		result, err := repo.List(query.ListQuery{SortBy: "title", Page: page, PageSize: 10}, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 25, result.Total)
		paged = append(paged, result.Items...)
	}

	require.Len(t, paged, 25)
	seen := make(map[uint]bool)
	for _, item := range paged {
		assert.False(t, seen[item.ID], "菜谱 %d 在分页中重复出现", item.ID)
		seen[item.ID] = true
	}
	for i, item := range all.Items {
		assert.Equal(t, item.ID, paged[i].ID, "第 %d 行与未分页结果不一致", i)
	}
}

func TestListPageClamping(t *testing.T) {
	db := newTestDB(t)
	alice, _ := seedUsers(t, db)
	repo := NewRecipeRepository(db)
	seedRecipe(t, repo, "Apple Pie", "American", true, alice.ID)

	result, err := repo.List(query.ListQuery{Page: -3, PageSize: 0}, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 20, result.PageSize)

	result, err = repo.List(query.ListQuery{PageSize: 9999}, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, result.PageSize)
}

func TestFindVisibleByID(t *testing.T) {
	db := newTestDB(t)
	alice, bob := seedUsers(t, db)
	repo := NewRecipeRepository(db)

	public := seedRecipe(t, repo, "Apple Pie", "American", true, alice.ID)
	private := seedRecipe(t, repo, "Banana Bread", "American", false, alice.ID)

	t.Run("公开菜谱人人可见", func(t *testing.T) {
		detail, err := repo.FindVisibleByID(public.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "Apple Pie", detail.Title)
		assert.Equal(t, "alice@example.com", detail.CreatedByUserEmail)
	})

	t.Run("私有菜谱所有者可见", func(t *testing.T) {
		detail, err := repo.FindVisibleByID(private.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Banana Bread", detail.Title)
	})

	t.Run("他人私有与不存在返回同一个错误", func(t *testing.T) {
		_, errPrivate := repo.FindVisibleByID(private.ID, bob.ID)
		_, errMissing := repo.FindVisibleByID(99999, bob.ID)
		assert.True(t, errors.Is(errPrivate, apperr.ErrNotFoundOrNotPermitted))
		assert.True(t, errors.Is(errMissing, apperr.ErrNotFoundOrNotPermitted))
		assert.Equal(t, errPrivate.Error(), errMissing.Error())
	})
}

func TestCRUD(t *testing.T) {
	db := newTestDB(t)
	alice, _ := seedUsers(t, db)
	repo := NewRecipeRepository(db)

	r := seedRecipe(t, repo, "Apple Pie", "American", true, alice.ID)
	require.NotZero(t, r.ID)

	r.Title = "Apple Pie v2"
	require.NoError(t, repo.Update(r))

	got, err := repo.FindByID(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple Pie v2", got.Title)

	require.NoError(t, repo.Delete(r.ID))
	_, err = repo.FindByID(r.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFoundOrNotPermitted))
}
