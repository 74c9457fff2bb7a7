// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/query"
)

// RecipeRepository 接口定义了菜谱数据的持久化操作。
// List/FindVisibleByID 在查询里无条件注入可见性谓词；
// FindByID 不做可见性过滤，供写路径在持锁状态下复核所有权。
type RecipeRepository interface {
	List(q query.ListQuery, requesterID uint) (*model.RecipeListResult, error)
	FindByID(id uint) (*model.Recipe, error)
	FindVisibleByID(id uint, requesterID uint) (*model.RecipeDetail, error)
	Create(recipe *model.Recipe) error
	Update(recipe *model.Recipe) error
	Delete(id uint) error
	DBTime() (time.Time, error)
}

// recipeRepository 是 RecipeRepository 接口的 GORM 实现。
type recipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository 创建一个新的 RecipeRepository 实例。
func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

// visibilityPredicate 是每次读取都必须携带的可见性谓词：
// 公开菜谱人人可见，私有菜谱仅所有者可见。它与其他谓词按 AND 组合，
// 任何请求参数都不能关掉它。
const visibilityPredicate = "(r.is_public = ? OR (r.is_public = ? AND r.created_by_user_id = ?))"

// searchColumns 是子串搜索覆盖的文本列，每列绑定同一个 %term% 参数。
var searchColumns = []string{"r.title", "r.description", "r.ingredients", "r.steps", "r.cuisine"}

// listRow 是列表查询的扫描目标，total_count 窗口列只做内部记账，返回前剥离。
type listRow struct {
	TotalCount int64 `gorm:"column:total_count"`
	model.RecipeListItem
}

// List 执行分页列表查询。
// 总数通过 COUNT(*) OVER() 在同一趟查询中计算，不做第二次往返；
// 排序缺省时退回确定性兜底排序，保证平局情况下分页依然稳定。
func (r *recipeRepository) List(q query.ListQuery, requesterID uint) (*model.RecipeListResult, error) {
	// 排序与过滤的校验在任何存储访问之前完成
	sortExpr, err := query.SanitizeSortColumn(q.SortBy)
	if err != nil {
		return nil, err
	}
	sortDir, err := query.SanitizeSortDir(q.SortDir)
	if err != nil {
		return nil, err
	}
	orderClause := query.FallbackOrder
	if sortExpr != "" {
		orderClause = sortExpr + " " + sortDir
	}

	// 服务端钳制分页参数，不信任客户端传值
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	db := r.db.Table("recipes AS r").
		Select("COUNT(*) OVER() AS total_count, r.recipe_id, r.title, r.description, r.cuisine, r.is_public, r.created_by_user_id, u.email AS created_by_user_email, r.created_at, r.updated_at").
		Joins("LEFT JOIN users u ON r.created_by_user_id = u.user_id")

	// 白名单之外的过滤键在这里已经被静默丢弃
	for _, clause := range query.BuildFilterClauses(q.Filters) {
		db = db.Where(clause.Predicate, clause.Value)
	}

	db = db.Where(visibilityPredicate, true, false, requesterID)

	if q.Search != "" {
		term := "%" + query.EscapeLike(q.Search) + "%"
		or := ""
		args := make([]interface{}, 0, len(searchColumns))
		for i, col := range searchColumns {
			if i > 0 {
				or += " OR "
			}
			or += col + " LIKE ? ESCAPE '!'"
			args = append(args, term)
		}
		db = db.Where("("+or+")", args...)
	}

	var rows []listRow
	if err := db.Order(orderClause).Offset(offset).Limit(pageSize).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: 列表查询失败: %v", apperr.ErrStorage, err)
	}

	// 剥离 total_count 记账列
	items := make([]model.RecipeListItem, 0, len(rows))
	var total int64
	for _, row := range rows {
		total = row.TotalCount
		items = append(items, row.RecipeListItem)
	}

	return &model.RecipeListResult{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	}, nil
}

// FindByID 按主键查找菜谱，不做可见性过滤。
func (r *recipeRepository) FindByID(id uint) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.db.First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFoundOrNotPermitted
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &recipe, nil
}

// FindVisibleByID 按主键查找对请求者可见的菜谱。
// “不存在”与“存在但私有且非本人”返回同一个错误，不区分两种情况。
func (r *recipeRepository) FindVisibleByID(id uint, requesterID uint) (*model.RecipeDetail, error) {
	var detail model.RecipeDetail
	err := r.db.Table("recipes AS r").
		Select("r.*, u.email AS created_by_user_email").
		Joins("LEFT JOIN users u ON r.created_by_user_id = u.user_id").
		Where("r.recipe_id = ?", id).
		Where(visibilityPredicate, true, false, requesterID).
		Take(&detail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFoundOrNotPermitted
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return &detail, nil
}

// Create 在数据库中创建一条新的菜谱记录。
func (r *recipeRepository) Create(recipe *model.Recipe) error {
	if err := r.db.Create(recipe).Error; err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Update 保存一条已存在的菜谱记录。
func (r *recipeRepository) Update(recipe *model.Recipe) error {
	if err := r.db.Save(recipe).Error; err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Delete 按主键删除菜谱记录。
func (r *recipeRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Recipe{}, id).Error; err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return nil
}

// DBTime 返回数据库当前的 UTC 时间，用于连通性自检接口。
func (r *recipeRepository) DBTime() (time.Time, error) {
	var now time.Time
	if err := r.db.Raw("SELECT CURRENT_TIMESTAMP").Row().Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", apperr.ErrStorage, err)
	}
	return now, nil
}
