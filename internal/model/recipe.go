// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Recipe 定义了 recipes 表的 ORM 模型。
// 关系库是菜谱的事实来源；搜索索引只是它的派生投影。
// 不变式：每条菜谱恰有一个所有者；私有菜谱仅所有者可见，公开菜谱人人可见。
type Recipe struct {
	ID              uint      `gorm:"primaryKey;autoIncrement;column:recipe_id" json:"recipeId"`
	Title           string    `gorm:"type:varchar(200);not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	Ingredients     string    `gorm:"type:text;not null" json:"ingredients"`
	Steps           string    `gorm:"type:text;not null" json:"steps"`
	Cuisine         string    `gorm:"type:varchar(100)" json:"cuisine"`
	IsPublic        bool      `gorm:"not null;default:true;column:is_public" json:"isPublic"`
	CreatedByUserID uint      `gorm:"not null;index;column:created_by_user_id" json:"createdByUserId"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Recipe) TableName() string {
	return "recipes"
}

// RecipeListItem 是列表查询返回的行结构，带上了所有者邮箱的 JOIN 别名。
type RecipeListItem struct {
	ID                 uint      `gorm:"column:recipe_id" json:"recipeId"`
	Title              string    `gorm:"column:title" json:"title"`
	Description        string    `gorm:"column:description" json:"description"`
	Cuisine            string    `gorm:"column:cuisine" json:"cuisine"`
	IsPublic           bool      `gorm:"column:is_public" json:"isPublic"`
	CreatedByUserID    uint      `gorm:"column:created_by_user_id" json:"createdByUserId"`
	CreatedByUserEmail string    `gorm:"column:created_by_user_email" json:"createdByUserEmail"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// RecipeDetail 是单条查询的返回结构：完整行加上所有者邮箱。
type RecipeDetail struct {
	Recipe
	CreatedByUserEmail string `gorm:"column:created_by_user_email" json:"createdByUserEmail"`
}

// RecipeListResult 是分页列表查询的响应结构。
type RecipeListResult struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Items    []RecipeListItem `json:"items"`
}
