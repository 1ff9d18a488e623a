package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/models"
)

// FavoriteService tracks which tools a user has bookmarked from the
// public site. Adding twice is a no-op, not an error.
type FavoriteService struct {
	DB *gorm.DB
}

func (s *FavoriteService) Add(ctx context.Context, userID, toolID string) error {
	var tool models.Tool
	if err := s.DB.WithContext(ctx).Where("id = ?", toolID).First(&tool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "工具不存在")
		}
		return apperr.Wrap(apperr.Collaborator, "收藏失败", err)
	}

	fav := models.FavoriteTool{UserID: userID, ToolID: toolID}
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND tool_id = ?", userID, toolID).
		FirstOrCreate(&fav).Error
	if err != nil {
		return apperr.Wrap(apperr.Collaborator, "收藏失败", err)
	}
	return nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID, toolID string) error {
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND tool_id = ?", userID, toolID).
		Delete(&models.FavoriteTool{}).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "取消收藏失败", err)
	}
	return nil
}

// List returns the favorited tools themselves, newest favorite first.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]models.Tool, error) {
	var favs []models.FavoriteTool
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favs).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取收藏列表失败", err)
	}
	if len(favs) == 0 {
		return []models.Tool{}, nil
	}

	ids := make([]string, len(favs))
	for i, f := range favs {
		ids[i] = f.ToolID
	}
	var tools []models.Tool
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&tools).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取收藏列表失败", err)
	}

	byID := make(map[string]models.Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}
	ordered := make([]models.Tool, 0, len(tools))
	for _, f := range favs {
		if t, ok := byID[f.ToolID]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}
