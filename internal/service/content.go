package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/logging"
	"github.com/aipush/directory/internal/models"
)

type ContentService struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type CreateContentInput struct {
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Featured    bool     `json:"featured"`
}

type ContentUpdate struct {
	Title       *string   `json:"title"`
	Content     *string   `json:"content"`
	URL         *string   `json:"url"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	Featured    *bool     `json:"featured"`
}

type ContentFilter struct {
	Type     string
	Status   string
	Category string
	Search   string
}

type ContentStats struct {
	Total      int64 `json:"total"`
	Published  int64 `json:"published"`
	Draft      int64 `json:"draft"`
	Archived   int64 `json:"archived"`
	TotalViews int64 `json:"totalViews"`
}

func validContentType(t string) bool {
	switch t {
	case "article", "image", "video", "link":
		return true
	}
	return false
}

func (s *ContentService) publish(ctx context.Context, event map[string]any) {
	key, _ := event["contentID"].(string)
	if err := s.Producer.PublishEvent(ctx, "content_events", key, event); err != nil {
		logging.FromContext(ctx).Warn("kafka publish error", "error", err)
	}
}

func (s *ContentService) List(ctx context.Context) ([]models.ContentItem, error) {
	var items []models.ContentItem
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取内容列表失败", err)
	}
	return items, nil
}

func (s *ContentService) Filtered(ctx context.Context, f ContentFilter) ([]models.ContentItem, error) {
	q := s.DB.WithContext(ctx).Model(&models.ContentItem{})
	if f.Type != "" && f.Type != "all" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" && f.Status != "all" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" && f.Category != "all" {
		q = q.Where("category = ?", f.Category)
	}

	var items []models.ContentItem
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取内容列表失败", err)
	}

	if f.Search == "" {
		return items, nil
	}
	needle := strings.ToLower(f.Search)
	matched := items[:0]
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), needle) ||
			strings.Contains(strings.ToLower(item.Description), needle) {
			matched = append(matched, item)
			continue
		}
		for _, tag := range item.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched, nil
}

func (s *ContentService) GetByID(ctx context.Context, id string) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "内容不存在")
		}
		return nil, apperr.Wrap(apperr.Collaborator, "获取内容失败", err)
	}
	return &item, nil
}

func (s *ContentService) Create(ctx context.Context, in CreateContentInput) (*models.ContentItem, error) {
	if in.Title == "" || in.Author == "" {
		return nil, apperr.New(apperr.Validation, "标题和作者不能为空")
	}
	if !validContentType(in.Type) {
		return nil, apperr.New(apperr.Validation, "无效的内容类型")
	}

	item := models.ContentItem{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Type:        in.Type,
		Content:     in.Content,
		URL:         in.URL,
		Description: in.Description,
		Author:      in.Author,
		Status:      models.ContentStatusDraft,
		Category:    in.Category,
		Tags:        in.Tags,
		Featured:    in.Featured,
	}
	if err := s.DB.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "创建内容失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":      "content_created",
		"contentID": item.ID,
		"title":     item.Title,
	})
	return &item, nil
}

func (s *ContentService) Update(ctx context.Context, id string, upd ContentUpdate) (*models.ContentItem, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		item.Title = *upd.Title
	}
	if upd.Content != nil {
		item.Content = *upd.Content
	}
	if upd.URL != nil {
		item.URL = *upd.URL
	}
	if upd.Description != nil {
		item.Description = *upd.Description
	}
	if upd.Category != nil {
		item.Category = *upd.Category
	}
	if upd.Tags != nil {
		item.Tags = *upd.Tags
	}
	if upd.Featured != nil {
		item.Featured = *upd.Featured
	}
	item.UpdatedAt = time.Now()

	if err := s.DB.WithContext(ctx).Save(item).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "更新内容失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":      "content_updated",
		"contentID": item.ID,
		"title":     item.Title,
	})
	return item, nil
}

func (s *ContentService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.ContentItem{}, "id = ?", id).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "删除内容失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":      "content_deleted",
		"contentID": id,
	})
	return nil
}

// Publish moves an item to published and stamps publishedAt once; a
// re-publish keeps the original publication time.
func (s *ContentService) Publish(ctx context.Context, id string) (*models.ContentItem, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Status = models.ContentStatusPublished
	if item.PublishedAt == nil {
		now := time.Now()
		item.PublishedAt = &now
	}
	item.UpdatedAt = time.Now()

	if err := s.DB.WithContext(ctx).Save(item).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "发布内容失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":      "content_published",
		"contentID": item.ID,
	})
	return item, nil
}

func (s *ContentService) Archive(ctx context.Context, id string) (*models.ContentItem, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Status = models.ContentStatusArchived
	item.UpdatedAt = time.Now()

	if err := s.DB.WithContext(ctx).Save(item).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "归档内容失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":      "content_archived",
		"contentID": item.ID,
	})
	return item, nil
}

func (s *ContentService) IncrementViews(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.ContentItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"views":      gorm.Expr("views + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return apperr.Wrap(apperr.Collaborator, "更新阅读量失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "内容不存在")
	}
	return nil
}

func (s *ContentService) Stats(ctx context.Context) (*ContentStats, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ContentStats{Total: int64(len(items))}
	for _, item := range items {
		switch item.Status {
		case models.ContentStatusPublished:
			stats.Published++
		case models.ContentStatusDraft:
			stats.Draft++
		case models.ContentStatusArchived:
			stats.Archived++
		}
		stats.TotalViews += item.Views
	}
	return stats, nil
}
