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

type ToolService struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type CreateToolInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Category    string   `json:"category"`
	Users       string   `json:"users"`
	URL         string   `json:"url"`
	IsExternal  bool     `json:"isExternal"`
	Tags        []string `json:"tags"`
	Featured    bool     `json:"featured"`
	Author      string   `json:"author"`
	Version     string   `json:"version"`
}

// ToolUpdate carries the mutable fields only. Visits is deliberately
// absent: the counter moves through IncrementVisits and nothing else.
type ToolUpdate struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Category    *string   `json:"category"`
	Users       *string   `json:"users"`
	URL         *string   `json:"url"`
	IsExternal  *bool     `json:"isExternal"`
	Tags        *[]string `json:"tags"`
	Featured    *bool     `json:"featured"`
	Author      *string   `json:"author"`
	Version     *string   `json:"version"`
}

type ToolFilter struct {
	Status   string
	Category string
	Featured *bool
	Search   string
}

type ToolStats struct {
	Total       int64 `json:"total"`
	Online      int64 `json:"online"`
	Development int64 `json:"development"`
	Maintenance int64 `json:"maintenance"`
	Offline     int64 `json:"offline"`
	Internal    int64 `json:"internal"`
	External    int64 `json:"external"`
	TotalVisits int64 `json:"totalVisits"`
}

func validToolStatus(status string) bool {
	switch status {
	case models.ToolStatusOnline, models.ToolStatusDevelopment,
		models.ToolStatusMaintenance, models.ToolStatusOffline:
		return true
	}
	return false
}

func (s *ToolService) publish(ctx context.Context, event map[string]any) {
	key, _ := event["toolID"].(string)
	if err := s.Producer.PublishEvent(ctx, "tool_events", key, event); err != nil {
		logging.FromContext(ctx).Warn("kafka publish error", "error", err)
	}
}

func (s *ToolService) List(ctx context.Context) ([]models.Tool, error) {
	var tools []models.Tool
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&tools).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取工具列表失败", err)
	}
	return tools, nil
}

// Filtered applies every present predicate with AND semantics. Search is a
// case-insensitive substring match over name, description and tags.
func (s *ToolService) Filtered(ctx context.Context, f ToolFilter) ([]models.Tool, error) {
	q := s.DB.WithContext(ctx).Model(&models.Tool{})
	if f.Status != "" && f.Status != "all" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" && f.Category != "all" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Featured != nil {
		q = q.Where("featured = ?", *f.Featured)
	}

	var tools []models.Tool
	if err := q.Order("created_at ASC").Find(&tools).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取工具列表失败", err)
	}

	if f.Search == "" {
		return tools, nil
	}
	needle := strings.ToLower(f.Search)
	matched := tools[:0]
	for _, t := range tools {
		if toolMatches(&t, needle) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func toolMatches(t *models.Tool, needle string) bool {
	if strings.Contains(strings.ToLower(t.Name), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (s *ToolService) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	var tool models.Tool
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&tool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "工具不存在")
		}
		return nil, apperr.Wrap(apperr.Collaborator, "获取工具失败", err)
	}
	return &tool, nil
}

func (s *ToolService) Create(ctx context.Context, in CreateToolInput) (*models.Tool, error) {
	if in.Name == "" {
		return nil, apperr.New(apperr.Validation, "工具名称不能为空")
	}
	if in.Status == "" {
		in.Status = models.ToolStatusDevelopment
	}
	if !validToolStatus(in.Status) {
		return nil, apperr.New(apperr.Validation, "无效的工具状态")
	}

	tool := models.Tool{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Category:    in.Category,
		Users:       in.Users,
		URL:         in.URL,
		IsExternal:  in.IsExternal,
		Tags:        in.Tags,
		Featured:    in.Featured,
		Author:      in.Author,
		Version:     in.Version,
		Visits:      0,
	}
	if err := s.DB.WithContext(ctx).Create(&tool).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "创建工具失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":   "tool_created",
		"toolID": tool.ID,
		"name":   tool.Name,
	})
	return &tool, nil
}

func (s *ToolService) Update(ctx context.Context, id string, upd ToolUpdate) (*models.Tool, error) {
	tool, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil && !validToolStatus(*upd.Status) {
		return nil, apperr.New(apperr.Validation, "无效的工具状态")
	}

	if upd.Name != nil {
		tool.Name = *upd.Name
	}
	if upd.Description != nil {
		tool.Description = *upd.Description
	}
	if upd.Status != nil {
		tool.Status = *upd.Status
	}
	if upd.Category != nil {
		tool.Category = *upd.Category
	}
	if upd.Users != nil {
		tool.Users = *upd.Users
	}
	if upd.URL != nil {
		tool.URL = *upd.URL
	}
	if upd.IsExternal != nil {
		tool.IsExternal = *upd.IsExternal
	}
	if upd.Tags != nil {
		tool.Tags = *upd.Tags
	}
	if upd.Featured != nil {
		tool.Featured = *upd.Featured
	}
	if upd.Author != nil {
		tool.Author = *upd.Author
	}
	if upd.Version != nil {
		tool.Version = *upd.Version
	}
	tool.UpdatedAt = time.Now()

	if err := s.DB.WithContext(ctx).Save(tool).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "更新工具失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":   "tool_updated",
		"toolID": tool.ID,
		"name":   tool.Name,
	})
	return tool, nil
}

func (s *ToolService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.Tool{}, "id = ?", id).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "删除工具失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":   "tool_deleted",
		"toolID": id,
	})
	return nil
}

func (s *ToolService) ToggleFeatured(ctx context.Context, id string) (*models.Tool, error) {
	tool, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := !tool.Featured
	return s.Update(ctx, id, ToolUpdate{Featured: &next})
}

func (s *ToolService) BulkUpdateStatus(ctx context.Context, ids []string, status string) error {
	if !validToolStatus(status) {
		return apperr.New(apperr.Validation, "无效的工具状态")
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.Tool{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": status, "updated_at": time.Now()}).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "批量更新状态失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":   "tools_bulk_status",
		"toolID": strings.Join(ids, ","),
		"status": status,
	})
	return nil
}

// IncrementVisits is the only write path for the visits counter. The
// increment happens in SQL so concurrent visitors cannot lose updates.
func (s *ToolService) IncrementVisits(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Tool{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"visits":     gorm.Expr("visits + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return apperr.Wrap(apperr.Collaborator, "更新访问量失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "工具不存在")
	}
	return nil
}

// RecordVisit counts a public navigation. Only online tools with a real
// URL accumulate visits; everything else is ignored without error.
func (s *ToolService) RecordVisit(ctx context.Context, id string) (bool, error) {
	tool, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if tool.Status != models.ToolStatusOnline || tool.URL == "" || tool.URL == "#" {
		return false, nil
	}
	if err := s.IncrementVisits(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ToolService) Stats(ctx context.Context) (*ToolStats, error) {
	tools, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ToolStats{Total: int64(len(tools))}
	for _, t := range tools {
		switch t.Status {
		case models.ToolStatusOnline:
			stats.Online++
		case models.ToolStatusDevelopment:
			stats.Development++
		case models.ToolStatusMaintenance:
			stats.Maintenance++
		case models.ToolStatusOffline:
			stats.Offline++
		}
		if t.IsExternal {
			stats.External++
		} else {
			stats.Internal++
		}
		stats.TotalVisits += t.Visits
	}
	return stats, nil
}

func (s *ToolService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := s.DB.WithContext(ctx).Model(&models.Tool{}).
		Where("category <> ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取分类列表失败", err)
	}
	return categories, nil
}
