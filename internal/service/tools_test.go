package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/models"
)

func newToolService(t *testing.T) *ToolService {
	return &ToolService{DB: initTestDB(t), Producer: &events.Producer{}}
}

func mustCreateTool(t *testing.T, svc *ToolService, in CreateToolInput) *models.Tool {
	t.Helper()
	tool, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	return tool
}

func TestCreateToolDefaults(t *testing.T) {
	svc := newToolService(t)

	tool := mustCreateTool(t, svc, CreateToolInput{Name: "X", URL: "https://x"})
	require.Equal(t, models.ToolStatusDevelopment, tool.Status)
	require.Equal(t, int64(0), tool.Visits)
	require.NotEmpty(t, tool.ID)

	_, err := svc.Create(context.Background(), CreateToolInput{})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestIncrementVisitsSequential(t *testing.T) {
	svc := newToolService(t)
	tool := mustCreateTool(t, svc, CreateToolInput{
		Name: "X", URL: "https://x", Status: models.ToolStatusOnline,
	})

	for i := 0; i < 3; i++ {
		counted, err := svc.RecordVisit(context.Background(), tool.ID)
		require.NoError(t, err)
		require.True(t, counted)
	}

	got, err := svc.GetByID(context.Background(), tool.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.Visits)
}

func TestIncrementVisitsConcurrent(t *testing.T) {
	svc := newToolService(t)
	tool := mustCreateTool(t, svc, CreateToolInput{
		Name: "X", URL: "https://x", Status: models.ToolStatusOnline,
	})

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := svc.IncrementVisits(context.Background(), tool.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every increment that committed is reflected in the counter; none
	// are lost to a read-modify-write race.
	got, err := svc.GetByID(context.Background(), tool.ID)
	require.NoError(t, err)
	require.Equal(t, succeeded, got.Visits)
	require.Greater(t, succeeded, int64(0))
}

func TestRecordVisitSkipsNonOnline(t *testing.T) {
	svc := newToolService(t)

	offline := mustCreateTool(t, svc, CreateToolInput{
		Name: "off", URL: "https://off", Status: models.ToolStatusOffline,
	})
	placeholder := mustCreateTool(t, svc, CreateToolInput{
		Name: "soon", URL: "#", Status: models.ToolStatusOnline,
	})

	for _, id := range []string{offline.ID, placeholder.ID} {
		counted, err := svc.RecordVisit(context.Background(), id)
		require.NoError(t, err)
		require.False(t, counted)

		got, err := svc.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, int64(0), got.Visits)
	}
}

func TestFilterComposition(t *testing.T) {
	svc := newToolService(t)
	mustCreateTool(t, svc, CreateToolInput{
		Name: "CodeHelper", Status: models.ToolStatusOnline, Category: "dev", URL: "https://a",
	})
	mustCreateTool(t, svc, CreateToolInput{
		Name: "CodePainter", Status: models.ToolStatusOffline, Category: "dev", URL: "https://b",
	})
	mustCreateTool(t, svc, CreateToolInput{
		Name: "Translator", Status: models.ToolStatusOnline, Category: "dev", URL: "https://c",
	})
	mustCreateTool(t, svc, CreateToolInput{
		Name: "Composer", Status: models.ToolStatusOnline, Category: "music", URL: "https://d",
	})

	tools, err := svc.Filtered(context.Background(), ToolFilter{
		Status:   models.ToolStatusOnline,
		Category: "dev",
		Search:   "co",
	})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "CodeHelper", tools[0].Name)
}

func TestFilterSearchMatchesTags(t *testing.T) {
	svc := newToolService(t)
	mustCreateTool(t, svc, CreateToolInput{
		Name: "Plain", URL: "https://a", Tags: []string{"Chatbot", "LLM"},
	})
	mustCreateTool(t, svc, CreateToolInput{
		Name: "Other", URL: "https://b", Tags: []string{"vision"},
	})

	tools, err := svc.Filtered(context.Background(), ToolFilter{Search: "chat"})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "Plain", tools[0].Name)
}

func TestToolUpdateAndFeatured(t *testing.T) {
	svc := newToolService(t)
	tool := mustCreateTool(t, svc, CreateToolInput{Name: "X", URL: "https://x"})

	name := "Renamed"
	updated, err := svc.Update(context.Background(), tool.ID, ToolUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, tool.ID, updated.ID)
	require.Equal(t, tool.Visits, updated.Visits)

	toggled, err := svc.ToggleFeatured(context.Background(), tool.ID)
	require.NoError(t, err)
	require.True(t, toggled.Featured)

	bad := "launched"
	_, err = svc.Update(context.Background(), tool.ID, ToolUpdate{Status: &bad})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestBulkUpdateStatus(t *testing.T) {
	svc := newToolService(t)
	a := mustCreateTool(t, svc, CreateToolInput{Name: "A", URL: "https://a"})
	b := mustCreateTool(t, svc, CreateToolInput{Name: "B", URL: "https://b"})

	err := svc.BulkUpdateStatus(context.Background(),
		[]string{a.ID, b.ID}, models.ToolStatusMaintenance)
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID} {
		got, err := svc.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, models.ToolStatusMaintenance, got.Status)
	}
}

func TestToolStats(t *testing.T) {
	svc := newToolService(t)
	online := mustCreateTool(t, svc, CreateToolInput{
		Name: "A", URL: "https://a", Status: models.ToolStatusOnline, IsExternal: true,
	})
	mustCreateTool(t, svc, CreateToolInput{Name: "B", URL: "https://b"})

	require.NoError(t, svc.IncrementVisits(context.Background(), online.ID))
	require.NoError(t, svc.IncrementVisits(context.Background(), online.ID))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Total)
	require.Equal(t, int64(1), stats.Online)
	require.Equal(t, int64(1), stats.Development)
	require.Equal(t, int64(1), stats.External)
	require.Equal(t, int64(1), stats.Internal)
	require.Equal(t, int64(2), stats.TotalVisits)
}
