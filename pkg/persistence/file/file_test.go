package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlow(name string, dept models.Department) *models.Flow {
	return &models.Flow{
		Name:       name,
		Department: dept,
		Nodes:      []*models.Node{{ID: "start", Type: models.NodeTypeStart}},
		Edges:      []*models.Edge{},
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := file.NewPersistence("file://" + root)
	require.NoError(t, p.HealthCheck(context.Background()))

	missing := file.NewPersistence(filepath.Join(root, "missing"))
	require.ErrorIs(t, missing.HealthCheck(context.Background()), os.ErrNotExist)
	require.NoError(t, p.Close(context.Background()))
}

func TestFlowRepository_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).FlowRepository()

	flow := newFlow("Qualificação", models.DepartmentLocacao)
	require.NoError(t, repo.Save(ctx, flow))
	assert.NotEmpty(t, flow.ID)
	assert.False(t, flow.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, flow.Name, got.Name)
	assert.Equal(t, models.NodeTypeStart, got.Nodes[0].Type)

	require.NoError(t, repo.Delete(ctx, flow.ID))

	_, err = repo.GetByID(ctx, flow.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsFlowNotFound(err))

	err = repo.Delete(ctx, flow.ID)
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepository_ListFlows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).FlowRepository()

	empty, err := repo.ListFlows(ctx, persistence.ListFlowsOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Flows)

	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		require.NoError(t, repo.Save(ctx, newFlow(name, models.DepartmentVendas)))
		time.Sleep(2 * time.Millisecond)
	}

	require.NoError(t, repo.Save(ctx, newFlow("Delta", models.DepartmentLocacao)))

	result, err := repo.ListFlows(ctx, persistence.ListFlowsOptions{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.TotalCount)
	assert.True(t, result.HasNextPage)
	require.Len(t, result.Flows, 2)
	assert.Equal(t, "Alpha", result.Flows[0].Name)
	assert.Equal(t, "Bravo", result.Flows[1].Name)

	vendas := models.DepartmentVendas
	result, err = repo.ListFlows(ctx, persistence.ListFlowsOptions{Department: &vendas})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.Equal(t, "Bravo", result.Flows[0].Name, "newest first by default")

	result, err = repo.ListFlows(ctx, persistence.ListFlowsOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Flows)
	assert.False(t, result.HasNextPage)

	_, err = repo.ListFlows(ctx, persistence.ListFlowsOptions{SortBy: "owner"})
	assert.True(t, persistence.IsInvalidSortField(err))
}

func TestFlowRepository_Activate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).FlowRepository()

	first := newFlow("Primeiro", models.DepartmentVendas)
	second := newFlow("Segundo", models.DepartmentVendas)
	other := newFlow("Locação", models.DepartmentLocacao)

	for _, flow := range []*models.Flow{first, second, other} {
		require.NoError(t, repo.Save(ctx, flow))
	}

	_, err := repo.ActiveByDepartment(ctx, models.DepartmentVendas)
	assert.True(t, persistence.IsNoActiveFlow(err))

	_, err = repo.Activate(ctx, first.ID)
	require.NoError(t, err)
	_, err = repo.Activate(ctx, other.ID)
	require.NoError(t, err)

	activated, err := repo.Activate(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	active, err := repo.ActiveByDepartment(ctx, models.DepartmentVendas)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	reloaded, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	stillActive, err := repo.ActiveByDepartment(ctx, models.DepartmentLocacao)
	require.NoError(t, err)
	assert.Equal(t, other.ID, stillActive.ID)

	_, err = repo.Activate(ctx, "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestContactRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).ContactRepository()

	contact := &models.Contact{Name: "Ana", Phone: "5511987654321"}
	require.NoError(t, repo.Save(ctx, contact))
	assert.NotEmpty(t, contact.ID)
	assert.Equal(t, []string{}, contact.Tags)

	byPhone, err := repo.GetByPhone(ctx, "5511987654321")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, byPhone.ID)

	byID, err := repo.GetByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", byID.Name)

	_, err = repo.GetByPhone(ctx, "5521000000000")
	require.ErrorIs(t, err, persistence.ErrContactNotFound)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrContactNotFound)
}

func TestConversationRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).ConversationRepository()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	stale := &models.Conversation{Phone: "5511900000001", Department: models.DepartmentVendas, LastDirection: models.MessageDirectionOutbound, LastMessageAt: &old}
	answered := &models.Conversation{Phone: "5511900000002", Department: models.DepartmentVendas, LastDirection: models.MessageDirectionInbound, LastMessageAt: &old}
	fresh := &models.Conversation{Phone: "5511900000003", Department: models.DepartmentVendas, LastDirection: models.MessageDirectionOutbound, LastMessageAt: &recent}
	exhausted := &models.Conversation{Phone: "5511900000004", Department: models.DepartmentVendas, LastDirection: models.MessageDirectionOutbound, LastMessageAt: &old, ReengagementCount: 3}
	closed := &models.Conversation{Phone: "5511900000005", Department: models.DepartmentVendas, Status: models.ConversationStatusClosed, LastDirection: models.MessageDirectionOutbound, LastMessageAt: &old}

	for _, conversation := range []*models.Conversation{stale, answered, fresh, exhausted, closed} {
		require.NoError(t, repo.Save(ctx, conversation))
	}

	assert.Equal(t, models.ConversationStatusOpen, stale.Status)

	awaiting, err := repo.ListAwaitingReply(ctx, now.Add(-24*time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, stale.ID, awaiting[0].ID)

	open, err := repo.OpenByPhone(ctx, "5511900000001", models.DepartmentVendas)
	require.NoError(t, err)
	assert.Equal(t, stale.ID, open.ID)

	_, err = repo.OpenByPhone(ctx, "5511900000001", models.DepartmentLocacao)
	require.ErrorIs(t, err, persistence.ErrConversationNotFound)

	_, err = repo.OpenByPhone(ctx, "5511900000005", models.DepartmentVendas)
	require.ErrorIs(t, err, persistence.ErrConversationNotFound)
}

func TestMessageRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).MessageRepository()

	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	for i, body := range []string{"um", "dois", "três"} {
		require.NoError(t, repo.Save(ctx, &models.Message{
			ConversationID: "conv-1",
			Body:           body,
			Direction:      models.MessageDirectionInbound,
			Status:         models.MessageStatusReceived,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, repo.Save(ctx, &models.Message{ConversationID: "conv-2", Body: "outra"}))

	latest, err := repo.ListByConversation(ctx, "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "dois", latest[0].Body)
	assert.Equal(t, "três", latest[1].Body)

	updated, err := repo.UpdateStatus(ctx, latest[1].ID, models.MessageStatusRead)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, updated.Status)

	reloaded, err := repo.GetByID(ctx, latest[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, reloaded.Status)

	_, err = repo.UpdateStatus(ctx, "missing", models.MessageStatusRead)
	require.ErrorIs(t, err, persistence.ErrMessageNotFound)
}

func TestSettingsAndBehaviorConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	_, err := p.SettingRepository().Get(ctx, models.SettingWebhookToken)
	require.ErrorIs(t, err, persistence.ErrSettingNotFound)

	_, err = p.SettingRepository().Set(ctx, models.SettingWebhookToken, "secret")
	require.NoError(t, err)

	setting, err := p.SettingRepository().Get(ctx, models.SettingWebhookToken)
	require.NoError(t, err)
	assert.Equal(t, "secret", setting.Value)

	_, err = p.BehaviorConfigRepository().Get(ctx, models.DepartmentVendas)
	require.ErrorIs(t, err, persistence.ErrBehaviorConfigNotFound)

	require.NoError(t, p.BehaviorConfigRepository().Save(ctx, &models.BehaviorConfig{
		Department: models.DepartmentVendas,
		AgentName:  "Clara",
	}))

	cfg, err := p.BehaviorConfigRepository().Get(ctx, models.DepartmentVendas)
	require.NoError(t, err)
	assert.Equal(t, "Clara", cfg.AgentName)
}

func TestLeadLogRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).LeadLogRepository()

	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	for i, portal := range []string{"zap", "vivareal", "olx"} {
		require.NoError(t, repo.Save(ctx, &models.PortalLeadLog{
			Portal:    portal,
			Payload:   map[string]any{"nome": "Ana"},
			Status:    models.LeadLogStatusProcessed,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "olx", logs[0].Portal)
	assert.Equal(t, "vivareal", logs[1].Portal)

	got, err := repo.GetByID(ctx, logs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Payload["nome"])
}

func TestFlowSessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).FlowSessionRepository()

	_, err := repo.Get(ctx, "conv-1")
	require.ErrorIs(t, err, persistence.ErrFlowSessionNotFound)

	require.NoError(t, repo.Save(ctx, &models.FlowSession{
		ConversationID: "conv-1",
		FlowID:         "flow-1",
		CurrentNodeID:  "ask",
		Status:         models.SessionStatusWaitingInput,
		Variables:      map[string]any{"nome": "Ana"},
	}))

	session, err := repo.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "ask", session.CurrentNodeID)
	assert.Equal(t, "Ana", session.Variables["nome"])

	require.NoError(t, repo.Delete(ctx, "conv-1"))
	require.NoError(t, repo.Delete(ctx, "conv-1"))

	_, err = repo.Get(ctx, "conv-1")
	require.ErrorIs(t, err, persistence.ErrFlowSessionNotFound)
}
