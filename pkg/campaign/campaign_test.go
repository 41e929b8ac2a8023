package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
)

type fakeStore struct {
	entities   map[string][]models.Entity
	byEntity   map[string][]models.Incident
	linked     [][3]string
	campaigns  [][]string
	createErr  error
}

func (f *fakeStore) GetIncidentEntities(_ context.Context, _, incidentID string) ([]models.Entity, error) {
	return f.entities[incidentID], nil
}

func (f *fakeStore) FindIncidentsByEntity(_ context.Context, _, entityType, entityValue string, _ int, exclude string) ([]models.Incident, error) {
	var out []models.Incident
	for _, inc := range f.byEntity[entityType+"="+entityValue] {
		if inc.ID != exclude {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (f *fakeStore) LinkIncidents(_ context.Context, _ string, a, b, linkType string, _ float64, _ []models.Entity, _ string) error {
	f.linked = append(f.linked, [3]string{a, b, linkType})
	return nil
}

func (f *fakeStore) CreateCampaign(_ context.Context, _ string, ids []string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.campaigns = append(f.campaigns, ids)
	return "campaign-1", nil
}

func TestCorrelateNoSharedEntitiesIsNoop(t *testing.T) {
	store := &fakeStore{
		entities: map[string][]models.Entity{"inc1": {{Type: "ip", Value: "10.0.0.1"}}},
		byEntity: map[string][]models.Incident{},
	}
	c := New(store, 0)
	err := c.Correlate(context.Background(), "t1", "inc1")
	require.NoError(t, err)
	assert.Empty(t, store.linked)
	assert.Empty(t, store.campaigns)
}

func TestCorrelateLinksBelowCampaignThreshold(t *testing.T) {
	store := &fakeStore{
		entities: map[string][]models.Entity{"inc1": {{Type: "ip", Value: "10.0.0.1"}}},
		byEntity: map[string][]models.Incident{
			"ip=10.0.0.1": {
				{ID: "inc2"}, {ID: "inc3"}, {ID: "inc4"},
			},
		},
	}
	c := New(store, 0)
	err := c.Correlate(context.Background(), "t1", "inc1")
	require.NoError(t, err)
	// related_count=3 >= 3 triggers is_campaign via count gate, and
	// also satisfies the stronger create_campaign gate only if score >= 0.8;
	// here diversity/frequency are both 1/3 so score = 0.4*0.6+0.3*0.333+0.3*0.333 < 0.8.
	assert.Len(t, store.linked, 3)
	assert.Empty(t, store.campaigns)
}

func TestCorrelateCreatesCampaignAboveBothThresholds(t *testing.T) {
	store := &fakeStore{
		entities: map[string][]models.Entity{
			"inc1": {
				{Type: "ip", Value: "10.0.0.1"},
				{Type: "user", Value: "alice"},
				{Type: "host", Value: "web-1"},
			},
		},
		byEntity: map[string][]models.Incident{
			"ip=10.0.0.1":   {{ID: "inc2"}, {ID: "inc3"}, {ID: "inc4"}},
			"user=alice":    {{ID: "inc2"}, {ID: "inc3"}, {ID: "inc4"}},
			"host=web-1":    {{ID: "inc2"}, {ID: "inc3"}, {ID: "inc4"}},
		},
	}
	c := New(store, 0)
	err := c.Correlate(context.Background(), "t1", "inc1")
	require.NoError(t, err)
	assert.Len(t, store.linked, 3)
	require.Len(t, store.campaigns, 1)
	assert.ElementsMatch(t, []string{"inc1", "inc2", "inc3", "inc4"}, store.campaigns[0])
}

func TestScoreClampsFactorsAndGates(t *testing.T) {
	score, isCampaign := Score(10, 10, 10)
	assert.Equal(t, 1.0, score)
	assert.True(t, isCampaign)

	score, isCampaign = Score(0, 0, 0)
	assert.Equal(t, 0.0, score)
	assert.False(t, isCampaign)

	_, isCampaign = Score(3, 0, 0)
	assert.True(t, isCampaign, "related_count >= 3 alone gates is_campaign")
}

func TestDominantLinkTypePicksMostFrequent(t *testing.T) {
	shared := []models.Entity{
		{Type: "ip", Value: "a"},
		{Type: "ip", Value: "b"},
		{Type: "user", Value: "c"},
	}
	assert.Equal(t, "ip", dominantLinkType(shared))
}
