package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hnjobs-engine/internal/extract"
)

func raw(id, title string) extract.RawPosting {
	return extract.RawPosting{
		ExternalID: id,
		Title:      title,
		URL:        "https://news.ycombinator.com/item?id=" + id,
	}
}

func TestClassifyMarksUnseenAsNew(t *testing.T) {
	raws := []extract.RawPosting{
		raw("1", "Acme Corp is hiring Backend Engineer (Remote)"),
		raw("2", "Widgets Inc seeks Platform Engineer (Berlin)"),
		raw("3", "Random Text With No Pattern"),
	}
	seen := map[string]bool{"2": true}

	got := Classify(raws, seen)
	require.Len(t, got, 3)

	assert.True(t, got[0].IsNew)
	assert.False(t, got[1].IsNew)
	assert.True(t, got[2].IsNew)
}

func TestClassifyPreservesInputOrder(t *testing.T) {
	ids := []string{"9", "3", "7", "1", "5"}
	var raws []extract.RawPosting
	for _, id := range ids {
		raws = append(raws, raw(id, "Posting "+id))
	}

	got := Classify(raws, nil)
	require.Len(t, got, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, got[i].ExternalID)
	}
}

func TestClassifyKeepsFirstDuplicateInBatch(t *testing.T) {
	raws := []extract.RawPosting{
		raw("1", "First Occurrence"),
		raw("2", "Other Posting"),
		raw("1", "Second Occurrence"),
	}

	got := Classify(raws, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ExternalID)
	assert.Equal(t, "First Occurrence", got[0].Title)
	assert.Equal(t, "2", got[1].ExternalID)
}

func TestClassifyAppliesTitleHeuristics(t *testing.T) {
	got := Classify([]extract.RawPosting{
		raw("1", "Acme Corp is hiring Backend Engineer (Remote)"),
		raw("2", "Random Text With No Pattern"),
	}, nil)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Company)
	assert.Equal(t, "Acme Corp", *got[0].Company)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, "Remote", *got[0].Location)
	assert.Equal(t, "Backend Engineer", got[0].Title)

	assert.Nil(t, got[1].Company)
	assert.Nil(t, got[1].Location)
	assert.Equal(t, "Random Text With No Pattern", got[1].Title)
}
