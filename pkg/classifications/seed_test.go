package classifications

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pilcrowbooks/pilcrow/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_DerivesGranularity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testutils.NewDB(t))

	inserted, err := svc.Seed(ctx, strings.NewReader(`
- code: 500
  description: Science
- code: 510
  description: Mathematics
- code: 512
  description: Algebra
`))
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	all, err := svc.ListClassifications(ctx, ListClassificationsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.GranularityClass, all[0].Granularity)
	assert.Equal(t, models.GranularityDivision, all[1].Granularity)
	assert.Equal(t, models.GranularitySection, all[2].Granularity)
}

func TestSeed_RejectsBadEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"non-positive code", "- code: 0\n  description: General works\n", "code must be positive"},
		{"missing description", "- code: 100\n", "has no description"},
		{"duplicate code", "- code: 100\n  description: A\n- code: 100\n  description: B\n", "listed twice"},
		{"not a list", "code: 100\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(testutils.NewDB(t))
			_, err := svc.Seed(context.Background(), strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)

			count, err := svc.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestSeedIfEmpty_BundledSchemeLoadsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testutils.NewDB(t))

	require.NoError(t, svc.SeedIfEmpty(ctx, ""))
	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Positive(t, count)

	require.NoError(t, svc.SeedIfEmpty(ctx, ""))
	again, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, again)

	// Every division in the bundled scheme hangs off a class.
	divisions, err := svc.ListClassifications(ctx, ListClassificationsOptions{
		Granularities: []int{models.GranularityDivision},
	})
	require.NoError(t, err)
	for _, d := range divisions {
		parent, err := svc.ParentOf(ctx, d.Code)
		require.NoError(t, err)
		assert.NotNil(t, parent, "division %d", d.Code)
	}
}

func TestSeedIfEmpty_FromFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testutils.NewDB(t))

	path := filepath.Join(t.TempDir(), "scheme.yaml")
	err := os.WriteFile(path, []byte("- code: 800\n  description: Literature\n"), 0644)
	require.NoError(t, err)

	require.NoError(t, svc.SeedIfEmpty(ctx, path))
	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSeedIfEmpty_MissingFile(t *testing.T) {
	t.Parallel()
	svc := NewService(testutils.NewDB(t))

	err := svc.SeedIfEmpty(context.Background(), "/nonexistent/scheme.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open classification seed")
}
