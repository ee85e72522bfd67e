package classifications

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"os"

	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"go.yaml.in/yaml/v3"
)

//go:embed classifications.yaml
var defaultSeed []byte

type seedEntry struct {
	Code        int    `yaml:"code"`
	Description string `yaml:"description"`
}

// Seed inserts the nodes listed in r. Granularity is derived from each code.
// It returns the number of nodes inserted.
func (svc *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	var entries []seedEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to parse classification seed")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	seen := make(map[int]struct{}, len(entries))
	classifications := make([]*models.Classification, 0, len(entries))
	for i, e := range entries {
		if e.Code <= 0 {
			return 0, errors.Errorf("seed entry %d: code must be positive, got %d", i, e.Code)
		}
		if e.Description == "" {
			return 0, errors.Errorf("seed entry %d: code %d has no description", i, e.Code)
		}
		if _, ok := seen[e.Code]; ok {
			return 0, errors.Errorf("seed entry %d: code %d is listed twice", i, e.Code)
		}
		seen[e.Code] = struct{}{}
		classifications = append(classifications, &models.Classification{
			Code:        e.Code,
			Description: e.Description,
			Granularity: models.GranularityOf(e.Code),
		})
	}

	_, err := svc.db.
		NewInsert().
		Model(&classifications).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return len(classifications), nil
}

// SeedIfEmpty loads the scheme when no nodes exist yet. An empty path uses
// the bundled scheme.
func (svc *Service) SeedIfEmpty(ctx context.Context, path string) error {
	log := logger.FromContext(ctx)

	count, err := svc.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug("classifications already seeded", logger.Data{"count": count})
		return nil
	}

	var r io.Reader = bytes.NewReader(defaultSeed)
	source := "bundled"
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open classification seed %s", path)
		}
		defer f.Close()
		r = f
		source = path
	}

	inserted, err := svc.Seed(ctx, r)
	if err != nil {
		return err
	}

	log.Info("seeded classifications", logger.Data{"count": inserted, "source": source})
	return nil
}
