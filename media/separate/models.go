package separate

import (
	"context"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"

	"github.com/openkaraoke/studio/errors"
)

// EnsureModel makes sure the configured model's weights are present in
// the cache directory, fetching them from the configured repository when
// missing. With no cache dir or base URL configured the separator relies
// on demucs' own model download.
func (s *Separator) EnsureModel(ctx context.Context) error {
	if s.modelCacheDir == "" || s.modelBaseURL == "" {
		return nil
	}

	dest := filepath.Join(s.modelCacheDir, s.model+".th")
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	if err := os.MkdirAll(s.modelCacheDir, 0755); err != nil {
		return errors.Wrap(err, "create model cache dir")
	}

	src := s.modelBaseURL + "/" + s.model + ".th"
	s.log.Infow("Fetching separation model", "model", s.model, "source", src)

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dest,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return errors.Wrapf(errors.ErrSeparation, "failed to fetch model %s: %v", s.model, err)
	}

	s.log.Infow("Separation model cached", "model", s.model, "path", dest)
	return nil
}
