package staging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftscope/prospect-etl/internal/fetcher"
	"github.com/draftscope/prospect-etl/internal/model"
)

// Input names one dump to stage: which source it belongs to, where it
// lives, and (optionally) its format when the extension is ambiguous.
type Input struct {
	Source model.Source
	Ref    string
	Format fetcher.Format // "" = detect from extension
}

// Loader pulls raw dumps and replaces staging generations.
type Loader struct {
	store *Store
	fetch fetcher.Fetcher
}

// NewLoader creates a loader over the given store and fetcher.
func NewLoader(store *Store, fetch fetcher.Fetcher) *Loader {
	return &Loader{store: store, fetch: fetch}
}

// Load stages every input under one fresh batch id and returns
// (batch id, total rows staged). Sources not named keep their previous
// generation.
func (l *Loader) Load(ctx context.Context, inputs []Input) (string, int64, error) {
	if len(inputs) == 0 {
		return "", 0, eris.New("staging: no inputs to load")
	}

	batchID := uuid.NewString()
	var total int64

	for _, in := range inputs {
		format := in.Format
		if format == "" {
			var err error
			format, err = fetcher.DetectFormat(in.Ref)
			if err != nil {
				return "", 0, err
			}
		}

		body, err := l.fetch.Open(ctx, in.Ref)
		if err != nil {
			return "", 0, eris.Wrapf(err, "staging: fetch %s dump", in.Source)
		}

		rows, err := fetcher.DecodeRows(format, body)
		closeErr := body.Close()
		if err != nil {
			return "", 0, eris.Wrapf(err, "staging: decode %s dump", in.Source)
		}
		if closeErr != nil {
			zap.L().Warn("staging: close dump reader", zap.Error(closeErr))
		}

		n, err := l.store.Replace(ctx, in.Source, batchID, rows)
		if err != nil {
			return "", 0, err
		}
		total += n
	}

	return batchID, total, nil
}
