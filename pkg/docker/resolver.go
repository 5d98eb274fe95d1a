package docker

import (
	"context"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

type Resolver struct {
	runtime Runtime
}

func NewResolver(runtime Runtime) *Resolver {
	return &Resolver{runtime: runtime}
}

// Resolve deduplicates the requested references preserving first-seen order,
// optionally attempts a best-effort pull, and classifies each reference by
// local availability. It fails only when no reference resolved at all.
func (r *Resolver) Resolve(ctx context.Context, refs []string, pullBeforeScan bool) (ImageSet, error) {
	set := ImageSet{Requested: lo.Uniq(refs)}

	for _, ref := range set.Requested {
		if pullBeforeScan {
			if err := r.runtime.PullImage(ctx, ref); err != nil {
				log.WithError(err).WithField("image", ref).Warn("Pull failed, checking local availability")
			}
		}

		if _, err := r.runtime.InspectImage(ctx, ref); err != nil {
			log.WithField("image", ref).Warn("Image is not available locally, skipping")
			set.Failed = append(set.Failed, ref)
			continue
		}
		set.Resolved = append(set.Resolved, ref)
	}

	if len(set.Resolved) == 0 {
		return set, xerrors.New("none of the requested images are available locally")
	}

	return set, nil
}
