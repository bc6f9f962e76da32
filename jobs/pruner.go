package jobs

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/revisor"
)

// VersionPruner sweeps registered entities and applies each one's retention
// policy to drafts whose history has grown past it.
type VersionPruner struct {
	manager  *revisor.Manager
	schedule string
	timeout  time.Duration
}

func NewVersionPruner(manager *revisor.Manager, schedule string) *VersionPruner {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &VersionPruner{
		manager:  manager,
		schedule: schedule,
		timeout:  5 * time.Minute,
	}
}

func (p *VersionPruner) Schedule() string {
	return p.schedule
}

func (p *VersionPruner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pruned := mapset.NewSet[string]()
	for _, e := range p.manager.Entities() {
		p.sweep(ctx, e, pruned)
	}
	if pruned.Cardinality() > 0 {
		logrus.Infof("pruned version history for %d drafts", pruned.Cardinality())
	}
}

func (p *VersionPruner) sweep(ctx context.Context, e *revisor.Entity, pruned mapset.Set[string]) {
	drafts, err := p.manager.List(revisor.WithTableContext(ctx, revisor.ContextDraft), e)
	if err != nil {
		logrus.Errorf("listing %s drafts for pruning: %v", e.Base(), err)
		return
	}

	for _, draft := range drafts {
		key := fmt.Sprintf("%s:%v", e.Base(), draft.ID())
		if pruned.Contains(key) {
			continue
		}

		prunable, err := p.manager.PrunableVersions(ctx, e, draft.ID())
		if err != nil {
			logrus.Errorf("inspecting %s %v versions: %v", e.Base(), draft.ID(), err)
			continue
		}
		if len(prunable) == 0 {
			continue
		}

		if err := p.manager.PruneVersions(ctx, e, draft.ID()); err != nil {
			logrus.Errorf("pruning %s %v versions: %v", e.Base(), draft.ID(), err)
			continue
		}
		pruned.Add(key)
	}
}
