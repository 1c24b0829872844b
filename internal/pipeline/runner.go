package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rankledger/internal/crawl"
	"rankledger/internal/models"
	"rankledger/internal/normalize"
	"rankledger/internal/sources"
	"rankledger/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rankledger/pipeline")

const defaultDropTimeout = 30 * time.Second

// Progress is reported after every page and once before the merge.
type Progress struct {
	RunID   string `json:"run_id"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
	Fetched int    `json:"fetched"`
	Staged  int    `json:"staged"`
	Merging bool   `json:"merging,omitempty"`
}

type ProgressFunc func(ctx context.Context, p Progress)

type Deps struct {
	Store     storage.Store
	Source    sources.Source
	Paginator *crawl.Paginator
	Fields    normalize.FieldMap
	Tie       normalize.TiePolicy
	Logger    *slog.Logger
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
	// DropTimeout bounds staging teardown, which runs even after cancellation.
	DropTimeout time.Duration
	Progress    ProgressFunc
}

// Runner executes one capture: guard, fetch, normalize, stage, merge, drop.
type Runner struct {
	store       storage.Store
	src         sources.Source
	pager       *crawl.Paginator
	fields      normalize.FieldMap
	tie         normalize.TiePolicy
	log         *slog.Logger
	now         func() time.Time
	newID       func() string
	dropTimeout time.Duration
	progress    ProgressFunc
}

func NewRunner(d Deps) *Runner {
	r := &Runner{
		store:       d.Store,
		src:         d.Source,
		pager:       d.Paginator,
		fields:      d.Fields,
		tie:         d.Tie,
		log:         d.Logger,
		now:         d.Now,
		newID:       d.NewID,
		dropTimeout: d.DropTimeout,
		progress:    d.Progress,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.pager == nil {
		r.pager = crawl.New(crawl.Options{Logger: r.log})
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.dropTimeout <= 0 {
		r.dropTimeout = defaultDropTimeout
	}
	if r.progress == nil {
		r.progress = func(context.Context, Progress) {}
	}
	return r
}

// Run captures period under policy. A zero period means the current month. Run never
// returns an error; failures are reported through the result's status.
func (r *Runner) Run(ctx context.Context, period models.Period, policy models.Policy) (res models.RunResult) {
	started := r.now()
	if period.IsZero() {
		period = models.PeriodOf(started)
	} else {
		period = models.PeriodOf(period.Time())
	}
	if policy == "" {
		policy = models.PolicyHistory
	}
	res = models.RunResult{
		RunID:     r.newID(),
		Period:    period,
		Policy:    policy,
		StartedAt: started.UTC(),
		Defects:   []models.Defect{},
	}
	log := r.log.With("run_id", res.RunID, "period", period.String(), "policy", string(policy))

	ctx, span := tracer.Start(ctx, "Runner.Run")
	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("period", period.String()),
		attribute.String("policy", string(policy)),
	)
	defer func() {
		res.FinishedAt = r.now().UTC()
		span.SetAttributes(attribute.String("status", string(res.Status)), attribute.Int("committed", res.Committed))
		if res.Status == models.RunFailed {
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
		log.Info("run finished",
			"status", res.Status, "pages", res.Pages, "fetched", res.Fetched, "staged", res.Staged,
			"attempted", res.Attempted, "committed", res.Committed, "defects", len(res.Defects),
			"elapsed", res.FinishedAt.Sub(res.StartedAt))
	}()

	if !policy.Valid() {
		return fail(res, fmt.Errorf("unknown policy %q", policy))
	}

	captured, err := r.store.Captured(ctx, policy, period)
	if err != nil {
		return fail(res, err)
	}
	if captured {
		log.Info("period already captured; skipping")
		res.Status = models.RunSkipped
		return res
	}

	staging, err := r.store.OpenStaging(ctx, res.RunID, period)
	if err != nil {
		return fail(res, err)
	}
	defer r.drop(ctx, log, staging)

	norm := normalize.New(normalize.Options{Fields: r.fields, Tie: r.tie, Period: period})
	pages := 0
	out := r.pager.Paginate(ctx, r.src, func(p models.Page) error {
		pages++
		defer func() {
			r.progress(ctx, Progress{RunID: res.RunID, Page: p.Index, Pages: pages, Fetched: res.Fetched, Staged: res.Staged})
		}()
		entities, defects := norm.Page(p)
		for _, d := range defects {
			log.Warn(d.String())
		}
		res.Defects = append(res.Defects, defects...)
		res.Fetched += len(p.Records)
		if len(entities) == 0 {
			return nil
		}
		if err := staging.Append(ctx, entities); err != nil {
			return err
		}
		res.Staged += len(entities)
		log.Debug("page staged", "page", p.Index, "entities", len(entities))
		return nil
	})
	res.Pages = out.Pages
	if out.Fatal {
		return fail(res, out.Err)
	}

	r.progress(ctx, Progress{RunID: res.RunID, Pages: out.Pages, Fetched: res.Fetched, Staged: res.Staged, Merging: true})
	merged, err := staging.Merge(ctx, policy, r.now())
	res.Attempted = merged.Attempted
	res.Committed = merged.Committed
	if err != nil {
		res.Committed = 0
		return fail(res, err)
	}

	if out.Partial {
		res.Status = models.RunPartialFailure
		res.Error = out.Err.Error()
		log.Warn("run partially failed; earlier pages merged", "err", out.Err)
		return res
	}
	res.Status = models.RunCompleted
	return res
}

func (r *Runner) drop(ctx context.Context, log *slog.Logger, staging storage.Staging) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.dropTimeout)
	defer cancel()
	if err := staging.Drop(dctx); err != nil {
		log.Error("drop staging table", "table", staging.Name(), "err", err)
	}
}

func fail(res models.RunResult, err error) models.RunResult {
	res.Status = models.RunFailed
	res.Error = err.Error()
	return res
}
