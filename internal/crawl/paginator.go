package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"rankledger/internal/config"
	"rankledger/internal/models"
	"rankledger/internal/sources"
	"rankledger/internal/util"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultPageDelay = time.Second
	defaultAttempts  = 5
)

type Options struct {
	PageSize   int
	StartPage  int
	MaxPages   int // 0 = unbounded
	MaxRecords int // 0 = unbounded

	Attempts       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	PageDelay  time.Duration
	PageJitter time.Duration

	Logger *slog.Logger
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		PageSize:       cfg.PageSize,
		StartPage:      cfg.StartPage,
		MaxPages:       cfg.MaxPages,
		MaxRecords:     cfg.MaxRecords,
		Attempts:       cfg.FetchAttempts,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
		PageDelay:      cfg.PageDelay,
		PageJitter:     cfg.PageJitter,
	}
}

// Outcome summarises one pagination pass.
type Outcome struct {
	Pages   int
	Records int
	// Partial is set when a page exhausted its transient retry budget; pages handed to
	// the callback before that remain valid.
	Partial bool
	Fatal   bool
	Err     error
}

type Paginator struct {
	opts    Options
	limiter *rate.Limiter
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Paginator {
	if opts.PageSize <= 0 {
		opts.PageSize = 30
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = 2 * time.Second
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial * 10
	}
	if opts.PageDelay <= 0 {
		opts.PageDelay = defaultPageDelay
	}
	if opts.PageJitter < 0 {
		opts.PageJitter = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Paginator{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.PageDelay), 1),
		log:     opts.Logger,
		sleep:   sleepCtx,
	}
}

func (p *Paginator) Options() Options { return p.opts }

// Paginate fetches pages from src in order and hands each one to fn before fetching the
// next. It stops on a short page, when the source reports no more pages, or when a cap
// is reached. An error from fn stops pagination and is reported as fatal.
func (p *Paginator) Paginate(ctx context.Context, src sources.Source, fn func(models.Page) error) Outcome {
	var out Outcome
	for idx := p.opts.StartPage; ; idx++ {
		if p.opts.MaxPages > 0 && out.Pages >= p.opts.MaxPages {
			p.log.Info("page cap reached", "pages", out.Pages)
			return out
		}
		if err := p.pace(ctx, out.Pages > 0); err != nil {
			return p.fail(out, err)
		}

		page, err := p.fetch(ctx, src, idx)
		if err != nil {
			if ctx.Err() != nil {
				return p.fail(out, fmt.Errorf("page %d: %w", idx, ctx.Err()))
			}
			if util.IsTransient(err) {
				p.log.Warn("retry budget exhausted", "page", idx, "attempts", p.opts.Attempts, "err", err)
				out.Partial = true
				out.Err = fmt.Errorf("page %d: %w", idx, err)
				return out
			}
			return p.fail(out, fmt.Errorf("page %d: %w", idx, err))
		}

		out.Pages++
		truncated := false
		if p.opts.MaxRecords > 0 && out.Records+len(page.Records) > p.opts.MaxRecords {
			page.Records = page.Records[:p.opts.MaxRecords-out.Records]
			truncated = true
		}
		out.Records += len(page.Records)

		if err := fn(page); err != nil {
			return p.fail(out, err)
		}

		switch {
		case truncated || (p.opts.MaxRecords > 0 && out.Records >= p.opts.MaxRecords):
			p.log.Info("record cap reached", "records", out.Records)
			return out
		case page.TotalPages > 0 && idx+1 >= page.TotalPages:
			return out
		case page.ShapeErr != nil:
			// a malformed page says nothing about its length
			if p.opts.MaxPages > 0 {
				continue
			}
			return out
		case !page.HasMore, len(page.Records) < p.opts.PageSize:
			return out
		}
	}
}

func (p *Paginator) fetch(ctx context.Context, src sources.Source, idx int) (models.Page, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.BackoffInitial
	b.MaxInterval = p.opts.BackoffMax
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.Attempts-1)), ctx)

	attempt := 0
	op := func() (models.Page, error) {
		attempt++
		page, err := src.Fetch(ctx, idx, p.opts.PageSize)
		if err == nil {
			return page, nil
		}
		err = sources.Classify(err)
		if util.IsFatal(err) || ctx.Err() != nil {
			return page, backoff.Permanent(err)
		}
		return page, err
	}
	notify := func(err error, wait time.Duration) {
		p.log.Warn("transient fetch fault", "page", idx, "attempt", attempt, "wait", wait, "err", err)
	}
	return backoff.RetryNotifyWithData(op, policy, notify)
}

func (p *Paginator) pace(ctx context.Context, jitter bool) error {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if !jitter || p.opts.PageJitter <= 0 {
		return nil
	}
	return p.sleep(ctx, time.Duration(rand.Int63n(int64(p.opts.PageJitter))))
}

func (p *Paginator) fail(out Outcome, err error) Outcome {
	out.Fatal = true
	out.Err = err
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.log.Warn("pagination cancelled", "pages", out.Pages, "err", err)
	} else {
		p.log.Error("pagination stopped", "pages", out.Pages, "err", err)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
