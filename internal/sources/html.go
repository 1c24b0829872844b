package sources

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
)

type HTMLOptions struct {
	Alias     string
	BaseURL   string
	Path      string
	UserAgent string
	Referer   string
	Timeout   time.Duration
	Selectors CardSelectors
	// FirstPage is the index a run starts from. A listing with no cards there means the
	// page layout changed, not that the ranking is empty.
	FirstPage int
}

// CardSelectors locate the fields of one ranking card in a rendered listing page.
type CardSelectors struct {
	Card     string
	Rank     string
	Score    string
	Name     string
	Location string
}

func DefaultCardSelectors() CardSelectors {
	return CardSelectors{
		Card:     ".new-ranking-cards.normal-row",
		Rank:     ".rank-no",
		Score:    ".rank-score",
		Name:     ".uni-link",
		Location: ".location",
	}
}

// HTMLSource scrapes rendered listing pages. Each card becomes a record keyed the same
// way as the JSON endpoint so one field map normalizes both.
type HTMLSource struct {
	opts HTMLOptions
	http *resty.Client
}

func NewHTMLSource(opts HTMLOptions) *HTMLSource {
	if opts.Selectors.Card == "" {
		opts.Selectors = DefaultCardSelectors()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "text/html")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Referer != "" {
		client.SetHeader("Referer", opts.Referer)
	}
	return &HTMLSource{opts: opts, http: client}
}

func (s *HTMLSource) Info() SourceInfo {
	return SourceInfo{Name: "html", Alias: s.opts.Alias, Endpoint: s.opts.BaseURL + s.opts.Path}
}

func (s *HTMLSource) Fetch(ctx context.Context, pageIndex, pageSize int) (models.Page, error) {
	ctx, span := tracer.Start(ctx, "HTMLSource.Fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("page", pageIndex))

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(pageIndex)).
		Get(s.opts.Path)
	if err != nil {
		span.RecordError(err)
		return models.Page{Index: pageIndex}, Classify(fmt.Errorf("fetch page %d: %w", pageIndex, err))
	}
	if res.IsError() {
		return models.Page{Index: pageIndex}, statusError(res.StatusCode(), res.Body())
	}
	return parseHTMLPage(res.Body(), s.opts.Selectors, pageIndex, pageSize, pageIndex == s.opts.FirstPage)
}

func parseHTMLPage(body []byte, sel CardSelectors, pageIndex, pageSize int, first bool) (models.Page, error) {
	page := models.Page{Index: pageIndex}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return page, util.Transient(fmt.Errorf("parse page %d: %w", pageIndex, err))
	}

	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		rec := models.MapRecord{}
		putText(rec, "rank_display", card.Find(sel.Rank))
		putText(rec, "overall_score", card.Find(sel.Score))
		putText(rec, "title", card.Find(sel.Name))
		putText(rec, "location", card.Find(sel.Location))
		if href, ok := card.Find(sel.Name).First().Attr("href"); ok {
			rec["path"] = href
		}
		page.Records = append(page.Records, rec)
	})

	if len(page.Records) == 0 && first {
		page.ShapeErr = fmt.Errorf("%w: no %q cards on first page", util.ErrPageShape, sel.Card)
		return page, nil
	}
	page.HasMore = len(page.Records) > 0 && len(page.Records) >= pageSize
	return page, nil
}

func putText(rec models.MapRecord, key string, s *goquery.Selection) {
	if s.Length() == 0 {
		return
	}
	rec[key] = strings.TrimSpace(s.First().Text())
}
