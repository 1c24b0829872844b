package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("rankledger/sources")

type JSONOptions struct {
	Alias     string
	BaseURL   string
	Path      string
	NID       string
	UserAgent string
	Referer   string
	Timeout   time.Duration
	// ListKey names the array of records inside the payload. Default "score_nodes".
	ListKey string
}

// JSONSource reads the paged rankings endpoint:
//
//	GET {path}?nid=..&page=N&items_per_page=M  ->  {"score_nodes": [...], "total_pages": K}
type JSONSource struct {
	opts JSONOptions
	http *resty.Client
}

func NewJSONSource(opts JSONOptions) *JSONSource {
	if opts.ListKey == "" {
		opts.ListKey = "score_nodes"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Referer != "" {
		client.SetHeader("Referer", opts.Referer)
	}
	return &JSONSource{opts: opts, http: client}
}

func (s *JSONSource) Info() SourceInfo {
	return SourceInfo{Name: "json", Alias: s.opts.Alias, Endpoint: s.opts.BaseURL + s.opts.Path}
}

func (s *JSONSource) Fetch(ctx context.Context, pageIndex, pageSize int) (models.Page, error) {
	ctx, span := tracer.Start(ctx, "JSONSource.Fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("page", pageIndex), attribute.Int("page_size", pageSize))

	params := map[string]string{
		"page":           strconv.Itoa(pageIndex),
		"items_per_page": strconv.Itoa(pageSize),
		"tab":            "indicators",
	}
	if s.opts.NID != "" {
		params["nid"] = s.opts.NID
	}
	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(s.opts.Path)
	if err != nil {
		span.RecordError(err)
		return models.Page{Index: pageIndex}, Classify(fmt.Errorf("fetch page %d: %w", pageIndex, err))
	}
	if res.IsError() {
		return models.Page{Index: pageIndex}, statusError(res.StatusCode(), res.Body())
	}
	return decodeJSONPage(res.Body(), s.opts.ListKey, pageIndex, pageSize)
}

func decodeJSONPage(body []byte, listKey string, pageIndex, pageSize int) (models.Page, error) {
	page := models.Page{Index: pageIndex}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return page, util.Transient(fmt.Errorf("decode page %d: %w", pageIndex, err))
	}

	page.TotalPages = intField(payload["total_pages"])

	raw, ok := payload[listKey]
	list, isList := raw.([]any)
	if !ok || !isList {
		page.ShapeErr = fmt.Errorf("%w: %q", util.ErrPageShape, listKey)
		return page, nil
	}

	page.Records = make([]models.RawRecord, 0, len(list))
	for _, item := range list {
		obj, isObj := item.(map[string]any)
		if !isObj {
			page.Records = append(page.Records, nil)
			continue
		}
		page.Records = append(page.Records, models.MapRecord(obj))
	}

	if page.TotalPages > 0 {
		page.HasMore = pageIndex+1 < page.TotalPages
	} else {
		page.HasMore = len(list) >= pageSize && len(list) > 0
	}
	return page, nil
}

func intField(v any) int {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return 0
			}
			return int(f)
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// IsShapeError reports whether err describes a payload missing its wrapper.
func IsShapeError(err error) bool {
	return errors.Is(err, util.ErrPageShape)
}
