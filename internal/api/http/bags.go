package http

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
	"github.com/bagbrowser/bagbrowser/internal/logctx"
	"github.com/bagbrowser/bagbrowser/internal/query"
	"github.com/bagbrowser/bagbrowser/pkg/humanfmt"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

// Catalog is the read side of the bag cache used by the API.
type Catalog interface {
	Spaces(ctx context.Context) (map[string]int64, error)
	Query(ctx context.Context, qc query.QueryContext) (*query.Result, error)
	Bag(ctx context.Context, id types.BagIdentifier) (*types.Bag, error)
}

// Manifests reads raw bag manifests from the manifest store.
type Manifests interface {
	GetBag(ctx context.Context, id types.BagIdentifier) (*types.Bag, error)
	Exists(ctx context.Context, id types.BagIdentifier) (bool, error)
}

const metadataSuffix = "/metadata"

// Handler serves the browse endpoints.
type Handler struct {
	catalog   Catalog
	manifests Manifests
	pageSize  int
	now       func() time.Time
}

// NewHandler creates a Handler. A pageSize of zero means
// query.DefaultPageSize. manifests may be nil, in which case the metadata
// endpoint answers 503.
func NewHandler(catalog Catalog, manifests Manifests, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	return &Handler{
		catalog:   catalog,
		manifests: manifests,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// SpaceSummary is one entry of GET /spaces.
type SpaceSummary struct {
	Space          string `json:"space"`
	BagCount       int64  `json:"bag_count"`
	BagCountPretty string `json:"bag_count_pretty"`
}

// SpacesResponse is the body of GET /spaces.
type SpacesResponse struct {
	Spaces []SpaceSummary `json:"spaces"`
}

// BagView is a bag as rendered by the API.
type BagView struct {
	ID                 string           `json:"id"`
	Space              string           `json:"space"`
	ExternalIdentifier string           `json:"external_identifier"`
	Version            int              `json:"version"`
	CreatedDate        string           `json:"created_date"`
	CreatedDatePretty  string           `json:"created_date_pretty"`
	FileCount          int64            `json:"file_count"`
	FileCountPretty    string           `json:"file_count_pretty"`
	TotalFileSize      int64            `json:"total_file_size"`
	FileSizePretty     string           `json:"file_size_pretty"`
	FileExtTally       map[string]int64 `json:"file_ext_tally,omitempty"`
}

// Totals carries the raw aggregate numbers of a bag listing.
type Totals struct {
	Bags      int64 `json:"bags"`
	FileCount int64 `json:"file_count"`
	FileSize  int64 `json:"file_size"`
}

// BagsResponse is the body of GET /spaces/{space}/bags.
type BagsResponse struct {
	Space          string           `json:"space"`
	Page           int              `json:"page"`
	PageSize       int              `json:"page_size"`
	TotalPages     int64            `json:"total_pages"`
	TotalBags      string           `json:"total_bags"`
	TotalFileCount string           `json:"total_file_count"`
	TotalFileSize  string           `json:"total_file_size"`
	Totals         Totals           `json:"totals"`
	FileExtTally   map[string]int64 `json:"file_ext_tally"`
	Bags           []BagView        `json:"bags"`
}

// ListSpaces handles GET /spaces.
func (h *Handler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.Spaces(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := SpacesResponse{Spaces: make([]SpaceSummary, 0, len(counts))}
	for space, n := range counts {
		resp.Spaces = append(resp.Spaces, SpaceSummary{
			Space:          space,
			BagCount:       n,
			BagCountPretty: humanfmt.IntComma(n),
		})
	}
	sort.Slice(resp.Spaces, func(i, j int) bool {
		return resp.Spaces[i].Space < resp.Spaces[j].Space
	})

	writeCacheableJSON(w, r, resp)
}

// ListBags handles GET /spaces/{space}/bags.
//
// Query parameters: prefix, page (1-based), created_after, created_before.
func (h *Handler) ListBags(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	page := 0
	if raw := params.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, bberrors.NewValidationError(bberrors.CodeInvalidPage, "page must be an integer, got "+strconv.Quote(raw)))
			return
		}
		page = n
	}

	qc, err := query.NewContext(
		chi.URLParam(r, "space"),
		params.Get("prefix"),
		params.Get("created_after"),
		params.Get("created_before"),
		page,
		h.pageSize,
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.catalog.Query(r.Context(), qc)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := BagsResponse{
		Space:          qc.Space,
		Page:           qc.Page,
		PageSize:       qc.PageSize,
		TotalPages:     result.TotalPages(qc.PageSize),
		TotalBags:      humanfmt.IntComma(result.TotalCount),
		TotalFileCount: humanfmt.IntComma(result.TotalFileCount),
		TotalFileSize:  humanfmt.Bytes(result.TotalFileSize),
		Totals: Totals{
			Bags:      result.TotalCount,
			FileCount: result.TotalFileCount,
			FileSize:  result.TotalFileSize,
		},
		FileExtTally: result.FileExtTally,
		Bags:         make([]BagView, 0, len(result.Bags)),
	}
	if resp.FileExtTally == nil {
		resp.FileExtTally = map[string]int64{}
	}
	now := h.now()
	for _, bag := range result.Bags {
		resp.Bags = append(resp.Bags, h.view(bag, now))
	}

	writeCacheableJSON(w, r, resp)
}

// bagParam parses the bag id from /bags/{space}/*. metadata is true when the
// path ends in /metadata.
func bagParam(r *http.Request) (id types.BagIdentifier, metadata bool, err error) {
	rest := chi.URLParam(r, "*")
	rest, metadata = strings.CutSuffix(rest, metadataSuffix)
	id, err = types.ParseBagID(chi.URLParam(r, "space") + "/" + rest)
	if err != nil {
		return id, metadata, bberrors.NewValidationError(bberrors.CodeInvalidIdentifier, err.Error())
	}
	return id, metadata, nil
}

// GetBag handles GET /bags/{space}/*, where the wildcard is
// "{external_identifier}/v{version}" for the cached bag or
// "{external_identifier}/v{version}/metadata" for its raw manifest.
func (h *Handler) GetBag(w http.ResponseWriter, r *http.Request) {
	id, metadata, err := bagParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if metadata {
		h.getMetadata(w, r, id)
		return
	}

	bag, err := h.catalog.Bag(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := h.view(bag, h.now())
	if view.FileExtTally == nil {
		view.FileExtTally = map[string]int64{}
	}
	writeCacheableJSON(w, r, view)
}

// getMetadata serves the manifest store's record for id unchanged.
func (h *Handler) getMetadata(w http.ResponseWriter, r *http.Request, id types.BagIdentifier) {
	if h.manifests == nil {
		writeError(w, http.StatusServiceUnavailable, "manifest store not configured",
			bberrors.CodeBackendUnavailable, GetRequestID(r.Context()))
		return
	}

	bag, err := h.manifests.GetBag(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeCacheableJSON(w, r, bag.StorageManifest)
}

// HeadBag handles HEAD /bags/{space}/*. For metadata paths it asks the
// manifest store whether the manifest exists without downloading it.
func (h *Handler) HeadBag(w http.ResponseWriter, r *http.Request) {
	id, metadata, err := bagParam(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !metadata {
		if _, err := h.catalog.Bag(r.Context(), id); err != nil {
			w.WriteHeader(headStatus(err))
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.manifests == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	ok, err := h.manifests.Exists(r.Context(), id)
	switch {
	case err != nil:
		log := logctx.FromContext(r.Context())
		log.Error().Err(err).Str("bag", id.ID()).Msg("manifest existence check failed")
		w.WriteHeader(http.StatusInternalServerError)
	case !ok:
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func headStatus(err error) int {
	switch {
	case bberrors.IsValidation(err):
		return http.StatusBadRequest
	case bberrors.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) view(bag *types.Bag, now time.Time) BagView {
	v := BagView{
		ID:                 bag.ID(),
		Space:              bag.Space(),
		ExternalIdentifier: bag.ExternalIdentifier(),
		Version:            bag.Version(),
		CreatedDate:        bag.CreatedDate,
		CreatedDatePretty:  humanfmt.Date(bag.CreatedDate, now),
		FileCount:          bag.FileCount,
		FileCountPretty:    humanfmt.IntComma(bag.FileCount),
		TotalFileSize:      bag.TotalFileSize,
		FileSizePretty:     humanfmt.Bytes(bag.TotalFileSize),
	}
	if len(bag.FileExtTally) > 0 {
		v.FileExtTally = bag.FileExtTally
	}
	return v
}

// fail maps err onto a status code: validation errors are 400, missing bags
// and manifests 404 and anything else 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())
	code := bberrors.GetCode(err)

	switch {
	case bberrors.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), code, requestID)
	case bberrors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), code, requestID)
	default:
		log := logctx.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error", code, requestID)
	}
}
