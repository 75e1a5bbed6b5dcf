// Package feedimport runs supplier XML feeds into the product catalog.
package feedimport

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
	"github.com/mobilsoft/connectors/internal/infrastructure/xmlfeed"
)

const (
	// DefaultCheckpointEvery is how many records are processed between run log saves
	DefaultCheckpointEvery = 100
	// DefaultPreviewLimit is the number of records returned by Preview
	DefaultPreviewLimit = 5
	// MaxPreviewLimit caps Preview
	MaxPreviewLimit = 50
)

var (
	ErrNoNameMapping     = errors.New("feedimport: no mapping fills the product name")
	ErrNoIdentityMapping = errors.New("feedimport: no mapping fills a barcode, sku or supplier sku")
	ErrNoProducts        = errors.New("feedimport: no product elements found in feed")
	ErrNoDocumentStore   = errors.New("feedimport: document uploads are not configured")
	ErrEmptyDocument     = errors.New("feedimport: uploaded document is empty")
)

// Fetcher obtains a source's feed document; *xmlfeed.Fetcher implements it
type Fetcher interface {
	Fetch(ctx context.Context, source *feed.XMLProductSource) (*xmlfeed.Document, error)
}

// RunTracker persists run logs; *runlog.Service from the application layer implements it
type RunTracker interface {
	Begin(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, sourceName string, op runlog.Operation) (*runlog.RunLog, error)
	Checkpoint(ctx context.Context, run *runlog.RunLog) error
	Complete(ctx context.Context, run *runlog.RunLog) error
	Fail(ctx context.Context, run *runlog.RunLog, cause error) error
}

// ImportService imports XML product feeds
type ImportService struct {
	sources         feed.SourceRepository
	fetcher         Fetcher
	documents       feed.DocumentStore
	runs            RunTracker
	reconciler      *Reconciler
	metrics         *telemetry.IngestMetrics
	checkpointEvery int
	now             func() time.Time
	logger          *zap.Logger
}

// ImportServiceConfig contains the dependencies of ImportService
type ImportServiceConfig struct {
	Sources  feed.SourceRepository
	Products feed.ProductRepository
	// Categories is optional; without it feed categories are stored verbatim
	Categories feed.CategoryRepository
	Fetcher    Fetcher
	// Documents is optional; without it uploads are refused
	Documents       feed.DocumentStore
	Runs            RunTracker
	Metrics         *telemetry.IngestMetrics
	CheckpointEvery int
	Now             func() time.Time
	Logger          *zap.Logger
}

// NewImportService creates an import service
func NewImportService(cfg ImportServiceConfig) *ImportService {
	s := &ImportService{
		sources:         cfg.Sources,
		fetcher:         cfg.Fetcher,
		documents:       cfg.Documents,
		runs:            cfg.Runs,
		metrics:         cfg.Metrics,
		checkpointEvery: cfg.CheckpointEvery,
		now:             cfg.Now,
		logger:          cfg.Logger,
	}
	if s.checkpointEvery <= 0 {
		s.checkpointEvery = DefaultCheckpointEvery
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.reconciler = NewReconciler(cfg.Products, s.logger)
	s.reconciler.now = s.now
	if cfg.Categories != nil {
		s.reconciler.categories = NewCategoryResolver(cfg.Categories, s.logger)
	}
	return s
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// Run imports every product element of the source's feed. A fetch or parse
// failure closes the run as error and moves the source to error; per-record
// problems are counted and noted without stopping the run.
func (s *ImportService) Run(ctx context.Context, id uuid.UUID) (*runlog.RunLog, error) {
	source, rules, err := s.prepare(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "ImportService", "Run",
		attribute.String("source_id", source.ID.String()),
		attribute.String("source", source.Name),
	)
	run, err := s.runs.Begin(ctx, runlog.SourceKindXMLSource, source.ID, source.Name, runlog.OperationFeedImport)
	if err != nil {
		telemetry.End(span, err)
		return nil, err
	}
	started := s.now()

	if err := s.importAll(ctx, source, rules, run); err != nil {
		s.fail(ctx, source, run, err)
		s.metrics.FeedDuration(ctx, s.now().Sub(started), string(runlog.StateError))
		telemetry.End(span, err)
		return run, err
	}

	source.MarkSynced(s.now())
	if err := s.sources.Save(ctx, source); err != nil {
		s.logger.Error("Failed to save feed source after import",
			zap.String("source_id", source.ID.String()),
			zap.Error(err),
		)
	}
	if err := s.runs.Complete(ctx, run); err != nil {
		telemetry.End(span, err)
		return run, err
	}

	s.metrics.FeedRecords(ctx, "created", run.Created)
	s.metrics.FeedRecords(ctx, "updated", run.Updated)
	s.metrics.FeedRecords(ctx, "skipped", run.Skipped)
	s.metrics.FeedRecords(ctx, "failed", run.Failed)
	s.metrics.FeedDuration(ctx, s.now().Sub(started), string(runlog.StateDone))
	s.logger.Info("Feed import finished",
		zap.String("source", source.Name),
		zap.Int("total", run.Total),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed),
	)
	telemetry.End(span, nil)
	return run, nil
}

func (s *ImportService) prepare(ctx context.Context, id uuid.UUID) (*feed.XMLProductSource, []*feed.Rule, error) {
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := source.CanRun(); err != nil {
		return nil, nil, err
	}
	rules, err := compileRules(source)
	if err != nil {
		return nil, nil, err
	}
	return source, rules, nil
}

// compileRules uses the source's own mappings, falling back to its template
func compileRules(source *feed.XMLProductSource) ([]*feed.Rule, error) {
	mappings := source.Mappings
	if len(mappings) == 0 {
		mappings = feed.TemplateMappings(source.Template)
	}
	rules, err := feed.CompileRules(mappings)
	if err != nil {
		return nil, err
	}

	var hasName, hasIdentity bool
	for _, r := range rules {
		switch r.Target {
		case feed.TargetName:
			hasName = true
		case feed.TargetBarcode, feed.TargetSKU, feed.TargetSupplierSKU:
			hasIdentity = true
		}
	}
	if !hasName {
		return nil, shared.NewIngestError(shared.ErrConfig, "compile mappings", ErrNoNameMapping)
	}
	if !hasIdentity {
		return nil, shared.NewIngestError(shared.ErrConfig, "compile mappings", ErrNoIdentityMapping)
	}
	return rules, nil
}

func (s *ImportService) open(ctx context.Context, source *feed.XMLProductSource) (*xmlfeed.Document, feed.Path, error) {
	doc, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, feed.Path{}, err
	}
	p, ok, err := doc.ResolveProductPath(source.EffectiveProductPath())
	if err != nil {
		return nil, feed.Path{}, err
	}
	if !ok {
		return nil, feed.Path{}, &feed.ParseError{
			Location: doc.Location,
			Err:      shared.NewIngestError(shared.ErrData, "resolve product path", ErrNoProducts),
		}
	}
	return doc, p, nil
}

func (s *ImportService) importAll(ctx context.Context, source *feed.XMLProductSource, rules []*feed.Rule, run *runlog.RunLog) error {
	doc, productPath, err := s.open(ctx, source)
	if err != nil {
		return err
	}
	if configured := source.EffectiveProductPath(); configured != "" && productPath.String() != configured {
		run.Note(fmt.Sprintf("product path %q matched nothing, using %q", configured, productPath.String()))
	}

	for el, err := range doc.Products(productPath) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		run.AddTotal(1)
		s.importOne(ctx, source, rules, el, run)

		if run.Total%s.checkpointEvery == 0 {
			if err := s.runs.Checkpoint(ctx, run); err != nil {
				s.logger.Warn("Failed to checkpoint feed import", zap.String("run_id", run.ID.String()), zap.Error(err))
			}
		}
	}
	return nil
}

// importOne maps and reconciles a single element. A panic is counted as a failed record.
func (s *ImportService) importOne(ctx context.Context, source *feed.XMLProductSource, rules []*feed.Rule, el *xmlfeed.Element, run *runlog.RunLog) {
	index := run.Total
	defer func() {
		if r := recover(); r != nil {
			run.IncFailed(fmt.Sprintf("record %d: %v", index, r))
			s.logger.Error("Feed record panicked",
				zap.String("source", source.Name),
				zap.Int("record", index),
				zap.Any("panic", r),
			)
		}
	}()

	rec := xmlfeed.Map(el, rules)
	for _, e := range rec.Errors {
		run.Note(fmt.Sprintf("record %d: %s", index, e))
	}
	if !rec.Valid() {
		run.IncSkipped()
		run.Note(fmt.Sprintf("record %d skipped: missing %s", index, joinTargets(rec.Missing)))
		return
	}

	c, err := candidate(source, rec)
	if err != nil {
		run.IncFailed(fmt.Sprintf("record %d: %v", index, err))
		return
	}
	decision, err := s.reconciler.Reconcile(ctx, source, c)
	if err != nil {
		run.IncFailed(fmt.Sprintf("record %d: %v", index, err))
		return
	}
	switch decision.Action {
	case ActionCreate:
		run.IncCreated()
	case ActionUpdate:
		run.IncUpdated()
	default:
		run.IncSkipped()
		if decision.Product != nil && decision.Product.LockedFromFeeds {
			run.Note(fmt.Sprintf("record %d skipped: %s", index, decision.Reason))
		}
	}
}

// candidate prices a mapped record: cost is the mapped cost, else the mapped price.
// A numeric field that is present but unparseable is a data error.
func candidate(source *feed.XMLProductSource, rec *feed.MappedRecord) (Candidate, error) {
	for _, field := range []feed.TargetField{feed.TargetCost, feed.TargetPrice, feed.TargetStock} {
		if _, _, err := rec.Decimal(field); err != nil {
			return Candidate{Record: rec}, shared.NewIngestError(shared.ErrData, "parse "+field.String(),
				fmt.Errorf("invalid number %q", rec.Get(field)))
		}
	}
	cost := decimal.Zero
	for _, field := range []feed.TargetField{feed.TargetCost, feed.TargetPrice} {
		if d, ok, _ := rec.Decimal(field); ok && d.IsPositive() {
			cost = d
			break
		}
	}
	return Candidate{Record: rec, Cost: cost, ListPrice: source.Pricing.Apply(cost)}, nil
}

func (s *ImportService) fail(ctx context.Context, source *feed.XMLProductSource, run *runlog.RunLog, cause error) {
	if err := s.runs.Fail(ctx, run, cause); err != nil {
		s.logger.Error("Failed to close feed run", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	source.MarkError(cause.Error(), s.now())
	if err := s.sources.Save(ctx, source); err != nil {
		s.logger.Error("Failed to save feed source error state",
			zap.String("source_id", source.ID.String()),
			zap.Error(err),
		)
	}
	s.logger.Error("Feed import failed",
		zap.String("source", source.Name),
		zap.String("location", source.Location()),
		zap.Error(cause),
	)
}

// ---------------------------------------------------------------------------
// Preview and connection test
// ---------------------------------------------------------------------------

// PreviewItem is one mapped record as it would be imported
type PreviewItem struct {
	Index     int               `json:"index"`
	Values    map[string]string `json:"values"`
	Images    []string          `json:"images,omitempty"`
	Missing   []string          `json:"missing,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
	Cost      decimal.Decimal   `json:"cost"`
	ListPrice decimal.Decimal   `json:"list_price"`
	Valid     bool              `json:"valid"`
}

// Preview maps the first records of the feed without writing anything
func (s *ImportService) Preview(ctx context.Context, id uuid.UUID, limit int) ([]PreviewItem, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > MaxPreviewLimit {
		limit = MaxPreviewLimit
	}
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rules, err := compileRules(source)
	if err != nil {
		return nil, err
	}
	doc, productPath, err := s.open(ctx, source)
	if err != nil {
		return nil, err
	}

	items := make([]PreviewItem, 0, limit)
	for el, err := range doc.Products(productPath) {
		if err != nil {
			return nil, err
		}
		rec := xmlfeed.Map(el, rules)
		c, cerr := candidate(source, rec)
		item := PreviewItem{
			Index:     len(items) + 1,
			Values:    make(map[string]string, len(rec.Values)),
			Errors:    rec.Errors,
			Cost:      c.Cost,
			ListPrice: c.ListPrice,
			Valid:     rec.Valid(),
		}
		for field, v := range rec.Values {
			item.Values[field.String()] = v
		}
		if primary, extra := rec.Images(); primary != "" {
			item.Images = append([]string{primary}, extra...)
		}
		for _, m := range rec.Missing {
			item.Missing = append(item.Missing, m.String())
		}
		if cerr != nil {
			item.Errors = append(append([]string(nil), rec.Errors...), cerr.Error())
			item.Valid = false
		}
		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// ConnectionReport describes a successfully fetched feed
type ConnectionReport struct {
	Location    string `json:"location"`
	Encoding    string `json:"encoding"`
	Bytes       int    `json:"bytes"`
	ProductPath string `json:"product_path"`
	Products    int    `json:"products"`
}

// TestConnection fetches and parses the feed and counts its product elements
func (s *ImportService) TestConnection(ctx context.Context, id uuid.UUID) (*ConnectionReport, error) {
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, productPath, err := s.open(ctx, source)
	if err != nil {
		return nil, err
	}
	report := &ConnectionReport{
		Location:    doc.Location,
		Encoding:    doc.Encoding,
		Bytes:       doc.Size(),
		ProductPath: productPath.String(),
	}
	for _, err := range doc.Products(productPath) {
		if err != nil {
			return nil, err
		}
		report.Products++
	}
	return report, nil
}

// ---------------------------------------------------------------------------
// Scheduling
// ---------------------------------------------------------------------------

// DueSources returns the auto-sync sources whose interval has elapsed
func (s *ImportService) DueSources(ctx context.Context, now time.Time) ([]feed.XMLProductSource, error) {
	candidates, err := s.sources.FindAutoSync(ctx)
	if err != nil {
		return nil, err
	}
	due := candidates[:0]
	for _, src := range candidates {
		if src.IsDueForSync(now) {
			due = append(due, src)
		}
	}
	return due, nil
}

// SyncDueSources imports every due source. A failing source is logged and
// does not stop the others.
func (s *ImportService) SyncDueSources(ctx context.Context) (imported int, err error) {
	due, err := s.DueSources(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, src := range due {
		if ctx.Err() != nil {
			return imported, ctx.Err()
		}
		if _, err := s.Run(ctx, src.ID); err != nil {
			s.logger.Error("Scheduled feed import failed",
				zap.String("source_id", src.ID.String()),
				zap.String("source", src.Name),
				zap.Error(err),
			)
			continue
		}
		imported++
	}
	return imported, nil
}

// ---------------------------------------------------------------------------
// Uploads
// ---------------------------------------------------------------------------

// UploadDocument stores a feed document for the source and points the source at it.
// The document must decode and parse before it is stored.
func (s *ImportService) UploadDocument(ctx context.Context, id uuid.UUID, filename string, data []byte) (*feed.XMLProductSource, error) {
	if s.documents == nil {
		return nil, shared.NewIngestError(shared.ErrConfig, "upload document", ErrNoDocumentStore)
	}
	if len(data) == 0 {
		return nil, shared.NewIngestError(shared.ErrData, "upload document", ErrEmptyDocument)
	}
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := xmlfeed.NewDocument(filename, data, source.DeclaredEncoding); err != nil {
		return nil, err
	}

	now := s.now()
	key := uploadKey(source.ID, filename, now)
	if err := s.documents.Upload(ctx, key, data, "application/xml"); err != nil {
		return nil, fmt.Errorf("store feed document: %w", err)
	}
	source.SetUpload(key, now)
	if err := s.sources.Save(ctx, source); err != nil {
		return nil, err
	}
	s.logger.Info("Feed document uploaded",
		zap.String("source", source.Name),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return source, nil
}

func uploadKey(sourceID uuid.UUID, filename string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "feed.xml"
	}
	return fmt.Sprintf("xml-sources/%s/%d-%s", sourceID, now.Unix(), name)
}
