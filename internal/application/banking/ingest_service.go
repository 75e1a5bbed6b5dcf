package banking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// IngestOutcome is what happened to one remote transaction
type IngestOutcome string

const (
	OutcomeCreated IngestOutcome = "created"
	OutcomeSkipped IngestOutcome = "skipped"
	OutcomeFailed  IngestOutcome = "failed"
)

// IngestService turns remote transactions into statement lines, at most once per import reference
type IngestService struct {
	metrics *telemetry.IngestMetrics
	now     func() time.Time
	logger  *zap.Logger
}

// IngestServiceConfig contains the dependencies of IngestService
type IngestServiceConfig struct {
	Metrics *telemetry.IngestMetrics
	Now     func() time.Time
	Logger  *zap.Logger
}

// NewIngestService creates an ingest service
func NewIngestService(cfg IngestServiceConfig) *IngestService {
	s := &IngestService{metrics: cfg.Metrics, now: cfg.Now, logger: cfg.Logger}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Ingest stores tx as a statement line of account using repos.
// A transaction whose import reference already exists is skipped; this also covers
// a concurrent sync inserting the same reference first.
func (s *IngestService) Ingest(ctx context.Context, repos banking.Repositories, connector *banking.BankConnector, account *banking.BankAccount, tx banking.RemoteTransaction) (IngestOutcome, error) {
	bank := connector.BankType.String()

	line, err := banking.NewStatementLine(connector.BankType, account, tx, s.now())
	if err != nil {
		s.metrics.StatementLine(ctx, bank, string(OutcomeFailed))
		return OutcomeFailed, err
	}

	exists, err := repos.Lines.ExistsByImportRef(ctx, line.BankImportRef)
	if err != nil {
		s.metrics.StatementLine(ctx, bank, string(OutcomeFailed))
		return OutcomeFailed, fmt.Errorf("check import reference %s: %w", line.BankImportRef, err)
	}
	if exists {
		s.metrics.StatementLine(ctx, bank, "duplicate")
		return OutcomeSkipped, nil
	}

	if partnerID := s.resolvePartner(ctx, repos.Partners, line); partnerID != nil {
		line.AttachPartner(*partnerID)
	}

	if err := repos.Lines.Create(ctx, line); err != nil {
		if errors.Is(err, shared.ErrDuplicateIgnored) {
			s.metrics.StatementLine(ctx, bank, "duplicate")
			return OutcomeSkipped, nil
		}
		s.metrics.StatementLine(ctx, bank, string(OutcomeFailed))
		return OutcomeFailed, fmt.Errorf("create statement line %s: %w", line.BankImportRef, err)
	}
	s.metrics.StatementLine(ctx, bank, string(OutcomeCreated))
	return OutcomeCreated, nil
}

type partnerTier struct {
	name string
	key  string
	find func(ctx context.Context, key string) ([]banking.Partner, error)
}

// resolvePartner tries IBAN, then tax id, then exact name. The first tier that
// yields any match decides: one match attributes, several leave the line unattributed.
func (s *IngestService) resolvePartner(ctx context.Context, dir banking.PartnerDirectory, line *banking.StatementLine) *uuid.UUID {
	if dir == nil {
		return nil
	}
	tiers := []partnerTier{
		{name: "iban", key: line.CounterpartyIBAN, find: dir.FindByIBAN},
		{name: "tax_id", key: banking.ExtractTaxID(line.Description, line.CounterpartyName), find: dir.FindByTaxID},
		{name: "name", key: line.CounterpartyName, find: dir.FindByExactName},
	}
	for _, tier := range tiers {
		if tier.key == "" {
			continue
		}
		matches, err := tier.find(ctx, tier.key)
		if err != nil {
			s.logger.Warn("Partner lookup failed",
				zap.String("tier", tier.name),
				zap.String("ref", line.BankImportRef),
				zap.Error(err),
			)
			return nil
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			id := matches[0].ID
			return &id
		default:
			s.logger.Debug("Ambiguous partner match, leaving line unattributed",
				zap.String("tier", tier.name),
				zap.String("ref", line.BankImportRef),
				zap.Int("matches", len(matches)),
			)
			return nil
		}
	}
	return nil
}
