// Package scanner walks the active watchlist for every ingested transaction
// record and emits match candidates for the configured field pairs.
package scanner

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/watchlist/matching"
	pkgerrors "github.com/orovista/backoffice/pkg/errors"
	"github.com/orovista/backoffice/pkg/models"
)

// Source supplies the active watchlist. Retrieval policy belongs to the
// watchlist administration workflow; the scanner only iterates, in the order
// the source returns entries.
type Source interface {
	ListActivePersons(ctx context.Context) ([]models.WatchlistPerson, error)
	ListActiveItems(ctx context.Context) ([]models.WatchlistItem, error)
}

// PersonFieldPair configures one comparison between a transaction field and a
// watchlist person field. The pair table is explicit configuration, not a
// hard-coded algorithm.
type PersonFieldPair struct {
	Field       string
	Kind        matching.FieldKind
	RecordValue func(*models.TransactionRecord) string
	WatchValue  func(*models.WatchlistPerson) string
}

// ItemFieldPair configures one comparison against a watchlist item field
type ItemFieldPair struct {
	Field       string
	Kind        matching.FieldKind
	RecordValue func(*models.TransactionRecord) string
	WatchValue  func(*models.WatchlistItem) string
}

// dniRe matches a Spanish DNI-style token, digitsRe any longer digit run
var (
	dniRe    = regexp.MustCompile(`\b\d{8}[A-Za-z]\b`)
	digitsRe = regexp.MustCompile(`\b\d{5,}\b`)
)

// ExtractIdentifierToken pulls a national-identifier-looking token out of the
// customer contact or name, DNI format first.
func ExtractIdentifierToken(r *models.TransactionRecord) string {
	haystack := r.CustomerContact + " " + r.CustomerName
	if token := dniRe.FindString(haystack); token != "" {
		return token
	}
	return digitsRe.FindString(haystack)
}

// DefaultPersonPairs is the standard person comparison table
func DefaultPersonPairs() []PersonFieldPair {
	return []PersonFieldPair{
		{
			Field:       "customer_name/full_name",
			Kind:        matching.FieldKindText,
			RecordValue: func(r *models.TransactionRecord) string { return r.CustomerName },
			WatchValue:  func(p *models.WatchlistPerson) string { return p.FullName },
		},
		{
			Field:       "customer_contact/phone",
			Kind:        matching.FieldKindText,
			RecordValue: func(r *models.TransactionRecord) string { return r.CustomerContact },
			WatchValue:  func(p *models.WatchlistPerson) string { return p.Phone },
		},
		{
			Field:       "identifier/national_id",
			Kind:        matching.FieldKindText,
			RecordValue: ExtractIdentifierToken,
			WatchValue:  func(p *models.WatchlistPerson) string { return p.NationalID },
		},
	}
}

// DefaultItemPairs is the standard item comparison table. Engravings fall
// back to the item details so serial numbers buried in the description still
// surface.
func DefaultItemPairs() []ItemFieldPair {
	engravings := func(r *models.TransactionRecord) string {
		if strings.TrimSpace(r.Engravings) != "" {
			return r.Engravings
		}
		return r.ItemDetails
	}
	return []ItemFieldPair{
		{
			Field:       "item_details/description",
			Kind:        matching.FieldKindText,
			RecordValue: func(r *models.TransactionRecord) string { return r.ItemDetails },
			WatchValue:  func(i *models.WatchlistItem) string { return i.Description },
		},
		{
			Field:       "engravings/serial_number",
			Kind:        matching.FieldKindText,
			RecordValue: engravings,
			WatchValue:  func(i *models.WatchlistItem) string { return i.SerialNumber },
		},
		{
			Field:       "engravings/identification_marks",
			Kind:        matching.FieldKindText,
			RecordValue: engravings,
			WatchValue:  func(i *models.WatchlistItem) string { return i.IdentificationMarks },
		},
		{
			Field:       "metals_stones/brand_model",
			Kind:        matching.FieldKindText,
			RecordValue: func(r *models.TransactionRecord) string { return strings.TrimSpace(r.Metals + " " + r.Stones) },
			WatchValue:  func(i *models.WatchlistItem) string { return i.BrandModel },
		},
	}
}

// Scanner iterates the active watchlist for a single record
type Scanner struct {
	src         Source
	matcher     *matching.Matcher
	personPairs []PersonFieldPair
	itemPairs   []ItemFieldPair
	validate    *validator.Validate
	logger      *zap.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithMatcher replaces the default matcher
func WithMatcher(m *matching.Matcher) Option {
	return func(s *Scanner) { s.matcher = m }
}

// WithPersonPairs overrides the person comparison table
func WithPersonPairs(pairs []PersonFieldPair) Option {
	return func(s *Scanner) { s.personPairs = pairs }
}

// WithItemPairs overrides the item comparison table
func WithItemPairs(pairs []ItemFieldPair) Option {
	return func(s *Scanner) { s.itemPairs = pairs }
}

// New creates a Scanner over the given watchlist source
func New(src Source, logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		src:         src,
		matcher:     matching.New(),
		personPairs: DefaultPersonPairs(),
		itemPairs:   DefaultItemPairs(),
		validate:    validator.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan compares one transaction record against every active watchlist entry
// and returns the match candidates in deterministic order. A malformed record
// yields a validation error and no candidates; the caller skips it without
// aborting the batch.
func (s *Scanner) Scan(ctx context.Context, record *models.TransactionRecord) ([]models.Candidate, error) {
	if err := s.validate.Struct(record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.KindValidation, err, "transaction record %s is malformed", record.ID)
	}

	persons, err := s.src.ListActivePersons(ctx)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "loading active watchlist persons")
	}
	items, err := s.src.ListActiveItems(ctx)
	if err != nil {
		return nil, pkgerrors.Persistence(err, "loading active watchlist items")
	}

	var candidates []models.Candidate
	for i := range persons {
		candidates = append(candidates, s.scanPerson(record, &persons[i])...)
	}
	for i := range items {
		candidates = append(candidates, s.scanItem(record, &items[i])...)
	}

	// deterministic output: strongest first, field name as final tie-break
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Field < b.Field
	})

	s.logger.Debug("record scanned",
		zap.String("record_id", record.ID.String()),
		zap.Int("persons", len(persons)),
		zap.Int("items", len(items)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

func (s *Scanner) scanPerson(record *models.TransactionRecord, person *models.WatchlistPerson) []models.Candidate {
	var out []models.Candidate
	for _, pair := range s.personPairs {
		txValue := pair.RecordValue(record)
		watchValue := pair.WatchValue(person)
		result := s.matcher.Match(txValue, watchValue, pair.Kind)
		if result.Verdict == models.VerdictNone {
			continue
		}
		out = append(out, models.Candidate{
			RecordID:         record.ID,
			Entity:           models.PersonRef(person.ID),
			Field:            pair.Field,
			TransactionValue: txValue,
			WatchlistValue:   watchValue,
			Verdict:          result.Verdict,
			Confidence:       result.Confidence,
			Similarity:       result.Similarity,
		})
	}
	return out
}

func (s *Scanner) scanItem(record *models.TransactionRecord, item *models.WatchlistItem) []models.Candidate {
	var out []models.Candidate
	for _, pair := range s.itemPairs {
		txValue := pair.RecordValue(record)
		watchValue := pair.WatchValue(item)
		result := s.matcher.Match(txValue, watchValue, pair.Kind)
		if result.Verdict == models.VerdictNone {
			continue
		}
		out = append(out, models.Candidate{
			RecordID:         record.ID,
			Entity:           models.ItemRef(item.ID),
			Field:            pair.Field,
			TransactionValue: txValue,
			WatchlistValue:   watchValue,
			Verdict:          result.Verdict,
			Confidence:       result.Confidence,
			Similarity:       result.Similarity,
		})
	}
	return out
}
