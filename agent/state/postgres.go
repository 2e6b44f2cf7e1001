package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/agent/contract"
)

type PostgresConfig struct {
	DSN             string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" split_words:"true" default:"5m"`
}

// Connect opens a bun DB over the pgdriver connector.
func Connect(cfg PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// PostgresStore implements AgentStore, ThreadStore, EnquiryStore,
// MessageStore and contract.RestaurantReader on one bun DB.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

/* --------------------------------- agents -------------------------------- */

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	ag := new(Agent)
	err := s.db.NewSelect().Model(ag).Where("ag.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", contractx.ErrAgentNotFound, id)
		}
		return nil, fmt.Errorf("select agent: %w", err)
	}
	return ag, nil
}

func (s *PostgresStore) GetAgentByExternalAccountID(ctx context.Context, externalAccountID string) (*Agent, error) {
	ag := new(Agent)
	err := s.db.NewSelect().Model(ag).Where("ag.external_account_id = ?", externalAccountID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: external_account_id=%s", contractx.ErrAgentNotFound, externalAccountID)
		}
		return nil, fmt.Errorf("select agent by account: %w", err)
	}
	return ag, nil
}

func (s *PostgresStore) SaveAgent(ctx context.Context, ag *Agent) error {
	if ag == nil {
		return fmt.Errorf("%w: nil agent", contractx.ErrValidation)
	}
	ag.UpdatedAt = time.Now().UTC()

	_, err := s.db.NewUpdate().Model(ag).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

/* -------------------------------- threads -------------------------------- */

func (s *PostgresStore) FindThreadByTitle(ctx context.Context, title string) (*ThreadRecord, error) {
	rec := new(ThreadRecord)
	err := s.db.NewSelect().Model(rec).Where("tr.title = ?", title).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: title=%s", contractx.ErrThreadNotFound, title)
		}
		return nil, fmt.Errorf("select thread record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CreateThread(ctx context.Context, rec *ThreadRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil thread record", contractx.ErrValidation)
	}

	res, err := s.db.NewInsert().Model(rec).On("CONFLICT (title) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert thread record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert thread record rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: title=%s", contractx.ErrThreadExists, rec.Title)
	}
	return nil
}

/* ------------------------------- enquiries ------------------------------- */

func (s *PostgresStore) CreateEnquiry(ctx context.Context, en *Enquiry) error {
	if en == nil {
		return fmt.Errorf("%w: nil enquiry", contractx.ErrValidation)
	}
	if _, err := s.db.NewInsert().Model(en).Exec(ctx); err != nil {
		return fmt.Errorf("insert enquiry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEnquiryByID(ctx context.Context, id string) (*Enquiry, error) {
	en := new(Enquiry)
	err := s.db.NewSelect().Model(en).Where("en.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", contractx.ErrEnquiryNotFound, id)
		}
		return nil, fmt.Errorf("select enquiry: %w", err)
	}
	return en, nil
}

// MarkResolved flips a pending enquiry to resolved. The WHERE status guard
// makes a concurrent second resolve lose the race instead of firing the
// resumption protocol twice.
func (s *PostgresStore) MarkResolved(ctx context.Context, id, response, resolverID string, at time.Time) (*Enquiry, error) {
	res, err := s.db.NewUpdate().
		Model((*Enquiry)(nil)).
		Set("status = ?", contractx.EnquiryResolved).
		Set("response = ?", response).
		Set("resolver_id = ?", resolverID).
		Set("resolved_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", contractx.EnquiryPending).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve enquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("resolve enquiry rows: %w", err)
	}
	if affected == 0 {
		en, getErr := s.GetEnquiryByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: id=%s status=%s", contractx.ErrEnquiryAlreadyResolved, id, en.Status)
	}
	return s.GetEnquiryByID(ctx, id)
}

func (s *PostgresStore) MarkClosed(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*Enquiry)(nil)).
		Set("status = ?", contractx.EnquiryClosed).
		Set("closed_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", contractx.EnquiryResolved).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("close enquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close enquiry rows: %w", err)
	}
	if affected == 0 {
		en, getErr := s.GetEnquiryByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: cannot close enquiry in status=%s", contractx.ErrInvalidTransition, en.Status)
	}
	return nil
}

/* -------------------------------- messages ------------------------------- */

func (s *PostgresStore) AppendMessages(ctx context.Context, msgs []*ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&msgs).Exec(ctx); err != nil {
		return fmt.Errorf("append thread messages: %w", err)
	}
	return nil
}

func (s *PostgresStore) ThreadHistory(ctx context.Context, threadID string) ([]*ThreadMessage, error) {
	var msgs []*ThreadMessage
	err := s.db.NewSelect().
		Model(&msgs).
		Where("tm.thread_id = ?", threadID).
		Order("tm.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select thread history: %w", err)
	}
	return msgs, nil
}

/* --------------------------- restaurant reads ---------------------------- */

func (s *PostgresStore) GetRestaurantProfile(ctx context.Context, restaurantID string) (*contractx.RestaurantProfile, error) {
	rs := new(Restaurant)
	err := s.db.NewSelect().Model(rs).Where("rs.id = ?", restaurantID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", contractx.ErrRestaurantNotFound, restaurantID)
		}
		return nil, fmt.Errorf("select restaurant: %w", err)
	}
	return &contractx.RestaurantProfile{
		ID:                rs.ID,
		Name:              rs.Name,
		Description:       rs.Description,
		OpeningHours:      rs.OpeningHours,
		FulfillmentPolicy: rs.FulfillmentPolicy,
		DeliveryZones:     rs.DeliveryZones,
	}, nil
}

func (s *PostgresStore) GetMenuItems(ctx context.Context, restaurantID string) ([]contractx.MenuItem, error) {
	var items []*FoodItem
	err := s.db.NewSelect().
		Model(&items).
		Where("fi.restaurant_id = ?", restaurantID).
		Order("fi.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select food items: %w", err)
	}

	out := make([]contractx.MenuItem, 0, len(items))
	for _, it := range items {
		out = append(out, contractx.MenuItem{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Currency:    it.Currency,
			Available:   it.Available,
		})
	}
	return out, nil
}
