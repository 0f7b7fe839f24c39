package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/godex/evolution"
)

// Pokemon is one catalog entity as persisted.
type Pokemon struct {
	Slug          string                 `json:"slug"`
	DexID         string                 `json:"id"`
	DexNumber     *int                   `json:"dex_number,omitempty"`
	Name          string                 `json:"name"`
	Link          string                 `json:"link"`
	Types         []string               `json:"types"`
	HeightCM      *float64               `json:"height"`
	WeightKG      *float64               `json:"weight"`
	Effectiveness map[string]string      `json:"effectiveness"`
	Abilities     map[string]string      `json:"abilities"`
	Evolution     *evolution.Record      `json:"evolution,omitempty"`
	Transitions   []evolution.Transition `json:"evolutions"`
	UpdatedAt     string                 `json:"updated_at,omitempty"`
}

// TransitionFilter narrows QueryTransitions.
type TransitionFilter struct {
	// MinLevel keeps transitions whose level is strictly greater.
	MinLevel *int
	// SourceType keeps transitions whose origin has this type.
	SourceType string
	// TargetType keeps transitions whose destination has this type.
	TargetType string
}

// CrawlRun is one row of the crawl log.
type CrawlRun struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Pages      int    `json:"pages"`
	Entities   int    `json:"entities"`
	Failures   int    `json:"failures"`
	Status     string `json:"status"`
	LastError  string `json:"last_error,omitempty"`
}

// CrawlStats is what a finished crawl reports.
type CrawlStats struct {
	Pages     int
	Entities  int
	Failures  int
	LastError string
}

// Store wraps the SQLite database for all godex persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// DexNumber converts "0007" or "#0007" to 7. It returns nil when the id is
// not a number.
func DexNumber(id string) *int {
	id = strings.TrimSpace(strings.ReplaceAll(id, "#", ""))
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil
	}
	return &n
}

// --- Pokemon operations ---

// UpsertPokemon inserts or replaces an entity together with its types and
// transitions in one transaction.
func (s *Store) UpsertPokemon(ctx context.Context, p Pokemon) error {
	if p.Slug == "" {
		return fmt.Errorf("upserting pokemon %q: empty slug", p.Name)
	}
	if p.DexNumber == nil {
		p.DexNumber = DexNumber(p.DexID)
	}
	if p.Transitions == nil && p.Evolution != nil {
		p.Transitions = p.Evolution.Transitions()
	}

	fx, err := marshalJSON(p.Effectiveness)
	if err != nil {
		return fmt.Errorf("encoding effectiveness: %w", err)
	}
	abilities, err := marshalJSON(p.Abilities)
	if err != nil {
		return fmt.Errorf("encoding abilities: %w", err)
	}
	evo, err := marshalJSON(p.Evolution)
	if err != nil {
		return fmt.Errorf("encoding evolution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pokemon (slug, dex_id, dex_number, name, link, height_cm, weight_kg, effectiveness, abilities, evolution, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			dex_id = excluded.dex_id,
			dex_number = excluded.dex_number,
			name = excluded.name,
			link = excluded.link,
			height_cm = excluded.height_cm,
			weight_kg = excluded.weight_kg,
			effectiveness = excluded.effectiveness,
			abilities = excluded.abilities,
			evolution = excluded.evolution,
			updated_at = excluded.updated_at
	`, p.Slug, p.DexID, p.DexNumber, p.Name, p.Link, p.HeightCM, p.WeightKG, fx, abilities, evo,
		time.Now().UTC().Format(timestampFormat)); err != nil {
		return fmt.Errorf("upserting pokemon %s: %w", p.Slug, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pokemon_types WHERE slug = ?", p.Slug); err != nil {
		return err
	}
	for i, t := range p.Types {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pokemon_types (slug, position, type) VALUES (?, ?, ?)",
			p.Slug, i, t); err != nil {
			return fmt.Errorf("inserting type %q: %w", t, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transitions WHERE from_slug = ?", p.Slug); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transitions (from_slug, position, to_slug, to_dex_id, to_name, to_link, method, level, item, item_link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, t := range p.Transitions {
		if _, err := stmt.ExecContext(ctx, p.Slug, i, t.ToSlug, t.ToID, t.ToName, t.ToLink,
			t.Method, t.Level, nullString(t.Item), nullString(t.ItemLink)); err != nil {
			return fmt.Errorf("inserting transition %s->%s: %w", p.Slug, t.ToSlug, err)
		}
	}

	return tx.Commit()
}

// timestampFormat sorts as text and keeps upserts within one second apart.
const timestampFormat = "2006-01-02 15:04:05.000000000"

const pokemonColumns = `slug, COALESCE(dex_id, ''), dex_number, name, link, height_cm, weight_kg,
	effectiveness, abilities, evolution, updated_at`

// GetPokemon retrieves an entity by slug. It returns sql.ErrNoRows when
// the slug is unknown.
func (s *Store) GetPokemon(ctx context.Context, slug string) (*Pokemon, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+pokemonColumns+" FROM pokemon WHERE slug = ?", slug)
	p, err := scanPokemon(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, []*Pokemon{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPokemon returns every entity in first-insertion order.
func (s *Store) ListPokemon(ctx context.Context) ([]Pokemon, error) {
	return s.listPokemon(ctx, "rowid")
}

func (s *Store) listPokemon(ctx context.Context, orderBy string) ([]Pokemon, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+pokemonColumns+" FROM pokemon ORDER BY "+orderBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ptrs []*Pokemon
	for rows.Next() {
		p, err := scanPokemon(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]Pokemon, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out, nil
}

// Catalog returns the export view of the store: one entity per dex number,
// sorted by number, entities without a number last. When two entities share
// a number the most recently updated one wins.
func (s *Store) Catalog(ctx context.Context) ([]Pokemon, error) {
	all, err := s.listPokemon(ctx, "updated_at, rowid")
	if err != nil {
		return nil, err
	}

	last := make(map[int]int)
	for i, p := range all {
		if p.DexNumber != nil {
			last[*p.DexNumber] = i
		}
	}
	var out []Pokemon
	for i, p := range all {
		if p.DexNumber != nil && last[*p.DexNumber] != i {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DexNumber, out[j].DexNumber
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return out, nil
}

// DeletePokemon removes an entity and its types and transitions.
func (s *Store) DeletePokemon(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pokemon WHERE slug = ?", slug)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// QueryTransitions returns the flat transitions matching f, ordered by the
// origin's dex number.
func (s *Store) QueryTransitions(ctx context.Context, f TransitionFilter) ([]evolution.Transition, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.MinLevel != nil {
		where = append(where, "t.level IS NOT NULL AND t.level > ?")
		args = append(args, *f.MinLevel)
	}
	if f.SourceType != "" {
		where = append(where, "EXISTS (SELECT 1 FROM pokemon_types pt WHERE pt.slug = t.from_slug AND pt.type = ? COLLATE NOCASE)")
		args = append(args, f.SourceType)
	}
	if f.TargetType != "" {
		where = append(where, "EXISTS (SELECT 1 FROM pokemon_types pt WHERE pt.slug = t.to_slug AND pt.type = ? COLLATE NOCASE)")
		args = append(args, f.TargetType)
	}

	query := `
		SELECT t.from_slug, COALESCE(p.dex_id, ''), p.name, t.to_slug, COALESCE(t.to_dex_id, ''),
			COALESCE(t.to_name, ''), COALESCE(t.to_link, ''), COALESCE(t.method, ''), t.level,
			COALESCE(t.item, ''), COALESCE(t.item_link, '')
		FROM transitions t
		JOIN pokemon p ON p.slug = t.from_slug`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY p.dex_number IS NULL, p.dex_number, t.from_slug, t.position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []evolution.Transition
	for rows.Next() {
		var (
			t     evolution.Transition
			level sql.NullInt64
		)
		if err := rows.Scan(&t.FromSlug, &t.FromID, &t.FromName, &t.ToSlug, &t.ToID,
			&t.ToName, &t.ToLink, &t.Method, &level, &t.Item, &t.ItemLink); err != nil {
			return nil, err
		}
		if level.Valid {
			l := int(level.Int64)
			t.Level = &l
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountMultiTyped returns how many entities have two or more types.
func (s *Store) CountMultiTyped(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT slug FROM pokemon_types GROUP BY slug HAVING COUNT(*) >= 2
		)
	`).Scan(&n)
	return n, err
}

// --- Crawl log ---

// StartCrawl records a new crawl run and returns its id.
func (s *Store) StartCrawl(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, "INSERT INTO crawl_runs (id) VALUES (?)", id); err != nil {
		return "", fmt.Errorf("recording crawl start: %w", err)
	}
	return id, nil
}

// FinishCrawl closes a crawl run with its final counters.
func (s *Store) FinishCrawl(ctx context.Context, id string, st CrawlStats) error {
	status := "done"
	if st.Failures > 0 {
		status = "partial"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_runs SET finished_at = CURRENT_TIMESTAMP, pages = ?, entities = ?, failures = ?,
			status = ?, last_error = ?
		WHERE id = ?
	`, st.Pages, st.Entities, st.Failures, status, nullString(st.LastError), id)
	return err
}

// ListCrawls returns the most recent crawl runs first.
func (s *Store) ListCrawls(ctx context.Context, limit int) ([]CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, ''), pages, entities, failures, status, COALESCE(last_error, '')
		FROM crawl_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CrawlRun
	for rows.Next() {
		var r CrawlRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Pages, &r.Entities,
			&r.Failures, &r.Status, &r.LastError); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- helpers ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPokemon(sc scanner) (*Pokemon, error) {
	var (
		p                  Pokemon
		dexNumber          sql.NullInt64
		height, weight     sql.NullFloat64
		fx, abilities, evo sql.NullString
	)
	if err := sc.Scan(&p.Slug, &p.DexID, &dexNumber, &p.Name, &p.Link, &height, &weight,
		&fx, &abilities, &evo, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if dexNumber.Valid {
		n := int(dexNumber.Int64)
		p.DexNumber = &n
	}
	if height.Valid {
		p.HeightCM = &height.Float64
	}
	if weight.Valid {
		p.WeightKG = &weight.Float64
	}
	if fx.Valid && fx.String != "" {
		if err := json.Unmarshal([]byte(fx.String), &p.Effectiveness); err != nil {
			return nil, fmt.Errorf("decoding effectiveness of %s: %w", p.Slug, err)
		}
	}
	if abilities.Valid && abilities.String != "" {
		if err := json.Unmarshal([]byte(abilities.String), &p.Abilities); err != nil {
			return nil, fmt.Errorf("decoding abilities of %s: %w", p.Slug, err)
		}
	}
	if evo.Valid && evo.String != "" && evo.String != "null" {
		p.Evolution = &evolution.Record{}
		if err := json.Unmarshal([]byte(evo.String), p.Evolution); err != nil {
			return nil, fmt.Errorf("decoding evolution of %s: %w", p.Slug, err)
		}
	}
	return &p, nil
}

// loadRelations fills Types and Transitions for the given entities.
func (s *Store) loadRelations(ctx context.Context, ps []*Pokemon) error {
	if len(ps) == 0 {
		return nil
	}
	bySlug := make(map[string]*Pokemon, len(ps))
	for _, p := range ps {
		bySlug[p.Slug] = p
		p.Types = []string{}
		p.Transitions = []evolution.Transition{}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT slug, type FROM pokemon_types ORDER BY slug, position")
	if err != nil {
		return fmt.Errorf("loading types: %w", err)
	}
	for rows.Next() {
		var slug, typ string
		if err := rows.Scan(&slug, &typ); err != nil {
			rows.Close()
			return err
		}
		if p, ok := bySlug[slug]; ok {
			p.Types = append(p.Types, typ)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT from_slug, to_slug, COALESCE(to_dex_id, ''), COALESCE(to_name, ''), COALESCE(to_link, ''),
			COALESCE(method, ''), level, COALESCE(item, ''), COALESCE(item_link, '')
		FROM transitions ORDER BY from_slug, position
	`)
	if err != nil {
		return fmt.Errorf("loading transitions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t     evolution.Transition
			level sql.NullInt64
		)
		if err := rows.Scan(&t.FromSlug, &t.ToSlug, &t.ToID, &t.ToName, &t.ToLink,
			&t.Method, &level, &t.Item, &t.ItemLink); err != nil {
			return err
		}
		p, ok := bySlug[t.FromSlug]
		if !ok {
			continue
		}
		if level.Valid {
			l := int(level.Int64)
			t.Level = &l
		}
		t.FromID, t.FromName = p.DexID, p.Name
		p.Transitions = append(p.Transitions, t)
	}
	return rows.Err()
}

func marshalJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
