package bankcfg

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
)

// Snapshot is an immutable view of the active parser configs and field
// mappings. A parse run holds one snapshot for its whole lifetime, so a
// concurrent administrative update can never change config mid-flight.
type Snapshot struct {
	configs  []ParserConfig          // stable priority order
	byCode   map[string]ParserConfig // upper-cased bank code
	mappings map[string]FieldMapping // bankCode + "\x00" + fieldKey, active only
	generic  ParserConfig
}

// Configs returns the registered configs in detection priority order.
func (s *Snapshot) Configs() []ParserConfig {
	return s.configs
}

// Resolve looks up a bank code. Exact match first; qualifier suffixes
// ("HDFC_DYNAMIC") fall back to the base code; anything else resolves to the
// built-in generic config.
func (s *Snapshot) Resolve(bankCode string) ParserConfig {
	code := strings.ToUpper(strings.TrimSpace(bankCode))
	if cfg, ok := s.byCode[code]; ok {
		return cfg
	}
	if base := BaseCode(code); base != code {
		if cfg, ok := s.byCode[base]; ok {
			return cfg
		}
	}
	return s.generic
}

// FieldFor returns the active field mapping value for (bank code, field key),
// falling back to the base code, or "" when none exists.
func (s *Snapshot) FieldFor(bankCode, fieldKey string) string {
	code := strings.ToUpper(strings.TrimSpace(bankCode))
	if m, ok := s.mappings[code+"\x00"+fieldKey]; ok {
		return m.Value
	}
	if base := BaseCode(code); base != code {
		if m, ok := s.mappings[base+"\x00"+fieldKey]; ok {
			return m.Value
		}
	}
	return ""
}

// DateFormatsFor returns the date formats to try for a bank, honoring an
// active date_format field mapping ahead of the config's own list.
func (s *Snapshot) DateFormatsFor(bankCode string) []string {
	cfg := s.Resolve(bankCode)
	formats := cfg.DateFormats
	if override := s.FieldFor(bankCode, FieldDateFormat); override != "" {
		formats = append([]string{override}, formats...)
	}
	// Common formats are always the trailing fallback.
	return append(formats, CommonDateFormats...)
}

// Repository is the persistence surface the store refreshes from.
type Repository interface {
	ListActiveConfigs(ctx context.Context) ([]ParserConfig, error)
	ListActiveFieldMappings(ctx context.Context) ([]FieldMapping, error)
}

// Store publishes config snapshots. Reads are lock-free; Refresh builds a new
// snapshot and swaps it in atomically.
type Store struct {
	repo    Repository // nil: builtin registry only
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// NewStore creates a store seeded with the builtin registry. repo may be nil
// for a database-free deployment (tests, CLI tooling).
func NewStore(repo Repository, logger *slog.Logger) (*Store, error) {
	s := &Store{repo: repo, logger: logger}
	snap, err := s.build(context.Background())
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return s, nil
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Refresh rebuilds the snapshot from the builtin registry plus the active
// database configs and swaps it in. In-flight parse runs keep their old
// snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	snap, err := s.build(ctx)
	if err != nil {
		return err
	}
	s.current.Store(snap)
	s.logger.Info("bank config snapshot refreshed",
		slog.Int("configs", len(snap.configs)),
		slog.Int("field_mappings", len(snap.mappings)),
	)
	return nil
}

func (s *Store) build(ctx context.Context) (*Snapshot, error) {
	configs, err := Builtin()
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]ParserConfig, len(configs)+1)
	for _, cfg := range configs {
		byCode[cfg.BankCode] = cfg
	}

	mappings := make(map[string]FieldMapping)

	if s.repo != nil {
		dbConfigs, err := s.repo.ListActiveConfigs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load parser configs: %w", err)
		}
		for _, cfg := range dbConfigs {
			byCode[strings.ToUpper(cfg.BankCode)] = cfg
		}

		dbMappings, err := s.repo.ListActiveFieldMappings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load field mappings: %w", err)
		}
		for _, m := range dbMappings {
			mappings[strings.ToUpper(m.BankCode)+"\x00"+m.FieldKey] = m
		}
	}

	ordered := make([]ParserConfig, 0, len(byCode))
	for _, cfg := range byCode {
		ordered = append(ordered, cfg)
	}
	// Stable detection order: priority, then bank code so equal priorities
	// stay deterministic.
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].BankCode < ordered[j].BankCode
	})

	return &Snapshot{
		configs:  ordered,
		byCode:   byCode,
		mappings: mappings,
		generic:  Generic(),
	}, nil
}
