package branches

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

// lockSet collects the tables a merge run will touch so both databases can be
// locked up front in a single LOCK TABLES statement.
type lockSet struct {
	tables map[string]struct{}
}

func newLockSet() *lockSet {
	return &lockSet{tables: make(map[string]struct{})}
}

func (s *lockSet) add(table string) {
	table = strings.TrimSpace(table)
	if table == "" {
		return
	}
	s.tables[table] = struct{}{}
	if models.HasArchiveTwin(table) {
		s.tables[table+models.ArchiveSuffix] = struct{}{}
	}
}

// addRecord registers every table a single history record can write to.
func (s *lockSet) addRecord(record models.HistoryRecord) {
	s.add(record.TableName)

	if record.Action.IsItemScoped() {
		prefix, _ := models.ItemTablePrefix(record.TableName)
		s.add(prefix + models.TableWiserItem)
		s.add(prefix + models.TableWiserItemDetail)
		s.add(prefix + models.TableWiserItemFile)
		s.add(prefix + models.TableWiserItemLink)
		s.add(prefix + models.TableWiserItemLinkDetail)
	}

	if _, table, _, ok := record.Action.SettingsAction(); ok {
		s.add(table)
	}
}

// sorted returns the tables in deterministic order; LOCK TABLES ordering must
// be stable to avoid lock cycles between concurrent merges.
func (s *lockSet) sorted() []string {
	out := make([]string, 0, len(s.tables))
	for table := range s.tables {
		out = append(out, table)
	}
	sort.Strings(out)
	return out
}

// lockStatement renders a LOCK TABLES ... WRITE statement for the set plus
// any extra tables the caller needs held on that side.
func (s *lockSet) lockStatement(extra ...string) string {
	tables := s.sorted()
	seen := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		seen[t] = struct{}{}
	}
	for _, t := range extra {
		if _, ok := seen[t]; !ok {
			tables = append(tables, t)
			seen[t] = struct{}{}
		}
	}

	clauses := make([]string, 0, len(tables))
	for _, table := range tables {
		clauses = append(clauses, fmt.Sprintf("%s WRITE", database.QuoteIdentifier(table)))
	}
	return "LOCK TABLES " + strings.Join(clauses, ", ")
}

func lockTables(ctx context.Context, session database.Session, set *lockSet, extra ...string) error {
	if len(set.tables)+len(extra) == 0 {
		return nil
	}
	if _, err := session.ExecContext(ctx, set.lockStatement(extra...)); err != nil {
		return fmt.Errorf("locking tables: %w", err)
	}
	return nil
}

// unlockTables releases all table locks held by the session. Safe to call
// even when LOCK TABLES never ran.
func unlockTables(ctx context.Context, session database.Session) error {
	_, err := session.ExecContext(ctx, "UNLOCK TABLES")
	return err
}
