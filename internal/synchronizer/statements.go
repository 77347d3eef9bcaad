package synchronizer

import (
	"fmt"
	"strings"

	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/internal/dialect"
)

// statements renders the row-level DML of one operation. Key predicates are
// built per row so that NULL key values match with IS NULL.
type statements struct {
	profile dialect.Profile
	table   string
	columns []string
	keys    []string
	nonKeys []string
}

func newStatements(profile dialect.Profile, table string, columns, keys []string) statements {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var nonKeys []string
	for _, c := range columns {
		if !isKey[c] {
			nonKeys = append(nonKeys, c)
		}
	}
	return statements{
		profile: profile,
		table:   table,
		columns: columns,
		keys:    keys,
		nonKeys: nonKeys,
	}
}

func (s statements) value(row dataset.Row, column string) interface{} {
	return s.profile.BindValue(dataset.CoerceNull(row[column]))
}

// keyValues returns the key columns of a row for failure reports
func (s statements) keyValues(row dataset.Row) map[string]interface{} {
	if len(s.keys) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(s.keys))
	for _, k := range s.keys {
		values[k] = dataset.CoerceNull(row[k])
	}
	return values
}

// where renders the key predicate, numbering placeholders from next
func (s statements) where(row dataset.Row, next int) (string, []interface{}) {
	conds := make([]string, 0, len(s.keys))
	var args []interface{}
	for _, k := range s.keys {
		v := s.value(row, k)
		if v == nil {
			conds = append(conds, s.profile.Quote(k)+" IS NULL")
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = %s", s.profile.Quote(k), s.profile.Placeholder(next)))
		args = append(args, v)
		next++
	}
	return strings.Join(conds, " AND "), args
}

func (s statements) lookup(row dataset.Row) (string, []interface{}) {
	cond, args := s.where(row, 1)
	return "SELECT COUNT(*) FROM " + s.table + " WHERE " + cond, args
}

func (s statements) insert(row dataset.Row) (string, []interface{}) {
	names := make([]string, len(s.columns))
	marks := make([]string, len(s.columns))
	args := make([]interface{}, len(s.columns))
	for i, c := range s.columns {
		names[i] = s.profile.Quote(c)
		marks[i] = s.profile.Placeholder(i + 1)
		args[i] = s.value(row, c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, strings.Join(names, ", "), strings.Join(marks, ", "))
	return query, args
}

func (s statements) update(row dataset.Row) (string, []interface{}) {
	sets := make([]string, len(s.nonKeys))
	args := make([]interface{}, 0, len(s.nonKeys)+len(s.keys))
	for i, c := range s.nonKeys {
		sets[i] = fmt.Sprintf("%s = %s", s.profile.Quote(c), s.profile.Placeholder(i+1))
		args = append(args, s.value(row, c))
	}
	cond, keyArgs := s.where(row, len(s.nonKeys)+1)
	query := "UPDATE " + s.table + " SET " + strings.Join(sets, ", ") + " WHERE " + cond
	return query, append(args, keyArgs...)
}

func (s statements) delete(row dataset.Row) (string, []interface{}) {
	cond, args := s.where(row, 1)
	return "DELETE FROM " + s.table + " WHERE " + cond, args
}
