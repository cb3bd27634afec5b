package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// Page задает окно выборки.
type Page struct {
	Limit  int
	Offset int
}

// whereBuilder собирает WHERE с позиционными параметрами pgx.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, value interface{}) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limitOffset добавляет LIMIT/OFFSET и возвращает SQL-хвост.
func (w *whereBuilder) limitOffset(page Page) string {
	w.args = append(w.args, page.Limit, page.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
