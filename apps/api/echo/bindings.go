package echoapi

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

const (
	selectParam = "select"
	orderParam  = "order"
	eqOperator  = "eq."

	preferRepresentation = "return=representation"
)

// tableQuery is the subset of the PostgREST query grammar the tables understand.
type tableQuery struct {
	Select   []string
	Filters  map[string]string // column: value of an `eq.` filter
	Ordering []core.DBOrdering
}

func (q tableQuery) hasFilters() bool {
	return len(q.Filters) > 0
}

func columnError(col string) *apiError {
	return newAPIError(http.StatusBadRequest, "42703", "column "+strconv.Quote(col)+" does not exist")
}

// bindTableQuery reads select, order & filters from the query string. Only columns in cols are accepted,
// and only filterable ones may be filtered on.
func bindTableQuery(ctx echo.Context, cols, filterable []string) (tableQuery, error) {
	q := tableQuery{Select: cols, Filters: make(map[string]string)}

	for key, vals := range ctx.QueryParams() {
		if len(vals) == 0 || key == apiKeyHeader {
			continue
		}
		val := vals[0]

		switch key {
		case selectParam:
			if val == "" || val == "*" {
				continue
			}
			sel := make([]string, 0, len(cols))
			for _, col := range strings.Split(val, ",") {
				col = strings.TrimSpace(col)
				if !classroom.ValidColumn(cols, col) {
					return q, columnError(col)
				}
				sel = append(sel, col)
			}
			q.Select = sel
		case orderParam:
			for _, ord := range core.ParseOrdering(val) {
				if !classroom.ValidColumn(cols, ord.Field) {
					return q, columnError(ord.Field)
				}
				q.Ordering = append(q.Ordering, ord)
			}
		default:
			if !classroom.ValidColumn(cols, key) {
				return q, columnError(key)
			}
			if !classroom.ValidColumn(filterable, key) || !strings.HasPrefix(val, eqOperator) {
				return q, newAPIError(http.StatusBadRequest, "PGRST100", "unsupported filter on "+strconv.Quote(key))
			}
			q.Filters[key] = strings.TrimPrefix(val, eqOperator)
		}
	}
	return q, nil
}

func parseID(col, val string) (int64, error) {
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, newAPIError(http.StatusBadRequest, "22P02", "invalid input syntax for type bigint: "+strconv.Quote(val)+" ("+col+")")
	}
	return id, nil
}

// bindRows decodes a JSON object, or an array of objects, into column: raw value rows.
// Columns outside writable are rejected.
func bindRows(ctx echo.Context, writable []string) ([]map[string]json.RawMessage, error) {
	body, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}
	body = bytes.TrimSpace(body)

	var rows []map[string]json.RawMessage
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &rows)
	} else {
		row := make(map[string]json.RawMessage)
		err = json.Unmarshal(body, &row)
		rows = append(rows, row)
	}
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, "PGRST102", "Invalid JSON body")
	}

	for _, row := range rows {
		for col := range row {
			if !classroom.ValidColumn(writable, col) {
				return nil, newAPIError(http.StatusBadRequest, "PGRST204", "Could not find the "+strconv.Quote(col)+" column")
			}
		}
	}
	return rows, nil
}

// stringField returns the string value of col; ok is false when the column is absent or null.
func stringField(row map[string]json.RawMessage, col string) (val string, ok bool, err error) {
	raw, present := row[col]
	if !present || string(raw) == "null" {
		return "", false, nil
	}
	if err = json.Unmarshal(raw, &val); err != nil {
		return "", false, newAPIError(http.StatusBadRequest, "22P02", "invalid input syntax for "+col)
	}
	return val, true, nil
}

func int64Field(row map[string]json.RawMessage, col string) (val int64, ok bool, err error) {
	raw, present := row[col]
	if !present || string(raw) == "null" {
		return 0, false, nil
	}
	if err = json.Unmarshal(raw, &val); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false, newAPIError(http.StatusBadRequest, "22P02", "invalid input syntax for type bigint ("+col+")")
		}
		val, err = parseID(col, s)
		if err != nil {
			return 0, false, err
		}
	}
	return val, true, nil
}

func notNullViolation(col string) *apiError {
	return newAPIError(http.StatusBadRequest, "23502", "null value in column "+strconv.Quote(col)+" violates not-null constraint")
}

// project keeps the selected columns of each record.
func project(records interface{}, sel []string) ([]map[string]json.RawMessage, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "encoding rows")
	}
	var rows []map[string]json.RawMessage
	if err = json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, "decoding rows")
	}

	out := make([]map[string]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		projected := make(map[string]json.RawMessage, len(sel))
		for _, col := range sel {
			projected[col] = row[col]
		}
		out = append(out, projected)
	}
	return out, nil
}

func wantsRepresentation(ctx echo.Context) bool {
	for _, pref := range strings.Split(ctx.Request().Header.Get("Prefer"), ",") {
		if strings.TrimSpace(pref) == preferRepresentation {
			return true
		}
	}
	return false
}

// respondRows writes the affected rows when asked to, or just the status.
func respondRows(ctx echo.Context, status int, records interface{}, sel []string) error {
	if ctx.Request().Method != http.MethodGet && !wantsRepresentation(ctx) {
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		return ctx.NoContent(status)
	}
	rows, err := project(records, sel)
	if err != nil {
		return err
	}
	return ctx.JSON(status, rows)
}
