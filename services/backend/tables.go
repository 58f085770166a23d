package backendsvc

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
)

var errNoRowAffected = errors.New("no row affected")

func eq(v string) string {
	return "eq." + v
}

func eqID(id int64) string {
	return eq(strconv.FormatInt(id, 10))
}

// table sends a request to the table endpoint and returns the response body.
func (c *Client) table(ctx context.Context, method rest.Method, table string, query map[string]string, body interface{}) (string, error) {
	req, err := c.newRequest(method, restPath+"/"+table, query, body)
	if err != nil {
		return "", core.NewDataError(core.DataValidation, table, err)
	}
	if method != rest.Get {
		req.Headers["Prefer"] = "return=representation"
	}
	res, err := c.send(ctx, req)
	if err != nil {
		return "", dataError(table, err)
	}
	return res.Body, nil
}

// single checks a representation holds a row; an empty one means the filter matched nothing visible.
func single(table string, n int) error {
	if n == 0 {
		return core.NewDataError(core.DataNotFound, table, errNoRowAffected)
	}
	return nil
}

func (c *Client) ListClasses(ctx context.Context, ownerID string) ([]classroom.Class, error) {
	body, err := c.table(ctx, rest.Get, classroom.ClassTable, map[string]string{
		"select":       strings.Join(classroom.ClassColumns, ","),
		"professor_id": eq(ownerID),
		"order":        "nome.asc",
	}, nil)
	if err != nil {
		return nil, err
	}
	return decodeClasses(body)
}

func (c *Client) CreateClass(ctx context.Context, name, ownerID string) (classroom.Class, error) {
	body, err := c.table(ctx, rest.Post, classroom.ClassTable, map[string]string{
		"select": strings.Join(classroom.ClassColumns, ","),
	}, map[string]string{"nome": name, "professor_id": ownerID})
	if err != nil {
		return classroom.Class{}, err
	}
	classes, err := decodeClasses(body)
	if err != nil {
		return classroom.Class{}, err
	}
	if err = single(classroom.ClassTable, len(classes)); err != nil {
		return classroom.Class{}, err
	}
	return classes[0], nil
}

func (c *Client) UpdateClass(ctx context.Context, id int64, name string) (classroom.Class, error) {
	body, err := c.table(ctx, rest.Patch, classroom.ClassTable, map[string]string{
		"select": strings.Join(classroom.ClassColumns, ","),
		"id":     eqID(id),
	}, map[string]string{"nome": name})
	if err != nil {
		return classroom.Class{}, err
	}
	classes, err := decodeClasses(body)
	if err != nil {
		return classroom.Class{}, err
	}
	if err = single(classroom.ClassTable, len(classes)); err != nil {
		return classroom.Class{}, err
	}
	return classes[0], nil
}

func (c *Client) DeleteClass(ctx context.Context, id int64) error {
	body, err := c.table(ctx, rest.Delete, classroom.ClassTable, map[string]string{
		"select": "id",
		"id":     eqID(id),
	}, nil)
	if err != nil {
		return err
	}
	deleted, err := countRows(classroom.ClassTable, body)
	if err != nil {
		return err
	}
	return single(classroom.ClassTable, deleted)
}

func (c *Client) ListActivities(ctx context.Context, classID int64) ([]classroom.Activity, error) {
	body, err := c.table(ctx, rest.Get, classroom.ActivityTable, map[string]string{
		"select":   strings.Join(classroom.ActivityColumns, ","),
		"turma_id": eqID(classID),
		"order":    "created_at.desc",
	}, nil)
	if err != nil {
		return nil, err
	}
	return decodeActivities(body)
}

func (c *Client) CreateActivity(ctx context.Context, classID int64, description string) (classroom.Activity, error) {
	body, err := c.table(ctx, rest.Post, classroom.ActivityTable, map[string]string{
		"select": strings.Join(classroom.ActivityColumns, ","),
	}, map[string]interface{}{"descricao": description, "turma_id": classID})
	if err != nil {
		return classroom.Activity{}, err
	}
	acts, err := decodeActivities(body)
	if err != nil {
		return classroom.Activity{}, err
	}
	if err = single(classroom.ActivityTable, len(acts)); err != nil {
		return classroom.Activity{}, err
	}
	return acts[0], nil
}

func (c *Client) UpdateActivity(ctx context.Context, id int64, description string) (classroom.Activity, error) {
	body, err := c.table(ctx, rest.Patch, classroom.ActivityTable, map[string]string{
		"select": strings.Join(classroom.ActivityColumns, ","),
		"id":     eqID(id),
	}, map[string]string{"descricao": description})
	if err != nil {
		return classroom.Activity{}, err
	}
	acts, err := decodeActivities(body)
	if err != nil {
		return classroom.Activity{}, err
	}
	if err = single(classroom.ActivityTable, len(acts)); err != nil {
		return classroom.Activity{}, err
	}
	return acts[0], nil
}

func (c *Client) DeleteActivity(ctx context.Context, id int64) error {
	body, err := c.table(ctx, rest.Delete, classroom.ActivityTable, map[string]string{
		"select": "id",
		"id":     eqID(id),
	}, nil)
	if err != nil {
		return err
	}
	deleted, err := countRows(classroom.ActivityTable, body)
	if err != nil {
		return err
	}
	return single(classroom.ActivityTable, deleted)
}

func countRows(table, body string) (int, error) {
	var rows []struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return 0, core.NewDataError(core.DataValidation, table, errors.Wrap(errSchemaMismatch, err.Error()))
	}
	return len(rows), nil
}
