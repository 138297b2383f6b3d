package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphqls
var sourceSchema string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: sourceSchema})

// Config is handed to NewExecutableSchema the same way a gqlgen config is.
type Config struct {
	Resolvers ResolverRoot
}

type ResolverRoot interface {
	Query() QueryResolver
	Mutation() MutationResolver
}

// NewExecutableSchema serves the schema in schema.graphqls. Root fields go to the typed
// resolvers; their results are projected onto the selection set through their JSON form,
// so every schema field name matches the json tag of the Go value behind it.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	return &executableSchema{resolvers: cfg.Resolvers}
}

type rootField func(ctx context.Context, args map[string]interface{}) (interface{}, error)

type executableSchema struct {
	resolvers ResolverRoot
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(typeName, field string, childComplexity int, rawArgs map[string]interface{}) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)

	var (
		root   *ast.Definition
		fields map[string]rootField
	)
	switch opCtx.Operation.Operation {
	case ast.Query:
		root, fields = parsedSchema.Query, e.queryFields()
	case ast.Mutation:
		root, fields = parsedSchema.Mutation, e.mutationFields()
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}

	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		var buf bytes.Buffer
		collected := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{root.Name})
		buf.WriteByte('{')
		// root fields run one after another, which mutations require
		for i, field := range collected {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSON(&buf, field.Alias)
			buf.WriteByte(':')
			if field.Name == "__typename" {
				writeJSON(&buf, root.Name)
				continue
			}
			value := e.resolveRoot(ctx, opCtx, root, field, fields[field.Name])
			if field.Definition == nil {
				buf.WriteString("null")
				continue
			}
			marshalValue(&buf, opCtx, field.Definition.Type, value, field.Selections)
		}
		buf.WriteByte('}')
		return &graphql.Response{Data: buf.Bytes()}
	}
}

func (e *executableSchema) resolveRoot(ctx context.Context, opCtx *graphql.OperationContext, root *ast.Definition, field graphql.CollectedField, resolve rootField) (result interface{}) {
	args := field.ArgumentMap(opCtx.Variables)
	fc := &graphql.FieldContext{
		Object:     root.Name,
		Field:      field,
		Args:       args,
		IsMethod:   true,
		IsResolver: true,
	}
	ctx = graphql.WithFieldContext(ctx, fc)
	if resolve == nil {
		graphql.AddErrorf(ctx, "field %s is not available", field.Name)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			graphql.AddError(ctx, opCtx.Recover(ctx, r))
			result = nil
		}
	}()

	next := func(ctx context.Context) (interface{}, error) {
		return resolve(ctx, args)
	}
	var (
		res interface{}
		err error
	)
	if opCtx.ResolverMiddleware != nil {
		res, err = opCtx.ResolverMiddleware(ctx, next)
	} else {
		res, err = next(ctx)
	}
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}
	fc.Result = res

	generic, err := toGeneric(res)
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}
	return generic
}

// toGeneric turns a resolver result into maps, slices and scalars keyed by json tags.
func toGeneric(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func marshalValue(buf *bytes.Buffer, opCtx *graphql.OperationContext, typ *ast.Type, value interface{}, sel ast.SelectionSet) {
	if value == nil || typ == nil {
		buf.WriteString("null")
		return
	}
	if typ.Elem != nil {
		items, ok := value.([]interface{})
		if !ok {
			buf.WriteString("null")
			return
		}
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			marshalValue(buf, opCtx, typ.Elem, item, sel)
		}
		buf.WriteByte(']')
		return
	}

	def := parsedSchema.Types[typ.NamedType]
	if def == nil || def.Kind != ast.Object {
		writeJSON(buf, value)
		return
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		buf.WriteString("null")
		return
	}
	buf.WriteByte('{')
	for i, field := range graphql.CollectFields(opCtx, sel, []string{def.Name}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSON(buf, field.Alias)
		buf.WriteByte(':')
		if field.Name == "__typename" {
			writeJSON(buf, def.Name)
			continue
		}
		fd := def.Fields.ForName(field.Name)
		if fd == nil {
			buf.WriteString("null")
			continue
		}
		marshalValue(buf, opCtx, fd.Type, obj[field.Name], field.Selections)
	}
	buf.WriteByte('}')
}

func writeJSON(buf *bytes.Buffer, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(raw)
}

// decodeArg fills target from one argument; a missing or null argument leaves it untouched.
func decodeArg(args map[string]interface{}, name string, target interface{}) error {
	v, ok := args[name]
	if !ok || v == nil {
		return nil
	}
	if err := decodeValue(v, target); err != nil {
		return fmt.Errorf("invalid argument %s: %w", name, err)
	}
	return nil
}

func decodeValue(v interface{}, target interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(target)
}

// splitUploads takes the Upload values out of a ReconcileInput argument, keyed by row index,
// and returns the rest of the input so it can be decoded as JSON.
func splitUploads(v interface{}) (map[int]*graphql.Upload, interface{}) {
	files := map[int]*graphql.Upload{}
	input, ok := v.(map[string]interface{})
	if !ok {
		return files, v
	}
	rows, ok := input["rows"].([]interface{})
	if !ok {
		return files, v
	}

	cleanRows := make([]interface{}, len(rows))
	for i, row := range rows {
		fields, ok := row.(map[string]interface{})
		if !ok {
			cleanRows[i] = row
			continue
		}
		clean := make(map[string]interface{}, len(fields))
		for k, fv := range fields {
			if k != "file" {
				clean[k] = fv
				continue
			}
			switch u := fv.(type) {
			case graphql.Upload:
				files[i] = &u
			case *graphql.Upload:
				files[i] = u
			}
		}
		cleanRows[i] = clean
	}

	out := make(map[string]interface{}, len(input))
	for k, fv := range input {
		out[k] = fv
	}
	out["rows"] = cleanRows
	return files, out
}

func (e *executableSchema) queryFields() map[string]rootField {
	q := e.resolvers.Query()
	return map[string]rootField{
		"recordKinds": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return q.RecordKinds(ctx)
		},
		"owners": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var ownerType *string
			if err := decodeArg(args, "ownerType", &ownerType); err != nil {
				return nil, err
			}
			return q.Owners(ctx, ownerType)
		},
		"owner": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var ownerKey string
			if err := decodeArg(args, "ownerKey", &ownerKey); err != nil {
				return nil, err
			}
			return q.Owner(ctx, ownerKey)
		},
		"ownerDocuments": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var ownerKey string
			if err := decodeArg(args, "ownerKey", &ownerKey); err != nil {
				return nil, err
			}
			return q.OwnerDocuments(ctx, ownerKey)
		},
		"histories": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var (
				first  *int
				after  *string
				filter *HistoryFilter
			)
			if err := decodeArg(args, "first", &first); err != nil {
				return nil, err
			}
			if err := decodeArg(args, "after", &after); err != nil {
				return nil, err
			}
			if err := decodeArg(args, "filter", &filter); err != nil {
				return nil, err
			}
			return q.Histories(ctx, first, after, filter)
		},
		"expiringDocuments": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var days *int
			if err := decodeArg(args, "days", &days); err != nil {
				return nil, err
			}
			return q.ExpiringDocuments(ctx, days)
		},
	}
}

func (e *executableSchema) mutationFields() map[string]rootField {
	m := e.resolvers.Mutation()
	return map[string]rootField{
		"saveOwner": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			var input OwnerInput
			if err := decodeArg(args, "input", &input); err != nil {
				return nil, err
			}
			return m.SaveOwner(ctx, input)
		},
		"reconcileDocuments": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			files, rest := splitUploads(args["input"])
			var input ReconcileInput
			if err := decodeValue(rest, &input); err != nil {
				return nil, fmt.Errorf("invalid argument input: %w", err)
			}
			for i, file := range files {
				if i < len(input.Rows) {
					input.Rows[i].File = file
				}
			}
			return m.ReconcileDocuments(ctx, input)
		},
	}
}
