package annotate

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// GraphQL tags records whose request body is a GraphQL call with the
// operation type and name:
//
//	graphql.operation = query | mutation | subscription
//	graphql.name      = <operation name, when the document has one>
//
// Only POST bodies shaped like {"query": "...", ...} are considered;
// anything else is left untouched.
type GraphQL struct{}

// Annotate implements capture.Annotator.
func (GraphQL) Annotate(rec *tracelog.Record) {
	if rec.Method != "POST" {
		return
	}
	body, ok := rec.RequestBody.(map[string]any)
	if !ok {
		return
	}
	query, ok := body["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil || len(doc.Operations) == 0 {
		return
	}

	// Multi-operation documents pick the one named by operationName,
	// matching server-side selection rules; otherwise the first.
	op := doc.Operations[0]
	if name, ok := body["operationName"].(string); ok && name != "" {
		for _, candidate := range doc.Operations {
			if candidate.Name == name {
				op = candidate
				break
			}
		}
	}

	set(rec, "graphql.operation", string(op.Operation))
	if op.Name != "" {
		set(rec, "graphql.name", op.Name)
	}
}

func set(rec *tracelog.Record, key, value string) {
	if rec.Annotations == nil {
		rec.Annotations = make(map[string]string)
	}
	rec.Annotations[key] = value
}
