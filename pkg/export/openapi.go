package export

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// segments that look like identifiers collapse into a path parameter so
// /users/42 and /users/7 produce one templated operation
var identSegment = regexp.MustCompile(`^(\d+|[0-9a-fA-F-]{16,}|req-[0-9a-z]+)$`)

// OpenAPI derives an OpenAPI 3 skeleton from observed traffic: one
// operation per (method, templated path) pair, with each observed status
// code as a response. It is a starting point for a real spec, not a
// faithful contract.
func OpenAPI(records []*tracelog.Record) ([]byte, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Captured traffic",
			Description: "Skeleton derived from observed requests.",
			Version:     "0.1.0",
		},
		Paths: openapi3.NewPaths(),
	}

	type opKey struct{ method, path string }
	ops := make(map[opKey]*openapi3.Operation)
	var keys []opKey

	for _, rec := range records {
		if rec.ResponseStatus == 0 {
			continue // transport failures carry no contract information
		}
		u, err := url.Parse(rec.URL)
		if err != nil {
			continue
		}
		key := opKey{method: rec.Method, path: templatePath(u.Path)}

		op, ok := ops[key]
		if !ok {
			op = &openapi3.Operation{
				OperationID: operationID(key.method, key.path),
				Responses:   openapi3.NewResponses(openapi3.WithName("default", openapi3.NewResponse().WithDescription("observed"))),
			}
			for _, name := range sortedKeys(rec.QueryParams) {
				op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter(name).WithSchema(openapi3.NewStringSchema()),
				})
			}
			ops[key] = op
			keys = append(keys, key)
		}

		status := fmt.Sprint(rec.ResponseStatus)
		if op.Responses.Value(status) == nil {
			resp := openapi3.NewResponse().WithDescription(http.StatusText(rec.ResponseStatus))
			if ct := rec.ResponseHeaders["Content-Type"]; ct != "" {
				resp = resp.WithContent(openapi3.NewContentWithSchema(nil, []string{mediaType(ct)}))
			}
			op.Responses.Set(status, &openapi3.ResponseRef{Value: resp})
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].path != keys[j].path {
			return keys[i].path < keys[j].path
		}
		return keys[i].method < keys[j].method
	})
	for _, key := range keys {
		item := doc.Paths.Value(key.path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(key.path, item)
		}
		item.SetOperation(key.method, ops[key])
	}

	return doc.MarshalJSON()
}

func templatePath(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if identSegment.MatchString(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func operationID(method, path string) string {
	cleaned := strings.NewReplacer("/", "_", "{", "", "}", "").Replace(strings.Trim(path, "/"))
	if cleaned == "" {
		cleaned = "root"
	}
	return strings.ToLower(method) + "_" + cleaned
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return contentType
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
