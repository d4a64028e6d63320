// Package export renders trace snapshots into interchange formats: curl
// command lines, HAR 1.2 archives, and OpenAPI 3 skeletons.
package export

import (
	"fmt"

	"github.com/ohler55/ojg/oj"

	"github.com/gettapd/tapd/pkg/normalize"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// Format names accepted by the inspect API and the CLI.
const (
	FormatCurl    = "curl"
	FormatHAR     = "har"
	FormatOpenAPI = "openapi"
)

// ErrUnknownFormat is returned for format names outside the supported set.
var ErrUnknownFormat = fmt.Errorf("unknown export format")

// Render exports records in the named format.
func Render(format string, records []*tracelog.Record) ([]byte, error) {
	switch format {
	case FormatCurl:
		return []byte(Curl(records)), nil
	case FormatHAR:
		return HAR(records)
	case FormatOpenAPI:
		return OpenAPI(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ContentType returns the response content type for a format.
func ContentType(format string) string {
	switch format {
	case FormatCurl:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// bodyText renders a canonical body value back to wire-ish text. Structured
// values re-serialize as JSON; descriptors have no reproducible text.
func bodyText(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case string:
		return v
	case normalize.Descriptor:
		return ""
	default:
		return oj.JSON(v)
	}
}
