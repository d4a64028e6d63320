package normalize

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ohler55/ojg/oj"
	"golang.org/x/text/encoding/htmlindex"
)

// Descriptor is the canonical stand-in for payloads whose raw content is not
// stored: binary blobs, byte buffers, form file fields, and event streams.
// It identifies kind and size without embedding any bytes.
type Descriptor struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	Size int    `json:"size"`
}

// Descriptor kinds.
const (
	KindBlob        = "blob"
	KindBuffer      = "buffer"
	KindFile        = "file"
	KindStream      = "stream"
	KindUnparseable = "unparseable"
)

// Unparseable is the sentinel returned when a body cannot be classified or
// parsed. Normalization returns it instead of raising, so a malformed
// payload can never fail the underlying network call.
func Unparseable() Descriptor {
	return Descriptor{Kind: KindUnparseable}
}

// Stream describes a body that was deliberately not consumed
// (e.g. text/event-stream), so only its existence is recorded.
func Stream() Descriptor {
	return Descriptor{Kind: KindStream}
}

// Body converts raw body bytes into the canonical value for the given
// content type:
//
//   - nil/empty input -> nil (canonical "no body")
//   - multipart/form-data -> map of field name to value; file fields reduced
//     to a Descriptor{Kind:"file", Name, Size}
//   - application/x-www-form-urlencoded -> map of key to string value
//   - declared binary media types (image/*, audio/*, video/*, font/*,
//     application/octet-stream, application/pdf, ...) -> Descriptor
//     ("blob"), even when the bytes happen to be valid UTF-8
//   - text that parses as JSON -> the parsed structure
//   - text that does not parse as JSON -> the raw string
//   - non-UTF-8 payloads -> Descriptor ("blob" when a content type names the
//     data, "buffer" for an untyped byte slice)
//
// Body never panics outward and never returns an error.
func Body(data []byte, contentType string) (canonical any) {
	defer func() {
		if recover() != nil {
			canonical = Unparseable()
		}
	}()

	if len(data) == 0 {
		return nil
	}

	mediaType, params := parseMediaType(contentType)

	switch mediaType {
	case "multipart/form-data":
		return formData(data, params["boundary"])
	case "application/x-www-form-urlencoded":
		return urlEncodedForm(data)
	}

	if binaryMediaType(mediaType) {
		return Descriptor{Kind: KindBlob, Size: len(data)}
	}

	if cs := params["charset"]; cs != "" {
		data = decodeCharset(data, cs)
	}

	if !utf8.Valid(data) {
		kind := KindBuffer
		if contentType != "" {
			kind = KindBlob
		}
		return Descriptor{Kind: kind, Size: len(data)}
	}

	text := string(data)
	if parsed, err := oj.ParseString(text); err == nil {
		return parsed
	}
	return text
}

// binaryMediaType reports whether the declared media type names binary
// data. Such bodies become blob descriptors regardless of byte content:
// a small binary payload can happen to be valid UTF-8.
func binaryMediaType(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "font/"):
		return true
	}
	switch mediaType {
	case "application/octet-stream", "application/pdf", "application/zip",
		"application/gzip", "application/x-protobuf", "application/grpc",
		"application/wasm", "application/vnd.ms-excel":
		return true
	}
	return false
}

func parseMediaType(contentType string) (string, map[string]string) {
	if contentType == "" {
		return "", nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType)), nil
	}
	return mediaType, params
}

func formData(data []byte, boundary string) any {
	if boundary == "" {
		return Unparseable()
	}
	reader := multipart.NewReader(bytes.NewReader(data), boundary)
	fields := map[string]any{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Unparseable()
		}
		content, err := io.ReadAll(part)
		if err != nil {
			return Unparseable()
		}
		if filename := part.FileName(); filename != "" {
			fields[part.FormName()] = Descriptor{Kind: KindFile, Name: filename, Size: len(content)}
		} else {
			fields[part.FormName()] = string(content)
		}
	}
	return fields
}

func urlEncodedForm(data []byte) any {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return Unparseable()
	}
	form := make(map[string]string, len(values))
	for k, vals := range values {
		form[k] = strings.Join(vals, ", ")
	}
	return form
}

// decodeCharset transcodes to UTF-8 when the declared charset is known.
// Unknown charsets or decode failures leave the data as-is, so the later
// UTF-8 validity check classifies it instead.
func decodeCharset(data []byte, charset string) []byte {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii":
		return data
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return data
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}
