// Package normalize converts arbitrary request/response header and body
// representations into one canonical, inspectable form.
//
// Headers arrive as string maps, http.Header values, ordered pair lists, or
// raw "Key: value" header blocks; all become a flat map[string]string with
// key case preserved as supplied.
//
// Bodies become one of three canonical shapes: a parsed JSON structure,
// a plain string, or a small Descriptor identifying kind and size without
// embedding raw bytes (binary blobs, form file fields, event streams).
// An absent body stays nil, distinct from an empty string or empty object.
//
// Normalization never fails the underlying call: anything that cannot be
// classified or parsed comes back as the "unparseable" Descriptor sentinel
// rather than an error.
package normalize
