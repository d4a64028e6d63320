package tracelog

import "strings"

// MethodWildcard matches any method when used as Filter.Method.
const MethodWildcard = "ALL"

// Filter defines criteria for filtering trace records.
// Zero-valued fields impose no constraint; set fields compose by logical AND.
type Filter struct {
	// Method filters by exact method match ("" or "ALL" matches everything).
	Method string

	// StatusClass keeps records whose status falls in the hundred-range of
	// the given class (400 keeps 400-499). Records without a status never
	// match a status class.
	StatusClass int

	// SearchText is matched case-insensitively as a substring of URL only.
	SearchText string

	// Transport filters by capture adapter (http, eventhttp, grpc).
	Transport string

	// HasError filters by transport-failure presence.
	HasError *bool

	// Limit is the maximum number of records to return (0 = no limit).
	Limit int

	// Offset is the number of records to skip.
	Offset int
}

// Matches reports whether the record satisfies every set criterion.
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.Method != "" && f.Method != MethodWildcard && r.Method != f.Method {
		return false
	}
	if f.StatusClass != 0 {
		if r.ResponseStatus < f.StatusClass || r.ResponseStatus >= f.StatusClass+100 {
			return false
		}
	}
	if f.SearchText != "" && !strings.Contains(strings.ToLower(r.URL), strings.ToLower(f.SearchText)) {
		return false
	}
	if f.Transport != "" && r.Transport != f.Transport {
		return false
	}
	if f.HasError != nil {
		hasError := r.Error != ""
		if *f.HasError != hasError {
			return false
		}
	}
	return true
}

// Apply evaluates the filter over a snapshot, preserving input order,
// then applies offset and limit.
func (f *Filter) Apply(records []*Record) []*Record {
	result := make([]*Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			result = append(result, r)
		}
	}
	if f == nil {
		return result
	}
	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return []*Record{}
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result
}
