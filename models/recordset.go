package models

// RecordSet accumulates flight records in first-seen order, dropping any record
// whose key is already present.
type RecordSet struct {
	seen    map[RecordKey]struct{}
	records []FlightRecord
}

// NewRecordSet creates an empty RecordSet.
func NewRecordSet() *RecordSet {
	return &RecordSet{seen: make(map[RecordKey]struct{})}
}

// Add appends r unless a record with the same key was added before.
// It returns true when r was new.
func (s *RecordSet) Add(r FlightRecord) bool {
	k := r.Key()
	if _, dup := s.seen[k]; dup {
		return false
	}
	s.seen[k] = struct{}{}
	s.records = append(s.records, r)
	return true
}

// Merge adds every record of rs and returns how many were new.
func (s *RecordSet) Merge(rs []FlightRecord) int {
	added := 0
	for _, r := range rs {
		if s.Add(r) {
			added++
		}
	}
	return added
}

// Len returns the number of distinct records.
func (s *RecordSet) Len() int {
	return len(s.records)
}

// Records returns a copy of the accumulated records.
func (s *RecordSet) Records() []FlightRecord {
	out := make([]FlightRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Truncate keeps only the first n records.
func (s *RecordSet) Truncate(n int) {
	if n < 0 || n >= len(s.records) {
		return
	}
	for _, r := range s.records[n:] {
		delete(s.seen, r.Key())
	}
	s.records = s.records[:n]
}

// Dedup returns rs without repeated keys, preserving first-seen order.
func Dedup(rs []FlightRecord) []FlightRecord {
	set := NewRecordSet()
	set.Merge(rs)
	return set.Records()
}
