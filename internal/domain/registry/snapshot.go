package registry

import "sort"

// index is a lookup structure over one registry collection, keyed by
// registration number and independently by council.
type index struct {
	records   []PractitionerRecord
	byNumber  map[string]int
	byCouncil map[string]int
}

func newIndex(records []PractitionerRecord) index {
	idx := index{
		records:   records,
		byNumber:  make(map[string]int, len(records)),
		byCouncil: make(map[string]int),
	}
	// First occurrence wins for both keys so lookups are deterministic.
	for i, r := range records {
		if n := NormalizeNumber(r.RegistrationNumber); n != "" {
			if _, ok := idx.byNumber[n]; !ok {
				idx.byNumber[n] = i
			}
		}
		if c := NormalizeCouncil(r.Council); c != "" {
			if _, ok := idx.byCouncil[c]; !ok {
				idx.byCouncil[c] = i
			}
		}
	}
	return idx
}

func (idx index) byNum(number string) (PractitionerRecord, bool) {
	n := NormalizeNumber(number)
	if n == "" {
		return PractitionerRecord{}, false
	}
	i, ok := idx.byNumber[n]
	if !ok {
		return PractitionerRecord{}, false
	}
	return idx.records[i], true
}

func (idx index) byCouncilName(council string) (PractitionerRecord, bool) {
	c := NormalizeCouncil(council)
	if c == "" {
		return PractitionerRecord{}, false
	}
	i, ok := idx.byCouncil[c]
	if !ok {
		return PractitionerRecord{}, false
	}
	return idx.records[i], true
}

// Snapshot is an immutable view of both registries. A Snapshot is never
// modified after NewSnapshot returns; reloads publish a new one.
type Snapshot struct {
	active      index
	blacklisted index
}

// NewSnapshot indexes the given authorized and blacklisted records. The
// slices are copied.
func NewSnapshot(authorized, blacklisted []PractitionerRecord) *Snapshot {
	a := append([]PractitionerRecord(nil), authorized...)
	b := append([]PractitionerRecord(nil), blacklisted...)
	return &Snapshot{active: newIndex(a), blacklisted: newIndex(b)}
}

// Empty returns a snapshot with no records in either registry.
func Empty() *Snapshot {
	return NewSnapshot(nil, nil)
}

// BlacklistedByNumber returns the blacklisted record with the given
// registration number.
func (s *Snapshot) BlacklistedByNumber(number string) (PractitionerRecord, bool) {
	return s.blacklisted.byNum(number)
}

// BlacklistedByCouncil returns the first blacklisted record issued by the
// given council.
func (s *Snapshot) BlacklistedByCouncil(council string) (PractitionerRecord, bool) {
	return s.blacklisted.byCouncilName(council)
}

// ActiveByNumber returns the authorized record with the given registration
// number.
func (s *Snapshot) ActiveByNumber(number string) (PractitionerRecord, bool) {
	return s.active.byNum(number)
}

// ActiveByCouncil returns the first authorized record issued by the given
// council.
func (s *Snapshot) ActiveByCouncil(council string) (PractitionerRecord, bool) {
	return s.active.byCouncilName(council)
}

// Lookup finds a practitioner by registration number, checking the active
// registry before the blacklist. It is a detail view and must not be used
// for access decisions; see validation.Engine for those.
func (s *Snapshot) Lookup(number string) (*Detail, bool) {
	if r, ok := s.active.byNum(number); ok {
		return &Detail{Collection: CollectionActive, Record: r}, true
	}
	if r, ok := s.blacklisted.byNum(number); ok {
		return &Detail{Collection: CollectionBlacklisted, Record: r}, true
	}
	return nil, false
}

// Len returns the number of records in each registry.
func (s *Snapshot) Len() (active, blacklisted int) {
	return len(s.active.records), len(s.blacklisted.records)
}

func (s *Snapshot) Stats() Stats {
	councils := make(map[string]struct{})
	quals := make(map[string]struct{})
	for _, r := range s.active.records {
		if r.Council != "" {
			councils[r.Council] = struct{}{}
		}
		if r.Qualification != "" {
			quals[r.Qualification] = struct{}{}
		}
	}
	return Stats{
		TotalActive:          len(s.active.records),
		TotalBlacklisted:     len(s.blacklisted.records),
		ActiveCouncils:       sortedKeys(councils),
		ActiveQualifications: sortedKeys(quals),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
