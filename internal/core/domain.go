package core

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MeterCount is the number of heat cost allocators installed in the house.
const MeterCount = 7

// MeterNames labels each reading slot, by index.
var MeterNames = [MeterCount]string{
	"CUCINA",
	"BAGNO",
	"SOGGIORNO",
	"CAMERETTA",
	"STUDIO",
	"BAGNO 2",
	"CAMERA DA LETTO",
}

type (
	// Readings holds one cumulative value per meter, aligned with MeterNames.
	Readings [MeterCount]float64

	// Record is the set of readings taken for one calendar month.
	Record struct {
		Month    string // YYYY-MM, unique within a Collection
		Readings Readings
		Note     string
	}

	// Collection is the full set of records. Order carries no meaning;
	// every derived view sorts by month.
	Collection []Record

	// MergeResult reports how an import touched the existing collection.
	MergeResult struct {
		Added    []string
		Replaced []string
	}
)

var (
	ErrInvalidMonth = errors.New("invalid month key (YYYY-MM)")
	ErrNoteTooLong  = errors.New("note too long (max 500 characters)")
)

var monthKeyPattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}$`)

// ValidMonthKey reports whether s is a YYYY-MM key with a month in 01..12.
func ValidMonthKey(s string) bool {
	if !monthKeyPattern.MatchString(s) {
		return false
	}
	m, _ := strconv.Atoi(s[5:])
	return m >= 1 && m <= 12
}

func (r Record) Validate() error {
	if !ValidMonthKey(r.Month) {
		return ErrInvalidMonth
	}
	if len(r.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}

// MeterKey returns the CSV/chart column name of meter i (R1..R7).
func MeterKey(i int) string {
	return "R" + strconv.Itoa(i+1)
}

// Sum adds up all readings.
func (rs Readings) Sum() float64 {
	var total float64
	for _, v := range rs {
		total += v
	}
	return total
}

// Clone returns an independent copy of the collection.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Sorted returns a copy ordered by month key ascending. Lexicographic order
// equals chronological order for YYYY-MM keys.
func (c Collection) Sorted() Collection {
	out := c.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Month < out[j].Month
	})
	return out
}

// Find returns the record stored under month.
func (c Collection) Find(month string) (Record, bool) {
	for _, r := range c {
		if r.Month == month {
			return r, true
		}
	}
	return Record{}, false
}

// Months lists the month keys in ascending order.
func (c Collection) Months() []string {
	sorted := c.Sorted()
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = r.Month
	}
	return out
}

// Upsert inserts r or replaces the record with the same month in place.
func (c *Collection) Upsert(r Record) (replaced bool) {
	for i := range *c {
		if (*c)[i].Month == r.Month {
			(*c)[i] = r
			return true
		}
	}
	*c = append(*c, r)
	return false
}

// Remove deletes the record for month. Missing months are a no-op.
func (c *Collection) Remove(month string) bool {
	for i := range *c {
		if (*c)[i].Month == month {
			*c = append((*c)[:i], (*c)[i+1:]...)
			return true
		}
	}
	return false
}

// Merge upserts every record of in. Months absent from in are untouched.
func (c *Collection) Merge(in Collection) MergeResult {
	var res MergeResult
	for _, r := range in {
		if c.Upsert(r) {
			res.Replaced = append(res.Replaced, r.Month)
		} else {
			res.Added = append(res.Added, r.Month)
		}
	}
	return res
}

// PreviousOf returns the latest record strictly before month.
func (c Collection) PreviousOf(month string) (Record, bool) {
	var (
		prev  Record
		found bool
	)
	for _, r := range c {
		if r.Month < month && (!found || r.Month > prev.Month) {
			prev = r
			found = true
		}
	}
	return prev, found
}

// LowerThanPrevious lists the meters whose reading in candidate is below the
// previous month's cumulative value. An empty result means nothing looks like
// a meter reset or a typo.
func (c Collection) LowerThanPrevious(candidate Record) []string {
	prev, ok := c.PreviousOf(candidate.Month)
	if !ok {
		return nil
	}
	var names []string
	for i := range candidate.Readings {
		if candidate.Readings[i] < prev.Readings[i] {
			names = append(names, MeterNames[i])
		}
	}
	return names
}

// SanitizeNote trims the note and strips control characters other than tab.
func SanitizeNote(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}
