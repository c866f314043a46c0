package admin

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// ErrTagRow is returned when the row passed for resolution is the HXL tag
// row itself.
var ErrTagRow = errors.New("hxl tag row")

// Row tags used for resolution.
const (
	TagRowCountry = "#country+code"
	TagRowAdmin1  = "#adm1+code"
	TagRowAdmin2  = "#adm2+code"
)

var (
	adminNameTag    = regexp.MustCompile(`^#adm(\d)\+name(\+|$)`)
	adminNameHeader = regexp.MustCompile(`^Admin (\d) Name$`)
)

// MaxLevelFromTags returns the deepest N among "#admN+name" tags, 0 if none.
func MaxLevelFromTags(tags []string) int {
	maxLevel := 0
	for _, tag := range tags {
		m := adminNameTag.FindStringSubmatch(tabular.CleanTag(tag))
		if m == nil {
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n > maxLevel {
			maxLevel = n
		}
	}
	return maxLevel
}

// InferLevel returns the deepest admin level for which row has a non-empty
// name, capped at maxLevel. Name columns are found through "#admN+name"
// tags, or literal "Admin N Name" headers when fields has none.
func InferLevel(fields tabular.Fields, row tabular.Row, maxLevel int) int {
	level := 0
	raise := func(n int) {
		if n > level {
			level = n
		}
	}

	tagged := false
	for tag, header := range fields {
		m := adminNameTag.FindStringSubmatch(tag)
		if m == nil || header == "" {
			continue
		}
		tagged = true
		if row.Get(header) != "" {
			n, _ := strconv.Atoi(m[1])
			raise(n)
		}
	}
	if !tagged {
		for header := range row {
			m := adminNameHeader.FindStringSubmatch(header)
			if m != nil && row.Get(header) != "" {
				n, _ := strconv.Atoi(m[1])
				raise(n)
			}
		}
	}
	return min(level, maxLevel)
}

// rowLevel picks the level and code a row reports. The starting level is
// the deeper of the inferred name level and the deepest non-empty code
// column, capped at limit; each blank code then degrades one level.
func rowLevel(fields tabular.Fields, row tabular.Row, maxLevel int, limit Level) (Level, string) {
	iso3 := fields.Value(row, TagRowCountry)
	admin1 := fields.Value(row, TagRowAdmin1)
	admin2 := fields.Value(row, TagRowAdmin2)

	capLevel := limit
	if Level(maxLevel) < limit {
		capLevel = Level(max(maxLevel, 0))
	}
	level := min(Level(InferLevel(fields, row, maxLevel)), capLevel)
	switch {
	case capLevel >= AdminTwo && admin2 != "":
		level = AdminTwo
	case capLevel >= AdminOne && admin1 != "" && level < AdminOne:
		level = AdminOne
	}

	if level == AdminTwo {
		if admin2 != "" {
			return AdminTwo, admin2
		}
		level = AdminOne
	}
	if level == AdminOne && admin1 != "" {
		return AdminOne, admin1
	}
	return National, iso3
}

// Admin2RefFromRow resolves a row to an admin2 id. Levels deeper than
// admin2 are treated as admin2. A miss is reported once and returns
// ErrNotFound; callers may fall back to the national connector.
func (h *Hierarchy) Admin2RefFromRow(fields tabular.Fields, row tabular.Row, maxLevel int, dataset, pipeline string) (int64, error) {
	if fields.Value(row, TagRowCountry) == TagRowCountry {
		return 0, ErrTagRow
	}
	level, code := rowLevel(fields, row, maxLevel, AdminTwo)
	return h.Admin2Ref(level, code, dataset, pipeline)
}

// Admin1RefFromRow resolves a row to an admin1 id, ignoring admin2 columns.
func (h *Hierarchy) Admin1RefFromRow(fields tabular.Fields, row tabular.Row, maxLevel int, dataset, pipeline string) (int64, error) {
	if fields.Value(row, TagRowCountry) == TagRowCountry {
		return 0, ErrTagRow
	}
	level, code := rowLevel(fields, row, maxLevel, AdminOne)
	return h.Admin1Ref(level, code, dataset, pipeline)
}
