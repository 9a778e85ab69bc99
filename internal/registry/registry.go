package registry

import (
	"strings"

	"thermaleye-service/internal/analysis"
	"thermaleye-service/internal/domain/thermal"
)

// Tower is one geolocated transmission asset from the static registry.
type Tower struct {
	ID        int
	Name      string
	CampName  string
	Latitude  float64
	Longitude float64
}

// LineMetadata is the electrical data attached to a line schedule entry.
type LineMetadata struct {
	VoltageKV         int
	CapacityAmps      int
	CommissioningYear int
}

// Metadata is the enriched description of a matched asset, with defaults
// applied when no line schedule entry could be found.
type Metadata struct {
	VoltageKV         int
	CapacityAmps      int
	CommissioningYear int
	Priority          thermal.Priority
	CampName          string
	Matched           bool
}

// Match is the nearest-tower search result.
type Match struct {
	Tower      Tower
	DistanceKM float64
	Metadata   Metadata
}

// AliasRule maps a short camp code to the line-name keywords it stands
// for in the operator's overhead line schedules.
type AliasRule struct {
	Code     string
	Keywords []string
}

// defaultAliases is evaluated in order; when a camp label carries more
// than one code, the first listed rule wins.
var defaultAliases = []AliasRule{
	{"kks", []string{"kalwa", "kalyan", "salsette"}},
	{"borivali", []string{"borivli", "borivali"}},
	{"trombay", []string{"trombay"}},
	{"salsette", []string{"salsette"}},
	{"kalyan", []string{"kalyan"}},
	{"panvel", []string{"panvel"}},
	{"khopoli", []string{"khopoli", "bhira"}},
}

// Registry holds the static asset data loaded at startup. Read-only after
// construction.
type Registry struct {
	towers  []Tower
	lines   map[string]LineMetadata
	order   []string
	aliases []AliasRule
}

func New(towers []Tower, lines map[string]LineMetadata, lineOrder []string) *Registry {
	if lines == nil {
		lines = make(map[string]LineMetadata)
	}
	if lineOrder == nil {
		for name := range lines {
			lineOrder = append(lineOrder, name)
		}
	}
	return &Registry{
		towers:  towers,
		lines:   lines,
		order:   lineOrder,
		aliases: defaultAliases,
	}
}

// SetAliases overrides the camp-code alias rules. Intended for
// configuration at startup, before the registry is shared.
func (r *Registry) SetAliases(aliases []AliasRule) {
	if aliases != nil {
		r.aliases = aliases
	}
}

func (r *Registry) TowerCount() int {
	return len(r.towers)
}

func (r *Registry) LineCount() int {
	return len(r.lines)
}

// Metadata resolves the electrical metadata for a tower. Matching is a
// first-hit-wins chain: camp-name substring, camp alias keywords, then
// normalized tower-name substring. Misses fall back to defaults.
func (r *Registry) Metadata(towerName, campName string) Metadata {
	def := Metadata{
		VoltageKV:         110,
		CapacityAmps:      1000,
		CommissioningYear: 2000,
		Priority:          thermal.PriorityMedium,
		CampName:          campName,
	}
	if def.CampName == "" {
		def.CampName = "Unknown Camp"
	}

	if campName != "" {
		campLower := strings.ToLower(campName)

		if m, ok := r.findLine(func(line string) bool {
			return strings.Contains(line, campLower)
		}); ok {
			return r.enriched(def, m, campName)
		}

		for _, rule := range r.aliases {
			if !strings.Contains(campLower, rule.Code) {
				continue
			}
			if m, ok := r.findLine(func(line string) bool {
				for _, kw := range rule.Keywords {
					if strings.Contains(line, kw) {
						return true
					}
				}
				return false
			}); ok {
				return r.enriched(def, m, campName)
			}
		}
	}

	if base := normalizeTowerName(towerName); base != "" {
		if m, ok := r.findLine(func(line string) bool {
			return strings.Contains(line, base)
		}); ok {
			return r.enriched(def, m, def.CampName)
		}
	}

	return def
}

func (r *Registry) findLine(match func(lowered string) bool) (LineMetadata, bool) {
	for _, name := range r.order {
		if match(strings.ToLower(name)) {
			return r.lines[name], true
		}
	}
	return LineMetadata{}, false
}

func (r *Registry) enriched(def Metadata, line LineMetadata, campName string) Metadata {
	return Metadata{
		VoltageKV:         line.VoltageKV,
		CapacityAmps:      line.CapacityAmps,
		CommissioningYear: line.CommissioningYear,
		Priority:          analysis.DerivePriority(line.VoltageKV, line.CapacityAmps),
		CampName:          campName,
		Matched:           true,
	}
}

// normalizeTowerName strips the location prefix field crews put in front
// of tower numbers ("Loc. 85" -> "85") so the bare token can be matched
// against line names.
func normalizeTowerName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"loc.", "loc ", "location ", "tower "} {
		name = strings.ReplaceAll(name, prefix, "")
	}
	return strings.TrimSpace(name)
}
