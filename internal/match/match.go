package match

import (
	"sort"
	"strings"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// MinExpertMatchScore is the minimum overlap score for an expert to be
// surfaced. All tied experts at or above it are returned, supporting
// multiple expert options rather than a single forced pick.
const MinExpertMatchScore = 1

// ServiceMatch is one ranked service recommendation.
type ServiceMatch struct {
	Service models.Service `json:"service"`
	Score   int            `json:"match_score"`
}

// ExpertMatch is one ranked expert recommendation.
type ExpertMatch struct {
	Expert models.Expert `json:"expert"`
	Score  int           `json:"match_score"`
}

// Matcher ranks services and experts against extracted business context.
// Pure: rankings depend only on the catalog and the fact record.
type Matcher struct {
	catalog *Catalog
}

// NewMatcher creates a matcher over a catalog.
func NewMatcher(catalog *Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// MatchServices ranks all catalog services by the number of their keywords
// appearing in the session's challenge text. Ties keep catalog listing
// order. Services with zero overlap are omitted.
func (m *Matcher) MatchServices(business models.BusinessContext) []ServiceMatch {
	haystack := strings.ToLower(strings.Join(business.Challenges, " "))
	if business.Industry != "" {
		haystack += " " + business.Industry
	}
	for _, tech := range business.TechStack {
		haystack += " " + strings.ToLower(tech)
	}

	var matches []ServiceMatch
	for _, svc := range m.catalog.Services {
		score := 0
		for _, kw := range svc.Keywords {
			if m.catalog.keywordRe(kw).MatchString(haystack) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, ServiceMatch{Service: svc, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// MatchExperts ranks experts against the recommended services. Experts are
// only surfaced once at least one service has been matched. Score is the
// size of the intersection between the expert's specialties-and-services
// set and the recommended service names, plus industry overlap.
func (m *Matcher) MatchExperts(business models.BusinessContext, services []ServiceMatch) []ExpertMatch {
	if len(services) == 0 {
		return nil
	}

	recommended := make(map[string]bool, len(services))
	for _, sm := range services {
		recommended[strings.ToLower(sm.Service.Name)] = true
	}

	var matches []ExpertMatch
	for _, expert := range m.catalog.Experts {
		score := 0
		for _, offered := range expert.Services {
			if recommended[strings.ToLower(offered)] {
				score++
			}
		}
		for _, specialty := range expert.Specialties {
			if recommended[strings.ToLower(specialty)] {
				score++
			}
			if business.Industry != "" && strings.EqualFold(specialty, business.Industry) {
				score++
			}
		}
		if score >= MinExpertMatchScore {
			matches = append(matches, ExpertMatch{Expert: expert, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Match runs service and expert ranking in one pass and returns the
// recommended service name, if any.
func (m *Matcher) Match(facts models.Facts) (services []ServiceMatch, experts []ExpertMatch, recommended string) {
	services = m.MatchServices(facts.Business)
	experts = m.MatchExperts(facts.Business, services)
	if len(services) > 0 {
		recommended = services[0].Service.Name
	}
	return services, experts, recommended
}

