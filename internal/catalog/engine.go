package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/mselser95/vault-factory/pkg/types"
)

// Category keys understood by the engine.
const (
	CategoryCurveFactory = "curveF"
	CategoryHoldings     = "holdingsF"
)

// Categories maps category keys to their display labels.
//
//nolint:gochecknoglobals // read-only lookup
var Categories = map[string]string{
	CategoryCurveFactory: "Curve Factory Vaults",
	CategoryHoldings:     "Holdings",
}

// DefaultCategories is the selection used when the caller picks none.
func DefaultCategories() []string {
	return []string{CategoryCurveFactory, CategoryHoldings}
}

// Sort keys.
const (
	SortName      = "name"
	SortEstAPR    = "estAPR"
	SortHistAPR   = "apr"
	SortAvailable = "available"
	SortDeposited = "deposited"
	SortTVL       = "tvl"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Outcome tells the caller how to render a view.
type Outcome string

const (
	// OutcomeLoading means the catalog has not loaded yet.
	OutcomeLoading Outcome = "loading"
	// OutcomeEmpty means nothing matched or no network was selected.
	OutcomeEmpty Outcome = "empty"
	// OutcomeReady means Entries holds at least one vault.
	OutcomeReady Outcome = "ready"
)

// Query selects, searches and orders catalog entries.
// Empty Categories or Networks match nothing.
type Query struct {
	Categories []string
	Networks   []uint64
	Search     string
	SortBy     string
	Direction  Direction
}

// Result is a derived view of the catalog.
type Result struct {
	Entries []types.Vault `json:"entries"`
	Outcome Outcome       `json:"outcome"`
}

// View filters, searches and stably sorts entries. It never mutates entries.
func View(entries []types.Vault, q Query, loading bool) Result {
	filtered := make([]types.Vault, 0, len(entries))
	tokens := searchTokens(q.Search)

	for i := range entries {
		v := &entries[i]
		if !inCategories(v, q.Categories) {
			continue
		}
		if !slices.Contains(q.Networks, v.NetworkID) {
			continue
		}
		if !matches(v, tokens) {
			continue
		}
		filtered = append(filtered, *v)
	}

	sortEntries(filtered, q.SortBy, q.Direction)

	outcome := OutcomeReady
	switch {
	case loading:
		outcome = OutcomeLoading
	case len(q.Networks) == 0 || len(filtered) == 0:
		outcome = OutcomeEmpty
	}

	return Result{Entries: filtered, Outcome: outcome}
}

func inCategories(v *types.Vault, categories []string) bool {
	for _, category := range categories {
		switch category {
		case CategoryCurveFactory:
			if strings.EqualFold(v.Category, "Curve") && strings.EqualFold(v.Type, "Automated") {
				return true
			}
		case CategoryHoldings:
			if v.Deposited > 0 {
				return true
			}
		default:
			if strings.EqualFold(v.Category, category) {
				return true
			}
		}
	}
	return false
}

func searchTokens(search string) []string {
	return strings.Fields(strings.ToLower(search))
}

func haystack(v *types.Vault) []string {
	joined := strings.Join([]string{
		v.Name,
		v.Symbol,
		v.TokenName,
		v.TokenSymbol,
		v.Address.Hex(),
		v.TokenAddress.Hex(),
	}, " ")
	return strings.Fields(strings.ToLower(strings.ReplaceAll(joined, "-", " ")))
}

// matches reports whether every token prefixes some haystack word.
func matches(v *types.Vault, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}

	words := haystack(v)
	for _, token := range tokens {
		found := slices.ContainsFunc(words, func(word string) bool {
			return strings.HasPrefix(word, token)
		})
		if !found {
			return false
		}
	}
	return true
}

func sortEntries(entries []types.Vault, sortBy string, direction Direction) {
	compare := comparator(sortBy)
	if compare == nil {
		return
	}

	if direction == Desc {
		asc := compare
		compare = func(a, b types.Vault) int { return asc(b, a) }
	}
	slices.SortStableFunc(entries, compare)
}

func comparator(sortBy string) func(a, b types.Vault) int {
	byFloat := func(field func(v *types.Vault) float64) func(a, b types.Vault) int {
		return func(a, b types.Vault) int { return cmp.Compare(field(&a), field(&b)) }
	}

	switch sortBy {
	case SortName:
		return func(a, b types.Vault) int {
			return strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
		}
	case SortEstAPR:
		return byFloat(func(v *types.Vault) float64 { return v.EstAPR })
	case SortHistAPR:
		return byFloat(func(v *types.Vault) float64 { return v.HistAPR })
	case SortAvailable:
		return byFloat(func(v *types.Vault) float64 { return v.Available })
	case SortDeposited:
		return byFloat(func(v *types.Vault) float64 { return v.Deposited })
	case SortTVL:
		return byFloat(func(v *types.Vault) float64 { return v.TVL })
	default:
		return nil
	}
}
