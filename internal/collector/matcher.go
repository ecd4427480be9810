package collector

import "github.com/mattmezza/alertai/internal/util"

// CategoryMatcher maps model labels onto the alertable categories. Labels are
// lowercased and must then equal a category exactly; whitespace and punctuation
// are left alone.
type CategoryMatcher struct {
	categories map[string]struct{}
	order      []string
}

// NewCategoryMatcher creates a matcher for the given categories, which are
// lowercased the same way as labels.
func NewCategoryMatcher(categories []string) *CategoryMatcher {
	m := &CategoryMatcher{categories: make(map[string]struct{}, len(categories))}
	for _, c := range categories {
		c = util.LowerLabel(c)
		if _, dup := m.categories[c]; dup {
			continue
		}
		m.categories[c] = struct{}{}
		m.order = append(m.order, c)
	}
	return m
}

// Match returns the category for label, if it is alertable.
func (m *CategoryMatcher) Match(label string) (string, bool) {
	normalized := util.LowerLabel(label)
	if _, ok := m.categories[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Categories returns the normalized categories in their configured order.
func (m *CategoryMatcher) Categories() []string {
	return append([]string(nil), m.order...)
}
