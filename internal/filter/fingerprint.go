// internal/filter/fingerprint.go
package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fingerprint returns a stable key for the criteria: fields are written in a
// fixed order with multi-value selections sorted, so two structurally equal
// criteria always hash identically regardless of construction order.
func (c Criteria) Fingerprint() string {
	var b strings.Builder

	for _, ms := range c.MultiSelects() {
		writeField(&b, ms.Name, sortedJoin(ms.Values))
	}
	writeField(&b, "installed_after", formatTime(c.InstalledAfter))
	writeField(&b, "installed_before", formatTime(c.InstalledBefore))
	writeField(&b, "ip_range", c.IPRange)
	writeField(&b, "include_tags", sortedJoin(c.IncludeTags))
	writeField(&b, "exclude_tags", sortedJoin(c.ExcludeTags))
	writeField(&b, "search", c.SearchText)
	writeField(&b, "page", fmt.Sprintf("%d/%d", c.Page, c.PageSize))
	writeField(&b, "sort", fmt.Sprintf("%s/%t", c.SortBy, c.SortDesc))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(';')
}

func sortedJoin(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
