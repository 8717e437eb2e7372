package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// Key derives the deterministic cache key for a query. Two requests share a
// key only when tenant, project, normalized text, top_k, enabled strategies,
// weight selection, filters, and time-window bucket all match.
func Key(prefix string, q *query.Query, window time.Duration, now time.Time) string {
	parts := []string{
		q.TenantID(),
		q.ProjectID(),
		q.NormalizedText(),
		strconv.Itoa(q.TopK()),
		enabledComponent(q.Enabled()),
		strconv.Itoa(q.GraphDepth()),
		weightsComponent(q),
		filterComponent(q.Filter()),
		windowComponent(window, now),
	}

	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + "search:" + hex.EncodeToString(h[:])
}

func enabledComponent(set strategy.Set) string {
	names := make([]string, 0, 4)
	for _, s := range strategy.All() {
		if set.Enabled(s) {
			names = append(names, s.String())
		}
	}
	return strings.Join(names, ",")
}

func weightsComponent(q *query.Query) string {
	if w := q.Weights(); w != nil {
		return "w:" +
			formatWeight(w.Vector) + "," +
			formatWeight(w.Sparse) + "," +
			formatWeight(w.Graph) + "," +
			formatWeight(w.Fulltext)
	}
	if q.ProfileName() != "" {
		return "p:" + q.ProfileName()
	}
	return "auto"
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

func filterComponent(f query.Filter) string {
	if f.IsZero() {
		return ""
	}
	tags := append([]string(nil), f.Tags...)
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString(strings.Join(tags, ","))
	b.WriteByte(';')
	if f.Since != nil {
		b.WriteString(strconv.FormatInt(f.Since.Unix(), 10))
	}
	b.WriteByte(';')
	b.WriteString(formatWeight(f.MinImportance))
	return b.String()
}

// windowComponent buckets time so queries issued inside the same window share
// a key. Zero window disables bucketing.
func windowComponent(window time.Duration, now time.Time) string {
	if window <= 0 {
		return ""
	}
	bucket := now.Unix() / int64(window.Seconds())
	return strconv.FormatInt(bucket, 10)
}
