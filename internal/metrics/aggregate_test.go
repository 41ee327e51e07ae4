package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ocr-robustness/internal/perturb"
	"github.com/ironsheep/ocr-robustness/internal/store"
)

func newDefaultAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := NewAggregator(perturb.DefaultPlan().Taxonomy())
	require.NoError(t, err)
	return a
}

// population builds one record per (source, operation); ops listed in
// failed[source] are undetected.
func population(sources []string, ext string, failed map[string][]string) []*store.DetectionRecord {
	var recs []*store.DetectionRecord
	for _, src := range sources {
		bad := make(map[string]bool)
		for _, op := range failed[src] {
			bad[op] = true
		}
		for _, op := range perturb.DefaultPlan().Taxonomy() {
			recs = append(recs, &store.DetectionRecord{
				ID:       src + "/" + op + "." + ext,
				Detected: !bad[op],
			})
		}
	}
	return recs
}

func TestAggregate_AllDetected(t *testing.T) {
	report, err := newDefaultAggregator(t).Aggregate(population([]string{"1_aaa", "2_bbb"}, "jfif", nil))
	require.NoError(t, err)

	require.Equal(t, 36, report.TotalCount)
	require.Equal(t, 2, report.OriginalImageCount)
	require.Equal(t, 0, report.UndetectedCount)
	require.Equal(t, 36, report.DetectedCount)
	require.Equal(t, Percent(100), report.Accuracy)
	require.Len(t, report.Operations, 18)
	for _, op := range report.Operations {
		require.Equal(t, 2, op.DetectedCount, op.Key)
		require.Equal(t, Percent(100), op.Accuracy, op.Key)
	}
	require.Empty(t, report.Failures)
}

func TestAggregate_WithFailures(t *testing.T) {
	recs := population([]string{"1_aaa", "2_bbb"}, "jfif", map[string][]string{
		"1_aaa": {"noise_9", "brightness_0.25", "blurred_17"},
		"2_bbb": {"noise_9"},
	})
	report, err := newDefaultAggregator(t).Aggregate(recs)
	require.NoError(t, err)

	require.Equal(t, 4, report.UndetectedCount)
	require.Equal(t, 32, report.DetectedCount)
	require.InDelta(t, 32.0/36.0*100, float64(report.Accuracy), 1e-9)

	noise9, ok := report.Operation("noise_9")
	require.True(t, ok)
	require.Equal(t, 2, noise9.UndetectedCount)
	require.Equal(t, 0, noise9.DetectedCount)
	require.Equal(t, Percent(0), noise9.Accuracy)

	gamma, ok := report.Operation("brightness_0.25")
	require.True(t, ok)
	require.Equal(t, 1, gamma.DetectedCount)
	require.Equal(t, Percent(50), gamma.Accuracy)

	require.Equal(t, []string{"blurred_17.jfif", "brightness_0.25.jfif", "noise_9.jfif"}, report.Failures["1_aaa"])
	require.Equal(t, []string{"noise_9.jfif"}, report.Failures["2_bbb"])
}

func TestAggregate_OrderInvariant(t *testing.T) {
	recs := population([]string{"1_aaa", "2_bbb", "3_ccc"}, "jpg", map[string][]string{
		"1_aaa": {"scaled_10", "noise_5"},
		"3_ccc": {"scaled_10", "blurred_9", "brightness_3.0"},
	})
	a := newDefaultAggregator(t)

	want, err := a.Aggregate(recs)
	require.NoError(t, err)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(5, 5))
	for i := 0; i < 5; i++ {
		shuffled := append([]*store.DetectionRecord(nil), recs...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := a.Aggregate(shuffled)
		require.NoError(t, err)
		gotJSON, err := json.Marshal(got)
		require.NoError(t, err)
		require.Equal(t, string(wantJSON), string(gotJSON))
	}
}

func TestAggregate_IntegrityFaults(t *testing.T) {
	a := newDefaultAggregator(t)
	full := population([]string{"1_aaa", "2_bbb"}, "jfif", nil)

	unknown := population([]string{"1_aaa"}, "jfif", nil)
	unknown[0] = &store.DetectionRecord{ID: "1_aaa/rotated_90.jfif", Detected: true}

	malformed := population([]string{"1_aaa"}, "jfif", nil)
	malformed[3] = &store.DetectionRecord{ID: "1_aaa/extra/scaled_10.jfif"}

	noSlash := population([]string{"1_aaa"}, "jfif", nil)
	noSlash[5] = &store.DetectionRecord{ID: "scaled_10.jfif"}

	// 18 records from one source, but two of them land on the same key.
	overCounted := population([]string{"1_aaa", "2_bbb"}, "jfif", map[string][]string{
		"1_aaa": {"scaled_10"},
		"2_bbb": {"scaled_10"},
	})
	overCounted[len(overCounted)-1] = &store.DetectionRecord{ID: "3_ccc/scaled_10.jfif"}

	reserved := population([]string{"accuracy"}, "jfif", map[string][]string{"accuracy": {"noise_1"}})

	tests := []struct {
		name    string
		records []*store.DetectionRecord
		value   string
	}{
		{"empty", nil, "total_count=0"},
		{"not divisible", full[:35], "total_count=35"},
		{"unknown key", unknown, "rotated_90"},
		{"too many segments", malformed, "1_aaa/extra/scaled_10.jfif"},
		{"single segment", noSlash, "scaled_10.jfif"},
		{"per-op overflow", overCounted, "scaled_10_undetected_count=3"},
		{"reserved source id", reserved, "accuracy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := a.Aggregate(tt.records)
			require.Nil(t, report)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrIntegrity))

			var ie *IntegrityError
			require.True(t, errors.As(err, &ie))
			require.Contains(t, ie.Value, tt.value)
		})
	}
}

func TestAggregate_CustomTaxonomy(t *testing.T) {
	a, err := NewAggregator([]string{"scaled_50", "noise_1"})
	require.NoError(t, err)

	recs := []*store.DetectionRecord{
		{ID: "1_a/scaled_50.png", Detected: true},
		{ID: "1_a/noise_1.png", Detected: false},
		{ID: "2_b/scaled_50.png", Detected: true},
		{ID: "2_b/noise_1.png", Detected: true},
	}
	report, err := a.Aggregate(recs)
	require.NoError(t, err)
	require.Equal(t, 2, report.OriginalImageCount)
	require.Len(t, report.Operations, 2)
	require.Equal(t, Percent(50), report.Operations[1].Accuracy)

	_, err = NewAggregator(nil)
	require.Error(t, err)
	_, err = NewAggregator([]string{"a", "a"})
	require.Error(t, err)
}

func TestAggregateStore(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemoryRecords()
	for _, rec := range population([]string{"1_aaa", "2_bbb"}, "jfif", map[string][]string{"2_bbb": {"scaled_90"}}) {
		require.NoError(t, records.Put(ctx, rec))
	}

	report, err := newDefaultAggregator(t).AggregateStore(ctx, records)
	require.NoError(t, err)
	require.Equal(t, 36, report.TotalCount)
	require.Equal(t, []string{"scaled_90.jfif"}, report.Failures["2_bbb"])
}

func TestReportJSON(t *testing.T) {
	recs := population([]string{"1_aaa", "2_bbb", "3_ccc"}, "jfif", map[string][]string{
		"2_bbb": {"blurred_13"},
	})
	report, err := newDefaultAggregator(t).Aggregate(recs)
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	s := string(data)

	require.True(t, strings.HasPrefix(s,
		`{"total_count":54,"original_image_count":3,"undetected_count":1,"detected_count":53,"accuracy":98.148148,"2_bbb":["blurred_13.jfif"],"noise_3_undetected_count":0`), s)
	require.Contains(t, s, `"blurred_13_detected_count":2,"blurred_13_accuracy":66.666667`)
	require.Contains(t, s, `"scaled_10_accuracy":100.0`)
	require.True(t, strings.HasSuffix(s, `"blurred_17_detected_count":3,"blurred_17_accuracy":100.0}`), s)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 5+1+18*3)

	indented, err := report.Indent()
	require.NoError(t, err)
	require.Contains(t, string(indented), "\n    \"total_count\": 54,")

	problems, err := ValidateReport(report)
	require.NoError(t, err)
	require.Empty(t, problems)

	for _, key := range perturb.DefaultPlan().Taxonomy() {
		for _, suffix := range []string{"_undetected_count", "_detected_count", "_accuracy"} {
			require.Contains(t, decoded, key+suffix)
		}
	}
}

func TestValidateReportJSON_Rejects(t *testing.T) {
	tests := []string{
		`{}`,
		`{"total_count":0,"original_image_count":1,"undetected_count":0,"detected_count":0,"accuracy":0}`,
		`{"total_count":18,"original_image_count":1,"undetected_count":0,"detected_count":18,"accuracy":120.0}`,
		`{"total_count":18,"original_image_count":1,"undetected_count":0,"detected_count":18,"accuracy":100.0,"1_a":[]}`,
		`{"total_count":18,"original_image_count":1,"undetected_count":0,"detected_count":18,"accuracy":100.0,"noise_1_detected_count":-1}`,
	}
	for i, doc := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			problems, err := ValidateReportJSON([]byte(doc))
			require.NoError(t, err)
			require.NotEmpty(t, problems)
		})
	}
}
