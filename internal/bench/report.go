package bench

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"
	"time"
)

// Summary aggregates the records of one (instance, algorithm) pair.
type Summary struct {
	Instance     string        `json:"instance"`
	Algorithm    string        `json:"algorithm"`
	Runs         int           `json:"runs"`
	Solved       int           `json:"solved"`
	Failed       int           `json:"failed"`
	Best         *float64      `json:"best"`
	Mean         *float64      `json:"mean"`
	MeanDuration time.Duration `json:"meanDurationNs"`
}

// Summarize groups records by instance and algorithm, keeping first-seen order.
func Summarize(records []Record) []Summary {
	type key struct{ instance, algo string }
	idx := map[key]int{}
	var out []Summary
	sums := []float64{}
	durs := []time.Duration{}
	for _, r := range records {
		k := key{r.Instance, r.Algorithm}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Summary{Instance: r.Instance, Algorithm: r.Algorithm})
			sums = append(sums, 0)
			durs = append(durs, 0)
		}
		s := &out[i]
		s.Runs++
		durs[i] += r.Duration
		if r.Error != "" {
			s.Failed++
			continue
		}
		if r.Distance == nil {
			continue
		}
		s.Solved++
		sums[i] += *r.Distance
		if s.Best == nil || *r.Distance < *s.Best {
			d := *r.Distance
			s.Best = &d
		}
	}
	for i := range out {
		if out[i].Solved > 0 {
			m := sums[i] / float64(out[i].Solved)
			out[i].Mean = &m
		}
		out[i].MeanDuration = durs[i] / time.Duration(out[i].Runs)
	}
	return out
}

// WriteTable prints one row per (instance, algorithm); absent values show as "-".
func WriteTable(w io.Writer, records []Record) error {
	summaries := Summarize(records)
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].Instance < summaries[j].Instance })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tALGORITHM\tRUNS\tSOLVED\tFAILED\tBEST\tMEAN\tMEAN TIME")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			s.Instance, s.Algorithm, s.Runs, s.Solved, s.Failed,
			formatDistance(s.Best), formatDistance(s.Mean), s.MeanDuration.Round(time.Microsecond))
	}
	return tw.Flush()
}

func formatDistance(d *float64) string {
	if d == nil || math.IsNaN(*d) {
		return "-"
	}
	return fmt.Sprintf("%.3f", *d)
}
