package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// RenderJobs prints the per-job table of r with averages in the footer.
func RenderJobs(w io.Writer, r Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Arrival", "Burst", "Completion", "Turnaround", "Waiting"})
	for _, j := range r.Jobs {
		table.Append([]string{
			strconv.Itoa(j.ID),
			strconv.Itoa(j.Arrival),
			strconv.Itoa(j.Burst),
			strconv.Itoa(j.Completion),
			strconv.Itoa(j.Turnaround),
			strconv.Itoa(j.Waiting),
		})
	}
	table.SetFooter([]string{"", "", "", "",
		fmt.Sprintf("avg %.2f", r.AvgTurnaround),
		fmt.Sprintf("avg %.2f", r.AvgWaiting),
	})
	table.Render()
}

// RenderComparison prints one row per report, in the given order.
func RenderComparison(w io.Writer, reports []Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Policy", "Makespan", "Avg Turnaround", "Avg Waiting", "Throughput", "Preemptions", "Requeues"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range reports {
		policy := r.Algorithm.Title()
		if r.Quantum > 0 {
			policy = fmt.Sprintf("%s (q=%d)", policy, r.Quantum)
		}
		table.Append([]string{
			policy,
			strconv.Itoa(r.Makespan),
			fmt.Sprintf("%.2f", r.AvgTurnaround),
			fmt.Sprintf("%.2f", r.AvgWaiting),
			fmt.Sprintf("%.3f/t", r.Throughput),
			strconv.Itoa(r.Preemptions),
			strconv.Itoa(r.Requeues),
		})
	}
	table.Render()
}
