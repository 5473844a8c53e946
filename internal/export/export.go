// Package export 生成管理员报表快照：统计、任务、用户、车辆四个分节，
// 以 CSV 输出供下载。只读，不回写任何业务数据。
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/job"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/ChakraFleet/ChakraFleet/internal/vehicle"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Exporter 汇总各目录做一次全量快照。
type Exporter struct {
	jobs     *job.Repo
	users    *user.Repo
	vehicles *vehicle.Repo
}

func NewExporter(jobs *job.Repo, users *user.Repo, vehicles *vehicle.Repo) *Exporter {
	return &Exporter{jobs: jobs, users: users, vehicles: vehicles}
}

// WriteReport 把完整报表写入 w。分节之间以空行加分节标题分隔。
func (e *Exporter) WriteReport(ctx context.Context, w io.Writer) error {
	jobs, err := e.jobs.ListAll(ctx)
	if err != nil {
		return err
	}
	users, err := e.users.ListAll(ctx)
	if err != nil {
		return err
	}
	vehicles, err := e.vehicles.ListAll(ctx)
	if err != nil {
		return err
	}

	writeSection(w, "Statistics", statsTable(jobs, users, vehicles))
	writeSection(w, "Jobs", jobsTable(jobs))
	writeSection(w, "Users", usersTable(users))
	writeSection(w, "Vehicles", vehiclesTable(vehicles))
	return nil
}

func writeSection(w io.Writer, title string, tw table.Writer) {
	fmt.Fprintf(w, "# %s\n", title)
	fmt.Fprintln(w, tw.RenderCSV())
	fmt.Fprintln(w)
}

func statsTable(jobs []job.Job, users []user.User, vehicles []vehicle.Vehicle) table.Writer {
	byStatus := make(map[job.Status]int)
	var totalKm float64
	for i := range jobs {
		byStatus[jobs[i].Status]++
		totalKm += jobs[i].KilometersDriven
	}
	drivers := 0
	for i := range users {
		if users[i].IsDriver() {
			drivers++
		}
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Total Jobs", len(jobs)})
	tw.AppendRow(table.Row{"Completed Jobs", byStatus[job.StatusCompleted]})
	tw.AppendRow(table.Row{"In Transit", byStatus[job.StatusInTransit]})
	tw.AppendRow(table.Row{"Pending Approval", byStatus[job.StatusPending]})
	tw.AppendRow(table.Row{"Unclaimed", byStatus[job.StatusUnclaimed]})
	tw.AppendRow(table.Row{"Archived", byStatus[job.StatusArchived]})
	tw.AppendRow(table.Row{"Total Kilometers Driven", fmt.Sprintf("%.1f", totalKm)})
	tw.AppendRow(table.Row{"Registered Users", len(users)})
	tw.AppendRow(table.Row{"Drivers", drivers})
	tw.AppendRow(table.Row{"Vehicles", len(vehicles)})
	return tw
}

func jobsTable(jobs []job.Job) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{
		"ID", "Title", "Status", "Origin", "Destination",
		"Driver", "Vehicle", "Rounds", "Kilometers", "Requested", "Completed",
	})
	for i := range jobs {
		j := &jobs[i]
		completed := ""
		if j.CompletionDate != nil {
			completed = j.CompletionDate.Format(time.RFC3339)
		}
		tw.AppendRow(table.Row{
			j.ID, j.Title, j.Status, j.Origin, j.Destination,
			j.DriverName, j.VehicleName, j.RoundsCompleted,
			fmt.Sprintf("%.1f", j.KilometersDriven),
			j.RequestDate.Format(time.RFC3339), completed,
		})
	}
	return tw
}

func usersTable(users []user.User) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Available", "Location", "Past Jobs"})
	for i := range users {
		u := &users[i]
		available := ""
		if u.IsDriver() {
			available = fmt.Sprintf("%t", u.Availability)
		}
		tw.AppendRow(table.Row{
			u.ID, u.Name, u.Email, u.Role, available,
			u.CurrentLocation, len(u.PastJobsSlice()),
		})
	}
	return tw
}

func vehiclesTable(vehicles []vehicle.Vehicle) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Name", "Type", "Capacity", "Status", "Location"})
	for i := range vehicles {
		v := &vehicles[i]
		tw.AppendRow(table.Row{v.ID, v.Name, v.Type, v.Capacity, v.Status, v.Location})
	}
	return tw
}
