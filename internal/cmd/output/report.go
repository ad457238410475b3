package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/membersync"
	"github.com/agentstation/membersync/pkg/reconcile"
)

// PlanDocument lays out a plan for table and markdown output.
func PlanDocument(v reconcile.View) Document {
	doc := Document{
		Title: "Reconciliation plan",
		Lines: []string{
			fmt.Sprintf("%d enrollment records, %d directory accounts", v.Records, v.Accounts),
			fmt.Sprintf("%d to create, %d to update, %d unchanged", v.Created, v.Updated, v.Unchanged),
			fmt.Sprintf("%d user actions, %d membership actions", len(v.Users), len(v.Memberships)),
		},
	}
	if len(v.Users) == 0 && len(v.Memberships) == 0 {
		doc.Lines = append(doc.Lines, "Nothing to do.")
	}

	doc.Sections = append(doc.Sections,
		Section{Title: "User actions", Data: actionsData(v.Users)},
		Section{Title: "Membership actions", Data: actionsData(v.Memberships)},
	)

	conflicts := Data{Headers: []string{"Identity", "Candidates"}}
	for _, c := range v.Conflicts {
		conflicts.Rows = append(conflicts.Rows, []string{c.Key, strings.Join(c.Candidates, ", ")})
	}
	doc.Sections = append(doc.Sections, Section{Title: "Conflicts", Data: conflicts})
	return doc
}

// ReportDocument lays out a run report for table and markdown output.
func ReportDocument(v membersync.ReportView) Document {
	doc := Document{
		Title: "Run " + v.RunID,
		Lines: []string{
			v.Summary,
			fmt.Sprintf("%d enrollment records, %d directory users, took %s", v.Records, v.DirectoryUsers, v.Duration),
		},
	}

	kinds := Data{Headers: []string{"Action", "Planned", "Applied", "Failed"}, RightAligned: []int{1, 2, 3}}
	for _, k := range v.Kinds {
		kinds.Rows = append(kinds.Rows, []string{
			k.Kind, strconv.Itoa(k.Planned), strconv.Itoa(k.Applied), strconv.Itoa(k.Failed),
		})
	}
	doc.Sections = append(doc.Sections, Section{Title: "Actions", Data: kinds})

	failures := Data{Headers: []string{"Failure"}}
	for _, f := range v.Failures {
		failures.Rows = append(failures.Rows, []string{f})
	}
	doc.Sections = append(doc.Sections, Section{Title: "Failures", Data: failures})

	if v.Plan != nil {
		for _, s := range PlanDocument(*v.Plan).Sections {
			if s.Title == "Conflicts" {
				doc.Sections = append(doc.Sections, s)
			}
		}
	}
	return doc
}

func actionsData(actions []reconcile.ActionView) Data {
	d := Data{Headers: []string{"Kind", "Target", "Detail"}}
	for _, a := range actions {
		d.Rows = append(d.Rows, []string{a.Kind, a.Target, a.Detail})
	}
	return d
}
