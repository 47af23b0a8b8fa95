package updater

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// PrintRecords renders records as a plain text table.
func PrintRecords(w io.Writer, records []Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "Address", "TTL", "Comment"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, r := range records {
		ttl := "auto"
		if r.TTL > time.Second {
			ttl = strconv.Itoa(int(r.TTL / time.Second))
		}
		table.Append([]string{r.Domain, r.Type, r.Address, ttl, r.Mark})
	}

	table.Render()
}
