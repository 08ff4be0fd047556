package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes the view as plain text.
func (v View) Render(w io.Writer) error {
	if v.Status != StatusLoaded {
		msg := v.Message
		if v.CanRetry {
			msg += " Run the command again to retry."
		}
		_, err := fmt.Fprintln(w, msg)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range v.Sections {
		fmt.Fprintf(tw, "%s (%d)\n", s.Title, len(s.Cards))
		fmt.Fprintln(tw, strings.Repeat("-", len(s.Title)))
		for _, c := range s.Cards {
			fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", c.Badge, c.Type, c.State, c.Date)
			fmt.Fprintf(tw, "\t%s\n", c.Description)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
