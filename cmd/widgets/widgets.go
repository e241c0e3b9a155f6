package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"widgets/internal/db"
	"widgets/internal/widget"

	"github.com/spf13/cobra"
)

var flagType string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all widgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *widget.Service) error {
			rows, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printWidgets(cmd.OutOrStdout(), rows...)
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an empty widget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in widget.CreateInput
		if flagType != "" {
			t, err := widget.ParseType(flagType)
			if err != nil {
				return err
			}
			in.Type = &t
		}
		return withService(func(svc *widget.Service) error {
			w, err := svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printWidgets(cmd.OutOrStdout(), w)
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <id> <text>",
	Short: "Replace a widget's text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[1]
		return withService(func(svc *widget.Service) error {
			w, err := svc.Update(cmd.Context(), args[0], widget.UpdateInput{Text: &text})
			if err != nil {
				return err
			}
			return printWidgets(cmd.OutOrStdout(), w)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Remove a widget",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *widget.Service) error {
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVar(&flagType, "type", "", "widget type (default text)")
}

func withService(fn func(svc *widget.Service) error) error {
	gdb, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	return fn(&widget.Service{DB: gdb})
}

type widgetJSON struct {
	ID        string      `json:"id"`
	Type      widget.Type `json:"type"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func printWidgets(out io.Writer, rows ...widget.Widget) error {
	if flagJSON {
		items := make([]widgetJSON, 0, len(rows))
		for _, w := range rows {
			items = append(items, widgetJSON(w))
		}
		b, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal widgets: %w", err)
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, `No widgets yet. Run "widgets add" to get started.`)
		return nil
	}
	for _, w := range rows {
		fmt.Fprintf(out, "%s  %-5s  %4d/%d  %q\n", w.ID, w.Type, len([]rune(w.Text)), widget.MaxTextLength, w.Text)
	}
	return nil
}
