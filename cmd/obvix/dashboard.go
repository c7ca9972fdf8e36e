package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ironsheep/obvix/internal/tui"
)

var dashboardFeature string

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVarP(&dashboardFeature, "feature", "f", "", "start filtered to this feature")
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Browse sessions and statistics in an interactive terminal UI",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := optionalFeature(dashboardFeature)
		if err != nil {
			return err
		}
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()

		_, err = tea.NewProgram(tui.New(repo, f), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}
