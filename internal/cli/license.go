package cli

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	//go:embed license.txt
	licenseText string

	//go:embed notices.txt
	noticesText string
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Print license information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		notices, _ := cmd.Flags().GetBool("notices")
		if notices {
			fmt.Fprint(out, noticesText)
			return
		}
		fmt.Fprint(out, licenseText)
		fmt.Fprintln(out, "\nRun with --notices for third-party licenses.")
	},
}

func init() {
	rootCmd.AddCommand(licenseCmd)

	licenseCmd.Flags().Bool("notices", false, "Print third-party license notices")
}
