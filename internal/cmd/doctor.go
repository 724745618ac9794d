package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dativo-io/disclose/internal/doctor"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this installation is ready to process DSARs",
	RunE:  doctorRun,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output report as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func doctorRun(cmd *cobra.Command, args []string) error {
	report := doctor.Run()

	if doctorJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		for _, c := range report.Checks {
			glyph := "✓"
			switch c.Status {
			case "warn":
				glyph = "!"
			case "fail":
				glyph = "✗"
			}
			fmt.Printf("%s %-22s %s\n", glyph, c.Name, c.Message)
			if c.Fix != "" && c.Status != "pass" {
				fmt.Printf("    fix: %s\n", c.Fix)
			}
		}
		fmt.Printf("\n%d passed, %d warnings, %d failures\n",
			report.Summary.Pass, report.Summary.Warn, report.Summary.Fail)
	}

	if report.Status == "fail" {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	return nil
}
