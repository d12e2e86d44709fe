/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/voxpair/internal/language"
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List the configured language pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := language.New(cfg.LanguageTables())
		if err != nil {
			return fmt.Errorf("invalid language configuration: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tCODES\tLANGUAGES\tSPEECH")
		for _, p := range reg.Pairs() {
			fmt.Fprintf(w, "%s\t%s-%s\t%s / %s\t%s / %s\n",
				p.Label, p.A, p.B,
				reg.DisplayName(p.A), reg.DisplayName(p.B),
				reg.SpeechCode(p.A), reg.SpeechCode(p.B))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(pairsCmd)
}
