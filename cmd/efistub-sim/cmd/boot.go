/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/blacktop/go-efistub/types"
	"github.com/blacktop/go-plist"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

var (
	consoleColor = color.New(color.Faint, color.FgWhite).SprintFunc()
	okColor      = color.New(color.Bold, color.FgGreen).SprintFunc()
	failColor    = color.New(color.Bold, color.FgRed).SprintFunc()
)

// Report is the outcome of a simulated boot
type Report struct {
	Platform string         `plist:"platform"`
	Status   string         `plist:"status"`
	Jumped   bool           `plist:"jumped"`
	Entry    uint64         `plist:"entry,omitempty"`
	Kernel   uint64         `plist:"kernel,omitempty"`
	Handoff  uint64         `plist:"handoff,omitempty"`
	Regions  []types.Region `plist:"regions,omitempty"`
	Console  []string       `plist:"console"`
}

// simulate runs one boot attempt on m and reports what the loader would see
func simulate(m *fake.Machine, p *Profile, conf efistub.Config, progress bool) *Report {
	var opts []efistub.Option
	var pb *mpb.Progress
	var bar *mpb.Bar
	if progress {
		pb = mpb.New(mpb.WithWidth(80))
		bar = pb.Add(int64(efistub.BootServicesExited),
			mpb.NewBarFiller(mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("|")),
			mpb.PrependDecorators(
				decor.Name("     ", decor.WC{W: len("     ") + 1, C: decor.DidentRight}),
				decor.OnComplete(
					decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 4}), "✅ ",
				),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		opts = append(opts, efistub.WithObserver(func(_, to efistub.State) {
			if to == efistub.Aborted {
				bar.Abort(false)
				return
			}
			bar.Increment()
		}))
	}

	var status types.Status
	m.Run(func() {
		status = efistub.Main(m.Image, m.SystemTable(), conf, opts...)
	})
	if pb != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		pb.Wait()
	}

	r := &Report{
		Platform: p.Name,
		Status:   status.String(),
		Jumped:   m.CPU.Jumped,
		Console:  m.Console.Lines,
	}
	if !m.CPU.Jumped {
		return r
	}

	r.Entry = uint64(m.CPU.Entry)
	r.Kernel = uint64(m.CPU.Entry) + conf.LoaderSlotSize
	r.Handoff = uint64(m.CPU.Handoff)
	r.Status = types.EFI_SUCCESS.String()
	if list, err := m.Platform.Slice(m.CPU.Handoff, uint64(types.RegionListSize(conf.MaxRegions))); err == nil {
		r.Regions = types.ReadRegionList(list)
	} else {
		log.WithError(err).Error("failed to read handoff block")
	}

	return r
}

func printReport(r *Report) {
	for _, line := range r.Console {
		fmt.Println(consoleColor("  efi> " + line))
	}
	fmt.Println()

	if !r.Jumped {
		fmt.Printf("%s boot failed with %s\n", failColor("⨯"), r.Status)
		return
	}

	fmt.Printf("%s jumped to loader @ %#x (kernel @ %#x, regions @ %#x)\n\n", okColor("✓"), r.Entry, r.Kernel, r.Handoff)
	var total uint64
	for i, region := range r.Regions {
		fmt.Printf("  %4d: %#016x-%#016x %8d pages  %s\n",
			i,
			uint64(region.Base),
			uint64(region.Base)+region.Pages*types.PageSize,
			region.Pages,
			humanize.IBytes(region.Pages*types.PageSize),
		)
		total += region.Pages * types.PageSize
	}
	fmt.Printf("\n  %d free regions, %s total\n", len(r.Regions), humanize.IBytes(total))
}

// bootCmd represents the boot command
var bootCmd = &cobra.Command{
	Use:   "boot <VOLUME_DIR>",
	Short: "Boot the stub from a host directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		if Verbose {
			log.SetLevel(log.DebugLevel)
		}

		profilePath, _ := cmd.Flags().GetString("profile")
		reportPath, _ := cmd.Flags().GetString("report")
		noProgress, _ := cmd.Flags().GetBool("no-progress")

		conf, err := stubConfig()
		if err != nil {
			return err
		}
		p, err := loadProfile(profilePath)
		if err != nil {
			return err
		}
		m, _, err := newMachine(filepath.Clean(args[0]), p)
		if err != nil {
			return err
		}

		log.WithField("platform", p.Name).Info("Booting")
		r := simulate(m, p, conf, !noProgress)
		printReport(r)

		if reportPath != "" {
			data, err := plist.MarshalIndent(r, plist.XMLFormat, "\t")
			if err != nil {
				return fmt.Errorf("failed to encode report: %v", err)
			}
			if err := os.WriteFile(reportPath, data, 0644); err != nil {
				return err
			}
			log.Infof("Created %s", reportPath)
		}

		if !r.Jumped {
			return fmt.Errorf("boot failed: %s", r.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bootCmd)
	bootCmd.Flags().StringP("profile", "p", "", "platform profile plist")
	bootCmd.Flags().StringP("report", "r", "", "write a boot report plist")
	bootCmd.Flags().Bool("no-progress", false, "do not show a progress bar")
}
