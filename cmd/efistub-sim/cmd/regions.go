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

	"github.com/apex/log"
	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/blacktop/go-efistub/types"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// printMemoryMap reads the simulated memory map, builds the free region list
// from it and prints both
func printMemoryMap(m *fake.Machine, conf efistub.Config) error {
	buf := make([]byte, conf.MemoryMapBufferSize)
	info, err := m.Platform.GetMemoryMap(buf)
	if err != nil {
		return fmt.Errorf("failed to get memory map: %w", err)
	}

	list, err := types.NewRegionList(make([]byte, types.RegionListSize(conf.MaxRegions)))
	if err != nil {
		return err
	}
	stats, err := efistub.BuildRegionList(buf, info, conf.LowMemoryThreshold, list)
	if err != nil {
		return err
	}

	kept := make(map[types.PhysAddr]bool)
	for _, r := range list.Regions() {
		kept[r.Base] = true
	}

	for i := 0; i < info.Count(); i++ {
		off := uint64(i) * info.DescriptorSize
		d, err := types.ParseMemoryDescriptor(buf[off : off+info.DescriptorSize])
		if err != nil {
			return err
		}
		mark := " "
		if kept[d.PhysicalStart] {
			mark = okColor("*")
		}
		fmt.Printf("%s %-32s %#016x-%#016x %10s\n",
			mark,
			d.Type.Color(),
			uint64(d.PhysicalStart),
			uint64(d.End()),
			humanize.IBytes(d.Size()),
		)
	}

	fmt.Printf("\nkey=%d stride=%d version=%d: %d descriptors, %d kept, %d dropped, %d ignored (list capacity %d)\n",
		info.Key,
		info.DescriptorSize,
		info.DescriptorVersion,
		stats.Descriptors,
		stats.Kept,
		stats.Dropped,
		stats.Overflow,
		list.Cap(),
	)
	return nil
}

// regionsCmd represents the regions command
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Show the free memory regions a platform hands to the loader",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {

		if Verbose {
			log.SetLevel(log.DebugLevel)
		}

		profilePath, _ := cmd.Flags().GetString("profile")

		conf, err := stubConfig()
		if err != nil {
			return err
		}
		p, err := loadProfile(profilePath)
		if err != nil {
			return err
		}
		m, _, err := newMachine("", p)
		if err != nil {
			return err
		}

		log.WithField("platform", p.Name).Info("Memory map")
		return printMemoryMap(m, conf)
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
	regionsCmd.Flags().StringP("profile", "p", "", "platform profile plist")
}
